package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/understudy-io/understudy/bytecode"
	"github.com/understudy-io/understudy/dis"
)

func newDisCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dis <file.cunit>",
		Short: "Disassemble a compiled unit container",
		Args:  cobra.ExactArgs(1),
		RunE:  runDis,
	}
	cmd.Flags().String("method", "", "Disassemble a single method")
	return cmd
}

func runDis(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	unit, err := bytecode.Unmarshal(data)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if name, _ := cmd.Flags().GetString("method"); name != "" {
		method, ok := unit.Method(name)
		if !ok {
			return fmt.Errorf("unit %s has no method %q", unit.Name(), name)
		}
		instructions, err := dis.Disassemble(unit, method)
		if err != nil {
			return err
		}
		dis.Print(instructions, out)
		return nil
	}
	fmt.Fprintf(out, "unit %s (compiler %s)\n\n", unit.Name(), unit.CompilerVersion())
	return dis.Fprint(out, unit)
}
