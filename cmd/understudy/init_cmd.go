package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/understudy-io/understudy/core"
	"github.com/understudy-io/understudy/toolchain"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [dir]",
		Short: "Materialize a toolchain home with the bundled core manifest",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	var dir string
	if len(args) > 0 {
		dir = args[0]
	} else {
		dir = os.Getenv(toolchain.HomeEnv)
	}
	if dir == "" {
		return fmt.Errorf("no directory given and %s is not set", toolchain.HomeEnv)
	}
	if err := toolchain.WriteHome(dir, core.Version, core.Manifest()); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "initialized toolchain %s at %s\n", core.Version, dir)
	if os.Getenv(toolchain.HomeEnv) != dir {
		fmt.Fprintf(out, "set %s=%s to use it\n", toolchain.HomeEnv, dir)
	}
	return nil
}
