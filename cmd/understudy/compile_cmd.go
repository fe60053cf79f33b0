package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/understudy-io/understudy/loader"
	"github.com/understudy-io/understudy/mocking"
)

func newCompileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile [files...]",
		Short: "Compile unit source files into containers",
		RunE:  runCompile,
	}
	cmd.Flags().StringP("code", "c", "", "Code to compile")
	cmd.Flags().StringP("out", "o", ".", "Output directory for containers")
	return cmd
}

func runCompile(cmd *cobra.Command, args []string) error {
	code, _ := cmd.Flags().GetString("code")
	outDir, _ := cmd.Flags().GetString("out")

	var sources []mocking.SourceUnit
	if code != "" {
		if len(args) > 0 {
			return fmt.Errorf("multiple input sources specified")
		}
		name, err := declaredUnitName(code)
		if err != nil {
			return err
		}
		sources = append(sources, mocking.SourceUnit{Name: name, Source: code})
	}
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		name, err := declaredUnitName(string(data))
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		sources = append(sources, mocking.SourceUnit{Name: name, Source: string(data)})
	}
	if len(sources) == 0 {
		return fmt.Errorf("nothing to compile")
	}

	compiler := mocking.NewCompiler(mocking.WithLogger(cliLogger()))
	units, err := compiler.CompileAll(cmd.Context(), sources...)

	// Containers land at their resource paths so the output directory can
	// be used directly with `run --resources`.
	for _, unit := range units {
		path := filepath.Join(outDir, filepath.FromSlash(loader.UnitPath(unit.Name)))
		if mkErr := os.MkdirAll(filepath.Dir(path), 0o755); mkErr != nil {
			return mkErr
		}
		if wrErr := os.WriteFile(path, unit.Container, 0o644); wrErr != nil {
			return wrErr
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
	}
	return err
}
