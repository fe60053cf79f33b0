package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/understudy-io/understudy/core"
	"github.com/understudy-io/understudy/loader"
	"github.com/understudy-io/understudy/trap"
	"github.com/understudy-io/understudy/vm"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <unit> <method> [args...]",
		Short: "Load a unit and invoke one of its methods",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runRun,
	}
	cmd.Flags().StringP("resources", "r", ".", "Directory resolved for .cunit containers")
	cmd.Flags().Bool("catch-exit", false, "Report exit attempts by the unit instead of terminating")
	cmd.Flags().StringP("output", "o", "", "Output format: json or text")
	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	unitName, methodName := args[0], args[1]
	resources, _ := cmd.Flags().GetString("resources")
	catchExit, _ := cmd.Flags().GetBool("catch-exit")
	format, _ := cmd.Flags().GetString("output")

	callArgs := parseCallArgs(args[2:])

	l := loader.New(
		loader.WithParent(core.NewLibrary()),
		loader.WithResolver(loader.NewFSResolver(os.DirFS(resources))),
		loader.WithLogger(cliLogger()),
	)
	unit, err := l.Load(cmd.Context(), unitName)
	if err != nil {
		return err
	}

	vmOpts := []vm.Option{vm.WithLinker(l)}
	if catchExit {
		guard := trap.NewGuard(unitName)
		vmOpts = append(vmOpts, vm.WithExitHandler(guard), vm.WithPolicy(guard))
	}

	result, err := vm.New(vmOpts...).Call(cmd.Context(), unit, methodName, callArgs)
	var exitErr *trap.ExitError
	if errors.As(err, &exitErr) {
		fmt.Fprintf(cmd.OutOrStdout(), "unit %s attempted exit with code %d\n",
			unitName, exitErr.Code)
		return nil
	}
	if err != nil {
		return err
	}
	return printResult(cmd.OutOrStdout(), result, format)
}

// parseCallArgs maps command line strings onto machine values: integers
// and booleans by literal form, everything else as a string.
func parseCallArgs(args []string) []vm.Value {
	values := make([]vm.Value, len(args))
	for i, arg := range args {
		if n, err := strconv.ParseInt(arg, 10, 64); err == nil {
			values[i] = vm.IntValue(n)
			continue
		}
		switch arg {
		case "true":
			values[i] = vm.True
		case "false":
			values[i] = vm.False
		default:
			values[i] = vm.StringValue(arg)
		}
	}
	return values
}

func printResult(w io.Writer, result vm.Value, format string) error {
	switch strings.ToLower(format) {
	case "", "text":
		if result.IsNil() {
			return nil
		}
		fmt.Fprintln(w, result.String())
		return nil
	case "json":
		output, err := marshalJSON(valueToAny(result))
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(output))
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}
