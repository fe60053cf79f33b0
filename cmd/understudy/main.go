package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	root := &cobra.Command{
		Use:          "understudy",
		Short:        "Compile, inspect and run substitutable units",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			processGlobalFlags()
		},
	}

	flags := root.PersistentFlags()
	flags.Bool("no-color", false, "Disable colored output")
	flags.BoolP("verbose", "v", false, "Enable debug logging")
	if err := viper.BindPFlags(flags); err != nil {
		fatal(err)
	}
	viper.SetEnvPrefix("understudy")
	viper.AutomaticEnv()

	root.AddCommand(
		newCompileCmd(),
		newDisCmd(),
		newRunCmd(),
		newInitCmd(),
		newVersionCmd(),
	)

	if err := root.Execute(); err != nil {
		fatal(err)
	}
}
