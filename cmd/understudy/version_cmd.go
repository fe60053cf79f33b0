package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/understudy-io/understudy/core"
)

type versionInfo struct {
	Version  string `json:"version"`
	Platform string `json:"platform"`
	Commit   string `json:"commit"`
	Date     string `json:"date"`
}

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE:  runVersion,
	}
	cmd.Flags().StringP("output", "o", "", "Output format: json or text")
	return cmd
}

func runVersion(cmd *cobra.Command, args []string) error {
	info := versionInfo{
		Version:  version,
		Platform: core.Version,
		Commit:   commit,
		Date:     date,
	}
	format, _ := cmd.Flags().GetString("output")
	out := cmd.OutOrStdout()
	switch strings.ToLower(format) {
	case "json":
		data, err := marshalJSON(info)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	case "", "text":
		fmt.Fprintf(out, "understudy %s (platform %s, commit %s, built %s)\n",
			info.Version, info.Platform, info.Commit, info.Date)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}
