package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"aqstn/internal/version"
)

var outputFormat string

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "show the version",
	Args:  cobra.NoArgs,
	RunE:  printVersion,
}

func init() {
	versionCmd.Flags().StringVarP(&outputFormat, "output", "o", "text", "format to show version information (available=[text, json])")

	rootCmd.AddCommand(versionCmd)
}

func printVersion(cmd *cobra.Command, _ []string) error {
	info := version.FromBuild()
	out := cmd.OutOrStdout()

	switch outputFormat {
	case "text":
		fmt.Fprintln(out, info.String())
		fmt.Fprintln(out, "BuildDate:   ", info.BuildDate)
		fmt.Fprintln(out, "GitCommit:   ", info.GitCommit)
		fmt.Fprintln(out, "GitTreeState:", info.GitTreeState)
		fmt.Fprintln(out, "Platform:    ", info.Platform)
		fmt.Fprintln(out, "GoVersion:   ", info.GoVersion)
		fmt.Fprintln(out, "Compiler:    ", info.Compiler)
	case "json":
		enc := json.NewEncoder(out)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", " ")
		if err := enc.Encode(&info); err != nil {
			return fmt.Errorf("failed to show version information: %w", err)
		}
	default:
		return fmt.Errorf("unsupported output format: %s", outputFormat)
	}
	return nil
}
