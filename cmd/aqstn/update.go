package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"aqstn/internal/errors"
	"aqstn/internal/version"
)

var checkUpdateCmd = &cobra.Command{
	Use:   "check-update",
	Short: "check whether a newer release is published",
	Args:  cobra.NoArgs,
	RunE:  runCheckUpdate,
}

func init() {
	rootCmd.AddCommand(checkUpdateCmd)
}

func runCheckUpdate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	checker := version.NewChecker(cfg.Update.URL)
	available, latest, err := checker.IsUpdateAvailable(cmd.Context())
	if err != nil {
		return errors.NewAppError(errors.ErrCodeUpdateCheckFailed, "update check failed", err)
	}

	out := cmd.OutOrStdout()
	if available {
		fmt.Fprintf(out, "New version of aqstn is available: %s (currently running: %s)\n", latest, checker.Current)
		return nil
	}
	fmt.Fprintln(out, "No new aqstn update available")
	return nil
}
