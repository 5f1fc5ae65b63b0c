package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"aqstn"
	"aqstn/internal/config"
)

var (
	configPath string
	envPath    string
)

var rootCmd = &cobra.Command{
	Use:          "aqstn",
	Short:        fmt.Sprintf("%s node", aqstn.Name),
	Long:         aqstn.Description,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runNode,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "path to the YAML config file (missing file means defaults)")
	rootCmd.PersistentFlags().StringVar(&envPath, "env", ".env", "dotenv file loaded before the config")
}

// loadConfig reads the dotenv file, then the YAML config with AQSTN_ overrides.
func loadConfig() (*config.Config, error) {
	if err := config.LoadEnvFile(envPath); err != nil {
		return nil, err
	}
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
