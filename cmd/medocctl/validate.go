package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cosanlab/medoc/config"
)

// validateCmd validates a config file without touching the device.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a medocctl configuration file without contacting the device.

This command parses the file (YAML or TOML by extension), expands
environment variables, and validates all fields. It's useful for CI/CD
pipelines or pre-session checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  medocctl validate -c lab.yaml
  medocctl validate --config /etc/medoc/lab.toml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	if configFile == "" {
		return fmt.Errorf("--config is required")
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	fmt.Printf("Config is valid!\n")
	fmt.Printf("  Device:        %s:%d\n", cfg.Device.Host, cfg.Device.Port)
	fmt.Printf("  Timeout:       %s\n", cfg.Device.Timeout.Duration())
	fmt.Printf("  Poll interval: %s\n", cfg.Poll.Interval.Duration())
	if cfg.Stream.BrokerURL != "" {
		fmt.Printf("  Stream:        %s -> %s\n", cfg.Stream.BrokerURL, cfg.Stream.Topic)
	}

	return nil
}
