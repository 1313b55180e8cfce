package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// validateCmd validates a config file without starting the server.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a pkgmirror configuration file without starting the server.

This command parses the YAML, expands environment variables, and validates
all fields. It's useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  pkgmirror validate -c config.yaml
  pkgmirror validate --config /etc/pkgmirror/config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	refresh := cfg.RefreshIntervalDuration().String()
	if cfg.RefreshIntervalDuration() == 0 {
		refresh = "disabled"
	}

	fmt.Printf("Config is valid!\n")
	fmt.Printf("  Port:             %d\n", cfg.Port)
	fmt.Printf("  API URL:          %s\n", cfg.APIURL)
	fmt.Printf("  API headers:      %d\n", len(cfg.APIHeaders))
	fmt.Printf("  Fetch timeout:    %s\n", cfg.FetchTimeoutDuration())
	fmt.Printf("  Refresh interval: %s\n", refresh)
	fmt.Printf("  Metrics:          %t\n", cfg.Metrics)
	fmt.Printf("  Log level:        %s\n", cfg.LogLevel)

	return nil
}
