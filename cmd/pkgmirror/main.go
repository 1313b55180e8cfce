// Package main is the entry point for the pkgmirror CLI.
//
// pkgmirror can be run either as a library (SDK) or as a standalone binary
// with YAML configuration. This CLI provides the standalone binary approach.
//
// Usage:
//
//	pkgmirror serve -c config.yaml    # Start the dashboard
//	pkgmirror snapshot -c config.yaml # Load once and print the state as JSON
//	pkgmirror validate -c config.yaml # Validate configuration
//	pkgmirror version                 # Show version info
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/jpalmerr/pkgmirror/config"
	"github.com/spf13/cobra"
)

// Version information - set by GoReleaser at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
// It just displays help - actual functionality is in subcommands.
var rootCmd = &cobra.Command{
	Use:   "pkgmirror",
	Short: "A live mirror of a MagicMirror package manager",
	Long: `pkgmirror mirrors the state of an MMPM API server.

It keeps the package catalog, the database status and the list of
upgradable packages up to date and pushes every change to a web
dashboard over Server-Sent Events and WebSocket.

Quick start:
  1. Create a config file (pkgmirror.yaml)
  2. Run: pkgmirror serve -c pkgmirror.yaml
     (add --log-level debug to see every fetch)
  3. Open http://localhost:7890 in your browser

Example config:
  port: 7890
  api_url: http://raspberrypi.local:7891
  refresh_interval: 5m`,
	// No Run/RunE means this just shows help when called without subcommands
}

// Execute runs the root command.
// This is the main entry point called from main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this pkgmirror binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pkgmirror %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().StringP("config", "c", "", "path to config file")
	rootCmd.PersistentFlags().String("log-level", "", "override log_level from the config file (debug, info, warn, error)")
}

// loadConfig reads the file named by --config and applies --log-level.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configFile, _ := cmd.Flags().GetString("config")
	if configFile == "" {
		return nil, errors.New("--config is required")
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		if err := cfg.SetLogLevel(level); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
