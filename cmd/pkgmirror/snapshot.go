package main

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/jpalmerr/pkgmirror"
	"github.com/jpalmerr/pkgmirror/config"
	"github.com/spf13/cobra"
)

// snapshotCmd loads the state once and prints it.
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Load the state once and print it as JSON",
	Long: `Load the package catalog, database status and upgradable packages
from the MMPM API server once and print them as a single JSON document.

Fetch failures are logged to stderr and leave the affected part at its
default, so the command succeeds even when the API server is down.

Example:
  pkgmirror snapshot -c config.yaml | jq '.upgradable'`,
	RunE: runSnapshot,
}

func init() {
	rootCmd.AddCommand(snapshotCmd)

	snapshotCmd.Flags().Bool("pretty", false, "indent the JSON output")
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	pretty, _ := cmd.Flags().GetBool("pretty")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg.Level())
	opts := append(config.BuildOptions(cfg), pkgmirror.WithLogger(logger))
	m, err := pkgmirror.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create mirror: %w", err)
	}
	defer m.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := m.Bootstrap(ctx); err != nil {
		return fmt.Errorf("initial load interrupted: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(m.Snapshot())
}

