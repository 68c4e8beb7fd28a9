// Package cmd implements alarmctl, the rule management CLI spec §6
// mandates: add-simple, add-conditional, list, show, delete, active.
//
// Grounded in original_source/src/cli/alarm_cli.py for the verb and
// argument shape, and the other_examples/manifests/rustyeddy-otto
// pack entry for cobra co-occurring with the same MQTT client this
// module uses elsewhere. Like the reference service's CLI pattern,
// alarmctl opens the store directly against the configured database
// file rather than talking to a running daemon (SPEC_FULL §12).
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/mt-monitoring/alarmd/internal/config"
	"github.com/mt-monitoring/alarmd/internal/store"
)

var (
	configPath string
	storePath  string
)

var rootCmd = &cobra.Command{
	Use:           "alarmctl",
	Short:         "Author and inspect IoT telemetry alarm rules",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to alarmd config file")
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "path to the alarm store database (overrides config)")

	rootCmd.AddCommand(
		addSimpleCmd,
		addConditionalCmd,
		listCmd,
		showCmd,
		deleteCmd,
		activeCmd,
	)
}

// Execute runs the CLI, returning an error carrying spec §6's exit code.
func Execute() error {
	return rootCmd.Execute()
}

// openStore resolves store.path from --store, falling back to the
// configured (or default) path, and opens the Durable Store.
func openStore() (*store.Store, error) {
	path := storePath
	if path == "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, argError("load config: %w", err)
		}
		path = cfg.Store.Path
	}

	st, err := store.Open(path)
	if err != nil {
		return nil, storeError(err)
	}
	// No metrics.Metrics wired here: alarmctl is a one-shot process with
	// no Prometheus surface to export counters to. Store.Transaction
	// still retries busy/locked writes against the daemon, it just
	// doesn't count the attempts.
	return st, nil
}
