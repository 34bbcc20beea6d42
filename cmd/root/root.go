// Package root contains the root command for the application
package root

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tally/internal/budget"
	"tally/internal/categorizer"
	"tally/internal/config"
	"tally/internal/dateutils"
	"tally/internal/ingest"
	"tally/internal/money"
	"tally/internal/sources"
	"tally/internal/store"
)

var (
	// Log is the shared logger instance for commands
	Log = config.Logger

	// Cfg holds the loaded configuration, available to all subcommands
	// after PersistentPreRunE has run.
	Cfg *config.Config

	// Cmd is the root command
	Cmd = &cobra.Command{
		Use:   "tally",
		Short: "A local ledger and zero-based budget for your bank transactions.",
		Long: `tally keeps a local ledger of your bank transactions and a zero-based
monthly budget on top of it. It pulls transactions from configured
sources, deduplicates them, lets you categorize them interactively with
persisted auto-rules, and reports spending against your allocations.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, args []string) {
			Log.Info("Welcome to tally!")
			Log.Info("Use --help to see available commands")
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config.LoadEnv()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			Cfg = cfg

			Log = config.ConfigureLogging(cfg)
			money.SetSymbol(cfg.Currency.Symbol)

			categorizer.SetLogger(Log)
			ingest.SetLogger(Log)
			budget.SetLogger(Log)
			sources.SetLogger(Log)
			return nil
		},
	}

	// DatabaseOverride replaces the configured database path when set.
	DatabaseOverride string
)

// Init initializes the root command and all flags
func Init() {
	Cmd.PersistentFlags().StringVar(&DatabaseOverride, "database", "", "Path to the ledger database (overrides configuration)")
}

// DatabasePath returns the effective database path.
func DatabasePath() string {
	if DatabaseOverride != "" {
		return DatabaseOverride
	}
	return Cfg.Database.Path
}

// OpenStore opens the ledger database. Every command except initdb goes
// through here, so a missing database fails with a pointer to initdb
// instead of silently creating an empty ledger.
func OpenStore() (*store.Store, error) {
	path := DatabasePath()
	if !store.Exists(path) {
		return nil, fmt.Errorf("no ledger database at %s: run 'tally initdb' first", path)
	}
	return store.Open(path)
}

// ResolveMonth parses a --month flag value, defaulting to the current
// calendar month when the flag was left empty.
func ResolveMonth(s string) (dateutils.Month, error) {
	if s == "" {
		return dateutils.CurrentMonth(time.Now()), nil
	}
	return dateutils.ParseMonth(s)
}
