// Package main implements the catering CLI: the API server plus
// maintenance commands.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"catering/internal/config"
	"catering/internal/storage/sqlite"
	"catering/internal/util"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "catering:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "catering",
	Short:         "Catering operations: events, tasks and resource scheduling",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	configPath string
	dbPath     string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", util.EnvOrDefault("CATERING_CONFIG", "catering.yaml"), "path to YAML configuration")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "sqlite database path (overrides config)")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "catering %s\n", version)
	},
}

// loadConfig reads the configuration and applies the root flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	return cfg, nil
}

// openStore opens the configured database, logging to w.
func openStore(cfg *config.Config, w io.Writer) (*sqlite.Store, *slog.Logger, error) {
	logger := util.NewLogger(w, cfg.LogLevel)
	store, err := sqlite.Open(cfg.Database.Path, logger, sqlite.Options{MaxOpenConns: cfg.Database.MaxOpenConns})
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	return store, logger, nil
}
