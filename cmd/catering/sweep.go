package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"catering/internal/sweeper"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Recompute overdue flags once",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, logger, err := openStore(cfg, os.Stderr)
		if err != nil {
			return err
		}
		defer store.Close()

		sw, err := sweeper.New(store, cfg.Sweeper.Cron, logger)
		if err != nil {
			return err
		}
		flagged, cleared, err := sw.RunOnce(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "flagged %d, cleared %d\n", flagged, cleared)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
