package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push pending updates now",
	Long:  `Drain the pending-update queue, including a queue parked after the server rejected an update.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withEngine(cmd, func(ctx context.Context, a *app) error {
			err := a.engine.ForceSync(ctx)
			a.printer.PrintSyncStatus(a.engine.Status(), a.engine.PendingUpdates())
			if err != nil {
				return fmt.Errorf("sync failed: %w", err)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
