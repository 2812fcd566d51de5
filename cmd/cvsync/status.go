package main

import (
	"context"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the local document and its sync state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withEngine(cmd, func(_ context.Context, a *app) error {
			a.printer.PrintDocument(a.engine.Document())
			a.printer.PrintSyncStatus(a.engine.Status(), a.engine.PendingUpdates())
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
