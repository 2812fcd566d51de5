package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var resetYes bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the CV back to an empty document",
	Long:  `Reset every section to its empty default. The reset is saved and synced like any other edit.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !resetYes {
			return fmt.Errorf("refusing to reset without --yes")
		}
		return withEngine(cmd, func(_ context.Context, a *app) error {
			a.engine.Reset()
			a.engine.Flush()
			a.printer.PrintSyncStatus(a.engine.Status(), a.engine.PendingUpdates())
			return nil
		})
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetYes, "yes", false, "Confirm the reset")
	rootCmd.AddCommand(resetCmd)
}
