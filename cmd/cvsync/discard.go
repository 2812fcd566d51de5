package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var discardCmd = &cobra.Command{
	Use:   "discard",
	Short: "Drop every pending update",
	Long: `Empty the pending-update queue and clear the sync error.

The local document keeps the discarded edits; run "cvsync pull" to return to the server copy.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withEngine(cmd, func(ctx context.Context, a *app) error {
			n := len(a.engine.PendingUpdates())
			if err := a.engine.DiscardPending(ctx); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Discarded %d pending update(s)\n", n)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(discardCmd)
}
