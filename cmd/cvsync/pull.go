package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/cv-sync/internal/cvstate"
)

var pullForce bool

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Replace the local document with the server copy",
	Long: `Fetch the CV from the server and make it the local baseline.

Pulling with queued edits would silently drop them, so it is refused unless
--force is given, in which case the queue is discarded first.`,
	Args: cobra.NoArgs,
	RunE: runPull,
}

func init() {
	pullCmd.Flags().BoolVar(&pullForce, "force", false, "Discard pending updates and overwrite local edits")
	rootCmd.AddCommand(pullCmd)
}

func runPull(cmd *cobra.Command, _ []string) error {
	return withEngine(cmd, func(ctx context.Context, a *app) error {
		if n := len(a.engine.PendingUpdates()); n > 0 {
			if !pullForce {
				return fmt.Errorf("%d pending update(s) would be lost; run `cvsync sync` first or pass --force", n)
			}
			if err := a.engine.DiscardPending(ctx); err != nil {
				return err
			}
		}

		doc, err := a.client.Fetch(ctx)
		if err != nil {
			return fmt.Errorf("failed to pull: %w", err)
		}
		a.engine.Dispatch(cvstate.LoadDocument{Document: *doc})
		a.engine.Flush()

		a.printer.PrintDocument(a.engine.Document())
		return nil
	})
}
