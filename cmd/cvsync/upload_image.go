package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jonathan/cv-sync/internal/observability"
)

var uploadImageCmd = &cobra.Command{
	Use:   "upload-image PATH",
	Short: "Upload a profile image and set it on the CV",
	Long:  `Upload a JPEG, PNG, GIF or WebP image (up to 5 MB) and point the CV's profile image at it.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open image: %w", err)
		}
		defer func() { _ = f.Close() }()

		return withEngine(cmd, func(ctx context.Context, a *app) error {
			progressOut := cmd.ErrOrStderr()
			url, err := a.engine.UploadProfileImage(ctx, filepath.Base(args[0]), f, func(frac float64) {
				_, _ = fmt.Fprintf(progressOut, "\r%s", observability.ProgressLine("Uploading", int(frac*100)))
			})
			_, _ = fmt.Fprintln(progressOut)
			if err != nil {
				return err
			}

			a.engine.Flush()
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Profile image: %s\n", url)
			a.printer.PrintSyncStatus(a.engine.Status(), a.engine.PendingUpdates())
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(uploadImageCmd)
}
