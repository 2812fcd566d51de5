package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonathan/cv-sync/internal/config"
	"github.com/jonathan/cv-sync/internal/server"
)

var (
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the reference sync server",
	Long: `Start an HTTP server that stores CVs, renders PDFs and hosts profile images.

Configuration comes from the environment: JWT_SECRET is required; DATABASE_URL
selects Postgres (otherwise CVs are kept in memory); ARTIFACT_STORE=s3 with
S3_BUCKET stores artifacts in S3 instead of ARTIFACT_DIR.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "Port to listen on (overrides PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	sc, err := config.NewServerConfig()
	if err != nil {
		return fmt.Errorf("invalid server configuration: %w", err)
	}
	if cmd.Flags().Changed("port") {
		sc.Port = servePort
		if os.Getenv("PUBLIC_BASE_URL") == "" {
			sc.PublicBaseURL = fmt.Sprintf("http://localhost:%d", servePort)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, cleanup, err := server.Open(ctx, sc)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	defer cleanup()

	return srv.Run(ctx)
}
