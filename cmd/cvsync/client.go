package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/cv-sync/internal/config"
	"github.com/jonathan/cv-sync/internal/engine"
	"github.com/jonathan/cv-sync/internal/observability"
	"github.com/jonathan/cv-sync/internal/remote"
	"github.com/jonathan/cv-sync/internal/storage"
)

// app bundles what a client subcommand works with.
type app struct {
	cfg     config.Config
	client  *remote.Client
	engine  *engine.Engine
	printer *observability.Printer
}

// loadClientConfig resolves the client configuration in order of priority:
// flags, CVSYNC_* environment variables, the --config file, then defaults.
func loadClientConfig(cmd *cobra.Command) (config.Config, error) {
	var cfg config.Config
	if rootConfigPath != "" {
		loaded, err := config.LoadConfig(rootConfigPath)
		if err != nil {
			return config.Config{}, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = *loaded
	}

	cfg.ApplyEnv()

	// Only override if the flag was explicitly set
	if cmd.Flags().Changed("server") {
		cfg.ServerURL = rootServerURL
	}
	if cmd.Flags().Changed("data-dir") {
		cfg.DataDir = rootDataDir
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Verbose = rootVerbose
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	merged := cfg.MergeWithDefaults(config.Defaults())

	if merged.Verbose {
		log.SetOutput(cmd.ErrOrStderr())
	} else {
		log.SetOutput(io.Discard)
	}
	return merged, nil
}

func newRemoteClient(cfg config.Config) (*remote.Client, error) {
	token, err := cfg.ResolveToken()
	if err != nil {
		return nil, err
	}
	return remote.NewClient(cfg.ServerURL, remote.StaticToken(token), nil)
}

func newEngine(cfg config.Config, client *remote.Client) (*engine.Engine, error) {
	store, err := storage.NewFileStore(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	return engine.New(engine.Deps{
		Store:  store,
		Remote: client,
		Config: engine.Config{
			AutosaveDelay:   cfg.AutosaveDelay(),
			SettleDelay:     cfg.SettleDelay(),
			ProbeInterval:   cfg.ProbeInterval(),
			MaxQueueEntries: cfg.MaxQueueEntries,
			// Without a prober nothing would ever flip the monitor online.
			StartOnline: cfg.ProbeInterval() == 0,
		},
	})
}

// withEngine starts an engine for the duration of fn. Stopping the engine
// flushes any pending autosave, so edits made by fn are persisted and pushed.
func withEngine(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	cfg, err := loadClientConfig(cmd)
	if err != nil {
		return err
	}
	client, err := newRemoteClient(cfg)
	if err != nil {
		return err
	}
	e, err := newEngine(cfg, client)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if err := e.Start(ctx); err != nil {
		return fmt.Errorf("failed to start sync engine: %w", err)
	}

	runErr := fn(ctx, &app{
		cfg:     cfg,
		client:  client,
		engine:  e,
		printer: observability.NewPrinter(cmd.OutOrStdout()),
	})

	stopCtx, cancel := context.WithTimeout(context.Background(), engine.DefaultSyncTimeout)
	defer cancel()
	if err := e.Stop(stopCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// readSecret reads a single secret from r, dropping the trailing newline.
func readSecret(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}
