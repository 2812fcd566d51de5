package server

import (
	"context"
	"fmt"
	"log"

	"github.com/jonathan/cv-sync/internal/artifacts"
	"github.com/jonathan/cv-sync/internal/config"
	"github.com/jonathan/cv-sync/internal/db"
	"github.com/jonathan/cv-sync/internal/rendering"
	"github.com/jonathan/cv-sync/internal/server/ratelimit"
)

// Open builds a server from environment configuration. It connects to and
// migrates Postgres when DATABASE_URL is set, otherwise keeps data in memory.
// The returned cleanup closes the database pool.
func Open(ctx context.Context, sc *config.ServerConfig) (*Server, func(), error) {
	jwtConfig, err := config.NewJWTConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create JWT config: %w", err)
	}
	passwordConfig, err := config.NewPasswordConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create password config: %w", err)
	}

	store, err := openStore(ctx, sc)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {}
	var client DBClient
	if sc.DatabaseURL != "" {
		if err := db.Migrate(ctx, sc.DatabaseURL); err != nil {
			return nil, nil, err
		}
		database, err := db.Connect(ctx, sc.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		client = database
		cleanup = database.Close
	} else {
		log.Printf("[server] DATABASE_URL not set; CVs are kept in memory")
		client = NewMemoryDB(nil)
	}

	var rl *ratelimit.Config
	if cfg := ratelimit.LoadConfig(); cfg.Enabled {
		rl = cfg
	}

	s, err := New(Config{
		Addr:      sc.Addr(),
		DB:        client,
		Store:     store,
		Printer:   rendering.NewChromeRenderer(sc.ChromePath),
		JWT:       jwtConfig,
		Passwords: passwordConfig,
		RateLimit: rl,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	if sc.DevUserEmail != "" {
		if _, err := s.userService.EnsureUser(ctx, sc.DevUserEmail, sc.DevUserPasswordHash); err != nil {
			cleanup()
			return nil, nil, err
		}
		log.Printf("[server] provisioned user %s", sc.DevUserEmail)
	}

	return s, cleanup, nil
}

func openStore(ctx context.Context, sc *config.ServerConfig) (artifacts.Store, error) {
	switch sc.ArtifactStore {
	case config.ArtifactStoreS3:
		store, err := artifacts.NewS3(ctx, sc.AWSRegion, sc.S3Bucket, sc.S3Prefix)
		if err != nil {
			return nil, fmt.Errorf("failed to open S3 artifact store: %w", err)
		}
		log.Printf("[server] artifacts in s3://%s/%s", sc.S3Bucket, sc.S3Prefix)
		return store, nil
	default:
		log.Printf("[server] artifacts in %s", sc.ArtifactDir)
		return artifacts.NewLocal(sc.ArtifactDir, sc.PublicBaseURL), nil
	}
}
