package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Artifact store backends.
const (
	ArtifactStoreLocal = "local"
	ArtifactStoreS3    = "s3"
)

// ServerConfig holds configuration for `cvsync serve`.
type ServerConfig struct {
	Port          int
	DatabaseURL   string // empty keeps CVs in memory
	PublicBaseURL string // prefix for artifact URLs handed to clients

	ArtifactStore string // local or s3
	ArtifactDir   string
	S3Bucket      string
	S3Prefix      string
	AWSRegion     string

	ChromePath string // empty lets chromedp find the browser

	DevUserEmail        string
	DevUserPasswordHash string
}

// NewServerConfig creates a server configuration from environment variables.
// It reads PORT (default: 8080), DATABASE_URL, PUBLIC_BASE_URL, ARTIFACT_STORE
// (default: local), ARTIFACT_DIR, S3_BUCKET, S3_PREFIX, AWS_REGION, CHROME_PATH,
// DEV_USER_EMAIL and DEV_USER_PASSWORD_HASH.
func NewServerConfig() (*ServerConfig, error) {
	portStr := getEnv("PORT", "8080")
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %v", err)
	}

	cfg := &ServerConfig{
		Port:                port,
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		PublicBaseURL:       os.Getenv("PUBLIC_BASE_URL"),
		ArtifactStore:       strings.ToLower(getEnv("ARTIFACT_STORE", ArtifactStoreLocal)),
		ArtifactDir:         getEnv("ARTIFACT_DIR", "./data/artifacts"),
		S3Bucket:            os.Getenv("S3_BUCKET"),
		S3Prefix:            os.Getenv("S3_PREFIX"),
		AWSRegion:           os.Getenv("AWS_REGION"),
		ChromePath:          os.Getenv("CHROME_PATH"),
		DevUserEmail:        os.Getenv("DEV_USER_EMAIL"),
		DevUserPasswordHash: os.Getenv("DEV_USER_PASSWORD_HASH"),
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// normalize validates the configuration and fills derived defaults.
func (c *ServerConfig) normalize() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT out of range: %d", c.Port)
	}
	switch c.ArtifactStore {
	case ArtifactStoreLocal:
		if c.ArtifactDir == "" {
			return fmt.Errorf("ARTIFACT_DIR is required for the local artifact store")
		}
	case ArtifactStoreS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when ARTIFACT_STORE=s3")
		}
	default:
		return fmt.Errorf("unknown ARTIFACT_STORE %q (must be local or s3)", c.ArtifactStore)
	}
	if (c.DevUserEmail == "") != (c.DevUserPasswordHash == "") {
		return fmt.Errorf("DEV_USER_EMAIL and DEV_USER_PASSWORD_HASH must be set together")
	}
	if c.PublicBaseURL == "" {
		c.PublicBaseURL = fmt.Sprintf("http://localhost:%d", c.Port)
	}
	c.PublicBaseURL = strings.TrimRight(c.PublicBaseURL, "/")
	return nil
}

// Addr returns the listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
