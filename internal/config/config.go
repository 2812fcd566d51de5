// Package config provides configuration loading and validation for the CLI and server.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonathan/cv-sync/internal/types"
)

// Defaults for the client configuration.
const (
	DefaultServerURL      = "http://localhost:8080"
	DefaultDataDirName    = ".cvsync"
	DefaultAutosaveMillis = 2000
	DefaultSettleMillis   = 500
	DefaultProbeSeconds   = 15
	DefaultMaxQueue       = 50
	TokenFileName         = "token"
)

// Config represents the CLI configuration that can be loaded from a JSON file.
// All fields are optional; missing values use defaults, CVSYNC_* variables or CLI flags.
type Config struct {
	// Server
	ServerURL string `json:"server_url,omitempty"` // Base URL of the CV API
	Token     string `json:"token,omitempty"`      // Bearer token; wins over token_file
	TokenFile string `json:"token_file,omitempty"` // File holding the bearer token (written by `cvsync login`)

	// Local state
	DataDir string `json:"data_dir,omitempty"` // Directory for the document cache and pending queue

	// Timings
	AutosaveDelayMillis int `json:"autosave_delay_ms,omitempty"`      // Quiet period before an edit is saved
	SettleDelayMillis   int `json:"settle_delay_ms,omitempty"`        // Wait after reconnecting before draining
	ProbeIntervalSecs   int `json:"probe_interval_seconds,omitempty"` // Health probe interval; negative disables
	MaxQueueEntries     int `json:"max_queue_entries,omitempty"`      // Pending entries kept before compaction

	// PDF
	Template string `json:"template,omitempty"` // modern, classic or minimal
	Format   string `json:"format,omitempty"`   // A4 or Letter

	Verbose bool `json:"verbose,omitempty"` // Print detailed debug information
}

// Defaults returns the built-in client configuration rooted at the user's home directory.
func Defaults() Config {
	dataDir := DefaultDataDirName
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, DefaultDataDirName)
	}
	return Config{
		ServerURL:           DefaultServerURL,
		DataDir:             dataDir,
		AutosaveDelayMillis: DefaultAutosaveMillis,
		SettleDelayMillis:   DefaultSettleMillis,
		ProbeIntervalSecs:   DefaultProbeSeconds,
		MaxQueueEntries:     DefaultMaxQueue,
		Template:            string(types.DefaultTemplate),
		Format:              string(types.FormatA4),
	}
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// ApplyEnv overrides fields from CVSYNC_SERVER_URL, CVSYNC_TOKEN and CVSYNC_DATA_DIR when set.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("CVSYNC_SERVER_URL"); v != "" {
		c.ServerURL = v
	}
	if v := os.Getenv("CVSYNC_TOKEN"); v != "" {
		c.Token = v
	}
	if v := os.Getenv("CVSYNC_DATA_DIR"); v != "" {
		c.DataDir = v
	}
}

// Validate checks that the configuration has valid values.
// Required fields are not checked; they are filled by MergeWithDefaults.
func (c *Config) Validate() error {
	if c.ServerURL != "" {
		u, err := url.Parse(c.ServerURL)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("config error: 'server_url' must be an absolute http(s) URL, got %q", c.ServerURL)
		}
	}

	if c.AutosaveDelayMillis < 0 {
		return fmt.Errorf("config error: 'autosave_delay_ms' must be non-negative")
	}
	if c.SettleDelayMillis < 0 {
		return fmt.Errorf("config error: 'settle_delay_ms' must be non-negative")
	}
	if c.MaxQueueEntries < 0 {
		return fmt.Errorf("config error: 'max_queue_entries' must be non-negative")
	}

	if c.Template != "" && !types.PDFTemplate(c.Template).Valid() {
		return fmt.Errorf("config error: unknown template %q", c.Template)
	}
	switch types.PDFFormat(c.Format) {
	case "", types.FormatA4, types.FormatLetter:
	default:
		return fmt.Errorf("config error: unknown format %q (must be A4 or Letter)", c.Format)
	}

	if c.TokenFile != "" {
		if info, err := os.Stat(c.TokenFile); err == nil && info.IsDir() {
			return fmt.Errorf("config error: token_file is a directory: %s", c.TokenFile)
		}
	}

	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.ServerURL == "" {
		result.ServerURL = defaults.ServerURL
	}
	if result.Token == "" {
		result.Token = defaults.Token
	}
	if result.TokenFile == "" {
		result.TokenFile = defaults.TokenFile
	}
	if result.DataDir == "" {
		result.DataDir = defaults.DataDir
	}
	if result.Template == "" {
		result.Template = defaults.Template
	}
	if result.Format == "" {
		result.Format = defaults.Format
	}

	if result.AutosaveDelayMillis == 0 {
		result.AutosaveDelayMillis = defaults.AutosaveDelayMillis
	}
	if result.SettleDelayMillis == 0 {
		result.SettleDelayMillis = defaults.SettleDelayMillis
	}
	if result.ProbeIntervalSecs == 0 {
		result.ProbeIntervalSecs = defaults.ProbeIntervalSecs
	}
	if result.MaxQueueEntries == 0 {
		result.MaxQueueEntries = defaults.MaxQueueEntries
	}

	// Bools cannot distinguish unset from false, so they are not merged.

	return result
}

// AutosaveDelay returns the autosave quiet period.
func (c Config) AutosaveDelay() time.Duration {
	return time.Duration(c.AutosaveDelayMillis) * time.Millisecond
}

// SettleDelay returns the reconnect settle period.
func (c Config) SettleDelay() time.Duration {
	return time.Duration(c.SettleDelayMillis) * time.Millisecond
}

// ProbeInterval returns the health probe interval, or zero when probing is disabled.
func (c Config) ProbeInterval() time.Duration {
	if c.ProbeIntervalSecs <= 0 {
		return 0
	}
	return time.Duration(c.ProbeIntervalSecs) * time.Second
}

// TokenPath returns the token file, defaulting to <data_dir>/token.
func (c Config) TokenPath() string {
	if c.TokenFile != "" {
		return c.TokenFile
	}
	return filepath.Join(c.DataDir, TokenFileName)
}

// ResolveToken returns the explicit token or the contents of the token file.
// A missing token file yields an empty token.
func (c Config) ResolveToken() (string, error) {
	if c.Token != "" {
		return c.Token, nil
	}
	data, err := os.ReadFile(c.TokenPath())
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// SaveToken writes token to the token file with owner-only permissions.
func (c Config) SaveToken(token string) error {
	path := c.TokenPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}
