package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Auth schemes understood by the registry client.
const (
	AuthPrivateToken = "private-token"
	AuthBearer       = "bearer"
)

// Host kinds.
const (
	HostLocal = "local"
	HostCode  = "code"
)

// Config holds all process configuration.
type Config struct {
	Server    ServerConfig
	Registry  RegistryConfig
	Host      HostConfig
	Storage   StorageConfig
	Sync      SyncConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"EXTSYNC_PORT" default:"7420"`
	Host string `envconfig:"EXTSYNC_HOST" default:"127.0.0.1"`
}

// RegistryConfig holds registry client configuration.
type RegistryConfig struct {
	AuthScheme        string        `envconfig:"EXTSYNC_AUTH_SCHEME" default:"private-token"`
	Timeout           time.Duration `envconfig:"EXTSYNC_HTTP_TIMEOUT" default:"30s"`
	RetryMax          int           `envconfig:"EXTSYNC_HTTP_RETRIES" default:"3"`
	RetryWaitMin      time.Duration `envconfig:"EXTSYNC_HTTP_RETRY_MIN" default:"500ms"`
	RetryWaitMax      time.Duration `envconfig:"EXTSYNC_HTTP_RETRY_MAX" default:"10s"`
	RequestsPerSecond float64       `envconfig:"EXTSYNC_REGISTRY_RPS" default:"20"`
	PageSize          int           `envconfig:"EXTSYNC_PAGE_SIZE" default:"100"`
	Concurrency       int           `envconfig:"EXTSYNC_REGISTRY_CONCURRENCY" default:"4"`
	UserAgent         string        `envconfig:"EXTSYNC_USER_AGENT" default:"extsync/1.0"`
}

// HostConfig selects and configures the install target.
type HostConfig struct {
	Kind          string `envconfig:"EXTSYNC_HOST_KIND" default:"local"`
	ExtensionsDir string `envconfig:"EXTSYNC_EXTENSIONS_DIR"`
	CodeBinary    string `envconfig:"EXTSYNC_CODE_BIN" default:"code"`
}

// StorageConfig holds on-disk locations.
type StorageConfig struct {
	SettingsFile     string `envconfig:"EXTSYNC_SETTINGS_FILE"`
	SecretsFile      string `envconfig:"EXTSYNC_SECRETS_FILE"`
	SecretPassphrase string `envconfig:"EXTSYNC_SECRET_PASSPHRASE"`
	StagingDir       string `envconfig:"EXTSYNC_STAGING_DIR"`
}

// SyncConfig controls background sync behavior.
type SyncConfig struct {
	Interval         time.Duration `envconfig:"EXTSYNC_SYNC_INTERVAL" default:"0s"`
	WatchSettings    bool          `envconfig:"EXTSYNC_WATCH_SETTINGS" default:"true"`
	SweepConcurrency int           `envconfig:"EXTSYNC_SWEEP_CONCURRENCY" default:"2"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds API rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"50"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"100"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables and fills derived paths.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.resolvePaths()
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port: "7420",
			Host: "127.0.0.1",
		},
		Registry: RegistryConfig{
			AuthScheme:        AuthPrivateToken,
			Timeout:           30 * time.Second,
			RetryMax:          3,
			RetryWaitMin:      500 * time.Millisecond,
			RetryWaitMax:      10 * time.Second,
			RequestsPerSecond: 20,
			PageSize:          100,
			Concurrency:       4,
			UserAgent:         "extsync/1.0",
		},
		Host: HostConfig{
			Kind:       HostLocal,
			CodeBinary: "code",
		},
		Sync: SyncConfig{
			WatchSettings:    true,
			SweepConcurrency: 2,
		},
		Logging: LogConfig{
			Level: "info",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 50,
			Burst:             100,
			Enabled:           true,
		},
	}
	cfg.resolvePaths()
	return cfg
}

// Validate checks enumerated fields.
func (c *Config) Validate() error {
	switch c.Registry.AuthScheme {
	case AuthPrivateToken, AuthBearer:
	default:
		return fmt.Errorf("invalid auth scheme %q", c.Registry.AuthScheme)
	}
	switch c.Host.Kind {
	case HostLocal, HostCode:
	default:
		return fmt.Errorf("invalid host kind %q", c.Host.Kind)
	}
	if c.Registry.PageSize <= 0 || c.Registry.PageSize > 100 {
		return fmt.Errorf("page size must be between 1 and 100, got %d", c.Registry.PageSize)
	}
	return nil
}

func (c *Config) resolvePaths() {
	base := DataDir()
	if c.Storage.SettingsFile == "" {
		c.Storage.SettingsFile = filepath.Join(base, "settings.yaml")
	}
	if c.Storage.SecretsFile == "" {
		c.Storage.SecretsFile = filepath.Join(base, "secrets.json")
	}
	if c.Storage.StagingDir == "" {
		c.Storage.StagingDir = os.TempDir()
	}
	if c.Host.ExtensionsDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.Host.ExtensionsDir = filepath.Join(home, ".vscode", "extensions")
		}
	}
}

// DataDir returns the per-user directory holding settings and secrets.
func DataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "extsync")
}
