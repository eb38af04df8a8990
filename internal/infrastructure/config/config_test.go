package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "7420", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)

	assert.Equal(t, AuthPrivateToken, cfg.Registry.AuthScheme)
	assert.Equal(t, 30*time.Second, cfg.Registry.Timeout)
	assert.Equal(t, 100, cfg.Registry.PageSize)

	assert.Equal(t, HostLocal, cfg.Host.Kind)
	assert.NotEmpty(t, cfg.Storage.SettingsFile)
	assert.NotEmpty(t, cfg.Storage.SecretsFile)
	assert.NotEmpty(t, cfg.Storage.StagingDir)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"EXTSYNC_PORT":           "9000",
		"EXTSYNC_HOST":           "0.0.0.0",
		"EXTSYNC_AUTH_SCHEME":    "bearer",
		"EXTSYNC_HTTP_TIMEOUT":   "5s",
		"EXTSYNC_HTTP_RETRIES":   "1",
		"EXTSYNC_HOST_KIND":      "code",
		"EXTSYNC_SETTINGS_FILE":  "/etc/extsync/settings.toml",
		"EXTSYNC_SYNC_INTERVAL":  "15m",
		"LOG_LEVEL":              "debug",
		"LOG_DEV":                "true",
		"RATE_LIMIT_ENABLED":     "false",
		"EXTSYNC_REGISTRY_RPS":   "2.5",
		"EXTSYNC_EXTENSIONS_DIR": "/opt/ext",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, AuthBearer, cfg.Registry.AuthScheme)
	assert.Equal(t, 5*time.Second, cfg.Registry.Timeout)
	assert.Equal(t, 1, cfg.Registry.RetryMax)
	assert.Equal(t, 2.5, cfg.Registry.RequestsPerSecond)
	assert.Equal(t, HostCode, cfg.Host.Kind)
	assert.Equal(t, "/opt/ext", cfg.Host.ExtensionsDir)
	assert.Equal(t, "/etc/extsync/settings.toml", cfg.Storage.SettingsFile)
	assert.Equal(t, 15*time.Minute, cfg.Sync.Interval)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.False(t, cfg.RateLimit.Enabled)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"auth scheme", "EXTSYNC_AUTH_SCHEME", "basic"},
		{"host kind", "EXTSYNC_HOST_KIND", "jetbrains"},
		{"page size", "EXTSYNC_PAGE_SIZE", "500"},
		{"malformed duration", "EXTSYNC_HTTP_TIMEOUT", "soon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadOrDefaultFallsBack(t *testing.T) {
	t.Setenv("EXTSYNC_HOST_KIND", "nope")
	cfg := LoadOrDefault()
	assert.Equal(t, HostLocal, cfg.Host.Kind)
}
