// Package config provides configuration for the extension sync service.
//
// Two layers exist:
//   - Config: 12-factor process configuration loaded from environment
//     variables with defaults (server, registry client, host, storage, sync,
//     logging, rate limiting).
//   - Settings: the user-editable list of registry URLs, the auto-update flag
//     and the artifact selection pattern, kept in a YAML or TOML file and read
//     fresh on every catalog build. Watcher reloads it on change.
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	source := config.NewFileSource(cfg.Storage.SettingsFile)
//	settings, err := source.Current()
//
// Environment Variables:
//   - EXTSYNC_PORT, EXTSYNC_HOST
//   - EXTSYNC_AUTH_SCHEME, EXTSYNC_HTTP_TIMEOUT, EXTSYNC_HTTP_RETRIES, EXTSYNC_REGISTRY_RPS
//   - EXTSYNC_HOST_KIND, EXTSYNC_EXTENSIONS_DIR, EXTSYNC_CODE_BIN
//   - EXTSYNC_SETTINGS_FILE, EXTSYNC_SECRETS_FILE, EXTSYNC_SECRET_PASSPHRASE, EXTSYNC_STAGING_DIR
//   - EXTSYNC_PACKAGE_URLS, EXTSYNC_AUTO_UPDATE (override the settings file)
//   - LOG_LEVEL, LOG_DEV, RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
package config
