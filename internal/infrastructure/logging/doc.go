// Package logging provides structured logging using uber/zap.
//
// Two modes are offered:
//   - Production: JSON output on stderr, tagged with the service name
//   - Development: Colored console output for human readability
//
// Subsystems take a *zap.Logger obtained from Component so every line carries
// the emitting component ("registry", "catalog", "install", ...).
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	log := logger.Component("registry")
//	log.Warn("Endpoint failed", zap.String("endpoint", url), zap.Error(err))
package logging
