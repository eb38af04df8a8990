// Package host implements the install surface extensions are synced into:
// either an extensions directory managed directly, or the editor's own CLI.
package host

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/extsync/internal/infrastructure/config"
)

// ErrNotInstalled is returned when uninstalling an unknown extension.
var ErrNotInstalled = errors.New("extension not installed")

// Host installs, removes and reports extensions. An extension that is
// installed but disabled is reported as absent.
type Host interface {
	InstallFromFile(ctx context.Context, path string) error
	Uninstall(ctx context.Context, extensionID string) error
	InstalledVersion(extensionID string) (string, bool)
}

// New builds the host selected by cfg.Kind.
func New(cfg config.HostConfig, logger *zap.Logger) (Host, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Kind {
	case config.HostLocal, "":
		if cfg.ExtensionsDir == "" {
			return nil, errors.New("extensions directory not set")
		}
		return NewLocalHost(cfg.ExtensionsDir, logger), nil
	case config.HostCode:
		return NewCodeCLI(cfg.CodeBinary, logger), nil
	default:
		return nil, fmt.Errorf("unknown host kind %q", cfg.Kind)
	}
}

// normalizeID lowercases an extension id; ids are case-insensitive.
func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
