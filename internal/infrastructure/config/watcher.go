package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads a FileSource whenever its file changes on disk.
type Watcher struct {
	source   *FileSource
	onChange func(Settings)
	debounce time.Duration
	logger   *zap.Logger
}

// NewWatcher creates a watcher that calls onChange with freshly read settings.
func NewWatcher(source *FileSource, onChange func(Settings), logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		source:   source,
		onChange: onChange,
		debounce: 250 * time.Millisecond,
		logger:   logger,
	}
}

// Run watches until ctx is cancelled. The parent directory is watched so
// editors that replace the file atomically are still observed.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create settings watcher: %w", err)
	}
	defer fw.Close()

	dir := filepath.Dir(w.source.Path())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	target := filepath.Clean(w.source.Path())
	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			pending = timer.C

		case <-pending:
			pending = nil
			settings, err := w.source.Current()
			if err != nil {
				w.logger.Warn("Settings reload failed, keeping last good settings", zap.Error(err))
				continue
			}
			w.logger.Info("Settings reloaded",
				zap.Int("endpoints", len(settings.PackageURLs)),
				zap.Bool("auto_update", settings.AutoUpdate),
			)
			if w.onChange != nil {
				w.onChange(settings)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Settings watcher error", zap.Error(err))
		}
	}
}
