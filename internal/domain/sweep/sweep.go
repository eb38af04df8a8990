// Package sweep counts outdated catalog entries and, when auto-update is on,
// installs them without user interaction.
package sweep

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/extsync/internal/domain/catalog"
	"github.com/GriffinCanCode/extsync/internal/domain/install"
)

// Installer runs one install.
type Installer interface {
	Install(ctx context.Context, ident catalog.Identity, trigger install.Trigger) (*install.Result, error)
}

// Result summarises one sweep.
type Result struct {
	Outdated int                `json:"outdated"`
	Applied  []catalog.Identity `json:"applied,omitempty"`
	Failed   []string           `json:"failed,omitempty"`
}

// Count returns how many entries have a newer version than the host.
func Count(entries []catalog.Entry) int {
	n := 0
	for _, e := range entries {
		if e.Outdated() {
			n++
		}
	}
	return n
}

// Sweeper walks the catalog for outdated entries.
type Sweeper struct {
	installer   Installer
	logger      *zap.Logger
	concurrency int
}

// NewSweeper creates a sweeper. concurrency bounds parallel installs.
func NewSweeper(installer Installer, logger *zap.Logger, concurrency int) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Sweeper{installer: installer, logger: logger, concurrency: concurrency}
}

// Sweep counts outdated entries. With autoApply each one is installed as an
// unattended operation; no per-item projection update is requested, so the
// caller applies Result.Applied as one batch. Applied and Failed follow
// catalog order.
func (s *Sweeper) Sweep(ctx context.Context, entries []catalog.Entry, autoApply bool) Result {
	var outdated []catalog.Entry
	for _, e := range entries {
		if e.Outdated() {
			outdated = append(outdated, e)
		}
	}
	res := Result{Outdated: len(outdated)}
	if !autoApply || len(outdated) == 0 || s.installer == nil {
		return res
	}

	s.logger.Info("Applying updates", zap.Int("outdated", len(outdated)))

	ok := make([]bool, len(outdated))
	failed := make([]bool, len(outdated))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, e := range outdated {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			if _, err := s.installer.Install(gctx, e.Identity(), install.Unattended); err != nil {
				s.logger.Warn("Unattended update failed",
					zap.String("extension", e.ExtensionID),
					zap.String("version", e.Version),
					zap.Error(err))
				failed[i] = true
				return nil
			}
			ok[i] = true
			return nil
		})
	}
	_ = g.Wait()

	for i, e := range outdated {
		switch {
		case ok[i]:
			res.Applied = append(res.Applied, e.Identity())
		case failed[i]:
			res.Failed = append(res.Failed, e.ExtensionID)
		}
	}

	s.logger.Info("Updates applied",
		zap.Int("applied", len(res.Applied)),
		zap.Int("failed", len(res.Failed)))
	return res
}
