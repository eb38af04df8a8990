package marketplace

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/extsync/internal/domain/catalog"
	"github.com/GriffinCanCode/extsync/internal/domain/install"
	"github.com/GriffinCanCode/extsync/internal/domain/projection"
	"github.com/GriffinCanCode/extsync/internal/domain/sweep"
	"github.com/GriffinCanCode/extsync/internal/infrastructure/secrets"
	"github.com/GriffinCanCode/extsync/internal/shared/advisory"
	"github.com/GriffinCanCode/extsync/internal/shared/faults"
)

// Token notices.
const (
	MsgTokenStored = "GitLab Access Token stored securely."
	MsgTokenNotSet = "GitLab Access Token was not set."
)

var (
	// ErrNotInCatalog is returned for an extension id the current tree does
	// not show.
	ErrNotInCatalog = errors.New("extension not in catalog")
	// ErrEmptyToken is returned when SetToken gets a blank token.
	ErrEmptyToken = errors.New("empty access token")
)

// Operations runs per-artifact work.
type Operations interface {
	Install(ctx context.Context, ident catalog.Identity, trigger install.Trigger) (*install.Result, error)
	Uninstall(ctx context.Context, ident catalog.Identity) (*install.Result, error)
	Preview(ctx context.Context, ident catalog.Identity) (*install.Details, error)
}

// TokenSetter applies a registry token to outgoing requests.
type TokenSetter interface {
	Set(token string)
}

// Deps wires a Manager.
type Deps struct {
	Tree        *projection.Tree
	Operations  Operations
	Sweeper     *sweep.Sweeper
	Settings    catalog.SettingsSource
	Credentials TokenSetter
	Secrets     secrets.Store
	Notifier    advisory.Notifier
	Logger      *zap.Logger
}

// Report describes the most recent refresh.
type Report struct {
	Ran     bool             `json:"ran"`
	Entries int              `json:"entries"`
	Badge   projection.Badge `json:"badge"`
	Sweep   sweep.Result     `json:"sweep"`
	At      time.Time        `json:"at"`
	// Advisory is set when the catalog stayed empty because no registry
	// or no token is configured.
	Advisory string `json:"advisory,omitempty"`
}

// Manager exposes the named UI operations: refresh, install, uninstall,
// details and token management. Extension ids are resolved against the
// projection's current state, never by refetching.
type Manager struct {
	tree     *projection.Tree
	ops      Operations
	sweeper  *sweep.Sweeper
	settings catalog.SettingsSource
	creds    TokenSetter
	secrets  secrets.Store
	notifier advisory.Notifier
	logger   *zap.Logger

	mu        sync.RWMutex
	lastSweep sweep.Result
}

// NewManager creates a manager and hooks the update sweep into every full
// rebuild of the tree.
func NewManager(deps Deps) *Manager {
	if deps.Notifier == nil {
		deps.Notifier = advisory.Discard
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	m := &Manager{
		tree:     deps.Tree,
		ops:      deps.Operations,
		sweeper:  deps.Sweeper,
		settings: deps.Settings,
		creds:    deps.Credentials,
		secrets:  deps.Secrets,
		notifier: deps.Notifier,
		logger:   deps.Logger,
	}
	m.tree.SetAfterRebuild(m.afterRebuild)
	return m
}

// Tree returns the projection backing the manager.
func (m *Manager) Tree() *projection.Tree {
	return m.tree
}

// Refresh rebuilds the catalog. When auto-update is enabled the rebuild is
// followed by an unattended sweep and one consolidated projection update.
// Ran is false when another refresh was already in flight.
//
// A missing registry list or token is not an error: the catalog is empty and
// Report.Advisory carries the notice already raised.
func (m *Manager) Refresh(ctx context.Context) (Report, error) {
	ran, err := m.tree.Refresh(ctx)
	report := m.report(ran)
	if msg, ok := preconditionNotice(err); ok {
		m.logger.Info("Catalog empty until configured", zap.Error(err))
		report.Advisory = msg
		return report, nil
	}
	return report, err
}

func preconditionNotice(err error) (string, bool) {
	switch {
	case errors.Is(err, faults.ErrNoEndpoints):
		return catalog.MsgSetEndpoints, true
	case errors.Is(err, faults.ErrNoCredential):
		return catalog.MsgSetToken, true
	default:
		return "", false
	}
}

// Update installs every outdated entry in the current tree regardless of the
// auto-update setting.
func (m *Manager) Update(ctx context.Context) sweep.Result {
	res := m.sweep(ctx, m.tree.Snapshot(), true)
	m.mu.Lock()
	m.lastSweep = res
	m.mu.Unlock()
	return res
}

// Install installs the catalog's version of an extension.
func (m *Manager) Install(ctx context.Context, extensionID string) (*install.Result, error) {
	entry, err := m.lookup(extensionID)
	if err != nil {
		return nil, err
	}
	return m.ops.Install(ctx, entry.Identity(), install.Attended)
}

// Uninstall removes an extension shown in the catalog.
func (m *Manager) Uninstall(ctx context.Context, extensionID string) (*install.Result, error) {
	entry, err := m.lookup(extensionID)
	if err != nil {
		return nil, err
	}
	return m.ops.Uninstall(ctx, entry.Identity())
}

// Details stages an extension's artifact and returns its manifest, icon and
// documentation.
func (m *Manager) Details(ctx context.Context, extensionID string) (*install.Details, error) {
	entry, err := m.lookup(extensionID)
	if err != nil {
		return nil, err
	}
	return m.ops.Preview(ctx, entry.Identity())
}

// SetToken stores a registry token and applies it to later registry calls.
func (m *Manager) SetToken(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		m.notifier.Notify(advisory.Warning(MsgTokenNotSet))
		return ErrEmptyToken
	}
	if m.secrets != nil {
		if err := m.secrets.Put(ctx, secrets.RegistryTokenKey, token); err != nil {
			return fmt.Errorf("failed to store token: %w", err)
		}
	}
	m.creds.Set(token)
	m.notifier.Notify(advisory.Info(MsgTokenStored))
	m.logger.Info("Registry token updated")
	return nil
}

// ClearToken removes the stored token.
func (m *Manager) ClearToken(ctx context.Context) error {
	if m.secrets != nil {
		if err := m.secrets.Delete(ctx, secrets.RegistryTokenKey); err != nil {
			return fmt.Errorf("failed to delete token: %w", err)
		}
	}
	m.creds.Set("")
	m.logger.Info("Registry token cleared")
	return nil
}

// LoadToken reads the stored token into the registry credentials.
func (m *Manager) LoadToken(ctx context.Context) error {
	if m.secrets == nil {
		return nil
	}
	token, ok, err := m.secrets.Get(ctx, secrets.RegistryTokenKey)
	if err != nil {
		return fmt.Errorf("failed to read token: %w", err)
	}
	if ok {
		m.creds.Set(token)
	}
	return nil
}

// LastReport returns the state after the most recent refresh or update.
func (m *Manager) LastReport() Report {
	return m.report(false)
}

func (m *Manager) lookup(extensionID string) (catalog.Entry, error) {
	entry, ok := m.tree.Lookup(extensionID)
	if !ok {
		return catalog.Entry{}, fmt.Errorf("%w: %s", ErrNotInCatalog, extensionID)
	}
	return entry, nil
}

func (m *Manager) afterRebuild(ctx context.Context, entries []catalog.Entry) {
	autoApply := false
	if m.settings != nil {
		settings, err := m.settings.Current()
		if err != nil {
			m.logger.Warn("Settings unreadable, using last good copy", zap.Error(err))
		}
		autoApply = settings.AutoUpdate
	}

	res := m.sweep(ctx, entries, autoApply)
	m.mu.Lock()
	m.lastSweep = res
	m.mu.Unlock()
}

// sweep runs the sweeper and publishes its successes as one batch.
func (m *Manager) sweep(ctx context.Context, entries []catalog.Entry, autoApply bool) sweep.Result {
	if m.sweeper == nil {
		return sweep.Result{Outdated: sweep.Count(entries)}
	}
	res := m.sweeper.Sweep(ctx, entries, autoApply)
	if len(res.Applied) == 0 {
		return res
	}

	updates := make([]projection.Update, 0, len(res.Applied))
	for _, ident := range res.Applied {
		updates = append(updates, projection.Update{
			Action:      catalog.ActionInstall,
			ExtensionID: ident.ExtensionID,
			Version:     ident.Version,
		})
	}
	m.tree.ApplyBatch(updates)
	return res
}

func (m *Manager) report(ran bool) Report {
	m.mu.RLock()
	last := m.lastSweep
	m.mu.RUnlock()
	return Report{
		Ran:     ran,
		Entries: m.tree.Len(),
		Badge:   m.tree.Badge(),
		Sweep:   last,
		At:      time.Now(),
	}
}
