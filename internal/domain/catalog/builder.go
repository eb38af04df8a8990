package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/extsync/internal/domain/version"
	"github.com/GriffinCanCode/extsync/internal/infrastructure/config"
	"github.com/GriffinCanCode/extsync/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/extsync/internal/registry"
	"github.com/GriffinCanCode/extsync/internal/shared/advisory"
	"github.com/GriffinCanCode/extsync/internal/shared/faults"
	"github.com/GriffinCanCode/extsync/internal/shared/id"
)

// Advisory texts shown when a build cannot start or an endpoint fails.
const (
	MsgSetToken     = "Please set your GitLab Access Token"
	MsgSetEndpoints = "Please set the package registry URLs in the settings."
	MsgFetchFailed  = "Failed to fetch GitLab packages."
)

// Registry is the subset of the registry client the builder needs.
type Registry interface {
	ListPackages(ctx context.Context, endpoint string) ([]registry.RawPackage, error)
	ListFiles(ctx context.Context, endpoint string, packageID int64) ([]registry.PackageFile, error)
	ResolveRegistryName(ctx context.Context, endpoint string) (string, error)
}

// HostReloader is implemented by hosts that cache installed state. Build
// rescans before resolving any status.
type HostReloader interface {
	Reload(ctx context.Context) error
}

// SettingsSource yields the current sync settings.
type SettingsSource interface {
	Current() (config.Settings, error)
}

// CredentialSource reports whether a registry token is set.
type CredentialSource interface {
	Token() (string, bool)
}

// Deps wires a Builder.
type Deps struct {
	Registry    Registry
	Settings    SettingsSource
	Credentials CredentialSource
	Host        version.InstalledLookup
	Notifier    advisory.Notifier
	Logger      *zap.Logger
	Metrics     *monitoring.Metrics
	// Concurrency bounds how many endpoints are fetched at once.
	Concurrency int
}

// Builder assembles the consolidated catalog across all configured registries.
type Builder struct {
	registry    Registry
	settings    SettingsSource
	creds       CredentialSource
	host        version.InstalledLookup
	notifier    advisory.Notifier
	logger      *zap.Logger
	metrics     *monitoring.Metrics
	concurrency int
}

// NewBuilder creates a catalog builder.
func NewBuilder(deps Deps) *Builder {
	if deps.Notifier == nil {
		deps.Notifier = advisory.Discard
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Concurrency <= 0 {
		deps.Concurrency = 4
	}
	return &Builder{
		registry:    deps.Registry,
		settings:    deps.Settings,
		creds:       deps.Credentials,
		host:        deps.Host,
		notifier:    deps.Notifier,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
		concurrency: deps.Concurrency,
	}
}

// Build fetches every configured endpoint and returns the consolidated
// catalog. Entries are ordered by endpoint, then by first appearance of each
// package name within the endpoint.
//
// A missing token or empty endpoint list short-circuits with an advisory and
// faults.ErrNoCredential or faults.ErrNoEndpoints, before any request is made.
// Endpoint failures never fail the build; the endpoint contributes nothing.
func (b *Builder) Build(ctx context.Context) ([]Entry, error) {
	syncID := id.NewSyncID()
	log := b.logger.With(zap.String("sync_id", syncID.String()))
	start := time.Now()

	settings, err := b.settings.Current()
	if err != nil {
		log.Warn("Settings unreadable, using last good copy", zap.Error(err))
	}

	endpoints := settings.Endpoints()
	if len(endpoints) == 0 {
		b.notifier.Notify(advisory.Warning(MsgSetEndpoints, advisory.ActionOpenSettings))
		b.metrics.RecordSync("no_endpoints", time.Since(start), 0)
		return []Entry{}, faults.ErrNoEndpoints
	}
	if _, ok := b.creds.Token(); !ok {
		b.notifier.Notify(advisory.Warning(MsgSetToken, advisory.ActionSetToken))
		b.metrics.RecordSync("no_credential", time.Since(start), 0)
		return []Entry{}, faults.ErrNoCredential
	}

	if r, ok := b.host.(HostReloader); ok {
		if err := r.Reload(ctx); err != nil {
			log.Warn("Failed to rescan installed extensions, using last index", zap.Error(err))
		}
	}

	pattern := settings.ArtifactPattern
	if !ValidPattern(pattern) {
		log.Warn("Ignoring invalid artifact pattern", zap.String("pattern", pattern))
		pattern = ""
	}

	log.Info("Building catalog", zap.Int("endpoints", len(endpoints)))

	slots := make([][]Entry, len(endpoints))
	var failed int

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	failures := make([]error, len(endpoints))
	for i, endpoint := range endpoints {
		g.Go(func() error {
			entries, err := b.buildEndpoint(gctx, log, endpoint, pattern)
			if err != nil {
				failures[i] = err
				return nil
			}
			slots[i] = entries
			return nil
		})
	}
	_ = g.Wait()

	var out []Entry
	for i, entries := range slots {
		if failures[i] != nil {
			failed++
			log.Warn("Registry endpoint failed",
				zap.String("endpoint", endpoints[i]),
				zap.Stringer("kind", faults.KindOf(failures[i])),
				zap.Error(failures[i]))
			b.notifier.Notify(advisory.Warning(fmt.Sprintf("%s (%s)", MsgFetchFailed, endpoints[i])))
			continue
		}
		out = append(out, entries...)
	}
	if out == nil {
		out = []Entry{}
	}

	result := "success"
	if failed > 0 {
		result = "partial"
	}
	if failed == len(endpoints) {
		result = "failed"
	}
	b.metrics.RecordSync(result, time.Since(start), len(out))

	log.Info("Catalog built",
		zap.Int("entries", len(out)),
		zap.Int("failed_endpoints", failed),
		zap.Duration("duration", time.Since(start)))

	return out, nil
}

func (b *Builder) buildEndpoint(ctx context.Context, log *zap.Logger, endpoint, pattern string) ([]Entry, error) {
	raw, err := b.registry.ListPackages(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	latest := version.ReduceToLatest(raw)

	name, err := b.registry.ResolveRegistryName(ctx, endpoint)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		log.Debug("Registry name unavailable, using URL", zap.String("endpoint", endpoint), zap.Error(err))
		name = endpoint
	}

	entries := make([]Entry, 0, len(latest))
	for _, pkg := range latest {
		files, err := b.registry.ListFiles(ctx, endpoint, pkg.ID)
		if err != nil {
			return nil, err
		}
		file, ok := SelectArtifact(files, pattern)
		if !ok {
			log.Debug("Package has no selectable artifact",
				zap.String("package", pkg.Name),
				zap.String("version", pkg.Version))
			continue
		}

		entries = append(entries, Entry{
			Name:         DisplayName(pkg.Name),
			ExtensionID:  pkg.Name,
			Version:      pkg.Version,
			FileName:     file.FileName,
			FileSHA256:   file.FileSHA256,
			Status:       version.ResolveStatus(b.host, pkg.Name, pkg.Version),
			URL:          endpoint,
			RegistryName: name,
		})
	}
	return entries, nil
}
