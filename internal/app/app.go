package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/extsync/internal/domain/catalog"
	"github.com/GriffinCanCode/extsync/internal/domain/install"
	"github.com/GriffinCanCode/extsync/internal/domain/marketplace"
	"github.com/GriffinCanCode/extsync/internal/domain/projection"
	"github.com/GriffinCanCode/extsync/internal/domain/sweep"
	"github.com/GriffinCanCode/extsync/internal/host"
	"github.com/GriffinCanCode/extsync/internal/infrastructure/config"
	"github.com/GriffinCanCode/extsync/internal/infrastructure/logging"
	"github.com/GriffinCanCode/extsync/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/extsync/internal/infrastructure/secrets"
	"github.com/GriffinCanCode/extsync/internal/registry"
	"github.com/GriffinCanCode/extsync/internal/shared/advisory"
)

// Options override pieces New would otherwise build from configuration.
type Options struct {
	Logger  *logging.Logger
	Metrics *monitoring.Metrics
	Host    host.Host
	Secrets secrets.Store
	// Notifiers receive every advisory in addition to the log and recorder.
	Notifiers []advisory.Notifier
}

// App is the wired sync stack.
type App struct {
	Config      *config.Config
	Logger      *logging.Logger
	Metrics     *monitoring.Metrics
	Settings    *config.FileSource
	Secrets     secrets.Store
	Credentials *registry.Credentials
	Client      *registry.Client
	Host        host.Host
	Advisories  *advisory.Recorder
	Tree        *projection.Tree
	Operations  *install.Orchestrator
	Manager     *marketplace.Manager
}

// New wires every component and loads the stored registry token.
func New(cfg *config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.FromSettings(cfg.Logging.Level, cfg.Logging.Development)
	}

	h := opts.Host
	if h == nil {
		var err error
		h, err = host.New(cfg.Host, logger.Component("host"))
		if err != nil {
			return nil, fmt.Errorf("failed to create install host: %w", err)
		}
	}

	store := opts.Secrets
	if store == nil {
		store = secrets.NewFileStore(cfg.Storage.SecretsFile, cfg.Storage.SecretPassphrase)
	}

	recorder := advisory.NewRecorder(100)
	notifier := advisory.Multi{advisory.Log{Logger: logger.Component("advisory")}, recorder}
	notifier = append(notifier, opts.Notifiers...)

	settings := config.NewFileSource(cfg.Storage.SettingsFile)
	creds := registry.NewCredentials()
	client := registry.NewClient(cfg.Registry, creds, logger.Component("registry"), opts.Metrics)

	builder := catalog.NewBuilder(catalog.Deps{
		Registry:    client,
		Settings:    settings,
		Credentials: creds,
		Host:        h,
		Notifier:    notifier,
		Logger:      logger.Component("catalog"),
		Metrics:     opts.Metrics,
		Concurrency: cfg.Registry.Concurrency,
	})
	tree := projection.NewTree(builder, logger.Component("projection"), opts.Metrics)

	orch := install.NewOrchestrator(install.Deps{
		Fetcher:    client,
		Host:       h,
		Notifier:   notifier,
		Updater:    tree,
		Logger:     logger.Component("install"),
		Metrics:    opts.Metrics,
		StagingDir: cfg.Storage.StagingDir,
	})

	manager := marketplace.NewManager(marketplace.Deps{
		Tree:        tree,
		Operations:  orch,
		Sweeper:     sweep.NewSweeper(orch, logger.Component("sweep"), cfg.Sync.SweepConcurrency),
		Settings:    settings,
		Credentials: creds,
		Secrets:     store,
		Notifier:    notifier,
		Logger:      logger.Component("marketplace"),
	})

	a := &App{
		Config:      cfg,
		Logger:      logger,
		Metrics:     opts.Metrics,
		Settings:    settings,
		Secrets:     store,
		Credentials: creds,
		Client:      client,
		Host:        h,
		Advisories:  recorder,
		Tree:        tree,
		Operations:  orch,
		Manager:     manager,
	}

	if err := manager.LoadToken(context.Background()); err != nil {
		logger.Warn("Stored registry token unreadable", zap.Error(err))
	}
	return a, nil
}

// RunBackground refreshes on settings changes and, when configured, on a
// fixed interval. It blocks until ctx is cancelled.
func (a *App) RunBackground(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		return nil
	})

	if a.Config.Sync.WatchSettings {
		w := config.NewWatcher(a.Settings, func(config.Settings) {
			a.Sync(ctx, "settings changed")
		}, a.Logger.Component("settings"))
		g.Go(func() error {
			return w.Run(ctx)
		})
	}

	if interval := a.Config.Sync.Interval; interval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					a.Sync(ctx, "interval")
				}
			}
		})
	}

	return g.Wait()
}

// Sync runs one refresh and logs its outcome under cause.
func (a *App) Sync(ctx context.Context, cause string) {
	report, err := a.Manager.Refresh(ctx)
	if !report.Ran {
		a.Logger.Debug("Refresh skipped, one already running", zap.String("cause", cause))
		return
	}
	fields := []zap.Field{
		zap.String("cause", cause),
		zap.Int("entries", report.Entries),
		zap.Int("outdated", report.Badge.Value),
	}
	if err != nil {
		a.Logger.Warn("Background refresh incomplete", append(fields, zap.Error(err))...)
		return
	}
	a.Logger.Info("Background refresh complete", fields...)
}

// Close flushes the logger.
func (a *App) Close() error {
	_ = a.Logger.Sync()
	return nil
}
