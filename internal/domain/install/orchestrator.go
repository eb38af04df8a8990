package install

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/GriffinCanCode/extsync/internal/domain/catalog"
	"github.com/GriffinCanCode/extsync/internal/domain/version"
	"github.com/GriffinCanCode/extsync/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/extsync/internal/shared/advisory"
	"github.com/GriffinCanCode/extsync/internal/shared/faults"
	"github.com/GriffinCanCode/extsync/internal/shared/id"
)

// Deps wires an Orchestrator.
type Deps struct {
	Fetcher  Fetcher
	Host     Host
	Notifier advisory.Notifier
	Updater  Updater
	Logger   *zap.Logger
	Metrics  *monitoring.Metrics
	// StagingDir holds temp files; empty means the OS temp dir.
	StagingDir string
}

// Orchestrator runs install, uninstall and preview operations. Identical
// operations in flight at the same time are collapsed into one; different
// artifacts proceed independently.
type Orchestrator struct {
	fetcher    Fetcher
	host       Host
	notifier   advisory.Notifier
	updater    Updater
	logger     *zap.Logger
	metrics    *monitoring.Metrics
	stagingDir string

	group singleflight.Group
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(deps Deps) *Orchestrator {
	if deps.Notifier == nil {
		deps.Notifier = advisory.Discard
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Orchestrator{
		fetcher:    deps.Fetcher,
		host:       deps.Host,
		notifier:   deps.Notifier,
		updater:    deps.Updater,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
		stagingDir: deps.StagingDir,
	}
}

// SetUpdater sets the projection that receives targeted updates.
func (o *Orchestrator) SetUpdater(u Updater) {
	o.updater = u
}

// Install stages the identity's artifact, hands it to the host and removes the
// staged file whatever the outcome.
func (o *Orchestrator) Install(ctx context.Context, ident catalog.Identity, trigger Trigger) (*Result, error) {
	key := "install:" + ident.ArtifactRef().String()
	v, err, shared := o.group.Do(key, func() (interface{}, error) {
		return o.install(ctx, ident, trigger)
	})
	return sharedResult(v, shared), err
}

// Uninstall removes the extension from the host.
func (o *Orchestrator) Uninstall(ctx context.Context, ident catalog.Identity) (*Result, error) {
	v, err, shared := o.group.Do("uninstall:"+ident.ExtensionID, func() (interface{}, error) {
		return o.uninstall(ctx, ident)
	})
	return sharedResult(v, shared), err
}

func (o *Orchestrator) install(ctx context.Context, ident catalog.Identity, trigger Trigger) (*Result, error) {
	opID := id.NewOperationID(id.InstallPrefix)
	log := o.logger.With(
		zap.String("op_id", opID.String()),
		zap.String("extension", ident.ExtensionID),
		zap.String("version", ident.Version),
		zap.String("trigger", string(trigger)))
	start := time.Now()

	res := &Result{
		OperationID: opID,
		Action:      catalog.ActionInstall,
		Identity:    ident,
		Trigger:     trigger,
		Updated:     ident.Status == version.StatusOutdated,
	}

	log.Info("Installing extension", zap.String("state", string(StateIdle)))

	err := func() error {
		path, n, err := o.stage(ctx, log, ident)
		res.Bytes = n
		if path != "" {
			defer o.cleanup(log, path)
		}
		if err != nil {
			return err
		}

		log.Debug("State transition", zap.String("state", string(StateHostInstalling)))
		if err := o.host.InstallFromFile(ctx, path); err != nil {
			return faults.New(faults.KindHostOperation, "install", err)
		}
		return nil
	}()
	res.Duration = time.Since(start)

	if err != nil {
		o.fail(log, "install", trigger, MsgInstallFailed, res.Duration, err)
		return res, err
	}

	o.metrics.RecordOperation("install", "success", string(trigger), res.Duration)
	log.Info("Extension installed",
		zap.String("state", string(StateDone)),
		zap.Bool("updated", res.Updated),
		zap.Duration("duration", res.Duration))

	if trigger == Attended {
		verb := "installed"
		if res.Updated {
			verb = "updated"
		}
		o.notifier.Notify(advisory.Info(fmt.Sprintf("Extension %s %s successfully.", ident.ExtensionID, verb)))
		if o.updater != nil {
			o.updater.ApplyTargetedUpdate(catalog.ActionInstall, ident.ExtensionID, ident.Version)
		}
	}
	return res, nil
}

func (o *Orchestrator) uninstall(ctx context.Context, ident catalog.Identity) (*Result, error) {
	opID := id.NewOperationID(id.UninstallPrefix)
	log := o.logger.With(
		zap.String("op_id", opID.String()),
		zap.String("extension", ident.ExtensionID))
	start := time.Now()

	res := &Result{
		OperationID: opID,
		Action:      catalog.ActionUninstall,
		Identity:    ident,
		Trigger:     Attended,
	}

	log.Debug("State transition", zap.String("state", string(StateHostUninstalling)))
	err := o.host.Uninstall(ctx, ident.ExtensionID)
	res.Duration = time.Since(start)
	if err != nil {
		err = faults.New(faults.KindHostOperation, "uninstall", err)
		o.fail(log, "uninstall", Attended, MsgUninstallFailed, res.Duration, err)
		return res, err
	}

	o.metrics.RecordOperation("uninstall", "success", string(Attended), res.Duration)
	log.Info("Extension uninstalled", zap.String("state", string(StateDone)))

	o.notifier.Notify(advisory.Info(fmt.Sprintf("Extension %s uninstalled successfully.", ident.ExtensionID)))
	if o.updater != nil {
		o.updater.ApplyTargetedUpdate(catalog.ActionUninstall, ident.ExtensionID, ident.Version)
	}
	return res, nil
}

func (o *Orchestrator) fail(log *zap.Logger, action string, trigger Trigger, msg string, dur time.Duration, err error) {
	kind := faults.KindOf(err)
	o.metrics.RecordOperation(action, kind.String(), string(trigger), dur)
	log.Error("Operation failed",
		zap.String("state", string(StateFailed)),
		zap.Stringer("kind", kind),
		zap.Error(err))
	o.notifier.Notify(advisory.Error(msg))
}

func sharedResult(v interface{}, shared bool) *Result {
	res, _ := v.(*Result)
	if res == nil || !shared {
		return res
	}
	cp := *res
	cp.Shared = true
	return &cp
}
