package install

import (
	"context"
	"io"
	"time"

	"github.com/GriffinCanCode/extsync/internal/domain/catalog"
	"github.com/GriffinCanCode/extsync/internal/registry"
	"github.com/GriffinCanCode/extsync/internal/shared/id"
)

// Trigger says who started an operation.
type Trigger string

const (
	// Attended operations were requested by the user and report back to them.
	Attended Trigger = "attended"
	// Unattended operations come from the update sweep; success is silent and
	// the caller applies one consolidated projection update afterwards.
	Unattended Trigger = "unattended"
)

// State is a step of the install or uninstall state machine.
type State string

const (
	StateIdle             State = "idle"
	StateStreaming        State = "streaming"
	StateStaged           State = "staged"
	StateHostInstalling   State = "host_installing"
	StateHostUninstalling State = "host_uninstalling"
	StateCleanup          State = "cleanup"
	StateDone             State = "done"
	StateFailed           State = "failed"
)

// User-visible texts.
const (
	MsgInstallFailed   = "Failed to install the extension."
	MsgUninstallFailed = "Failed to uninstall the extension."
	MsgPreviewFailed   = "Failed to open the extension details."
)

// Fetcher opens an artifact byte stream.
type Fetcher interface {
	OpenArtifact(ctx context.Context, ref registry.ArtifactRef) (io.ReadCloser, error)
}

// Host is the install surface operations run against.
type Host interface {
	InstallFromFile(ctx context.Context, path string) error
	Uninstall(ctx context.Context, extensionID string) error
}

// Updater receives the targeted projection update after an attended operation.
type Updater interface {
	ApplyTargetedUpdate(action catalog.Action, extensionID, version string)
}

// Result describes a finished operation.
type Result struct {
	OperationID id.OperationID   `json:"operation_id"`
	Action      catalog.Action   `json:"action"`
	Identity    catalog.Identity `json:"identity"`
	Trigger     Trigger          `json:"trigger"`
	// Updated is true when an older installed version was replaced.
	Updated  bool          `json:"updated"`
	Bytes    int64         `json:"bytes,omitempty"`
	Duration time.Duration `json:"duration"`
	// Shared is true when the caller joined an identical in-flight operation.
	Shared bool `json:"shared,omitempty"`
}

// Details is what the details view shows for one artifact.
type Details struct {
	Identity    catalog.Identity  `json:"identity"`
	Name        string            `json:"name"`
	DisplayName string            `json:"display_name"`
	Publisher   string            `json:"publisher"`
	Version     string            `json:"version"`
	Description string            `json:"description,omitempty"`
	Categories  []string          `json:"categories,omitempty"`
	Engines     map[string]string `json:"engines,omitempty"`
	Repository  string            `json:"repository,omitempty"`
	// Icon is a data URI, empty when the package has none.
	Icon string `json:"icon,omitempty"`
	// Readme and Changelog are sanitised HTML.
	Readme    string `json:"readme,omitempty"`
	Changelog string `json:"changelog,omitempty"`
	Size      int64  `json:"size"`
}
