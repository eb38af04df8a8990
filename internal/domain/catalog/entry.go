package catalog

import (
	"strings"

	"github.com/GriffinCanCode/extsync/internal/domain/version"
	"github.com/GriffinCanCode/extsync/internal/registry"
)

// Action is the kind of targeted update applied after an operation.
type Action string

const (
	ActionInstall   Action = "install"
	ActionUninstall Action = "uninstall"
)

// Identity is the immutable domain value a UI node carries so it can be handed
// back into an install, uninstall or preview operation.
type Identity struct {
	ExtensionID string         `json:"extension_id"`
	URL         string         `json:"url"`
	Version     string         `json:"version"`
	FileName    string         `json:"file_name"`
	FileSHA256  string         `json:"file_sha256,omitempty"`
	Status      version.Status `json:"status"`
}

// ArtifactRef addresses the artifact this identity points at.
func (i Identity) ArtifactRef() registry.ArtifactRef {
	return registry.ArtifactRef{
		Endpoint:    i.URL,
		ExtensionID: i.ExtensionID,
		Version:     i.Version,
		FileName:    i.FileName,
	}
}

// Entry is one latest-version package from one registry, annotated with its
// host status.
type Entry struct {
	Name         string         `json:"name"`
	ExtensionID  string         `json:"extension_id"`
	Version      string         `json:"version"`
	FileName     string         `json:"file_name"`
	FileSHA256   string         `json:"file_sha256,omitempty"`
	Status       version.Status `json:"status"`
	URL          string         `json:"url"`
	RegistryName string         `json:"registry_name"`
}

// Identity returns the entry's domain identity.
func (e Entry) Identity() Identity {
	return Identity{
		ExtensionID: e.ExtensionID,
		URL:         e.URL,
		Version:     e.Version,
		FileName:    e.FileName,
		FileSHA256:  e.FileSHA256,
		Status:      e.Status,
	}
}

// ArtifactRef addresses the entry's artifact.
func (e Entry) ArtifactRef() registry.ArtifactRef {
	return e.Identity().ArtifactRef()
}

// Outdated reports whether the host has an older version installed.
func (e Entry) Outdated() bool {
	return e.Status == version.StatusOutdated
}

// DisplayName strips the publisher prefix from an extension identifier.
func DisplayName(extensionID string) string {
	if _, name, ok := strings.Cut(extensionID, "."); ok && name != "" {
		return name
	}
	return extensionID
}

// Find returns the first entry with the given extension id.
func Find(entries []Entry, extensionID string) (Entry, bool) {
	for _, e := range entries {
		if e.ExtensionID == extensionID {
			return e, true
		}
	}
	return Entry{}, false
}
