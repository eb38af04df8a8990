package projection

import (
	"github.com/GriffinCanCode/extsync/internal/domain/catalog"
	"github.com/GriffinCanCode/extsync/internal/domain/version"
)

// Kind distinguishes registry branches from package leaves.
type Kind string

const (
	KindBranch Kind = "branch"
	KindLeaf   Kind = "leaf"
)

// Rendering constants understood by tree clients.
const (
	ContextRegistry   = "registry"
	ContextCanInstall = "canInstall"
	IconPackage       = "package"
	CollapseExpanded  = "expanded"
	CollapseNone      = "none"
	// CommandOpenDetails is attached to leaves; clients run it on click.
	CommandOpenDetails = "extsync.openDetails"
)

// Node is one row of the tree. Leaves embed the identity needed to hand the
// row back to an install, uninstall or details operation.
type Node struct {
	Kind         Kind   `json:"kind"`
	Label        string `json:"label"`
	Description  string `json:"description,omitempty"`
	Tooltip      string `json:"tooltip,omitempty"`
	ContextValue string `json:"context_value,omitempty"`
	Icon         string `json:"icon,omitempty"`
	Collapsible  string `json:"collapsible"`
	Command      string `json:"command,omitempty"`
	RegistryName string `json:"registry_name"`

	catalog.Identity `json:"identity"`
}

// Branch builds the node for one registry.
func Branch(registryName, url string) Node {
	return Node{
		Kind:         KindBranch,
		Label:        registryName,
		Tooltip:      url,
		ContextValue: ContextRegistry,
		Collapsible:  CollapseExpanded,
		RegistryName: registryName,
	}
}

// Leaf builds the node for one catalog entry.
func Leaf(e catalog.Entry) Node {
	n := Node{
		Kind:         KindLeaf,
		Label:        e.Name,
		Tooltip:      e.ExtensionID,
		Icon:         IconPackage,
		Collapsible:  CollapseNone,
		Command:      CommandOpenDetails,
		RegistryName: e.RegistryName,
		Identity:     e.Identity(),
	}

	switch e.Status {
	case version.StatusInstalled:
		n.Description = e.Version + " - Installed"
	case version.StatusOutdated:
		n.Description = e.Version + " - Outdated"
		n.ContextValue = ContextCanInstall
	default:
		n.Description = e.Version
		n.ContextValue = ContextCanInstall
	}
	return n
}

// CanInstall reports whether the node offers the install affordance.
func (n Node) CanInstall() bool {
	return n.ContextValue == ContextCanInstall
}
