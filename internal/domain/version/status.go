package version

// Status classifies a remote package against the host.
type Status string

const (
	// StatusUndefined covers both never-installed and installed-but-disabled;
	// the host does not distinguish them.
	StatusUndefined Status = ""
	StatusInstalled Status = "installed"
	StatusOutdated  Status = "outdated"
)

// String returns a printable label.
func (s Status) String() string {
	if s == StatusUndefined {
		return "not installed"
	}
	return string(s)
}

// InstalledLookup answers which version of an extension the host has loaded.
type InstalledLookup interface {
	InstalledVersion(id string) (string, bool)
}

// ResolveStatus compares the host's installed version of id with remote.
func ResolveStatus(host InstalledLookup, id, remote string) Status {
	local, ok := host.InstalledVersion(id)
	if !ok {
		return StatusUndefined
	}
	if Compare(local, remote) < 0 {
		return StatusOutdated
	}
	return StatusInstalled
}
