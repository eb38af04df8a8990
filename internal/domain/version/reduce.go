package version

import "github.com/GriffinCanCode/extsync/internal/registry"

// ReduceToLatest keeps the highest version per package name. Output follows
// the order in which each name was first seen; a later record replaces the
// holder only when its version is strictly greater, so ties keep the first.
func ReduceToLatest(raw []registry.RawPackage) []registry.RawPackage {
	index := make(map[string]int, len(raw))
	out := make([]registry.RawPackage, 0, len(raw))

	for _, pkg := range raw {
		i, seen := index[pkg.Name]
		if !seen {
			index[pkg.Name] = len(out)
			out = append(out, pkg)
			continue
		}
		if Newer(pkg.Version, out[i].Version) {
			out[i] = pkg
		}
	}
	return out
}
