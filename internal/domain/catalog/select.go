package catalog

import (
	"github.com/bmatcuk/doublestar/v4"

	"github.com/GriffinCanCode/extsync/internal/registry"
)

// SelectArtifact picks the primary artifact from a package's file listing.
// Without a pattern the first listed file wins. With one, the first file whose
// name matches the doublestar pattern wins.
func SelectArtifact(files []registry.PackageFile, pattern string) (registry.PackageFile, bool) {
	for _, f := range files {
		if f.FileName == "" {
			continue
		}
		if pattern == "" {
			return f, true
		}
		if ok, err := doublestar.Match(pattern, f.FileName); err == nil && ok {
			return f, true
		}
	}
	return registry.PackageFile{}, false
}

// ValidPattern reports whether pattern is usable by SelectArtifact.
func ValidPattern(pattern string) bool {
	return pattern == "" || doublestar.ValidatePattern(pattern)
}
