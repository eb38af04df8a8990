package version

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Compare orders two version strings and returns -1, 0 or +1.
//
// Strings that parse as semantic versions (with or without a leading "v",
// short forms like "1.2" included) compare by semver precedence. Any parseable
// version ranks above an unparseable one. Two unparseable strings compare
// lexically. The ordering is total and transitive.
func Compare(a, b string) int {
	va, errA := semver.NewVersion(strings.TrimSpace(a))
	vb, errB := semver.NewVersion(strings.TrimSpace(b))

	switch {
	case errA == nil && errB == nil:
		return va.Compare(vb)
	case errA == nil:
		return 1
	case errB == nil:
		return -1
	default:
		return strings.Compare(a, b)
	}
}

// Newer reports whether candidate ranks strictly above current.
func Newer(candidate, current string) bool {
	return Compare(candidate, current) > 0
}
