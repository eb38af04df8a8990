// Package version reduces registry listings to the newest version per
// package and classifies each against what the host has installed.
//
// Compare is the single comparator used everywhere: semver precedence where
// both sides parse, parseable above unparseable, lexical otherwise.
package version
