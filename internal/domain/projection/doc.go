// Package projection holds the last built catalog and renders it as the
// registry/package tree and the update badge.
//
// Only one full refresh runs at a time; a refresh requested while another is
// in flight is dropped, not queued. Targeted updates bypass that guard since
// they only patch in-memory state.
package projection
