// Package install runs the per-artifact operations: install, uninstall and
// the details preview.
//
// An install streams the artifact into a uniquely named temp file, verifies
// the listed checksum, hands the file to the host and removes it again on
// every exit path:
//
//	idle -> streaming -> staged -> host_installing -> cleanup -> done | failed
//
// Attended runs notify the user and patch the projection for the one entry
// they touched. Unattended runs (the update sweep) stay silent and leave the
// projection update to their caller.
package install
