// Package catalog builds the consolidated, status-annotated list of
// latest-version packages across every configured registry endpoint.
package catalog
