// Package marketplace ties the catalog, projection, install orchestrator and
// update sweep together behind the operations a UI invokes.
package marketplace
