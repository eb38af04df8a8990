// Package app assembles the sync stack from configuration: registry client,
// install host, catalog builder, tree projection, install orchestrator,
// update sweeper and the marketplace manager on top. Both the daemon and the
// one-shot CLI commands start from New.
//
// Example Usage:
//
//	a, err := app.New(cfg, app.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	report, err := a.Manager.Refresh(ctx)
package app
