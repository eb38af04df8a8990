/*
Package monitoring provides Prometheus metrics for the sync service.

# Overview

Metrics live on a private registry so several collectors can coexist in one
process (tests build one per case). A nil *Metrics records nothing.

# Metrics

- Registry calls by host, operation and result, with latency
- Catalog rebuilds, entry count and the outdated gauge backing the badge
- Refresh requests dropped by the re-entrancy guard
- Install, uninstall and preview outcomes by trigger
- HTTP API and WebSocket traffic

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	timer := monitoring.NewTimer(metrics, "gitlab.example.com", "list_packages")
	// ... perform call ...
	timer.Stop("success")
*/
package monitoring
