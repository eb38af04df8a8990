// Package http exposes the marketplace over a local JSON API for editor
// panels and scripts.
//
// Routes:
//   - GET  /health, /tree, /tree/children?registry=, /badge, /advisories, /settings
//   - POST /refresh, /update, /registries
//   - POST /extensions/:id/install, /extensions/:id/uninstall
//   - GET  /extensions/:id/details
//   - PUT, DELETE /token
//   - GET  /metrics, /metrics/json
package http
