// Package ws pushes tree changes and advisories to connected websocket
// clients, so an editor panel can redraw without polling.
//
// Server messages:
//   - system: sent once on connect, carries the client id
//   - tree_changed: the projection changed; carries reason, badge and entry count
//   - advisory: a user-facing notice
//   - pong / error: replies to client messages
//
// Clients may send {"type":"ping"} or {"type":"refresh"}.
package ws
