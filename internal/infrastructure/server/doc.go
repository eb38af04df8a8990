// Package server runs the extsync daemon: the sync stack from package app
// behind a gin HTTP API and a websocket feed, with background refreshes
// driven by settings changes and an optional interval.
package server
