// Package daemon coordinates the long-running mixcraft process.
//
// It wires configuration, the SQLite store, the result queue, the workflow
// manager and the websocket hub into a single lifecycle with flock-based
// locking, so only one process ever consumes worker results. The daemon also
// serves the small HTTP surface: a health endpoint and per-entity websocket
// progress subscriptions.
//
// Keep orchestration logic here: result handling lives in workflow while the
// daemon focuses on startup, shutdown, and high level coordination.
package daemon
