// Package main hosts the mixcraft CLI entrypoint and command graph.
//
// The daemon command wires the store, work queue, chat history and
// notification fan-out into a workflow manager and serves the health and
// websocket API until interrupted. The remaining commands work directly
// against the local configuration and database: scoring a pair of tracks,
// inspecting or reordering a project, running preflight checks, and
// scaffolding configuration.
//
// Behaviour belongs in the internal packages. Commands here resolve config,
// open what they need, call one operation, and render the outcome.
package main
