// Package logging assembles structured slog loggers and formatting helpers used
// across mixcraft.
//
// It owns the console and JSON handlers, routes a JSON copy to a size-rotated
// file when a log directory is configured, and exposes context-aware helpers
// so handlers automatically tag lines with project, draft, and job fields.
// The package also provides a no-op logger for tests and wiring code that
// cannot fail.
package logging
