// Package services defines shared utilities consumed by the workflow
// handlers, stores, and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp entity IDs, job types, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper so callers can classify
//     failures (validation, conflict, external, transient) with errors.Is.
//
// Use these helpers when wiring new handlers so error handling and
// observability stay uniform across the pipeline.
package services
