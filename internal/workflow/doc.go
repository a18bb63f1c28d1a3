// Package workflow drives projects and drafts through the mix pipeline.
//
// The Manager has two entry points. Direct actions (upload, generate,
// reorder, chat) validate the current status, persist the optimistic status
// change, and submit jobs to the external worker. Dispatch consumes one
// worker result at a time and advances state from what is persisted rather
// than from counters, so re-delivered or reordered results are harmless.
//
// Every action and every result for an entity runs inside that entity's
// critical section (pipeline.Locker keyed by kind and ID). The "all tracks
// analyzed" check and order recomputation therefore see a consistent
// snapshot, and two recomputations for one project never interleave their
// transition rewrites.
//
// Start runs the result consumer loop against a jobs.Queue; tests call
// Dispatch directly.
package workflow
