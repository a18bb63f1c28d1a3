// Package pipeline owns the lifecycle enums for projects, drafts, and
// transitions, and the tables of status moves each entity may make.
//
// Project and draft statuses advance along a fixed chain. Re-entrant user
// actions (new uploads, reorders, regenerating output) may move an entity back
// to an earlier stage, and FAILED is reachable from every non-terminal status.
// Every status write in the workflow goes through Project.Transition or
// Draft.Transition so an illegal move surfaces as ErrInvalidTransition
// instead of silently corrupting state.
//
// Locker provides the per-entity critical sections the workflow uses to make
// read-decide-write sequences (the "all tracks analyzed" check, transition
// recomputation, conversation log updates) atomic with respect to each other.
package pipeline
