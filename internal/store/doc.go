// Package store persists mixcraft state in SQLite.
//
// Projects, drafts, tracks, analyses, transitions, and mix segments live in
// one database under the configured data directory. Getters return (nil, nil)
// for missing rows. Writes that must land together (a recomputed order with
// its transitions, a new segment set) run in a single transaction so readers
// never observe a half-replaced collection.
package store
