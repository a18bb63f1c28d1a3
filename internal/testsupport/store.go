package testsupport

import (
	"context"
	"testing"

	"mixcraft/internal/compat"
	"mixcraft/internal/config"
	"mixcraft/internal/pipeline"
	"mixcraft/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewProject creates a project for tests.
func NewProject(t testing.TB, st *store.Store, name string) *store.Project {
	t.Helper()

	project, err := st.CreateProject(context.Background(), name)
	if err != nil {
		t.Fatalf("store.CreateProject: %v", err)
	}
	return project
}

// AddTrack attaches a track to an owner for tests.
func AddTrack(t testing.TB, st *store.Store, kind pipeline.EntityKind, ownerID, slot, path string) *store.Track {
	t.Helper()

	track, _, err := st.AddTrack(context.Background(), store.NewTrack{
		OwnerKind: kind,
		OwnerID:   ownerID,
		Slot:      slot,
		FilePath:  path,
	})
	if err != nil {
		t.Fatalf("store.AddTrack: %v", err)
	}
	return track
}

// AnalyzedTrack attaches a track and stores complete core analysis for it.
func AnalyzedTrack(t testing.TB, st *store.Store, projectID, path string, bpm float64, camelot string, energy float64) *store.Track {
	t.Helper()

	track := AddTrack(t, st, pipeline.EntityProject, projectID, "", path)
	err := st.UpsertAnalysis(context.Background(), &store.Analysis{
		TrackID: track.ID,
		Core:    &compat.Features{BPM: bpm, Camelot: camelot, Energy: energy},
	})
	if err != nil {
		t.Fatalf("store.UpsertAnalysis: %v", err)
	}
	return track
}
