package store_test

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"mixcraft/internal/compat"
	"mixcraft/internal/pipeline"
	"mixcraft/internal/services"
	"mixcraft/internal/store"
	"mixcraft/internal/testsupport"
)

func TestProjectRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	project := testsupport.NewProject(t, st, "Friday set")
	if project.Status != pipeline.ProjectCreated {
		t.Fatalf("expected CREATED, got %s", project.Status)
	}
	if project.OrderedTracks != nil && len(project.OrderedTracks) != 0 {
		t.Fatalf("expected empty order, got %v", project.OrderedTracks)
	}

	project.Status = pipeline.ProjectFailed
	project.ErrorMessage = "worker crashed"
	project.OrderedTracks = []string{"a", "b"}
	project.AverageMixScore = 77
	if err := st.UpdateProject(ctx, project); err != nil {
		t.Fatalf("UpdateProject: %v", err)
	}

	fetched, err := st.GetProject(ctx, project.ID)
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if fetched.Status != pipeline.ProjectFailed || fetched.ErrorMessage != "worker crashed" || fetched.AverageMixScore != 77 {
		t.Fatalf("unexpected project: %+v", fetched)
	}
	if !reflect.DeepEqual(fetched.OrderedTracks, []string{"a", "b"}) {
		t.Fatalf("unexpected order: %v", fetched.OrderedTracks)
	}

	missing, err := st.GetProject(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil, nil for missing project, got %v %v", missing, err)
	}

	ghost := &store.Project{ID: "ghost", Name: "x", Status: pipeline.ProjectReady}
	if err := st.UpdateProject(ctx, ghost); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := st.CreateProject(ctx, "  "); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSchemaPersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mixcraft.db")
	first, err := store.OpenPath(path)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	project, err := first.CreateProject(context.Background(), "persist")
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	first.Close()

	second, err := store.OpenPath(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	got, err := second.GetProject(context.Background(), project.ID)
	if err != nil || got == nil {
		t.Fatalf("expected project after reopen, got %v %v", got, err)
	}
}

func TestDraftSlotsReplaceTracks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	draft, err := st.CreateDraft(ctx, "preview")
	if err != nil {
		t.Fatalf("CreateDraft: %v", err)
	}
	if draft.TransitionStatus != pipeline.TransitionPending {
		t.Fatalf("expected PENDING transition, got %s", draft.TransitionStatus)
	}

	first := testsupport.AddTrack(t, st, pipeline.EntityDraft, draft.ID, "a", "/music/one.mp3")
	if first.Slot != store.SlotA {
		t.Fatalf("expected slot A, got %q", first.Slot)
	}
	if err := st.UpsertAnalysis(ctx, &store.Analysis{TrackID: first.ID, Core: &compat.Features{BPM: 120, Camelot: "8A", Energy: 0.4}}); err != nil {
		t.Fatalf("UpsertAnalysis: %v", err)
	}

	second, replaced, err := st.AddTrack(ctx, store.NewTrack{OwnerKind: pipeline.EntityDraft, OwnerID: draft.ID, Slot: "A", FilePath: "/music/two.mp3"})
	if err != nil {
		t.Fatalf("AddTrack: %v", err)
	}
	if replaced != first.ID {
		t.Fatalf("expected %s replaced, got %q", first.ID, replaced)
	}
	tracks, err := st.Tracks(ctx, pipeline.EntityDraft, draft.ID)
	if err != nil {
		t.Fatalf("Tracks: %v", err)
	}
	if len(tracks) != 1 || tracks[0].ID != second.ID {
		t.Fatalf("expected only the replacement track, got %+v", tracks)
	}
	if analysis, _ := st.GetAnalysis(ctx, first.ID); analysis != nil {
		t.Fatalf("expected replaced track analysis removed, got %+v", analysis)
	}

	if _, _, err := st.AddTrack(ctx, store.NewTrack{OwnerKind: pipeline.EntityDraft, OwnerID: draft.ID, Slot: "C", FilePath: "/x"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for bad slot, got %v", err)
	}

	pair := compat.Score(compat.Features{BPM: 120, Camelot: "8A", Energy: 0.4}, compat.Features{BPM: 121, Camelot: "9A", Energy: 0.5}, compat.ProfileDraft)
	draft.Compatibility = &pair
	draft.CutPoints = json.RawMessage(`{"out":12.5,"in":3}`)
	draft.Status = pipeline.DraftReady
	if err := st.UpdateDraft(ctx, draft); err != nil {
		t.Fatalf("UpdateDraft: %v", err)
	}
	fetched, err := st.GetDraft(ctx, draft.ID)
	if err != nil {
		t.Fatalf("GetDraft: %v", err)
	}
	if fetched.Compatibility == nil || fetched.Compatibility.Score != pair.Score || fetched.Compatibility.Profile != "draft" {
		t.Fatalf("unexpected compatibility: %+v", fetched.Compatibility)
	}
	if string(fetched.CutPoints) != `{"out":12.5,"in":3}` {
		t.Fatalf("unexpected cut points: %s", fetched.CutPoints)
	}
}

func TestAnalysisIsAllOrNothing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	project := testsupport.NewProject(t, st, "analysis")

	complete := testsupport.AnalyzedTrack(t, st, project.ID, "/a.mp3", 124, "8a", 0.5)
	partial := testsupport.AddTrack(t, st, pipeline.EntityProject, project.ID, "", "/b.mp3")
	testsupport.AddTrack(t, st, pipeline.EntityProject, project.ID, "", "/c.mp3")

	err := st.UpsertAnalysis(ctx, &store.Analysis{
		TrackID: partial.ID,
		Core:    &compat.Features{BPM: 124, Camelot: "", Energy: 0.5},
		Aux:     store.AnalysisAux{Danceability: 0.7, Beats: []float64{0.5, 1.0}},
	})
	if err != nil {
		t.Fatalf("UpsertAnalysis: %v", err)
	}

	analyses, err := st.Analyses(ctx, pipeline.EntityProject, project.ID)
	if err != nil {
		t.Fatalf("Analyses: %v", err)
	}
	if !analyses[complete.ID].Scorable() || analyses[complete.ID].Core.Camelot != "8A" {
		t.Fatalf("expected normalized scorable analysis, got %+v", analyses[complete.ID])
	}
	got := analyses[partial.ID]
	if got == nil || got.Core != nil || got.Scorable() {
		t.Fatalf("expected partial analysis stored without core, got %+v", got)
	}
	if got.Aux.Danceability != 0.7 || len(got.Aux.Beats) != 2 {
		t.Fatalf("expected aux preserved, got %+v", got.Aux)
	}

	analyzed, total, err := st.AnalysisCounts(ctx, pipeline.EntityProject, project.ID)
	if err != nil {
		t.Fatalf("AnalysisCounts: %v", err)
	}
	if analyzed != 2 || total != 3 {
		t.Fatalf("expected 2/3 analyzed, got %d/%d", analyzed, total)
	}

	// Re-delivery is an upsert, not a second row.
	if err := st.UpsertAnalysis(ctx, &store.Analysis{TrackID: complete.ID, Core: &compat.Features{BPM: 125, Camelot: "9A", Energy: 0.6}}); err != nil {
		t.Fatalf("UpsertAnalysis again: %v", err)
	}
	analyzed, _, _ = st.AnalysisCounts(ctx, pipeline.EntityProject, project.ID)
	if analyzed != 2 {
		t.Fatalf("expected upsert to keep count at 2, got %d", analyzed)
	}
}

func TestReplaceOrderingSwapsTransitionsAtomically(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	project := testsupport.NewProject(t, st, "ordering")

	project.Status = pipeline.ProjectReady
	project.OrderedTracks = []string{"t1", "t2", "t3"}
	project.AverageMixScore = 90
	first := []store.Transition{
		{ID: "x0", Position: 0, FromTrackID: "t1", ToTrackID: "t2", Score: 90, Label: compat.HarmonicAdjacent},
		{ID: "x1", Position: 1, FromTrackID: "t2", ToTrackID: "t3", Score: 90, Label: compat.HarmonicAdjacent},
	}
	if err := st.ReplaceOrdering(ctx, project, first); err != nil {
		t.Fatalf("ReplaceOrdering: %v", err)
	}
	if ok, err := st.SetTransitionAudio(ctx, "x0", pipeline.AudioCompleted, "/render/x0.wav", ""); err != nil || !ok {
		t.Fatalf("SetTransitionAudio: %v %v", ok, err)
	}

	project.OrderedTracks = []string{"t1", "t2"}
	project.AverageMixScore = 90
	second := []store.Transition{{ID: "x0", Position: 0, FromTrackID: "t1", ToTrackID: "t2", Score: 90, Label: compat.HarmonicAdjacent}}
	if err := st.ReplaceOrdering(ctx, project, second); err != nil {
		t.Fatalf("ReplaceOrdering again: %v", err)
	}

	transitions, err := st.Transitions(ctx, project.ID)
	if err != nil {
		t.Fatalf("Transitions: %v", err)
	}
	if len(transitions) != 1 {
		t.Fatalf("expected 1 transition after replace, got %d", len(transitions))
	}
	if transitions[0].AudioStatus != pipeline.AudioCompleted || transitions[0].AudioFile != "/render/x0.wav" {
		t.Fatalf("expected surviving pair to keep rendered audio, got %+v", transitions[0])
	}
	if ok, _ := st.SetTransitionAudio(ctx, "x1", pipeline.AudioCompleted, "/render/x1.wav", ""); ok {
		t.Fatal("expected stale transition update to report missing row")
	}

	fetched, _ := st.GetProject(ctx, project.ID)
	if !reflect.DeepEqual(fetched.OrderedTracks, []string{"t1", "t2"}) || fetched.Status != pipeline.ProjectReady {
		t.Fatalf("unexpected project after replace: %+v", fetched)
	}
}

func TestAudioCountsAndProcessingMark(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	project := testsupport.NewProject(t, st, "audio")
	project.OrderedTracks = []string{"a", "b", "c", "d"}
	transitions := []store.Transition{
		{ID: "p0", Position: 0, FromTrackID: "a", ToTrackID: "b"},
		{ID: "p1", Position: 1, FromTrackID: "b", ToTrackID: "c"},
		{ID: "p2", Position: 2, FromTrackID: "c", ToTrackID: "d"},
	}
	if err := st.ReplaceOrdering(ctx, project, transitions); err != nil {
		t.Fatalf("ReplaceOrdering: %v", err)
	}
	if _, err := st.SetTransitionAudio(ctx, "p0", pipeline.AudioCompleted, "/p0.wav", ""); err != nil {
		t.Fatalf("SetTransitionAudio: %v", err)
	}
	marked, err := st.MarkTransitionsProcessing(ctx, project.ID)
	if err != nil {
		t.Fatalf("MarkTransitionsProcessing: %v", err)
	}
	if marked != 2 {
		t.Fatalf("expected 2 marked, got %d", marked)
	}
	if _, err := st.SetTransitionAudio(ctx, "p1", pipeline.AudioError, "", "render failed"); err != nil {
		t.Fatalf("SetTransitionAudio: %v", err)
	}

	counts, err := st.AudioCounts(ctx, project.ID)
	if err != nil {
		t.Fatalf("AudioCounts: %v", err)
	}
	want := store.AudioCounts{Total: 3, Completed: 1, Errored: 1, Processing: 1}
	if counts != want {
		t.Fatalf("expected %+v, got %+v", want, counts)
	}
	if counts.Outstanding() != 1 {
		t.Fatalf("expected 1 outstanding, got %d", counts.Outstanding())
	}
}

func TestReplaceSegments(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	project := testsupport.NewProject(t, st, "segments")

	if err := st.ReplaceSegments(ctx, project.ID, []store.MixSegment{
		{Kind: "track", TrackID: "a", FilePath: "/a.wav", EndSeconds: 180},
		{Kind: "transition", FilePath: "/ab.wav", StartSeconds: 180, EndSeconds: 196},
	}); err != nil {
		t.Fatalf("ReplaceSegments: %v", err)
	}
	if err := st.ReplaceSegments(ctx, project.ID, []store.MixSegment{{Kind: "track", TrackID: "b", EndSeconds: 200}}); err != nil {
		t.Fatalf("ReplaceSegments again: %v", err)
	}
	segments, err := st.Segments(ctx, project.ID)
	if err != nil {
		t.Fatalf("Segments: %v", err)
	}
	if len(segments) != 1 || segments[0].TrackID != "b" || segments[0].Position != 0 {
		t.Fatalf("unexpected segments: %+v", segments)
	}
}

func TestDeleteProjectRemovesOwnedRows(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	project := testsupport.NewProject(t, st, "delete")
	track := testsupport.AnalyzedTrack(t, st, project.ID, "/a.mp3", 120, "1A", 0.2)

	removed, err := st.DeleteProject(ctx, project.ID)
	if err != nil || !removed {
		t.Fatalf("DeleteProject: %v %v", removed, err)
	}
	if got, _ := st.GetTrack(ctx, track.ID); got != nil {
		t.Fatalf("expected track removed, got %+v", got)
	}
	if got, _ := st.GetAnalysis(ctx, track.ID); got != nil {
		t.Fatalf("expected analysis removed, got %+v", got)
	}
}
