package workflow_test

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"testing"
	"time"

	"mixcraft/internal/compat"
	"mixcraft/internal/config"
	"mixcraft/internal/jobs"
	"mixcraft/internal/logging"
	"mixcraft/internal/notifications"
	"mixcraft/internal/pipeline"
	"mixcraft/internal/services"
	"mixcraft/internal/store"
	"mixcraft/internal/testsupport"
	"mixcraft/internal/workflow"
)

type harness struct {
	cfg      *config.Config
	store    *store.Store
	queue    *jobs.MemoryQueue
	notifier *testsupport.Notifier
	manager  *workflow.Manager
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	queue := jobs.NewMemoryQueue()
	notifier := testsupport.NewNotifier()
	mgr := workflow.NewManager(cfg, st, queue, logging.NewNop(), workflow.WithNotifier(notifier))
	return &harness{cfg: cfg, store: st, queue: queue, notifier: notifier, manager: mgr}
}

func ptr(v float64) *float64 { return &v }

func analysis(bpm float64, camelot string, energy float64) jobs.AnalyzeResult {
	return jobs.AnalyzeResult{BPM: ptr(bpm), Camelot: camelot, Energy: ptr(energy)}
}

func (h *harness) answer(t *testing.T, job jobs.Job, body any) {
	t.Helper()
	result, err := jobs.ResultFor(job, body)
	if err != nil {
		t.Fatalf("ResultFor: %v", err)
	}
	if err := h.manager.Dispatch(context.Background(), result); err != nil {
		t.Fatalf("Dispatch %s: %v", job.Type, err)
	}
}

func (h *harness) fail(t *testing.T, job jobs.Job, message string) {
	t.Helper()
	if err := h.manager.Dispatch(context.Background(), jobs.FailureFor(job, message)); err != nil {
		t.Fatalf("Dispatch %s failure: %v", job.Type, err)
	}
}

func (h *harness) project(t *testing.T, id string) *store.Project {
	t.Helper()
	project, err := h.store.GetProject(context.Background(), id)
	if err != nil || project == nil {
		t.Fatalf("GetProject: %v (project=%v)", err, project)
	}
	return project
}

func (h *harness) draft(t *testing.T, id string) *store.Draft {
	t.Helper()
	draft, err := h.store.GetDraft(context.Background(), id)
	if err != nil || draft == nil {
		t.Fatalf("GetDraft: %v (draft=%v)", err, draft)
	}
	return draft
}

func jobFor(t *testing.T, list []jobs.Job, trackID string) jobs.Job {
	t.Helper()
	for _, job := range list {
		if job.TrackID == trackID {
			return job
		}
	}
	t.Fatalf("no job for track %s", trackID)
	return jobs.Job{}
}

type mixTracks struct {
	project    *store.Project
	t1, t2, t3 *store.Track
}

// readyProject uploads and analyzes the three reference tracks.
func readyProject(t *testing.T, h *harness) mixTracks {
	t.Helper()
	ctx := context.Background()
	project := testsupport.NewProject(t, h.store, "Friday set")
	tracks, err := h.manager.UploadTracks(ctx, project.ID, []workflow.Upload{
		{FilePath: "/music/t1.wav", Title: "One"},
		{FilePath: "/music/t2.wav", Title: "Two"},
		{FilePath: "/music/t3.wav", Title: "Three"},
	})
	if err != nil {
		t.Fatalf("UploadTracks: %v", err)
	}
	submitted := h.queue.TakeJobs()
	h.answer(t, jobFor(t, submitted, tracks[0].ID), analysis(122, "8A", 0.3))
	h.answer(t, jobFor(t, submitted, tracks[1].ID), analysis(124, "9A", 0.5))
	h.answer(t, jobFor(t, submitted, tracks[2].ID), analysis(123, "8A", 0.4))
	return mixTracks{project: h.project(t, project.ID), t1: tracks[0], t2: tracks[1], t3: tracks[2]}
}

func TestAnalysisCompletionOrdersProject(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	project := testsupport.NewProject(t, h.store, "Friday set")

	tracks, err := h.manager.UploadTracks(ctx, project.ID, []workflow.Upload{
		{FilePath: "/music/t1.wav"},
		{FilePath: "/music/t2.wav"},
		{FilePath: "/music/t3.wav"},
	})
	if err != nil {
		t.Fatalf("UploadTracks: %v", err)
	}
	if got := h.project(t, project.ID).Status; got != pipeline.ProjectAnalyzing {
		t.Fatalf("expected ANALYZING after upload, got %s", got)
	}
	submitted := h.queue.TakeJobs()
	if len(submitted) != 3 {
		t.Fatalf("expected 3 analyze jobs, got %d", len(submitted))
	}
	for _, job := range submitted {
		if job.Type != jobs.TypeAnalyze || job.EntityKind != pipeline.EntityProject {
			t.Fatalf("unexpected job %+v", job)
		}
	}

	h.answer(t, jobFor(t, submitted, tracks[0].ID), analysis(122, "8A", 0.3))
	h.answer(t, jobFor(t, submitted, tracks[1].ID), analysis(124, "9A", 0.5))
	partial := h.project(t, project.ID)
	if partial.Status != pipeline.ProjectAnalyzing || len(partial.OrderedTracks) != 0 {
		t.Fatalf("expected project to wait for the last track, got %s %v", partial.Status, partial.OrderedTracks)
	}

	last := jobFor(t, submitted, tracks[2].ID)
	h.answer(t, last, analysis(123, "8A", 0.4))

	ready := h.project(t, project.ID)
	if ready.Status != pipeline.ProjectReady {
		t.Fatalf("expected READY, got %s", ready.Status)
	}
	want := []string{tracks[0].ID, tracks[2].ID, tracks[1].ID}
	if !slices.Equal(ready.OrderedTracks, want) {
		t.Fatalf("order = %v, want %v", ready.OrderedTracks, want)
	}
	if ready.AverageMixScore != 98 {
		t.Fatalf("average = %d, want 98", ready.AverageMixScore)
	}
	transitions, err := h.store.Transitions(ctx, project.ID)
	if err != nil {
		t.Fatalf("Transitions: %v", err)
	}
	if len(transitions) != 2 || transitions[0].Score != 100 || transitions[1].Score != 95 {
		t.Fatalf("unexpected transitions %+v", transitions)
	}

	// Re-delivery of the last result changes nothing.
	h.answer(t, last, analysis(123, "8A", 0.4))
	again := h.project(t, project.ID)
	if again.Status != pipeline.ProjectReady || !slices.Equal(again.OrderedTracks, want) {
		t.Fatalf("re-delivery changed project: %s %v", again.Status, again.OrderedTracks)
	}
	if got := h.notifier.Count(notifications.EventOrderReady); got != 1 {
		t.Fatalf("expected one order_ready event, got %d", got)
	}
}

func TestIncompleteAnalysisIsExcludedFromOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	project := testsupport.NewProject(t, h.store, "Partial")
	tracks, err := h.manager.UploadTracks(ctx, project.ID, []workflow.Upload{
		{FilePath: "/music/a.wav"},
		{FilePath: "/music/b.wav"},
		{FilePath: "/music/c.wav"},
	})
	if err != nil {
		t.Fatalf("UploadTracks: %v", err)
	}
	submitted := h.queue.TakeJobs()
	h.answer(t, jobFor(t, submitted, tracks[0].ID), analysis(120, "5B", 0.2))
	h.answer(t, jobFor(t, submitted, tracks[1].ID), jobs.AnalyzeResult{BPM: ptr(121), Energy: ptr(0.3)})
	h.answer(t, jobFor(t, submitted, tracks[2].ID), analysis(121, "5B", 0.3))

	ready := h.project(t, project.ID)
	if ready.Status != pipeline.ProjectReady {
		t.Fatalf("expected READY, got %s", ready.Status)
	}
	if slices.Contains(ready.OrderedTracks, tracks[1].ID) || len(ready.OrderedTracks) != 2 {
		t.Fatalf("expected the unkeyed track to be excluded, got %v", ready.OrderedTracks)
	}
}

func TestAnalyzeErrorFailsProject(t *testing.T) {
	h := newHarness(t)
	project := testsupport.NewProject(t, h.store, "Broken")
	tracks, err := h.manager.UploadTracks(context.Background(), project.ID, []workflow.Upload{{FilePath: "/music/x.wav"}})
	if err != nil {
		t.Fatalf("UploadTracks: %v", err)
	}
	h.fail(t, jobFor(t, h.queue.TakeJobs(), tracks[0].ID), "decoder exploded")

	failed := h.project(t, project.ID)
	if failed.Status != pipeline.ProjectFailed || failed.ErrorMessage != "decoder exploded" {
		t.Fatalf("expected FAILED with message, got %s %q", failed.Status, failed.ErrorMessage)
	}
	events := h.notifier.Events(notifications.EventError)
	if len(events) != 1 || events[0].Payload["stage"] != string(jobs.TypeAnalyze) {
		t.Fatalf("unexpected error events %+v", events)
	}
}

func TestBusyProjectRejectsActions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	project := testsupport.NewProject(t, h.store, "Busy")
	if _, err := h.manager.UploadTracks(ctx, project.ID, []workflow.Upload{{FilePath: "/music/a.wav"}}); err != nil {
		t.Fatalf("UploadTracks: %v", err)
	}

	if _, err := h.manager.UploadTracks(ctx, project.ID, []workflow.Upload{{FilePath: "/music/b.wav"}}); !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected conflict uploading while analyzing, got %v", err)
	}
	if _, err := h.manager.ReorderManual(ctx, project.ID, []string{"a", "b"}); !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected conflict reordering while analyzing, got %v", err)
	}
	if _, err := h.manager.ReorderManual(ctx, "missing", []string{"a", "b"}); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestTransitionAudioScopesErrors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	mix := readyProject(t, h)

	queued, err := h.manager.GenerateTransitions(ctx, mix.project.ID)
	if err != nil {
		t.Fatalf("GenerateTransitions: %v", err)
	}
	if queued != 2 {
		t.Fatalf("expected 2 render jobs, got %d", queued)
	}
	if got := h.project(t, mix.project.ID).Status; got != pipeline.ProjectMixing {
		t.Fatalf("expected MIXING, got %s", got)
	}
	renders := h.queue.TakeJobs()
	if len(renders) != 2 || renders[0].TransitionID == "" {
		t.Fatalf("unexpected render jobs %+v", renders)
	}

	h.answer(t, renders[0], jobs.TransitionAudioResult{AudioFile: "/renders/0.wav"})
	if got := h.project(t, mix.project.ID).Status; got != pipeline.ProjectMixing {
		t.Fatalf("expected MIXING while a render is outstanding, got %s", got)
	}
	h.fail(t, renders[1], "stretch failed")

	project := h.project(t, mix.project.ID)
	if project.Status != pipeline.ProjectReady {
		t.Fatalf("expected READY once nothing is outstanding, got %s", project.Status)
	}
	counts, err := h.store.AudioCounts(ctx, mix.project.ID)
	if err != nil {
		t.Fatalf("AudioCounts: %v", err)
	}
	if counts.Completed != 1 || counts.Errored != 1 || counts.Total != 2 {
		t.Fatalf("unexpected counts %+v", counts)
	}

	// A duplicate success does not double count.
	h.answer(t, renders[0], jobs.TransitionAudioResult{AudioFile: "/renders/0.wav"})
	counts, _ = h.store.AudioCounts(ctx, mix.project.ID)
	if counts.Completed != 1 {
		t.Fatalf("duplicate result counted twice: %+v", counts)
	}

	queued, err = h.manager.GenerateTransitions(ctx, mix.project.ID)
	if err != nil {
		t.Fatalf("GenerateTransitions retry: %v", err)
	}
	if queued != 1 {
		t.Fatalf("expected only the errored transition to be queued, got %d", queued)
	}
}

func TestStaleTransitionResultIsIgnored(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	mix := readyProject(t, h)
	if _, err := h.manager.GenerateTransitions(ctx, mix.project.ID); err != nil {
		t.Fatalf("GenerateTransitions: %v", err)
	}
	renders := h.queue.TakeJobs()

	job := renders[0]
	job.TransitionID = "replaced-by-reorder"
	h.answer(t, job, jobs.TransitionAudioResult{AudioFile: "/renders/old.wav"})

	counts, _ := h.store.AudioCounts(ctx, mix.project.ID)
	if counts.Completed != 0 {
		t.Fatalf("stale result was applied: %+v", counts)
	}
}

func TestMixPartialSuccessKeepsSegments(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	mix := readyProject(t, h)

	if _, err := h.manager.GenerateMix(ctx, mix.project.ID); err != nil {
		t.Fatalf("GenerateMix: %v", err)
	}
	submitted := h.queue.TakeJobs()
	if len(submitted) != 1 || submitted[0].Type != jobs.TypeMix {
		t.Fatalf("expected one mix job, got %+v", submitted)
	}
	var payload jobs.MixPayload
	if err := json.Unmarshal(submitted[0].Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if len(payload.Tracks) != 3 || payload.Tracks[1].TrackID != mix.t3.ID || len(payload.Transitions) != 2 {
		t.Fatalf("unexpected mix payload %+v", payload)
	}

	h.answer(t, submitted[0], jobs.MixResult{
		Segments: []store.MixSegment{
			{Position: 0, Kind: "track", TrackID: mix.t1.ID, StartSeconds: 0, EndSeconds: 180},
		},
		Error: "renderer ran out of disk",
	})
	project := h.project(t, mix.project.ID)
	if project.Status != pipeline.ProjectReady || project.ErrorMessage != "renderer ran out of disk" || project.OutputFile != "" {
		t.Fatalf("unexpected project after partial mix: %+v", project)
	}
	segments, err := h.store.Segments(ctx, mix.project.ID)
	if err != nil || len(segments) != 1 {
		t.Fatalf("expected the rendered segment to be kept, got %v (err=%v)", segments, err)
	}

	if _, err := h.manager.GenerateMix(ctx, mix.project.ID); err != nil {
		t.Fatalf("GenerateMix retry: %v", err)
	}
	retry := h.queue.TakeJobs()[0]
	h.answer(t, retry, jobs.MixResult{
		OutputFile: "/mixes/friday.mp3",
		Segments: []store.MixSegment{
			{Position: 0, Kind: "track", TrackID: mix.t1.ID, EndSeconds: 180},
			{Position: 1, Kind: "transition", StartSeconds: 180, EndSeconds: 196},
			{Position: 2, Kind: "track", TrackID: mix.t3.ID, StartSeconds: 196, EndSeconds: 400},
		},
	})
	project = h.project(t, mix.project.ID)
	if project.Status != pipeline.ProjectCompleted || project.OutputFile != "/mixes/friday.mp3" || project.ErrorMessage != "" {
		t.Fatalf("unexpected project after mix: %+v", project)
	}
	segments, _ = h.store.Segments(ctx, mix.project.ID)
	if len(segments) != 3 {
		t.Fatalf("expected segments replaced wholesale, got %d", len(segments))
	}
	if got := h.notifier.Count(notifications.EventMixCompleted); got != 2 {
		t.Fatalf("expected two mix_completed events, got %d", got)
	}
}

func TestManualReorderIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	mix := readyProject(t, h)

	order := []string{mix.t2.ID, mix.t1.ID, mix.t2.ID, "unknown", mix.t3.ID}
	first, err := h.manager.ReorderManual(ctx, mix.project.ID, order)
	if err != nil {
		t.Fatalf("ReorderManual: %v", err)
	}
	want := []string{mix.t2.ID, mix.t1.ID, mix.t3.ID}
	if !slices.Equal(first.Order, want) {
		t.Fatalf("order = %v, want %v", first.Order, want)
	}
	before, _ := h.store.Transitions(ctx, mix.project.ID)

	if _, err := h.manager.ReorderManual(ctx, mix.project.ID, order); err != nil {
		t.Fatalf("ReorderManual again: %v", err)
	}
	after, _ := h.store.Transitions(ctx, mix.project.ID)
	if len(before) != 2 || len(after) != 2 {
		t.Fatalf("expected 2 transitions, got %d then %d", len(before), len(after))
	}
	for i := range before {
		if before[i].ID != after[i].ID || before[i].Score != after[i].Score {
			t.Fatalf("transition %d changed: %+v vs %+v", i, before[i], after[i])
		}
	}
	project := h.project(t, mix.project.ID)
	if project.Status != pipeline.ProjectReady || project.AverageMixScore != first.AverageScore {
		t.Fatalf("unexpected project %+v", project)
	}
}

func TestRemoveTrackRescoresOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	mix := readyProject(t, h)

	if err := h.manager.RemoveTrack(ctx, mix.project.ID, mix.t3.ID); err != nil {
		t.Fatalf("RemoveTrack: %v", err)
	}
	project := h.project(t, mix.project.ID)
	want := []string{mix.t1.ID, mix.t2.ID}
	if !slices.Equal(project.OrderedTracks, want) {
		t.Fatalf("order = %v, want %v", project.OrderedTracks, want)
	}
	transitions, _ := h.store.Transitions(ctx, mix.project.ID)
	if len(transitions) != 1 {
		t.Fatalf("expected 1 transition, got %d", len(transitions))
	}
	if err := h.manager.RemoveTrack(ctx, mix.project.ID, mix.t3.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for removed track, got %v", err)
	}
}

func TestChatReorderAppliesLenientSuggestion(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	mix := readyProject(t, h)

	jobID, err := h.manager.SendChatMessage(ctx, mix.project.ID, "  start with the busy one  ")
	if err != nil {
		t.Fatalf("SendChatMessage: %v", err)
	}
	submitted := h.queue.TakeJobs()
	if len(submitted) != 1 || submitted[0].ID != jobID {
		t.Fatalf("unexpected chat jobs %+v", submitted)
	}
	var payload jobs.ChatReorderPayload
	if err := json.Unmarshal(submitted[0].Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Message != "start with the busy one" || len(payload.Tracks) != 3 || len(payload.History) != 0 {
		t.Fatalf("unexpected chat payload %+v", payload)
	}

	reply := jobs.ChatReorderResult{Reply: "Opening with Two.", Order: []string{mix.t2.ID, "bogus", mix.t1.ID}}
	h.answer(t, submitted[0], reply)
	project := h.project(t, mix.project.ID)
	want := []string{mix.t2.ID, mix.t1.ID, mix.t3.ID}
	if !slices.Equal(project.OrderedTracks, want) {
		t.Fatalf("order = %v, want %v", project.OrderedTracks, want)
	}

	h.answer(t, submitted[0], reply)
	history, err := h.manager.ChatHistory(ctx, mix.project.ID)
	if err != nil {
		t.Fatalf("ChatHistory: %v", err)
	}
	if len(history) != 2 || history[0].ID != jobID || history[1].Content != "Opening with Two." {
		t.Fatalf("unexpected history %+v", history)
	}
	if !slices.Equal(h.project(t, mix.project.ID).OrderedTracks, want) {
		t.Fatal("re-delivered reply changed the order")
	}
}

func TestChatReorderRejectsDegenerateSuggestion(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	mix := readyProject(t, h)
	before := h.project(t, mix.project.ID)

	if _, err := h.manager.SendChatMessage(ctx, mix.project.ID, "only play one"); err != nil {
		t.Fatalf("SendChatMessage: %v", err)
	}
	job := h.queue.TakeJobs()[0]
	h.answer(t, job, jobs.ChatReorderResult{Reply: "Just One.", Order: []string{mix.t1.ID, "bogus"}})

	after := h.project(t, mix.project.ID)
	if !slices.Equal(after.OrderedTracks, before.OrderedTracks) || after.AverageMixScore != before.AverageMixScore {
		t.Fatalf("rejected suggestion changed project: %v/%d", after.OrderedTracks, after.AverageMixScore)
	}
	replies := h.notifier.Events(notifications.EventChatReply)
	if len(replies) != 1 || replies[0].Payload["applied"] != false {
		t.Fatalf("unexpected chat_reply events %+v", replies)
	}
	if _, err := h.manager.SendChatMessage(ctx, mix.project.ID, "   "); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for empty message, got %v", err)
	}
}

func TestDraftFlow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	draft, err := h.store.CreateDraft(ctx, "Pairing")
	if err != nil {
		t.Fatalf("CreateDraft: %v", err)
	}

	a, err := h.manager.UploadDraftTrack(ctx, draft.ID, store.SlotA, workflow.Upload{FilePath: "/music/a.wav"})
	if err != nil {
		t.Fatalf("UploadDraftTrack A: %v", err)
	}
	h.answer(t, h.queue.TakeJobs()[0], analysis(122, "8A", 0.3))
	if got := h.draft(t, draft.ID); got.Status != pipeline.DraftReady || got.Compatibility != nil {
		t.Fatalf("expected READY without compatibility for one slot, got %s %v", got.Status, got.Compatibility)
	}

	b, err := h.manager.UploadDraftTrack(ctx, draft.ID, store.SlotB, workflow.Upload{FilePath: "/music/b.wav"})
	if err != nil {
		t.Fatalf("UploadDraftTrack B: %v", err)
	}
	analyzeB := h.queue.TakeJobs()[0]
	if analyzeB.EntityKind != pipeline.EntityDraft || analyzeB.TrackID != b.ID {
		t.Fatalf("unexpected analyze job %+v", analyzeB)
	}
	h.answer(t, analyzeB, analysis(124, "9A", 0.5))

	ready := h.draft(t, draft.ID)
	want := compat.Score(
		compat.Features{BPM: 122, Camelot: "8A", Energy: 0.3},
		compat.Features{BPM: 124, Camelot: "9A", Energy: 0.5},
		compat.ProfileDraft,
	)
	if ready.Status != pipeline.DraftReady || ready.Compatibility == nil || ready.Compatibility.Score != want.Score {
		t.Fatalf("unexpected draft compatibility %+v", ready.Compatibility)
	}

	if _, err := h.manager.GenerateDraftTransition(ctx, draft.ID); err != nil {
		t.Fatalf("GenerateDraftTransition: %v", err)
	}
	generating := h.draft(t, draft.ID)
	if generating.Status != pipeline.DraftGenerating || generating.TransitionStatus != pipeline.TransitionProcessing {
		t.Fatalf("unexpected draft state %s/%s", generating.Status, generating.TransitionStatus)
	}
	render := h.queue.TakeJobs()[0]
	var payload jobs.DraftTransitionPayload
	if err := json.Unmarshal(render.Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.A.TrackID != a.ID || payload.B.Camelot != "9A" {
		t.Fatalf("unexpected draft payload %+v", payload)
	}

	h.answer(t, render, jobs.DraftTransitionResult{
		TransitionFile: "/renders/pairing.wav",
		CutPoints:      json.RawMessage(`{"a_out":172.5,"b_in":8}`),
	})
	done := h.draft(t, draft.ID)
	if done.Status != pipeline.DraftCompleted || done.TransitionStatus != pipeline.TransitionCompleted || done.TransitionFile != "/renders/pairing.wav" {
		t.Fatalf("unexpected completed draft %+v", done)
	}
	if got := h.notifier.Count(notifications.EventDraftCompleted); got != 1 {
		t.Fatalf("expected one draft_completed event, got %d", got)
	}
}

func TestDraftTransitionErrorFailsDraft(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	draft, _ := h.store.CreateDraft(ctx, "Clash")
	for slot, features := range map[string]jobs.AnalyzeResult{
		store.SlotA: analysis(128, "1B", 0.6),
		store.SlotB: analysis(126, "2B", 0.7),
	} {
		if _, err := h.manager.UploadDraftTrack(ctx, draft.ID, slot, workflow.Upload{FilePath: "/music/" + slot + ".wav"}); err != nil {
			t.Fatalf("UploadDraftTrack %s: %v", slot, err)
		}
		h.answer(t, h.queue.TakeJobs()[0], features)
	}
	if _, err := h.manager.GenerateDraftTransition(ctx, draft.ID); err != nil {
		t.Fatalf("GenerateDraftTransition: %v", err)
	}
	h.fail(t, h.queue.TakeJobs()[0], "no beat grid")

	failed := h.draft(t, draft.ID)
	if failed.Status != pipeline.DraftFailed || failed.TransitionStatus != pipeline.TransitionError || failed.TransitionError != "no beat grid" {
		t.Fatalf("unexpected failed draft %+v", failed)
	}
	if _, err := h.manager.GenerateDraftTransition(ctx, draft.ID); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
}

func TestDispatchRejectsAndIgnores(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.manager.Dispatch(ctx, jobs.Result{Type: "bogus", EntityKind: pipeline.EntityProject, EntityID: "p"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	mismatch := jobs.Result{Type: jobs.TypeMix, EntityKind: pipeline.EntityDraft, EntityID: "d", Result: json.RawMessage(`{}`)}
	if err := h.manager.Dispatch(ctx, mismatch); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for mix on a draft, got %v", err)
	}
	orphan := jobs.Result{Type: jobs.TypeMix, EntityKind: pipeline.EntityProject, EntityID: "gone", Result: json.RawMessage(`{"output_file":"/x"}`)}
	if err := h.manager.Dispatch(ctx, orphan); err != nil {
		t.Fatalf("expected stale result to be ignored, got %v", err)
	}
}

func TestProgressIsForwardedOnly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	project := testsupport.NewProject(t, h.store, "Progress")

	result := jobs.Result{
		Type:       jobs.TypeProgress,
		EntityKind: pipeline.EntityProject,
		EntityID:   project.ID,
		Result:     json.RawMessage(`{"stage":"analyze","percent":40,"step":"beat tracking"}`),
	}
	if err := h.manager.Dispatch(ctx, result); err != nil {
		t.Fatalf("Dispatch progress: %v", err)
	}
	events := h.notifier.Events(notifications.EventProgress)
	if len(events) != 1 || events[0].Payload["percent"] != 40.0 || events[0].Payload["step"] != "beat tracking" {
		t.Fatalf("unexpected progress events %+v", events)
	}
	if got := h.project(t, project.ID).Status; got != pipeline.ProjectCreated {
		t.Fatalf("progress changed status to %s", got)
	}
}

func TestManagerConsumesQueue(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	project := testsupport.NewProject(t, h.store, "Loop")
	tracks, err := h.manager.UploadTracks(ctx, project.ID, []workflow.Upload{
		{FilePath: "/music/a.wav"},
		{FilePath: "/music/b.wav"},
	})
	if err != nil {
		t.Fatalf("UploadTracks: %v", err)
	}
	submitted := h.queue.TakeJobs()

	if err := h.manager.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(h.manager.Stop)
	if err := h.manager.Start(ctx); err == nil {
		t.Fatal("expected second Start to fail")
	}

	for i, features := range []jobs.AnalyzeResult{analysis(120, "4A", 0.4), analysis(121, "4A", 0.5)} {
		result, err := jobs.ResultFor(jobFor(t, submitted, tracks[i].ID), features)
		if err != nil {
			t.Fatalf("ResultFor: %v", err)
		}
		if err := h.queue.PublishResult(ctx, result); err != nil {
			t.Fatalf("PublishResult: %v", err)
		}
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if h.project(t, project.ID).Status == pipeline.ProjectReady {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if got := h.project(t, project.ID).Status; got != pipeline.ProjectReady {
		t.Fatalf("expected READY from the consumer loop, got %s", got)
	}

	h.manager.Stop()
	queued, processing := h.queue.Pending()
	if queued != 0 || processing != 0 {
		t.Fatalf("expected all results acknowledged, got queued=%d processing=%d", queued, processing)
	}
	status := h.manager.Status(ctx)
	if status.Running || status.Processed != 2 || status.ProjectCounts[pipeline.ProjectReady] != 1 {
		t.Fatalf("unexpected status %+v", status)
	}
}
