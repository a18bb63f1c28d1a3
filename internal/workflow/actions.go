package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"mixcraft/internal/chatlog"
	"mixcraft/internal/jobs"
	"mixcraft/internal/logging"
	"mixcraft/internal/pipeline"
	"mixcraft/internal/sequence"
	"mixcraft/internal/services"
	"mixcraft/internal/store"
)

// Upload describes one received audio file.
type Upload struct {
	FilePath        string
	Title           string
	DurationSeconds float64
}

// actionContext stamps a user-initiated action. Actions have no job ID of
// their own so each gets a correlation ID instead.
func actionContext(ctx context.Context, kind pipeline.EntityKind, id string, stage jobs.Type) context.Context {
	ctx = entityContext(ctx, kind, id)
	ctx = services.WithJob(ctx, string(stage), "")
	return services.WithCorrelationID(ctx, uuid.NewString())
}

func (m *Manager) loadProject(ctx context.Context, id string) (*store.Project, error) {
	project, err := m.store.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, services.Wrap(services.ErrNotFound, "workflow", "load project", fmt.Sprintf("project %s not found", id), nil)
	}
	return project, nil
}

func (m *Manager) loadDraft(ctx context.Context, id string) (*store.Draft, error) {
	draft, err := m.store.GetDraft(ctx, id)
	if err != nil {
		return nil, err
	}
	if draft == nil {
		return nil, services.Wrap(services.ErrNotFound, "workflow", "load draft", fmt.Sprintf("draft %s not found", id), nil)
	}
	return draft, nil
}

func moveProject(project *store.Project, to pipeline.ProjectStatus, op string) error {
	if project.Status.IsBusy() {
		return services.Wrap(services.ErrConflict, "workflow", op, fmt.Sprintf("project is %s", strings.ToLower(string(project.Status))), nil)
	}
	if err := pipeline.ProjectMove(project.Status, to); err != nil {
		return services.Wrap(services.ErrConflict, "workflow", op, "action not allowed in the current status", err)
	}
	project.Status = to
	return nil
}

func moveDraft(draft *store.Draft, to pipeline.DraftStatus, op string) error {
	if draft.Status.IsBusy() {
		return services.Wrap(services.ErrConflict, "workflow", op, fmt.Sprintf("draft is %s", strings.ToLower(string(draft.Status))), nil)
	}
	if err := pipeline.DraftMove(draft.Status, to); err != nil {
		return services.Wrap(services.ErrConflict, "workflow", op, "action not allowed in the current status", err)
	}
	draft.Status = to
	return nil
}

// UploadTracks attaches files to a project and submits one analyze job per
// file. The project is ANALYZING once every job is queued.
func (m *Manager) UploadTracks(ctx context.Context, projectID string, uploads []Upload) ([]*store.Track, error) {
	if len(uploads) == 0 {
		return nil, services.Wrap(services.ErrValidation, "workflow", "upload tracks", "no files supplied", nil)
	}
	ctx = actionContext(ctx, pipeline.EntityProject, projectID, jobs.TypeAnalyze)
	unlock := m.lock(pipeline.EntityProject, projectID)
	defer unlock()

	project, err := m.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := moveProject(project, pipeline.ProjectUploading, "upload tracks"); err != nil {
		return nil, err
	}
	project.ErrorMessage = ""
	if err := m.store.UpdateProject(ctx, project); err != nil {
		return nil, err
	}
	m.publishProjectStatus(ctx, project.ID, project.Name, project.Status)

	added := make([]*store.Track, 0, len(uploads))
	for _, upload := range uploads {
		track, _, err := m.store.AddTrack(ctx, store.NewTrack{
			OwnerKind:       pipeline.EntityProject,
			OwnerID:         project.ID,
			FilePath:        upload.FilePath,
			Title:           upload.Title,
			DurationSeconds: upload.DurationSeconds,
		})
		if err != nil {
			m.failProject(ctx, project, "upload failed: "+err.Error())
			return added, err
		}
		added = append(added, track)
	}
	if err := m.submitAnalysis(ctx, added); err != nil {
		m.failProject(ctx, project, "could not queue analysis: "+err.Error())
		return added, err
	}

	project.Status = pipeline.ProjectAnalyzing
	if err := m.store.UpdateProject(ctx, project); err != nil {
		return added, err
	}
	m.loggerFor(ctx).Info("tracks uploaded",
		logging.Int("tracks", len(added)),
		logging.String(logging.FieldEventType, "tracks_uploaded"),
	)
	m.publishProjectStatus(ctx, project.ID, project.Name, project.Status)
	return added, nil
}

// UploadDraftTrack fills one draft slot, replacing whatever was there, and
// submits its analysis. Any compatibility or preview derived from the old
// pair is cleared.
func (m *Manager) UploadDraftTrack(ctx context.Context, draftID, slot string, upload Upload) (*store.Track, error) {
	ctx = actionContext(ctx, pipeline.EntityDraft, draftID, jobs.TypeAnalyze)
	unlock := m.lock(pipeline.EntityDraft, draftID)
	defer unlock()

	draft, err := m.loadDraft(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if err := moveDraft(draft, pipeline.DraftUploading, "upload draft track"); err != nil {
		return nil, err
	}
	track, replaced, err := m.store.AddTrack(ctx, store.NewTrack{
		OwnerKind:       pipeline.EntityDraft,
		OwnerID:         draft.ID,
		Slot:            slot,
		FilePath:        upload.FilePath,
		Title:           upload.Title,
		DurationSeconds: upload.DurationSeconds,
	})
	if err != nil {
		return nil, err
	}
	draft.Compatibility = nil
	draft.TransitionStatus = pipeline.TransitionPending
	draft.TransitionFile = ""
	draft.TransitionMeta = nil
	draft.CutPoints = nil
	draft.TransitionError = ""
	draft.ErrorMessage = ""
	if err := m.store.UpdateDraft(ctx, draft); err != nil {
		return nil, err
	}
	m.publishDraftStatus(ctx, draft.ID, draft.Name, draft.Status, draft.TransitionStatus)

	if err := m.submitAnalysis(ctx, []*store.Track{track}); err != nil {
		m.failDraft(ctx, draft, "could not queue analysis: "+err.Error())
		return track, err
	}
	draft.Status = pipeline.DraftAnalyzing
	if err := m.store.UpdateDraft(ctx, draft); err != nil {
		return track, err
	}
	attrs := []logging.Attr{
		logging.String("slot", track.Slot),
		logging.String("track_id", track.ID),
		logging.String(logging.FieldEventType, "draft_track_uploaded"),
	}
	if replaced != "" {
		attrs = append(attrs, logging.String("replaced_track_id", replaced))
	}
	m.loggerFor(ctx).Info("draft track uploaded", logging.Args(attrs...)...)
	m.publishDraftStatus(ctx, draft.ID, draft.Name, draft.Status, draft.TransitionStatus)
	return track, nil
}

func (m *Manager) submitAnalysis(ctx context.Context, tracks []*store.Track) error {
	for _, track := range tracks {
		job, err := jobs.AnalyzeJob(track)
		if err != nil {
			return err
		}
		if err := m.queue.Submit(ctx, job); err != nil {
			return err
		}
	}
	return nil
}

// GenerateTransitions submits a render job for every transition without
// audio. It returns the number of jobs queued; zero leaves the project as
// it was.
func (m *Manager) GenerateTransitions(ctx context.Context, projectID string) (int, error) {
	ctx = actionContext(ctx, pipeline.EntityProject, projectID, jobs.TypeTransitionAudio)
	unlock := m.lock(pipeline.EntityProject, projectID)
	defer unlock()

	project, err := m.loadProject(ctx, projectID)
	if err != nil {
		return 0, err
	}
	transitions, err := m.store.Transitions(ctx, project.ID)
	if err != nil {
		return 0, err
	}
	pending := make([]*store.Transition, 0, len(transitions))
	for _, transition := range transitions {
		if transition.AudioStatus != pipeline.AudioCompleted {
			pending = append(pending, transition)
		}
	}
	if len(pending) == 0 {
		return 0, nil
	}
	if err := moveProject(project, pipeline.ProjectMixing, "generate transitions"); err != nil {
		return 0, err
	}
	if err := m.store.UpdateProject(ctx, project); err != nil {
		return 0, err
	}
	if _, err := m.store.MarkTransitionsProcessing(ctx, project.ID); err != nil {
		m.failProject(ctx, project, "could not mark transitions: "+err.Error())
		return 0, err
	}
	m.publishProjectStatus(ctx, project.ID, project.Name, project.Status)

	refs, err := m.trackRefs(ctx, project.ID)
	if err != nil {
		m.failProject(ctx, project, "could not load tracks: "+err.Error())
		return 0, err
	}
	for _, transition := range pending {
		job, err := jobs.TransitionAudioJob(transition, refs[transition.FromTrackID], refs[transition.ToTrackID])
		if err == nil {
			err = m.queue.Submit(ctx, job)
		}
		if err != nil {
			m.failProject(ctx, project, "could not queue transition rendering: "+err.Error())
			return 0, err
		}
	}
	m.loggerFor(ctx).Info("transition rendering queued",
		logging.Int("transitions", len(pending)),
		logging.String(logging.FieldEventType, "transitions_queued"),
	)
	return len(pending), nil
}

// trackRefs indexes the project's tracks as worker references.
func (m *Manager) trackRefs(ctx context.Context, projectID string) (map[string]jobs.TrackRef, error) {
	tracks, analyses, err := m.ownedTracks(ctx, pipeline.EntityProject, projectID)
	if err != nil {
		return nil, err
	}
	refs := make(map[string]jobs.TrackRef, len(tracks))
	for _, track := range tracks {
		refs[track.ID] = jobs.TrackRefFor(track, analyses[track.ID])
	}
	return refs, nil
}

// GenerateMix submits the final assembly job for the current order.
func (m *Manager) GenerateMix(ctx context.Context, projectID string) (string, error) {
	ctx = actionContext(ctx, pipeline.EntityProject, projectID, jobs.TypeMix)
	unlock := m.lock(pipeline.EntityProject, projectID)
	defer unlock()

	project, err := m.loadProject(ctx, projectID)
	if err != nil {
		return "", err
	}
	refs, err := m.trackRefs(ctx, project.ID)
	if err != nil {
		return "", err
	}
	ordered := make([]jobs.TrackRef, 0, len(project.OrderedTracks))
	for _, id := range project.OrderedTracks {
		if ref, ok := refs[id]; ok {
			ordered = append(ordered, ref)
		}
	}
	transitions, err := m.store.Transitions(ctx, project.ID)
	if err != nil {
		return "", err
	}
	job, err := jobs.MixJob(project.ID, ordered, transitions)
	if err != nil {
		return "", err
	}
	if err := moveProject(project, pipeline.ProjectMixing, "generate mix"); err != nil {
		return "", err
	}
	project.ErrorMessage = ""
	if err := m.store.UpdateProject(ctx, project); err != nil {
		return "", err
	}
	m.publishProjectStatus(ctx, project.ID, project.Name, project.Status)
	if err := m.queue.Submit(ctx, job); err != nil {
		m.failProject(ctx, project, "could not queue mix: "+err.Error())
		return "", err
	}
	m.loggerFor(ctx).Info("mix queued",
		logging.String(logging.FieldJobID, job.ID),
		logging.Int("tracks", len(ordered)),
		logging.String(logging.FieldEventType, "mix_queued"),
	)
	return job.ID, nil
}

// GenerateDraftTransition submits the preview render for a draft whose
// slots are both analyzed.
func (m *Manager) GenerateDraftTransition(ctx context.Context, draftID string) (string, error) {
	ctx = actionContext(ctx, pipeline.EntityDraft, draftID, jobs.TypeDraftTransition)
	unlock := m.lock(pipeline.EntityDraft, draftID)
	defer unlock()

	draft, err := m.loadDraft(ctx, draftID)
	if err != nil {
		return "", err
	}
	a, b, analyses, err := m.draftSlots(ctx, draft.ID)
	if err != nil {
		return "", err
	}
	pair := m.draftPair(a, b, analyses)
	if pair == nil {
		return "", services.Wrap(services.ErrValidation, "workflow", "generate draft transition", "both slots need an analyzed track", nil)
	}
	job, err := jobs.DraftTransitionJob(draft.ID, jobs.TrackRefFor(a, analyses[a.ID]), jobs.TrackRefFor(b, analyses[b.ID]), pair)
	if err != nil {
		return "", err
	}
	if err := moveDraft(draft, pipeline.DraftGenerating, "generate draft transition"); err != nil {
		return "", err
	}
	if err := pipeline.TransitionMove(draft.TransitionStatus, pipeline.TransitionProcessing); err != nil {
		return "", services.Wrap(services.ErrConflict, "workflow", "generate draft transition", "preview is already rendering", err)
	}
	draft.TransitionStatus = pipeline.TransitionProcessing
	draft.TransitionError = ""
	draft.ErrorMessage = ""
	draft.Compatibility = pair
	if err := m.store.UpdateDraft(ctx, draft); err != nil {
		return "", err
	}
	m.publishDraftStatus(ctx, draft.ID, draft.Name, draft.Status, draft.TransitionStatus)
	if err := m.queue.Submit(ctx, job); err != nil {
		draft.TransitionStatus = pipeline.TransitionError
		draft.TransitionError = err.Error()
		m.failDraft(ctx, draft, "could not queue preview: "+err.Error())
		return "", err
	}
	m.loggerFor(ctx).Info("draft preview queued",
		logging.String(logging.FieldJobID, job.ID),
		logging.Int("score", pair.Score),
		logging.String(logging.FieldEventType, "draft_queued"),
	)
	return job.ID, nil
}

// ReorderManual scores an explicit order. Repeated IDs keep their first
// position; unknown or unanalyzed IDs are dropped by the recomputation.
func (m *Manager) ReorderManual(ctx context.Context, projectID string, order []string) (sequence.Result, error) {
	ctx = actionContext(ctx, pipeline.EntityProject, projectID, "")
	unlock := m.lock(pipeline.EntityProject, projectID)
	defer unlock()

	project, err := m.loadProject(ctx, projectID)
	if err != nil {
		return sequence.Result{}, err
	}
	if project.Status.IsBusy() {
		return sequence.Result{}, services.Wrap(services.ErrConflict, "workflow", "reorder", fmt.Sprintf("project is %s", strings.ToLower(string(project.Status))), nil)
	}
	return m.orderProject(ctx, project, dedupe(order))
}

// Resequence discards the current order and runs the greedy search again.
func (m *Manager) Resequence(ctx context.Context, projectID string) (sequence.Result, error) {
	ctx = actionContext(ctx, pipeline.EntityProject, projectID, "")
	unlock := m.lock(pipeline.EntityProject, projectID)
	defer unlock()

	project, err := m.loadProject(ctx, projectID)
	if err != nil {
		return sequence.Result{}, err
	}
	if project.Status.IsBusy() {
		return sequence.Result{}, services.Wrap(services.ErrConflict, "workflow", "resequence", fmt.Sprintf("project is %s", strings.ToLower(string(project.Status))), nil)
	}
	return m.orderProject(ctx, project, nil)
}

// RemoveTrack deletes a project track and rescores the remaining order.
func (m *Manager) RemoveTrack(ctx context.Context, projectID, trackID string) error {
	ctx = actionContext(ctx, pipeline.EntityProject, projectID, "")
	unlock := m.lock(pipeline.EntityProject, projectID)
	defer unlock()

	project, err := m.loadProject(ctx, projectID)
	if err != nil {
		return err
	}
	if project.Status.IsBusy() {
		return services.Wrap(services.ErrConflict, "workflow", "remove track", fmt.Sprintf("project is %s", strings.ToLower(string(project.Status))), nil)
	}
	track, err := m.store.GetTrack(ctx, trackID)
	if err != nil {
		return err
	}
	if track == nil || track.OwnerKind != pipeline.EntityProject || track.OwnerID != project.ID {
		return services.Wrap(services.ErrNotFound, "workflow", "remove track", fmt.Sprintf("track %s not found in project", trackID), nil)
	}
	if err := m.store.DeleteTrack(ctx, track.ID); err != nil {
		return err
	}
	m.loggerFor(ctx).Info("track removed",
		logging.String("track_id", track.ID),
		logging.String(logging.FieldEventType, "track_removed"),
	)

	remaining := make([]string, 0, len(project.OrderedTracks))
	for _, id := range project.OrderedTracks {
		if id != track.ID {
			remaining = append(remaining, id)
		}
	}
	if len(remaining) == len(project.OrderedTracks) {
		return nil
	}
	_, err = m.orderProject(ctx, project, remaining)
	return err
}

// SendChatMessage records the user's message and submits it with the
// project's context. The returned job ID also identifies the message.
func (m *Manager) SendChatMessage(ctx context.Context, projectID, message string) (string, error) {
	ctx = actionContext(ctx, pipeline.EntityProject, projectID, jobs.TypeChatReorder)
	unlock := m.lock(pipeline.EntityProject, projectID)
	defer unlock()

	project, err := m.loadProject(ctx, projectID)
	if err != nil {
		return "", err
	}
	key := pipeline.LockKey(pipeline.EntityProject, project.ID)
	history, err := m.chat.Recent(ctx, key, m.cfg.Chat.HistoryLimit)
	if err != nil {
		return "", err
	}
	tracks, analyses, err := m.ownedTracks(ctx, pipeline.EntityProject, project.ID)
	if err != nil {
		return "", err
	}
	summaries := make([]jobs.TrackSummary, 0, len(tracks))
	for _, track := range tracks {
		summary := jobs.TrackSummary{TrackID: track.ID, Title: track.Title}
		if analysis := analyses[track.ID]; analysis.Scorable() {
			summary.BPM = analysis.Core.BPM
			summary.Camelot = analysis.Core.Camelot
			summary.Energy = analysis.Core.Energy
		}
		summaries = append(summaries, summary)
	}

	job, err := jobs.ChatReorderJob(project.ID, message, summaries, project.OrderedTracks, history)
	if err != nil {
		return "", err
	}
	if _, err := m.chat.Append(ctx, key, chatlog.Message{
		ID:      job.ID,
		Role:    chatlog.RoleUser,
		Content: strings.TrimSpace(message),
		At:      time.Now().UTC(),
	}); err != nil {
		return "", err
	}
	if err := m.queue.Submit(ctx, job); err != nil {
		return "", err
	}
	m.loggerFor(ctx).Info("chat message queued",
		logging.String(logging.FieldJobID, job.ID),
		logging.Int("history", len(history)),
		logging.String(logging.FieldEventType, "chat_queued"),
	)
	return job.ID, nil
}

// ChatHistory returns the retained conversation for a project, oldest first.
func (m *Manager) ChatHistory(ctx context.Context, projectID string) ([]chatlog.Message, error) {
	return m.chat.Recent(ctx, pipeline.LockKey(pipeline.EntityProject, projectID), m.cfg.Chat.HistoryLimit)
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, raw := range ids {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
