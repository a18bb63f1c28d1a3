package workflow

import (
	"context"
	"time"

	"mixcraft/internal/chatlog"
	"mixcraft/internal/jobs"
	"mixcraft/internal/logging"
	"mixcraft/internal/notifications"
	"mixcraft/internal/pipeline"
	"mixcraft/internal/sequence"
	"mixcraft/internal/store"
)

func (m *Manager) staleResult(ctx context.Context, reason string) error {
	m.loggerFor(ctx).Info("stale result ignored",
		logging.String("reason", reason),
		logging.String(logging.FieldEventType, "stale_result"),
	)
	return nil
}

// ownedTrack loads the track a result refers to and confirms it still
// belongs to the result's entity.
func (m *Manager) ownedTrack(ctx context.Context, result jobs.Result) (*store.Track, error) {
	track, err := m.store.GetTrack(ctx, result.TrackID)
	if err != nil || track == nil {
		return nil, err
	}
	if track.OwnerKind != result.EntityKind || track.OwnerID != result.EntityID {
		return nil, nil
	}
	return track, nil
}

func (m *Manager) storeAnalysis(ctx context.Context, result jobs.Result) (bool, error) {
	track, err := m.ownedTrack(ctx, result)
	if err != nil {
		return false, err
	}
	if track == nil {
		return false, m.staleResult(ctx, "track no longer exists")
	}
	var body jobs.AnalyzeResult
	if err := result.Decode(&body); err != nil {
		return false, err
	}
	analysis := body.Analysis(track.ID)
	if err := m.store.UpsertAnalysis(ctx, analysis); err != nil {
		return false, err
	}
	if analysis.Core == nil {
		m.loggerFor(ctx).Warn("analysis is missing scoring fields",
			logging.String("track_id", track.ID),
			logging.String(logging.FieldEventType, "analysis_incomplete"),
			logging.String(logging.FieldImpact, "track is excluded from ordering"),
			logging.String(logging.FieldErrorHint, "check the analyzer output for bpm, camelot and energy"),
		)
	}
	return true, nil
}

func (m *Manager) handleProjectAnalysis(ctx context.Context, result jobs.Result) error {
	project, err := m.store.GetProject(ctx, result.EntityID)
	if err != nil {
		return err
	}
	if project == nil {
		return m.staleResult(ctx, "project no longer exists")
	}
	stored, err := m.storeAnalysis(ctx, result)
	if err != nil || !stored {
		return err
	}

	analyzed, total, err := m.store.AnalysisCounts(ctx, pipeline.EntityProject, project.ID)
	if err != nil {
		return err
	}
	m.publish(ctx, notifications.EventAnalysisProgress, pipeline.EntityProject, project.ID, notifications.Payload{
		"name":     project.Name,
		"analyzed": analyzed,
		"total":    total,
	})
	if project.Status != pipeline.ProjectAnalyzing || analyzed < total {
		return nil
	}
	_, err = m.orderProject(ctx, project, nil)
	return err
}

func (m *Manager) handleTransitionAudio(ctx context.Context, result jobs.Result) error {
	project, err := m.store.GetProject(ctx, result.EntityID)
	if err != nil {
		return err
	}
	if project == nil {
		return m.staleResult(ctx, "project no longer exists")
	}
	transition, err := m.store.GetTransition(ctx, result.TransitionID)
	if err != nil {
		return err
	}
	if transition == nil || transition.ProjectID != project.ID {
		return m.staleResult(ctx, "transition was replaced by a reorder")
	}
	var body jobs.TransitionAudioResult
	if err := result.Decode(&body); err != nil {
		return err
	}
	if _, err := m.store.SetTransitionAudio(ctx, transition.ID, pipeline.AudioCompleted, body.AudioFile, ""); err != nil {
		return err
	}
	return m.afterTransitionAudio(ctx, project, transition.ID, pipeline.AudioCompleted)
}

// failTransition scopes a render error to one transition. The project only
// leaves MIXING once nothing is outstanding.
func (m *Manager) failTransition(ctx context.Context, projectID, transitionID, message string) error {
	project, err := m.store.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	if project == nil {
		return m.staleResult(ctx, "project no longer exists")
	}
	transition, err := m.store.GetTransition(ctx, transitionID)
	if err != nil {
		return err
	}
	if transition == nil || transition.ProjectID != project.ID {
		return m.staleResult(ctx, "transition was replaced by a reorder")
	}
	if _, err := m.store.SetTransitionAudio(ctx, transition.ID, pipeline.AudioError, "", message); err != nil {
		return err
	}
	m.loggerFor(ctx).Warn("transition render failed",
		logging.String(logging.FieldTransitionID, transition.ID),
		logging.String("error_message", message),
		logging.String(logging.FieldEventType, "transition_failed"),
		logging.String(logging.FieldImpact, "the mix will fall back to a plain crossfade for this pair"),
		logging.String(logging.FieldErrorHint, "regenerate transitions to retry"),
	)
	return m.afterTransitionAudio(ctx, project, transition.ID, pipeline.AudioError)
}

func (m *Manager) afterTransitionAudio(ctx context.Context, project *store.Project, transitionID string, status pipeline.AudioStatus) error {
	counts, err := m.store.AudioCounts(ctx, project.ID)
	if err != nil {
		return err
	}
	m.publish(ctx, notifications.EventTransitionRendered, pipeline.EntityProject, project.ID, notifications.Payload{
		"name":          project.Name,
		"transition_id": transitionID,
		"audio_status":  string(status),
		"completed":     counts.Completed,
		"errored":       counts.Errored,
		"total":         counts.Total,
	})
	if project.Status != pipeline.ProjectMixing || counts.Outstanding() > 0 {
		return nil
	}
	project.Status = pipeline.ProjectReady
	if err := m.store.UpdateProject(ctx, project); err != nil {
		return err
	}
	m.loggerFor(ctx).Info("transition rendering finished",
		logging.Int("completed", counts.Completed),
		logging.Int("errored", counts.Errored),
		logging.String(logging.FieldEventType, "transitions_rendered"),
	)
	m.publishProjectStatus(ctx, project.ID, project.Name, project.Status)
	return nil
}

func (m *Manager) handleMix(ctx context.Context, result jobs.Result) error {
	project, err := m.store.GetProject(ctx, result.EntityID)
	if err != nil {
		return err
	}
	if project == nil {
		return m.staleResult(ctx, "project no longer exists")
	}
	var body jobs.MixResult
	if err := result.Decode(&body); err != nil {
		return err
	}

	target := pipeline.ProjectCompleted
	if body.OutputFile == "" {
		target = pipeline.ProjectReady
	}
	if project.Status != pipeline.ProjectMixing || !pipeline.CanMoveProject(project.Status, target) {
		return m.staleResult(ctx, "project is not mixing")
	}
	if err := m.store.ReplaceSegments(ctx, project.ID, body.Segments); err != nil {
		return err
	}

	project.Status = target
	project.OutputFile = body.OutputFile
	project.ErrorMessage = ""
	logger := m.loggerFor(ctx)
	if target == pipeline.ProjectReady {
		project.ErrorMessage = body.Error
		if project.ErrorMessage == "" {
			project.ErrorMessage = "mix finished without an output file"
		}
		logger.Warn("mix finished without output",
			logging.Int("segments", len(body.Segments)),
			logging.String("error_message", project.ErrorMessage),
			logging.String(logging.FieldEventType, "mix_partial"),
			logging.String(logging.FieldImpact, "rendered segments are kept and the mix can be retried"),
			logging.String(logging.FieldErrorHint, "regenerate the mix"),
		)
	} else {
		logger.Info("mix completed",
			logging.String("output_file", body.OutputFile),
			logging.Int("segments", len(body.Segments)),
			logging.String(logging.FieldEventType, "mix_completed"),
		)
	}
	if err := m.store.UpdateProject(ctx, project); err != nil {
		return err
	}
	m.publishProjectStatus(ctx, project.ID, project.Name, project.Status)
	m.publish(ctx, notifications.EventMixCompleted, pipeline.EntityProject, project.ID, notifications.Payload{
		"name":        project.Name,
		"output_file": body.OutputFile,
		"segments":    len(body.Segments),
		"error":       body.Error,
	})
	return nil
}

func (m *Manager) handleChatReorder(ctx context.Context, result jobs.Result) error {
	project, err := m.store.GetProject(ctx, result.EntityID)
	if err != nil {
		return err
	}
	if project == nil {
		return m.staleResult(ctx, "project no longer exists")
	}
	var body jobs.ChatReorderResult
	if err := result.Decode(&body); err != nil {
		return err
	}
	logger := m.loggerFor(ctx)

	reply := chatlog.Message{
		ID:      result.JobID + ":reply",
		Role:    chatlog.RoleAssistant,
		Content: body.Reply,
		At:      time.Now().UTC(),
	}
	if body.Reply != "" {
		if _, err := m.chat.Append(ctx, pipeline.LockKey(pipeline.EntityProject, project.ID), reply); err != nil {
			logger.Warn("chat history append failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "chat_history_failed"),
				logging.String(logging.FieldImpact, "the next message is sent without this reply as context"),
			)
		}
	}

	applied := false
	var ordered sequence.Result
	if len(body.Order) > 0 {
		ordered, applied, err = m.applySuggestedOrder(ctx, project, body.Order)
		if err != nil {
			return err
		}
	}

	fields := notifications.Payload{
		"name":    project.Name,
		"reply":   body.Reply,
		"applied": applied,
	}
	if applied {
		fields["order"] = ordered.Order
		fields["average_score"] = ordered.AverageScore
	}
	m.publish(ctx, notifications.EventChatReply, pipeline.EntityProject, project.ID, fields)
	return nil
}

// applySuggestedOrder validates an assistant-proposed order against the
// project's tracks. Rejected or unapplicable suggestions leave the project
// untouched.
func (m *Manager) applySuggestedOrder(ctx context.Context, project *store.Project, suggested []string) (sequence.Result, bool, error) {
	logger := m.loggerFor(ctx)
	tracks, err := m.store.Tracks(ctx, pipeline.EntityProject, project.ID)
	if err != nil {
		return sequence.Result{}, false, err
	}
	validated, err := sequence.ValidateSuggestion(suggested, ownedOrder(project.OrderedTracks, tracks))
	if err != nil {
		logger.Warn("suggested order rejected",
			logging.Error(err),
			logging.Int("suggested", len(suggested)),
			logging.String(logging.FieldEventType, "suggestion_rejected"),
			logging.String(logging.FieldImpact, "current order kept"),
		)
		return sequence.Result{}, false, nil
	}
	if project.Status.IsBusy() {
		logger.Info("suggested order skipped while project is busy",
			logging.String("status", string(project.Status)),
			logging.String(logging.FieldEventType, "suggestion_skipped"),
		)
		return sequence.Result{}, false, nil
	}
	ordered, err := m.orderProject(ctx, project, validated)
	if err != nil {
		return sequence.Result{}, false, err
	}
	return ordered, true, nil
}

// ownedOrder lists the current order followed by the remaining tracks in
// upload order.
func ownedOrder(order []string, tracks []*store.Track) []string {
	seen := make(map[string]struct{}, len(order))
	out := make([]string, 0, len(tracks))
	for _, id := range order {
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, track := range tracks {
		if _, ok := seen[track.ID]; ok {
			continue
		}
		out = append(out, track.ID)
	}
	return out
}
