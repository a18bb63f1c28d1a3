package workflow

import (
	"context"
	"slices"

	"mixcraft/internal/logging"
	"mixcraft/internal/notifications"
	"mixcraft/internal/pipeline"
	"mixcraft/internal/sequence"
	"mixcraft/internal/services"
	"mixcraft/internal/store"
)

func (m *Manager) ownedTracks(ctx context.Context, kind pipeline.EntityKind, ownerID string) ([]*store.Track, map[string]*store.Analysis, error) {
	tracks, err := m.store.Tracks(ctx, kind, ownerID)
	if err != nil {
		return nil, nil, err
	}
	analyses, err := m.store.Analyses(ctx, kind, ownerID)
	if err != nil {
		return nil, nil, err
	}
	return tracks, analyses, nil
}

// sequenceTracks pairs tracks with their core analysis. Tracks without a
// scorable analysis keep zero features so the sequencer excludes them.
func sequenceTracks(tracks []*store.Track, analyses map[string]*store.Analysis) []sequence.Track {
	out := make([]sequence.Track, 0, len(tracks))
	for _, track := range tracks {
		candidate := sequence.Track{ID: track.ID}
		if analysis := analyses[track.ID]; analysis.Scorable() {
			candidate.Features = *analysis.Core
		}
		out = append(out, candidate)
	}
	return out
}

func storeTransitions(projectID string, result sequence.Result) []store.Transition {
	out := make([]store.Transition, 0, len(result.Transitions))
	for _, t := range result.Transitions {
		out = append(out, store.Transition{
			ID:               sequence.TransitionID(projectID, t),
			ProjectID:        projectID,
			Position:         t.Position,
			FromTrackID:      t.FromTrackID,
			ToTrackID:        t.ToTrackID,
			Score:            t.Pair.Score,
			HarmonicScore:    t.Pair.Harmonic.Score,
			BPMScore:         t.Pair.Tempo.Score,
			EnergyScore:      t.Pair.Energy.Score,
			Label:            t.Pair.Harmonic.Type,
			BPMDifference:    t.Pair.Tempo.Difference,
			EnergyDifference: t.Pair.Energy.Difference,
			AudioStatus:      pipeline.AudioPending,
		})
	}
	return out
}

// recompute replaces the project's order and transitions with a fresh
// computation over its current analyzed tracks and leaves it READY. A nil
// order runs the greedy search; otherwise the supplied order is scored as
// given. The caller must hold the project's lock.
func (m *Manager) recompute(ctx context.Context, project *store.Project, order []string) (sequence.Result, error) {
	tracks, analyses, err := m.ownedTracks(ctx, pipeline.EntityProject, project.ID)
	if err != nil {
		return sequence.Result{}, err
	}
	candidates := sequenceTracks(tracks, analyses)

	var result sequence.Result
	if order == nil {
		result = sequence.Build(candidates, m.mixProfile)
	} else {
		result = sequence.ForOrder(order, candidates, m.mixProfile)
	}

	if !slices.Equal(project.OrderedTracks, result.Order) {
		// The rendered mix no longer matches the order.
		project.OutputFile = ""
	}
	project.OrderedTracks = result.Order
	project.AverageMixScore = result.AverageScore
	project.Status = pipeline.ProjectReady
	project.ErrorMessage = ""
	if err := m.store.ReplaceOrdering(ctx, project, storeTransitions(project.ID, result)); err != nil {
		return result, err
	}

	m.loggerFor(ctx).Info("mix order recomputed",
		logging.Int("tracks", len(result.Order)),
		logging.Int("transitions", len(result.Transitions)),
		logging.Int("average_score", result.AverageScore),
		logging.Int("excluded", len(result.Excluded)),
		logging.Bool("explicit_order", order != nil),
		logging.String(logging.FieldEventType, "order_recomputed"),
	)
	m.publish(ctx, notifications.EventOrderReady, pipeline.EntityProject, project.ID, notifications.Payload{
		"name":          project.Name,
		"order":         result.Order,
		"average_score": result.AverageScore,
		"excluded":      result.Excluded,
	})
	return result, nil
}

// orderProject walks the project through ORDERING to READY around a
// recomputation. A persistence failure marks the project FAILED.
func (m *Manager) orderProject(ctx context.Context, project *store.Project, order []string) (sequence.Result, error) {
	if err := pipeline.ProjectMove(project.Status, pipeline.ProjectOrdering); err != nil {
		return sequence.Result{}, services.Wrap(services.ErrConflict, "workflow", "order project", "project cannot be reordered now", err)
	}
	project.Status = pipeline.ProjectOrdering
	if err := m.store.UpdateProject(ctx, project); err != nil {
		return sequence.Result{}, err
	}
	m.publishProjectStatus(ctx, project.ID, project.Name, project.Status)

	result, err := m.recompute(ctx, project, order)
	if err != nil {
		m.failProject(ctx, project, "ordering failed: "+err.Error())
		return result, err
	}
	m.publishProjectStatus(ctx, project.ID, project.Name, project.Status)
	return result, nil
}

// failProject records a top-level failure.
func (m *Manager) failProject(ctx context.Context, project *store.Project, message string) {
	project.Status = pipeline.ProjectFailed
	project.ErrorMessage = message
	logger := m.loggerFor(ctx)
	logger.Error("project failed",
		logging.String("error_message", message),
		logging.String(logging.FieldEventType, "project_failed"),
		logging.String(logging.FieldErrorHint, "inspect the worker logs for this job"),
		logging.Alert("project_failed"),
	)
	if err := m.store.UpdateProject(ctx, project); err != nil {
		logger.Error("failed to persist project failure", logging.Error(err))
	}
	m.publishProjectStatus(ctx, project.ID, project.Name, project.Status)
	m.publish(ctx, notifications.EventError, pipeline.EntityProject, project.ID, notifications.Payload{
		"name":  project.Name,
		"stage": stageFromContext(ctx),
		"error": message,
	})
}

// failDraft records a top-level draft failure.
func (m *Manager) failDraft(ctx context.Context, draft *store.Draft, message string) {
	draft.Status = pipeline.DraftFailed
	draft.ErrorMessage = message
	logger := m.loggerFor(ctx)
	logger.Error("draft failed",
		logging.String("error_message", message),
		logging.String(logging.FieldEventType, "draft_failed"),
		logging.String(logging.FieldErrorHint, "inspect the worker logs for this job"),
		logging.Alert("draft_failed"),
	)
	if err := m.store.UpdateDraft(ctx, draft); err != nil {
		logger.Error("failed to persist draft failure", logging.Error(err))
	}
	m.publishDraftStatus(ctx, draft.ID, draft.Name, draft.Status, draft.TransitionStatus)
	m.publish(ctx, notifications.EventError, pipeline.EntityDraft, draft.ID, notifications.Payload{
		"name":  draft.Name,
		"stage": stageFromContext(ctx),
		"error": message,
	})
}

func stageFromContext(ctx context.Context) string {
	if stage, ok := services.JobTypeFromContext(ctx); ok {
		return stage
	}
	return ""
}
