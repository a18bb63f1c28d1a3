package workflow

import (
	"context"

	"mixcraft/internal/compat"
	"mixcraft/internal/jobs"
	"mixcraft/internal/logging"
	"mixcraft/internal/notifications"
	"mixcraft/internal/pipeline"
	"mixcraft/internal/store"
)

// draftSlots returns the tracks in slots A and B with their analyses.
func (m *Manager) draftSlots(ctx context.Context, draftID string) (a, b *store.Track, analyses map[string]*store.Analysis, err error) {
	tracks, analyses, err := m.ownedTracks(ctx, pipeline.EntityDraft, draftID)
	if err != nil {
		return nil, nil, nil, err
	}
	for _, track := range tracks {
		switch track.Slot {
		case store.SlotA:
			a = track
		case store.SlotB:
			b = track
		}
	}
	return a, b, analyses, nil
}

// draftPair scores slot A into slot B, or returns nil when either slot is
// empty or unscorable.
func (m *Manager) draftPair(a, b *store.Track, analyses map[string]*store.Analysis) *compat.Pair {
	if a == nil || b == nil {
		return nil
	}
	left, right := analyses[a.ID], analyses[b.ID]
	if !left.Scorable() || !right.Scorable() {
		return nil
	}
	pair := compat.Score(*left.Core, *right.Core, m.draftProfile)
	return &pair
}

func (m *Manager) handleDraftAnalysis(ctx context.Context, result jobs.Result) error {
	draft, err := m.store.GetDraft(ctx, result.EntityID)
	if err != nil {
		return err
	}
	if draft == nil {
		return m.staleResult(ctx, "draft no longer exists")
	}
	stored, err := m.storeAnalysis(ctx, result)
	if err != nil || !stored {
		return err
	}

	analyzed, total, err := m.store.AnalysisCounts(ctx, pipeline.EntityDraft, draft.ID)
	if err != nil {
		return err
	}
	m.publish(ctx, notifications.EventAnalysisProgress, pipeline.EntityDraft, draft.ID, notifications.Payload{
		"name":     draft.Name,
		"analyzed": analyzed,
		"total":    total,
	})
	if draft.Status != pipeline.DraftAnalyzing || analyzed < total {
		return nil
	}

	a, b, analyses, err := m.draftSlots(ctx, draft.ID)
	if err != nil {
		return err
	}
	draft.Compatibility = m.draftPair(a, b, analyses)
	draft.Status = pipeline.DraftReady
	draft.ErrorMessage = ""
	if err := m.store.UpdateDraft(ctx, draft); err != nil {
		return err
	}
	attrs := []logging.Attr{
		logging.Int("tracks", total),
		logging.String(logging.FieldEventType, "draft_analyzed"),
	}
	if draft.Compatibility != nil {
		attrs = append(attrs,
			logging.Int("score", draft.Compatibility.Score),
			logging.String("harmonic", draft.Compatibility.Harmonic.Type),
		)
	}
	m.loggerFor(ctx).Info("draft analysis complete", logging.Args(attrs...)...)
	m.publishDraftStatus(ctx, draft.ID, draft.Name, draft.Status, draft.TransitionStatus)
	return nil
}

func (m *Manager) handleDraftTransition(ctx context.Context, result jobs.Result) error {
	draft, err := m.store.GetDraft(ctx, result.EntityID)
	if err != nil {
		return err
	}
	if draft == nil {
		return m.staleResult(ctx, "draft no longer exists")
	}
	if draft.Status != pipeline.DraftGenerating || !pipeline.CanMoveDraft(draft.Status, pipeline.DraftCompleted) {
		return m.staleResult(ctx, "draft is not generating")
	}
	var body jobs.DraftTransitionResult
	if err := result.Decode(&body); err != nil {
		return err
	}

	draft.TransitionFile = body.TransitionFile
	draft.TransitionMeta = body.Meta
	draft.CutPoints = body.CutPoints
	draft.TransitionStatus = pipeline.TransitionCompleted
	draft.TransitionError = ""
	draft.Status = pipeline.DraftCompleted
	draft.ErrorMessage = ""
	if err := m.store.UpdateDraft(ctx, draft); err != nil {
		return err
	}

	fields := notifications.Payload{
		"name":            draft.Name,
		"transition_file": draft.TransitionFile,
	}
	if draft.Compatibility != nil {
		fields["score"] = draft.Compatibility.Score
	}
	m.loggerFor(ctx).Info("draft preview rendered",
		logging.String("transition_file", draft.TransitionFile),
		logging.String(logging.FieldEventType, "draft_completed"),
	)
	m.publishDraftStatus(ctx, draft.ID, draft.Name, draft.Status, draft.TransitionStatus)
	m.publish(ctx, notifications.EventDraftCompleted, pipeline.EntityDraft, draft.ID, fields)
	return nil
}
