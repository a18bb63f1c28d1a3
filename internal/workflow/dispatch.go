package workflow

import (
	"context"
	"fmt"
	"strings"

	"mixcraft/internal/jobs"
	"mixcraft/internal/logging"
	"mixcraft/internal/notifications"
	"mixcraft/internal/pipeline"
	"mixcraft/internal/services"
)

// Dispatch applies one worker result. Every handler re-reads persisted
// state inside the entity's critical section, so applying the same result
// twice leaves the same state as applying it once. Results addressed to
// entities that no longer exist are logged and ignored.
func (m *Manager) Dispatch(ctx context.Context, result jobs.Result) error {
	if err := result.Validate(); err != nil {
		return err
	}
	ctx = resultContext(ctx, result)

	if result.Type == jobs.TypeProgress {
		return m.handleProgress(ctx, result)
	}

	unlock := m.lock(result.EntityKind, result.EntityID)
	defer unlock()

	if result.Failed() {
		return m.handleFailure(ctx, result)
	}

	switch result.EntityKind {
	case pipeline.EntityProject:
		switch result.Type {
		case jobs.TypeAnalyze:
			return m.handleProjectAnalysis(ctx, result)
		case jobs.TypeTransitionAudio:
			return m.handleTransitionAudio(ctx, result)
		case jobs.TypeMix:
			return m.handleMix(ctx, result)
		case jobs.TypeChatReorder:
			return m.handleChatReorder(ctx, result)
		}
	case pipeline.EntityDraft:
		switch result.Type {
		case jobs.TypeAnalyze:
			return m.handleDraftAnalysis(ctx, result)
		case jobs.TypeDraftTransition:
			return m.handleDraftTransition(ctx, result)
		}
	}
	return services.Wrap(services.ErrValidation, "workflow", "dispatch",
		fmt.Sprintf("%s results do not apply to a %s", result.Type, result.EntityKind), nil)
}

// handleFailure applies a worker-reported error. A transition render error
// is scoped to that transition; every other error fails the owning entity.
func (m *Manager) handleFailure(ctx context.Context, result jobs.Result) error {
	message := strings.TrimSpace(result.Error)
	logger := m.loggerFor(ctx)

	if result.Type == jobs.TypeTransitionAudio && result.TransitionID != "" {
		return m.failTransition(ctx, result.EntityID, result.TransitionID, message)
	}

	switch result.EntityKind {
	case pipeline.EntityProject:
		project, err := m.store.GetProject(ctx, result.EntityID)
		if err != nil {
			return err
		}
		if project == nil {
			logger.Info("error result for missing project ignored", logging.String(logging.FieldEventType, "stale_result"))
			return nil
		}
		m.failProject(ctx, project, message)
	case pipeline.EntityDraft:
		draft, err := m.store.GetDraft(ctx, result.EntityID)
		if err != nil {
			return err
		}
		if draft == nil {
			logger.Info("error result for missing draft ignored", logging.String(logging.FieldEventType, "stale_result"))
			return nil
		}
		if result.Type == jobs.TypeDraftTransition {
			draft.TransitionStatus = pipeline.TransitionError
			draft.TransitionError = message
		}
		m.failDraft(ctx, draft, message)
	}
	return nil
}

// handleProgress forwards progress to subscribers. It never touches state,
// so it runs outside the entity lock.
func (m *Manager) handleProgress(ctx context.Context, result jobs.Result) error {
	var progress jobs.ProgressResult
	if result.Failed() {
		progress = jobs.ProgressResult{Percent: -1, Error: result.Error}
	} else if err := result.Decode(&progress); err != nil {
		return err
	}
	key := pipeline.LockKey(result.EntityKind, result.EntityID)
	if m.sampler.ShouldLog(key, progress.Stage, progress.Percent) {
		attrs := []logging.Attr{
			logging.String("stage", progress.Stage),
			logging.Float64("percent", progress.Percent),
			logging.String(logging.FieldEventType, "progress"),
		}
		if progress.Step != "" {
			attrs = append(attrs, logging.String("step", progress.Step))
		}
		if progress.Error != "" {
			attrs = append(attrs, logging.String("progress_error", progress.Error))
		}
		m.loggerFor(ctx).Info("worker progress", logging.Args(attrs...)...)
	}
	if progress.Percent >= 100 {
		m.sampler.Forget(key)
	}

	fields := notifications.Payload{
		"stage":   progress.Stage,
		"percent": progress.Percent,
	}
	if progress.Step != "" {
		fields["step"] = progress.Step
	}
	if progress.Error != "" {
		fields["error"] = progress.Error
	}
	m.publish(ctx, notifications.EventProgress, result.EntityKind, result.EntityID, fields)
	return nil
}
