package workflow

import (
	"context"
	"errors"

	"mixcraft/internal/logging"
	"mixcraft/internal/notifications"
	"mixcraft/internal/pipeline"
)

// publish sends an event addressed to an entity. Notification failures are
// logged and never affect pipeline state.
func (m *Manager) publish(ctx context.Context, event notifications.Event, kind pipeline.EntityKind, id string, fields notifications.Payload) {
	if m.notifier == nil {
		return
	}
	payload := notifications.ForEntity(kind, id)
	for key, value := range fields {
		payload[key] = value
	}
	if err := m.notifier.Publish(ctx, event, payload); err != nil {
		logger := m.loggerFor(ctx)
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, could not send notification", logging.String("event", string(event)))
			return
		}
		logger.Debug("notification failed", logging.String("event", string(event)), logging.Error(err))
	}
}

func (m *Manager) publishProjectStatus(ctx context.Context, projectID, name string, status pipeline.ProjectStatus) {
	m.publish(ctx, notifications.EventStatusChanged, pipeline.EntityProject, projectID, notifications.Payload{
		"name":   name,
		"status": string(status),
	})
}

func (m *Manager) publishDraftStatus(ctx context.Context, draftID, name string, status pipeline.DraftStatus, transition pipeline.TransitionStatus) {
	m.publish(ctx, notifications.EventStatusChanged, pipeline.EntityDraft, draftID, notifications.Payload{
		"name":              name,
		"status":            string(status),
		"transition_status": string(transition),
	})
}
