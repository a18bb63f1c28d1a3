package logging

import (
	"context"
	"log/slog"

	"mixcraft/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldProjectID identifies the project a line belongs to.
	FieldProjectID = "project_id"
	// FieldDraftID identifies the draft a line belongs to.
	FieldDraftID = "draft_id"
	// FieldEntityKind names the entity kind (project or draft) when the ID field is generic.
	FieldEntityKind = "entity_kind"
	// FieldJobType is the job or result type being handled.
	FieldJobType = "job_type"
	// FieldJobID is the job identifier assigned at submission.
	FieldJobID = "job_id"
	// FieldTransitionID identifies a single scored transition.
	FieldTransitionID = "transition_id"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType classifies a warning or error for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step to the operator.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if kind, id, ok := services.EntityFromContext(ctx); ok {
		switch kind {
		case "project":
			fields = append(fields, slog.String(FieldProjectID, id))
		case "draft":
			fields = append(fields, slog.String(FieldDraftID, id))
		default:
			fields = append(fields, slog.String(FieldEntityKind, kind), slog.String("entity_id", id))
		}
	}
	if jobType, ok := services.JobTypeFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldJobType, jobType))
	}
	if jobID, ok := services.JobIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldJobID, jobID))
	}
	if rid, ok := services.CorrelationIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
