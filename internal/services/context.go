package services

import "context"

type contextKey string

const (
	entityKindKey    contextKey = "entity_kind"
	entityIDKey      contextKey = "entity_id"
	jobTypeKey       contextKey = "job_type"
	jobIDKey         contextKey = "job_id"
	correlationIDKey contextKey = "correlation_id"
)

// WithEntity annotates context with the project or draft being processed.
func WithEntity(ctx context.Context, kind, id string) context.Context {
	if kind == "" || id == "" {
		return ctx
	}
	ctx = context.WithValue(ctx, entityKindKey, kind)
	return context.WithValue(ctx, entityIDKey, id)
}

// EntityFromContext returns the entity kind and ID if present.
func EntityFromContext(ctx context.Context) (kind, id string, ok bool) {
	kind, _ = ctx.Value(entityKindKey).(string)
	id, _ = ctx.Value(entityIDKey).(string)
	if kind == "" || id == "" {
		return "", "", false
	}
	return kind, id, true
}

// WithJob annotates context with the job type and identifier.
func WithJob(ctx context.Context, jobType, jobID string) context.Context {
	if jobType != "" {
		ctx = context.WithValue(ctx, jobTypeKey, jobType)
	}
	if jobID != "" {
		ctx = context.WithValue(ctx, jobIDKey, jobID)
	}
	return ctx
}

// JobTypeFromContext returns the job type if present.
func JobTypeFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(jobTypeKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// JobIDFromContext returns the job identifier if present.
func JobIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(jobIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithCorrelationID annotates context with a correlation identifier.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationIDFromContext extracts the correlation identifier if present.
func CorrelationIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(correlationIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
