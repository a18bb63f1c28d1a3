package workflow

import (
	"context"
	"log/slog"

	"mixcraft/internal/jobs"
	"mixcraft/internal/logging"
	"mixcraft/internal/pipeline"
	"mixcraft/internal/services"
)

// entityContext stamps the entity into ctx so logs carry project_id or
// draft_id.
func entityContext(ctx context.Context, kind pipeline.EntityKind, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return services.WithEntity(ctx, string(kind), id)
}

// resultContext stamps the entity and job of a worker result.
func resultContext(ctx context.Context, result jobs.Result) context.Context {
	ctx = entityContext(ctx, result.EntityKind, result.EntityID)
	return services.WithJob(ctx, string(result.Type), result.JobID)
}

func (m *Manager) loggerFor(ctx context.Context) *slog.Logger {
	return logging.WithContext(ctx, m.logger)
}
