package workflow

import (
	"context"

	"mixcraft/internal/jobs"
	"mixcraft/internal/logging"
	"mixcraft/internal/pipeline"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running       bool
	LastError     string
	LastResult    *jobs.Result
	Processed     int
	ProjectCounts map[pipeline.ProjectStatus]int
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{Running: m.running, Processed: m.processed}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	if m.lastResult != nil {
		copy := *m.lastResult
		summary.LastResult = &copy
	}
	m.mu.RUnlock()

	projects, err := m.store.ListProjects(ctx)
	if err != nil {
		m.logger.Warn("failed to read project stats", logging.Error(err))
		return summary
	}
	summary.ProjectCounts = make(map[pipeline.ProjectStatus]int)
	for _, project := range projects {
		summary.ProjectCounts[project.Status]++
	}
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) recordResult(result jobs.Result, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := result
	m.lastResult = &copy
	m.processed++
	if err != nil {
		m.lastErr = err
	}
}
