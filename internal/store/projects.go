package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"mixcraft/internal/pipeline"
	"mixcraft/internal/services"
)

const projectColumns = "id, name, status, ordered_tracks, average_mix_score, output_file, error_message, created_at, updated_at"

// CreateProject inserts a new project in CREATED.
func (s *Store) CreateProject(ctx context.Context, name string) (*Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, services.Wrap(services.ErrValidation, "store", "create project", "name is required", nil)
	}
	now := timestamp(time.Now())
	id := uuid.NewString()
	if _, err := s.execWithRetry(ctx,
		`INSERT INTO projects (id, name, status, ordered_tracks, average_mix_score, created_at, updated_at)
         VALUES (?, ?, ?, '[]', 0, ?, ?)`,
		id, name, pipeline.ProjectCreated, now, now,
	); err != nil {
		return nil, fmt.Errorf("insert project: %w", err)
	}
	return s.GetProject(ctx, id)
}

// GetProject fetches a project by identifier. It returns nil when absent.
func (s *Store) GetProject(ctx context.Context, id string) (*Project, error) {
	return getProject(ctx, s.db, id)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getProject(ctx context.Context, q queryRower, id string) (*Project, error) {
	row := q.QueryRowContext(ensureContext(ctx), `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	project, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return project, nil
}

// ListProjects returns projects, optionally filtered by status, newest first.
func (s *Store) ListProjects(ctx context.Context, statuses ...pipeline.ProjectStatus) ([]*Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects`
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status
	}
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

// UpdateProject persists every mutable project field.
func (s *Store) UpdateProject(ctx context.Context, project *Project) error {
	if project == nil {
		return errors.New("project is nil")
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return updateProject(ctx, tx, project)
	})
}

func updateProject(ctx context.Context, tx *sql.Tx, project *Project) error {
	order := project.OrderedTracks
	if order == nil {
		order = []string{}
	}
	orderJSON, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("marshal ordered tracks: %w", err)
	}
	project.UpdatedAt = time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`UPDATE projects
         SET name = ?, status = ?, ordered_tracks = ?, average_mix_score = ?,
             output_file = ?, error_message = ?, updated_at = ?
         WHERE id = ?`,
		project.Name,
		project.Status,
		string(orderJSON),
		project.AverageMixScore,
		nullableString(project.OutputFile),
		nullableString(project.ErrorMessage),
		timestamp(project.UpdatedAt),
		project.ID,
	)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return services.Wrap(services.ErrNotFound, "store", "update project", project.ID, nil)
	}
	return nil
}

// DeleteProject removes a project with its tracks, analyses, transitions, and segments.
func (s *Store) DeleteProject(ctx context.Context, id string) (bool, error) {
	var removed bool
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := deleteOwnedTracks(ctx, tx, pipeline.EntityProject, id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete project: %w", err)
		}
		n, _ := res.RowsAffected()
		removed = n > 0
		return nil
	})
	return removed, err
}

func scanProject(scanner rowScanner) (*Project, error) {
	var (
		project    Project
		status     string
		orderRaw   sql.NullString
		outputFile sql.NullString
		errMessage sql.NullString
		createdRaw string
		updatedRaw string
	)
	if err := scanner.Scan(
		&project.ID,
		&project.Name,
		&status,
		&orderRaw,
		&project.AverageMixScore,
		&outputFile,
		&errMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	project.Status = pipeline.ProjectStatus(status)
	project.OutputFile = outputFile.String
	project.ErrorMessage = errMessage.String
	project.CreatedAt = parseTimeOrZero(createdRaw)
	project.UpdatedAt = parseTimeOrZero(updatedRaw)
	if orderRaw.Valid && orderRaw.String != "" {
		if err := json.Unmarshal([]byte(orderRaw.String), &project.OrderedTracks); err != nil {
			return nil, fmt.Errorf("decode ordered tracks for %s: %w", project.ID, err)
		}
	}
	return &project, nil
}
