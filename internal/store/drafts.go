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

	"mixcraft/internal/compat"
	"mixcraft/internal/pipeline"
	"mixcraft/internal/services"
)

const draftColumns = "id, name, status, transition_status, compatibility_json, transition_file, transition_meta, cut_points, error_message, transition_error, created_at, updated_at"

// CreateDraft inserts a new draft in CREATED with a PENDING transition.
func (s *Store) CreateDraft(ctx context.Context, name string) (*Draft, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, services.Wrap(services.ErrValidation, "store", "create draft", "name is required", nil)
	}
	now := timestamp(time.Now())
	id := uuid.NewString()
	if _, err := s.execWithRetry(ctx,
		`INSERT INTO drafts (id, name, status, transition_status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		id, name, pipeline.DraftCreated, pipeline.TransitionPending, now, now,
	); err != nil {
		return nil, fmt.Errorf("insert draft: %w", err)
	}
	return s.GetDraft(ctx, id)
}

// GetDraft fetches a draft by identifier. It returns nil when absent.
func (s *Store) GetDraft(ctx context.Context, id string) (*Draft, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+draftColumns+` FROM drafts WHERE id = ?`, id)
	draft, err := scanDraft(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get draft: %w", err)
	}
	return draft, nil
}

// ListDrafts returns every draft, newest first.
func (s *Store) ListDrafts(ctx context.Context) ([]*Draft, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT `+draftColumns+` FROM drafts ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	defer rows.Close()

	var drafts []*Draft
	for rows.Next() {
		draft, err := scanDraft(rows)
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, draft)
	}
	return drafts, rows.Err()
}

// UpdateDraft persists every mutable draft field.
func (s *Store) UpdateDraft(ctx context.Context, draft *Draft) error {
	if draft == nil {
		return errors.New("draft is nil")
	}
	var (
		score      any
		compatJSON any
	)
	if draft.Compatibility != nil {
		data, err := json.Marshal(draft.Compatibility)
		if err != nil {
			return fmt.Errorf("marshal compatibility: %w", err)
		}
		score = draft.Compatibility.Score
		compatJSON = string(data)
	}
	draft.UpdatedAt = time.Now().UTC()
	res, err := s.execWithRetry(ctx,
		`UPDATE drafts
         SET name = ?, status = ?, transition_status = ?, compatibility_score = ?, compatibility_json = ?,
             transition_file = ?, transition_meta = ?, cut_points = ?, error_message = ?,
             transition_error = ?, updated_at = ?
         WHERE id = ?`,
		draft.Name,
		draft.Status,
		draft.TransitionStatus,
		score,
		compatJSON,
		nullableString(draft.TransitionFile),
		nullableJSON(draft.TransitionMeta),
		nullableJSON(draft.CutPoints),
		nullableString(draft.ErrorMessage),
		nullableString(draft.TransitionError),
		timestamp(draft.UpdatedAt),
		draft.ID,
	)
	if err != nil {
		return fmt.Errorf("update draft: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return services.Wrap(services.ErrNotFound, "store", "update draft", draft.ID, nil)
	}
	return nil
}

// DeleteDraft removes a draft with its tracks and analyses.
func (s *Store) DeleteDraft(ctx context.Context, id string) (bool, error) {
	var removed bool
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := deleteOwnedTracks(ctx, tx, pipeline.EntityDraft, id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM drafts WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete draft: %w", err)
		}
		n, _ := res.RowsAffected()
		removed = n > 0
		return nil
	})
	return removed, err
}

func scanDraft(scanner rowScanner) (*Draft, error) {
	var (
		draft           Draft
		status          string
		transition      string
		compatJSON      sql.NullString
		transitionFile  sql.NullString
		transitionMeta  sql.NullString
		cutPoints       sql.NullString
		errMessage      sql.NullString
		transitionError sql.NullString
		createdRaw      string
		updatedRaw      string
	)
	if err := scanner.Scan(
		&draft.ID,
		&draft.Name,
		&status,
		&transition,
		&compatJSON,
		&transitionFile,
		&transitionMeta,
		&cutPoints,
		&errMessage,
		&transitionError,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	draft.Status = pipeline.DraftStatus(status)
	draft.TransitionStatus = pipeline.TransitionStatus(transition)
	draft.TransitionFile = transitionFile.String
	draft.TransitionMeta = rawJSON(transitionMeta)
	draft.CutPoints = rawJSON(cutPoints)
	draft.ErrorMessage = errMessage.String
	draft.TransitionError = transitionError.String
	draft.CreatedAt = parseTimeOrZero(createdRaw)
	draft.UpdatedAt = parseTimeOrZero(updatedRaw)
	if compatJSON.Valid && compatJSON.String != "" {
		var pair compat.Pair
		if err := json.Unmarshal([]byte(compatJSON.String), &pair); err != nil {
			return nil, fmt.Errorf("decode compatibility for %s: %w", draft.ID, err)
		}
		draft.Compatibility = &pair
	}
	return &draft, nil
}
