package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"mixcraft/internal/pipeline"
)

const transitionColumns = "id, project_id, position, from_track_id, to_track_id, score, harmonic_score, bpm_score, energy_score, label, bpm_difference, energy_difference, audio_status, audio_file, audio_error, updated_at"

// ReplaceOrdering persists a recomputed order in one transaction: the project
// row (order, average, status) is updated and the project's transitions are
// deleted and reinserted. Rows whose ID survives the recomputation keep their
// rendered audio state.
func (s *Store) ReplaceOrdering(ctx context.Context, project *Project, transitions []Transition) error {
	if project == nil {
		return errors.New("project is nil")
	}
	ctx = ensureContext(ctx)
	return s.inTx(ctx, func(tx *sql.Tx) error {
		previous, err := audioStates(ctx, tx, project.ID)
		if err != nil {
			return err
		}
		if err := updateProject(ctx, tx, project); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM transitions WHERE project_id = ?`, project.ID); err != nil {
			return fmt.Errorf("delete transitions: %w", err)
		}
		now := time.Now().UTC()
		for i := range transitions {
			t := &transitions[i]
			t.ProjectID = project.ID
			t.UpdatedAt = now
			if t.AudioStatus == "" {
				t.AudioStatus = pipeline.AudioPending
			}
			if prev, ok := previous[t.ID]; ok {
				t.AudioStatus, t.AudioFile, t.AudioError = prev.AudioStatus, prev.AudioFile, prev.AudioError
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO transitions (`+transitionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				t.ID, t.ProjectID, t.Position, t.FromTrackID, t.ToTrackID,
				t.Score, t.HarmonicScore, t.BPMScore, t.EnergyScore, t.Label,
				t.BPMDifference, t.EnergyDifference,
				t.AudioStatus, nullableString(t.AudioFile), nullableString(t.AudioError), timestamp(now),
			); err != nil {
				return fmt.Errorf("insert transition %d: %w", t.Position, err)
			}
		}
		return nil
	})
}

func audioStates(ctx context.Context, tx *sql.Tx, projectID string) (map[string]Transition, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id, audio_status, audio_file, audio_error FROM transitions WHERE project_id = ?`, projectID)
	if err != nil {
		return nil, fmt.Errorf("read audio state: %w", err)
	}
	defer rows.Close()
	out := make(map[string]Transition)
	for rows.Next() {
		var (
			t      Transition
			status string
			file   sql.NullString
			errMsg sql.NullString
		)
		if err := rows.Scan(&t.ID, &status, &file, &errMsg); err != nil {
			return nil, err
		}
		t.AudioStatus = pipeline.AudioStatus(status)
		t.AudioFile = file.String
		t.AudioError = errMsg.String
		out[t.ID] = t
	}
	return out, rows.Err()
}

// Transitions lists a project's transitions by position.
func (s *Store) Transitions(ctx context.Context, projectID string) ([]*Transition, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+transitionColumns+` FROM transitions WHERE project_id = ? ORDER BY position`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	defer rows.Close()

	var out []*Transition
	for rows.Next() {
		t, err := scanTransition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetTransition fetches a transition by identifier. It returns nil when absent.
func (s *Store) GetTransition(ctx context.Context, id string) (*Transition, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+transitionColumns+` FROM transitions WHERE id = ?`, id)
	t, err := scanTransition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get transition: %w", err)
	}
	return t, nil
}

// SetTransitionAudio records the rendering outcome of one transition. The
// update is keyed by ID, so repeating it is harmless. It reports false when
// no such transition exists.
func (s *Store) SetTransitionAudio(ctx context.Context, id string, status pipeline.AudioStatus, file, errMsg string) (bool, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE transitions SET audio_status = ?, audio_file = ?, audio_error = ?, updated_at = ? WHERE id = ?`,
		status, nullableString(file), nullableString(errMsg), timestamp(time.Now()), id,
	)
	if err != nil {
		return false, fmt.Errorf("update transition audio: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// MarkTransitionsProcessing flags every transition of a project that has not
// finished rendering as PROCESSING and returns how many were flagged.
func (s *Store) MarkTransitionsProcessing(ctx context.Context, projectID string) (int, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE transitions SET audio_status = ?, audio_error = NULL, updated_at = ?
         WHERE project_id = ? AND audio_status != ?`,
		pipeline.AudioProcessing, timestamp(time.Now()), projectID, pipeline.AudioCompleted,
	)
	if err != nil {
		return 0, fmt.Errorf("mark transitions processing: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// AudioCounts derives rendering progress from the persisted rows.
func (s *Store) AudioCounts(ctx context.Context, projectID string) (AudioCounts, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT audio_status, COUNT(1) FROM transitions WHERE project_id = ? GROUP BY audio_status`, projectID)
	if err != nil {
		return AudioCounts{}, fmt.Errorf("count transition audio: %w", err)
	}
	defer rows.Close()

	var counts AudioCounts
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return AudioCounts{}, err
		}
		counts.Total += n
		switch pipeline.AudioStatus(status) {
		case pipeline.AudioCompleted:
			counts.Completed += n
		case pipeline.AudioError:
			counts.Errored += n
		case pipeline.AudioProcessing:
			counts.Processing += n
		default:
			counts.Pending += n
		}
	}
	return counts, rows.Err()
}

// ReplaceSegments swaps a project's mix segments for a new set.
func (s *Store) ReplaceSegments(ctx context.Context, projectID string, segments []MixSegment) error {
	ctx = ensureContext(ctx)
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM mix_segments WHERE project_id = ?`, projectID); err != nil {
			return fmt.Errorf("delete segments: %w", err)
		}
		for i, seg := range segments {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO mix_segments (project_id, position, kind, track_id, file_path, start_seconds, end_seconds)
                 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				projectID, i, seg.Kind, nullableString(seg.TrackID), nullableString(seg.FilePath),
				seg.StartSeconds, seg.EndSeconds,
			); err != nil {
				return fmt.Errorf("insert segment %d: %w", i, err)
			}
		}
		return nil
	})
}

// Segments lists a project's mix segments in order.
func (s *Store) Segments(ctx context.Context, projectID string) ([]MixSegment, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT project_id, position, kind, track_id, file_path, start_seconds, end_seconds
         FROM mix_segments WHERE project_id = ? ORDER BY position`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	defer rows.Close()

	var out []MixSegment
	for rows.Next() {
		var (
			seg     MixSegment
			trackID sql.NullString
			file    sql.NullString
		)
		if err := rows.Scan(&seg.ProjectID, &seg.Position, &seg.Kind, &trackID, &file, &seg.StartSeconds, &seg.EndSeconds); err != nil {
			return nil, err
		}
		seg.TrackID = trackID.String
		seg.FilePath = file.String
		out = append(out, seg)
	}
	return out, rows.Err()
}

func scanTransition(scanner rowScanner) (*Transition, error) {
	var (
		t          Transition
		status     string
		file       sql.NullString
		errMsg     sql.NullString
		updatedRaw string
	)
	if err := scanner.Scan(
		&t.ID, &t.ProjectID, &t.Position, &t.FromTrackID, &t.ToTrackID,
		&t.Score, &t.HarmonicScore, &t.BPMScore, &t.EnergyScore, &t.Label,
		&t.BPMDifference, &t.EnergyDifference,
		&status, &file, &errMsg, &updatedRaw,
	); err != nil {
		return nil, err
	}
	t.AudioStatus = pipeline.AudioStatus(status)
	t.AudioFile = file.String
	t.AudioError = errMsg.String
	t.UpdatedAt = parseTimeOrZero(updatedRaw)
	return &t, nil
}
