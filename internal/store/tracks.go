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

const trackColumns = "id, owner_kind, owner_id, slot, position, file_path, title, duration_seconds, created_at"

// NewTrack describes an upload to attach to an owner.
type NewTrack struct {
	OwnerKind       pipeline.EntityKind
	OwnerID         string
	Slot            string
	FilePath        string
	Title           string
	DurationSeconds float64
}

// AddTrack attaches an uploaded file to its owner. Draft uploads replace any
// track already in the same slot; the replaced track ID is returned so
// callers can drop derived state.
func (s *Store) AddTrack(ctx context.Context, input NewTrack) (*Track, string, error) {
	if !input.OwnerKind.Valid() {
		return nil, "", services.Wrap(services.ErrValidation, "store", "add track", fmt.Sprintf("unknown owner kind %q", input.OwnerKind), nil)
	}
	if strings.TrimSpace(input.FilePath) == "" {
		return nil, "", services.Wrap(services.ErrValidation, "store", "add track", "file path is required", nil)
	}
	slot := strings.ToUpper(strings.TrimSpace(input.Slot))
	switch input.OwnerKind {
	case pipeline.EntityDraft:
		if slot != SlotA && slot != SlotB {
			return nil, "", services.Wrap(services.ErrValidation, "store", "add track", "draft tracks need slot A or B", nil)
		}
	case pipeline.EntityProject:
		slot = ""
	}

	id := uuid.NewString()
	var replaced string
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		replaced = ""
		if slot != "" {
			err := tx.QueryRowContext(ctx,
				`SELECT id FROM tracks WHERE owner_kind = ? AND owner_id = ? AND slot = ?`,
				input.OwnerKind, input.OwnerID, slot,
			).Scan(&replaced)
			if err != nil && !errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("lookup slot %s: %w", slot, err)
			}
			if replaced != "" {
				if err := deleteTrack(ctx, tx, replaced); err != nil {
					return err
				}
			}
		}
		var next int
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(position) + 1, 0) FROM tracks WHERE owner_kind = ? AND owner_id = ?`,
			input.OwnerKind, input.OwnerID,
		).Scan(&next); err != nil {
			return fmt.Errorf("next track position: %w", err)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO tracks (id, owner_kind, owner_id, slot, position, file_path, title, duration_seconds, created_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, input.OwnerKind, input.OwnerID, slot, next, input.FilePath,
			nullableString(input.Title), nullableFloat(input.DurationSeconds), timestamp(time.Now()),
		)
		if err != nil {
			return fmt.Errorf("insert track: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	track, err := s.GetTrack(ctx, id)
	return track, replaced, err
}

// GetTrack fetches a track by identifier. It returns nil when absent.
func (s *Store) GetTrack(ctx context.Context, id string) (*Track, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+trackColumns+` FROM tracks WHERE id = ?`, id)
	track, err := scanTrack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get track: %w", err)
	}
	return track, nil
}

// Tracks lists an owner's tracks in upload order.
func (s *Store) Tracks(ctx context.Context, kind pipeline.EntityKind, ownerID string) ([]*Track, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+trackColumns+` FROM tracks WHERE owner_kind = ? AND owner_id = ? ORDER BY position`,
		kind, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list tracks: %w", err)
	}
	defer rows.Close()

	var tracks []*Track
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}
	return tracks, rows.Err()
}

// DeleteTrack removes a track and its analysis.
func (s *Store) DeleteTrack(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return deleteTrack(ctx, tx, id)
	})
}

func deleteTrack(ctx context.Context, tx *sql.Tx, id string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM track_analysis WHERE track_id = ?`, id); err != nil {
		return fmt.Errorf("delete analysis: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tracks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete track: %w", err)
	}
	return nil
}

func deleteOwnedTracks(ctx context.Context, tx *sql.Tx, kind pipeline.EntityKind, ownerID string) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM track_analysis WHERE track_id IN (SELECT id FROM tracks WHERE owner_kind = ? AND owner_id = ?)`,
		kind, ownerID,
	); err != nil {
		return fmt.Errorf("delete owned analyses: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tracks WHERE owner_kind = ? AND owner_id = ?`, kind, ownerID); err != nil {
		return fmt.Errorf("delete owned tracks: %w", err)
	}
	return nil
}

// UpsertAnalysis writes a track's analysis in one statement. Core fields are
// stored together or not at all.
func (s *Store) UpsertAnalysis(ctx context.Context, analysis *Analysis) error {
	if analysis == nil || analysis.TrackID == "" {
		return errors.New("analysis requires a track id")
	}
	var bpm, camelot, energy any
	if analysis.Core != nil && analysis.Core.Complete() {
		key, _ := compat.ParseCamelot(analysis.Core.Camelot)
		bpm, camelot, energy = analysis.Core.BPM, key.String(), analysis.Core.Energy
	}
	aux, err := json.Marshal(analysis.Aux)
	if err != nil {
		return fmt.Errorf("marshal analysis aux: %w", err)
	}
	analysis.UpdatedAt = time.Now().UTC()
	_, err = s.execWithRetry(ctx,
		`INSERT INTO track_analysis (track_id, bpm, camelot, energy, aux_json, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT(track_id) DO UPDATE SET
             bpm = excluded.bpm, camelot = excluded.camelot, energy = excluded.energy,
             aux_json = excluded.aux_json, updated_at = excluded.updated_at`,
		analysis.TrackID, bpm, camelot, energy, string(aux), timestamp(analysis.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert analysis: %w", err)
	}
	return nil
}

// GetAnalysis fetches a track's analysis. It returns nil when the track has
// not been analyzed.
func (s *Store) GetAnalysis(ctx context.Context, trackID string) (*Analysis, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT track_id, bpm, camelot, energy, aux_json, updated_at FROM track_analysis WHERE track_id = ?`, trackID)
	analysis, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis: %w", err)
	}
	return analysis, nil
}

// Analyses returns the analyses of an owner's tracks keyed by track ID.
func (s *Store) Analyses(ctx context.Context, kind pipeline.EntityKind, ownerID string) (map[string]*Analysis, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT a.track_id, a.bpm, a.camelot, a.energy, a.aux_json, a.updated_at
         FROM track_analysis a JOIN tracks t ON t.id = a.track_id
         WHERE t.owner_kind = ? AND t.owner_id = ?`,
		kind, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*Analysis)
	for rows.Next() {
		analysis, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out[analysis.TrackID] = analysis
	}
	return out, rows.Err()
}

// AnalysisCounts reports how many of an owner's tracks have an analysis row
// and how many tracks it owns.
func (s *Store) AnalysisCounts(ctx context.Context, kind pipeline.EntityKind, ownerID string) (analyzed, total int, err error) {
	err = s.db.QueryRowContext(ensureContext(ctx),
		`SELECT COUNT(a.track_id), COUNT(t.id)
         FROM tracks t LEFT JOIN track_analysis a ON a.track_id = t.id
         WHERE t.owner_kind = ? AND t.owner_id = ?`,
		kind, ownerID,
	).Scan(&analyzed, &total)
	if err != nil {
		return 0, 0, fmt.Errorf("count analyses: %w", err)
	}
	return analyzed, total, nil
}

func scanTrack(scanner rowScanner) (*Track, error) {
	var (
		track      Track
		kind       string
		title      sql.NullString
		duration   sql.NullFloat64
		createdRaw string
	)
	if err := scanner.Scan(
		&track.ID,
		&kind,
		&track.OwnerID,
		&track.Slot,
		&track.Position,
		&track.FilePath,
		&title,
		&duration,
		&createdRaw,
	); err != nil {
		return nil, err
	}
	track.OwnerKind = pipeline.EntityKind(kind)
	track.Title = title.String
	track.DurationSeconds = duration.Float64
	track.CreatedAt = parseTimeOrZero(createdRaw)
	return &track, nil
}

func scanAnalysis(scanner rowScanner) (*Analysis, error) {
	var (
		analysis   Analysis
		bpm        sql.NullFloat64
		camelot    sql.NullString
		energy     sql.NullFloat64
		auxRaw     sql.NullString
		updatedRaw string
	)
	if err := scanner.Scan(&analysis.TrackID, &bpm, &camelot, &energy, &auxRaw, &updatedRaw); err != nil {
		return nil, err
	}
	if bpm.Valid && camelot.Valid && energy.Valid {
		analysis.Core = &compat.Features{BPM: bpm.Float64, Camelot: camelot.String, Energy: energy.Float64}
	}
	if auxRaw.Valid && auxRaw.String != "" {
		if err := json.Unmarshal([]byte(auxRaw.String), &analysis.Aux); err != nil {
			return nil, fmt.Errorf("decode analysis aux for %s: %w", analysis.TrackID, err)
		}
	}
	analysis.UpdatedAt = parseTimeOrZero(updatedRaw)
	return &analysis, nil
}
