package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/desertthunder/onyx/internal/models"
	"github.com/desertthunder/onyx/internal/shared"
)

const resolutionColumns = `id, sequence, track_id, video_id, title, artist, video_title, channel, query, stage, score, created_at`

// ResolutionRepository persists [models.Resolution] history.
//
// Writes are serialised.
type ResolutionRepository struct {
	db *sql.DB
	mu sync.Mutex
}

// NewResolutionRepository creates a new ResolutionRepository with the given database connection
func NewResolutionRepository(db *sql.DB) *ResolutionRepository {
	return &ResolutionRepository{db: db}
}

// Create inserts a resolution with a generated ID and sequence
func (r *ResolutionRepository) Create(res *models.Resolution) error {
	if err := res.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	sequence, err := NextSequence(r.db, "resolutions")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now()
	}
	res.ID = shared.GenerateID()
	res.Sequence = sequence

	query := `INSERT INTO resolutions (` + resolutionColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.Exec(query,
		res.ID,
		res.Sequence,
		res.TrackID,
		res.VideoID,
		res.Title,
		res.Artist,
		res.VideoTitle,
		res.Channel,
		res.Query,
		res.Stage,
		res.Score,
		res.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert resolution: %w", err)
	}
	return nil
}

// Record satisfies the resolver's history sink.
func (r *ResolutionRepository) Record(res *models.Resolution) error {
	return r.Create(res)
}

// Get retrieves a resolution by ID, excluding soft-deleted rows
func (r *ResolutionRepository) Get(id string) (*models.Resolution, error) {
	query := `SELECT ` + resolutionColumns + ` FROM resolutions WHERE id = ? AND deleted_at IS NULL`
	return r.scanOne(r.db.QueryRow(query, id))
}

// LatestForTrack returns the most recent resolution of a track.
func (r *ResolutionRepository) LatestForTrack(trackID string) (*models.Resolution, error) {
	query := `
		SELECT ` + resolutionColumns + `
		FROM resolutions
		WHERE track_id = ? AND deleted_at IS NULL
		ORDER BY sequence DESC
		LIMIT 1
	`
	return r.scanOne(r.db.QueryRow(query, trackID))
}

// List retrieves resolutions matching the given criteria, newest first, excluding soft-deleted rows.
//
// Supported criteria: "track_id", "video_id", "stage" (string) and "limit" (int).
func (r *ResolutionRepository) List(criteria map[string]any) ([]*models.Resolution, error) {
	query := `SELECT ` + resolutionColumns + ` FROM resolutions WHERE deleted_at IS NULL`
	args := []any{}

	for _, column := range []string{"track_id", "video_id", "stage"} {
		if v, ok := criteria[column].(string); ok && v != "" {
			query += " AND " + column + " = ?"
			args = append(args, v)
		}
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query resolutions: %w", err)
	}
	defer rows.Close()

	var resolutions []*models.Resolution
	for rows.Next() {
		res, err := scanResolution(rows)
		if err != nil {
			return nil, err
		}
		resolutions = append(resolutions, res)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return resolutions, nil
}

// Delete soft-deletes a resolution by ID
func (r *ResolutionRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	result, err := r.db.Exec(`UPDATE resolutions SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete resolution: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("resolution not found or already deleted: %s", id)
	}
	return nil
}

// ForgetTrack soft-deletes every resolution of a track and returns how many rows were affected.
func (r *ResolutionRepository) ForgetTrack(trackID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result, err := r.db.Exec(`UPDATE resolutions SET deleted_at = ? WHERE track_id = ? AND deleted_at IS NULL`, time.Now(), trackID)
	if err != nil {
		return 0, fmt.Errorf("failed to forget track: %w", err)
	}
	return result.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

// scanOne scans a single [sql.Row] into a [models.Resolution]
func (r *ResolutionRepository) scanOne(row *sql.Row) (*models.Resolution, error) {
	res, err := scanResolution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: resolution", shared.ErrNotFound)
	}
	return res, err
}

func scanResolution(s scanner) (*models.Resolution, error) {
	var res models.Resolution
	err := s.Scan(
		&res.ID,
		&res.Sequence,
		&res.TrackID,
		&res.VideoID,
		&res.Title,
		&res.Artist,
		&res.VideoTitle,
		&res.Channel,
		&res.Query,
		&res.Stage,
		&res.Score,
		&res.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan resolution: %w", err)
	}
	return &res, nil
}
