package vod

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/937bb/937cms-sub001/pkg/database"
	"github.com/937bb/937cms-sub001/pkg/models"
)

// Repo reads the legacy video table. It never writes to it.
type Repo struct {
	DB      *sql.DB
	Dialect database.Dialect
}

func NewRepo(db *sql.DB, d database.Dialect) *Repo {
	return &Repo{DB: db, Dialect: d}
}

func (r *Repo) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM bb_vod`).Scan(&total); err != nil {
		return 0, fmt.Errorf("count videos: %w", err)
	}
	return total, nil
}

// PageByOffset returns up to limit videos ordered by id, skipping offset rows.
func (r *Repo) PageByOffset(ctx context.Context, limit, offset int) ([]models.LegacyVideo, error) {
	return r.query(ctx, `
		SELECT vod_id, vod_play_from, vod_play_url
		FROM bb_vod
		ORDER BY vod_id ASC
		LIMIT ? OFFSET ?
	`, limit, offset)
}

// PageAfter returns up to limit videos with an id greater than afterID.
func (r *Repo) PageAfter(ctx context.Context, afterID int64, limit int) ([]models.LegacyVideo, error) {
	return r.query(ctx, `
		SELECT vod_id, vod_play_from, vod_play_url
		FROM bb_vod
		WHERE vod_id > ?
		ORDER BY vod_id ASC
		LIMIT ?
	`, afterID, limit)
}

// GetByID returns nil, nil when the video does not exist.
func (r *Repo) GetByID(ctx context.Context, id int64) (*models.LegacyVideo, error) {
	out, err := r.query(ctx, `
		SELECT vod_id, vod_play_from, vod_play_url
		FROM bb_vod
		WHERE vod_id = ?
	`, id)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

func (r *Repo) query(ctx context.Context, q string, args ...any) ([]models.LegacyVideo, error) {
	rows, err := r.DB.QueryContext(ctx, r.Dialect.Rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("page query: %w", err)
	}
	defer rows.Close()

	var out []models.LegacyVideo
	for rows.Next() {
		var (
			v        models.LegacyVideo
			playFrom sql.NullString
			playURL  sql.NullString
		)
		if err := rows.Scan(&v.ID, &playFrom, &playURL); err != nil {
			return nil, fmt.Errorf("page scan: %w", err)
		}
		v.PlayFrom = playFrom.String
		v.PlayURL = playURL.String
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}
