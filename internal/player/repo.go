package player

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/937bb/937cms-sub001/pkg/models"
)

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

// List returns every registry entry, disabled players included: legacy rows
// still point at them.
func (r *Repo) List(ctx context.Context) ([]models.PlayerRef, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id, from_key FROM bb_player ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	defer rows.Close()

	var out []models.PlayerRef
	for rows.Next() {
		var (
			p   models.PlayerRef
			key sql.NullString
		)
		if err := rows.Scan(&p.ID, &key); err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		p.Key = key.String
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

// LoadAll returns the key -> id map in a single query. When a key appears
// twice the row with the higher id wins, matching a last-write map fill.
func (r *Repo) LoadAll(ctx context.Context) (map[string]int64, error) {
	refs, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	m := make(map[string]int64, len(refs))
	for _, p := range refs {
		m[p.Key] = p.ID
	}
	return m, nil
}
