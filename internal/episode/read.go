package episode

import (
	"context"
	"fmt"
	"time"

	"github.com/937bb/937cms-sub001/internal/playurl"
	"github.com/937bb/937cms-sub001/pkg/models"
)

// Playlist is one source of a video with its episodes in play order.
type Playlist struct {
	Source   models.Source    `json:"source"`
	Episodes []models.Episode `json:"episodes"`
}

type Counts struct {
	Sources       int `json:"sources"`
	Episodes      int `json:"episodes"`
	OrphanSources int `json:"orphan_sources"`
}

// Violations counts rows that break the normalized-table invariants.
type Violations struct {
	DanglingEpisodes     int `json:"dangling_episodes"`
	VideoMismatches      int `json:"video_mismatches"`
	NumberMismatches     int `json:"number_mismatches"`
	NonContiguousSources int `json:"non_contiguous_sources"`
}

func (v Violations) OK() bool {
	return v == Violations{}
}

// ListByVideo returns the video's sources ordered by sort, each with its
// episodes ordered by sort and episode number.
func (r *Repo) ListByVideo(ctx context.Context, videoID int64) ([]Playlist, error) {
	rows, err := r.DB.QueryContext(ctx, r.Dialect.Rebind(`
		SELECT id, vod_id, player_id, player_name, sort, created_at, updated_at
		FROM bb_vod_source
		WHERE vod_id = ?
		ORDER BY sort ASC, id ASC
	`), videoID)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	var (
		out   []Playlist
		index = make(map[int64]int)
	)
	for rows.Next() {
		var (
			s                models.Source
			created, updated int64
		)
		if err := rows.Scan(&s.ID, &s.VideoID, &s.PlayerID, &s.PlayerName, &s.Sort, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		s.CreatedAt = time.Unix(created, 0)
		s.UpdatedAt = time.Unix(updated, 0)
		index[s.ID] = len(out)
		out = append(out, Playlist{Source: s, Episodes: []models.Episode{}})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	if len(out) == 0 {
		return out, nil
	}

	erows, err := r.DB.QueryContext(ctx, r.Dialect.Rebind(`
		SELECT id, vod_id, source_id, episode_num, title, url, sort, created_at, updated_at
		FROM bb_vod_episode
		WHERE vod_id = ?
		ORDER BY source_id ASC, sort ASC, episode_num ASC, id ASC
	`), videoID)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	defer erows.Close()

	for erows.Next() {
		var (
			e                models.Episode
			created, updated int64
		)
		if err := erows.Scan(&e.ID, &e.VideoID, &e.SourceID, &e.EpisodeNum, &e.Title, &e.URL, &e.Sort, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		e.CreatedAt = time.Unix(created, 0)
		e.UpdatedAt = time.Unix(updated, 0)

		i, ok := index[e.SourceID]
		if !ok {
			continue
		}
		out[i].Episodes = append(out[i].Episodes, e)
	}
	if err := erows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

// Counts re-reads the table totals.
func (r *Repo) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	queries := []struct {
		dst *int
		sql string
	}{
		{&c.Sources, `SELECT COUNT(*) FROM bb_vod_source`},
		{&c.Episodes, `SELECT COUNT(*) FROM bb_vod_episode`},
		{&c.OrphanSources, `SELECT COUNT(*) FROM bb_vod_source WHERE player_id = 0`},
	}
	for _, q := range queries {
		if err := r.DB.QueryRowContext(ctx, q.sql).Scan(q.dst); err != nil {
			return Counts{}, fmt.Errorf("count: %w", err)
		}
	}
	return c, nil
}

// Orphans groups sources without a registry player by player name, largest
// first.
func (r *Repo) Orphans(ctx context.Context) ([]models.Orphan, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT player_name, COUNT(*) AS sources, COUNT(DISTINCT vod_id) AS videos
		FROM bb_vod_source
		WHERE player_id = 0
		GROUP BY player_name
		ORDER BY sources DESC, player_name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("orphans query: %w", err)
	}
	defer rows.Close()

	out := []models.Orphan{}
	for rows.Next() {
		var o models.Orphan
		if err := rows.Scan(&o.PlayerName, &o.Sources, &o.Videos); err != nil {
			return nil, fmt.Errorf("orphans scan: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

// CheckInvariants counts episodes without a source, episodes filed under a
// different video than their source, episode numbers that are not sort+1,
// and sources whose sort values are not exactly 0..n-1.
func (r *Repo) CheckInvariants(ctx context.Context) (Violations, error) {
	var v Violations
	queries := []struct {
		dst *int
		sql string
	}{
		{&v.DanglingEpisodes, `
			SELECT COUNT(*) FROM bb_vod_episode e
			LEFT JOIN bb_vod_source s ON s.id = e.source_id
			WHERE s.id IS NULL`},
		{&v.VideoMismatches, `
			SELECT COUNT(*) FROM bb_vod_episode e
			JOIN bb_vod_source s ON s.id = e.source_id
			WHERE e.vod_id <> s.vod_id`},
		{&v.NumberMismatches, `
			SELECT COUNT(*) FROM bb_vod_episode WHERE episode_num <> sort + 1`},
		{&v.NonContiguousSources, `
			SELECT COUNT(*) FROM (
				SELECT source_id FROM bb_vod_episode
				GROUP BY source_id
				HAVING MIN(sort) <> 0 OR MAX(sort) <> COUNT(*) - 1 OR COUNT(DISTINCT sort) <> COUNT(*)
			) AS broken`},
	}
	for _, q := range queries {
		if err := r.DB.QueryRowContext(ctx, q.sql).Scan(q.dst); err != nil {
			return Violations{}, fmt.Errorf("invariant check: %w", err)
		}
	}
	return v, nil
}

// Groups converts read-back playlists into parser groups, so playurl.Encode
// can rebuild the legacy columns.
func Groups(lists []Playlist) []playurl.Group {
	out := make([]playurl.Group, len(lists))
	for i, l := range lists {
		g := playurl.Group{PlayerKey: l.Source.PlayerName}
		for _, e := range l.Episodes {
			g.Episodes = append(g.Episodes, playurl.Entry{Title: e.Title, URL: e.URL})
		}
		out[i] = g
	}
	return out
}
