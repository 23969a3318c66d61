package episode

import (
	"context"
	"time"

	"github.com/937bb/937cms-sub001/internal/playurl"
	"github.com/937bb/937cms-sub001/pkg/models"
)

// PlayerResolver maps a player key to its registry id, 0 when unknown.
type PlayerResolver interface {
	Resolve(key string) int64
}

// Normalizer turns parsed groups into source and episode rows.
type Normalizer struct {
	Players PlayerResolver
	// At stamps created_at/updated_at; one value is shared by the whole run.
	At time.Time
}

type ApplyStats struct {
	Sources  int `json:"sources"`
	Episodes int `json:"episodes"`
	Orphans  int `json:"orphans"`
}

func (s *ApplyStats) Add(o ApplyStats) {
	s.Sources += o.Sources
	s.Episodes += o.Episodes
	s.Orphans += o.Orphans
}

// Apply writes one source per group in parser order, then that group's
// episodes in one bulk insert. Groups without episodes still get a source.
func (n *Normalizer) Apply(ctx context.Context, w Writer, v models.LegacyVideo, groups []playurl.Group) (ApplyStats, error) {
	var stats ApplyStats
	at := n.At
	if at.IsZero() {
		at = time.Now()
	}

	for i, g := range groups {
		playerID := n.Players.Resolve(g.PlayerKey)
		sourceID, err := w.InsertSource(ctx, models.Source{
			VideoID:    v.ID,
			PlayerID:   playerID,
			PlayerName: g.PlayerKey,
			Sort:       i,
			CreatedAt:  at,
			UpdatedAt:  at,
		})
		if err != nil {
			return stats, err
		}
		stats.Sources++
		if playerID == 0 {
			stats.Orphans++
		}

		if len(g.Episodes) == 0 {
			continue
		}
		if err := w.InsertEpisodes(ctx, BuildEpisodes(v.ID, sourceID, g.Episodes, at)); err != nil {
			return stats, err
		}
		stats.Episodes += len(g.Episodes)
	}
	return stats, nil
}

// BuildEpisodes numbers entries in order: sort j, episode_num j+1.
func BuildEpisodes(videoID, sourceID int64, entries []playurl.Entry, at time.Time) []models.Episode {
	out := make([]models.Episode, len(entries))
	for j, e := range entries {
		out[j] = models.Episode{
			VideoID:    videoID,
			SourceID:   sourceID,
			EpisodeNum: j + 1,
			Title:      e.Title,
			URL:        e.URL,
			Sort:       j,
			CreatedAt:  at,
			UpdatedAt:  at,
		}
	}
	return out
}
