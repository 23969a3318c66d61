package models

import "time"

// Source is one player's episode list for a video (bb_vod_source).
// PlayerID is 0 when the player key had no registry entry.
type Source struct {
	ID         int64     `json:"id"`
	VideoID    int64     `json:"video_id"`
	PlayerID   int64     `json:"player_id"`
	PlayerName string    `json:"player_name"`
	Sort       int       `json:"sort"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Episode is a single playable entry of a Source (bb_vod_episode).
// EpisodeNum is always Sort+1.
type Episode struct {
	ID         int64     `json:"id"`
	VideoID    int64     `json:"video_id"`
	SourceID   int64     `json:"source_id"`
	EpisodeNum int       `json:"episode_num"`
	Title      string    `json:"title"`
	URL        string    `json:"url"`
	Sort       int       `json:"sort"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Orphan summarizes sources whose player key is missing from the registry.
type Orphan struct {
	PlayerName string `json:"player_name"`
	Sources    int    `json:"sources"`
	Videos     int    `json:"videos"`
}
