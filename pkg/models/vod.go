package models

// LegacyVideo is one row of the legacy video table as the sync job sees it.
// PlayFrom and PlayURL hold the dual-field playback serialization; NULL
// columns are read as empty strings.
type LegacyVideo struct {
	ID       int64  `json:"id"`
	PlayFrom string `json:"play_from"`
	PlayURL  string `json:"play_url"`
}
