package models

// PlayerRef is a player registry entry. Key is the legacy "from" key that
// appears in vod_play_from.
type PlayerRef struct {
	Key string `json:"key"`
	ID  int64  `json:"id"`
}
