package sync

import (
	"time"

	"github.com/937bb/937cms-sub001/internal/resync"
)

const (
	EventWelcome  = "welcome"
	EventState    = "resync.state"
	EventProgress = "resync.progress"
	EventFinished = "resync.finished"
)

// Event is one line of the progress feed.
type Event struct {
	Type     string           `json:"type"`
	RunID    string           `json:"run_id,omitempty"`
	From     string           `json:"from,omitempty"`
	To       string           `json:"to,omitempty"`
	Progress *resync.Progress `json:"progress,omitempty"`
	Report   *resync.Report   `json:"report,omitempty"`
	Clients  int              `json:"clients,omitempty"`
	At       time.Time        `json:"at"`
}

// OnState, OnProgress and OnFinish make the hub a resync.Observer.
func (h *Hub) OnState(e resync.StateEvent) {
	h.BroadcastJSON(Event{
		Type:  EventState,
		RunID: e.RunID,
		From:  e.From.String(),
		To:    e.To.String(),
		At:    e.At,
	})
}

func (h *Hub) OnProgress(p resync.Progress) {
	h.BroadcastJSON(Event{
		Type:     EventProgress,
		RunID:    p.RunID,
		Progress: &p,
		At:       time.Now(),
	})
}

func (h *Hub) OnFinish(r resync.Report) {
	if r.Err != nil && r.Error == "" {
		r.Error = r.Err.Error()
	}
	h.BroadcastJSON(Event{
		Type:   EventFinished,
		RunID:  r.RunID,
		Report: &r,
		At:     r.FinishedAt,
	})
}
