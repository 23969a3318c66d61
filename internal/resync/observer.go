package resync

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/937bb/937cms-sub001/internal/episode"
)

// StateEvent is emitted on every transition.
type StateEvent struct {
	RunID string    `json:"run_id"`
	From  State     `json:"from"`
	To    State     `json:"to"`
	At    time.Time `json:"at"`
}

// Progress is emitted after each committed page.
type Progress struct {
	RunID      string  `json:"run_id"`
	Page       int     `json:"page"`
	Processed  int     `json:"processed"`
	Skipped    int     `json:"skipped"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
	Offset     int     `json:"offset"`
}

// Report summarizes a finished run.
type Report struct {
	RunID            string             `json:"run_id"`
	State            State              `json:"state"`
	StartedAt        time.Time          `json:"started_at"`
	FinishedAt       time.Time          `json:"finished_at"`
	TotalRecords     int                `json:"total_records"`
	ProcessedRecords int                `json:"processed_records"`
	SkippedRecords   int                `json:"skipped_records"`
	Pages            int                `json:"pages"`
	MigrationsRun    int                `json:"migrations_run"`
	Players          int                `json:"players"`
	Written          episode.ApplyStats `json:"written"`
	Final            episode.Counts     `json:"final"`
	Err              error              `json:"-"`
	Error            string             `json:"error,omitempty"`
}

func (r Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Observer is notified synchronously from the run goroutine; implementations
// must not block.
type Observer interface {
	OnState(StateEvent)
	OnProgress(Progress)
	OnFinish(Report)
}

// Observers fans every event out in order.
type Observers []Observer

func (obs Observers) OnState(e StateEvent) {
	for _, o := range obs {
		o.OnState(e)
	}
}

func (obs Observers) OnProgress(p Progress) {
	for _, o := range obs {
		o.OnProgress(p)
	}
}

func (obs Observers) OnFinish(r Report) {
	for _, o := range obs {
		o.OnFinish(r)
	}
}

// LogObserver writes the operator-facing run log.
type LogObserver struct {
	Log *logrus.Entry
}

func NewLogObserver(log *logrus.Entry) *LogObserver {
	return &LogObserver{Log: log}
}

func (l *LogObserver) OnState(e StateEvent) {
	l.Log.WithFields(logrus.Fields{
		"run_id": e.RunID,
		"from":   e.From.String(),
		"to":     e.To.String(),
	}).Info("state changed")
}

func (l *LogObserver) OnProgress(p Progress) {
	l.Log.WithFields(logrus.Fields{
		"run_id":     p.RunID,
		"page":       p.Page,
		"processed":  p.Processed,
		"total":      p.Total,
		"percentage": p.Percentage,
	}).Infof("progress %d/%d (%.1f%%)", p.Processed, p.Total, p.Percentage)
}

func (l *LogObserver) OnFinish(r Report) {
	entry := l.Log.WithFields(logrus.Fields{
		"run_id":         r.RunID,
		"state":          r.State.String(),
		"processed":      r.ProcessedRecords,
		"skipped":        r.SkippedRecords,
		"total":          r.TotalRecords,
		"sources":        r.Final.Sources,
		"episodes":       r.Final.Episodes,
		"orphan_sources": r.Final.OrphanSources,
		"duration":       r.Duration().String(),
	})
	if r.Err != nil {
		entry.WithError(r.Err).Error("resync failed")
		return
	}
	entry.Infof("resync completed: %d videos, %d sources, %d episodes",
		r.ProcessedRecords, r.Final.Sources, r.Final.Episodes)
}
