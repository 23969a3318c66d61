package resync

import "sync"

// Snapshot is what the ops API shows for the current run.
type Snapshot struct {
	RunID    string    `json:"run_id,omitempty"`
	State    State     `json:"state"`
	Running  bool      `json:"running"`
	Progress *Progress `json:"progress,omitempty"`
}

// Tracker remembers the latest state, progress and report. Safe for
// concurrent readers.
type Tracker struct {
	mu      sync.RWMutex
	current Snapshot
	last    *Report
}

func NewTracker() *Tracker {
	return &Tracker{}
}

func (t *Tracker) OnState(e StateEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e.RunID != t.current.RunID {
		t.current = Snapshot{RunID: e.RunID}
	}
	t.current.State = e.To
	t.current.Running = !e.To.Terminal()
}

func (t *Tracker) OnProgress(p Progress) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current.Progress = &p
}

func (t *Tracker) OnFinish(r Report) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if r.Err != nil {
		r.Error = r.Err.Error()
	}
	t.last = &r
	t.current.State = r.State
	t.current.Running = false
}

func (t *Tracker) Current() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s := t.current
	if s.Progress != nil {
		p := *s.Progress
		s.Progress = &p
	}
	return s
}

// Last returns the most recent report, nil before the first run finishes.
func (t *Tracker) Last() *Report {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.last == nil {
		return nil
	}
	r := *t.last
	return &r
}
