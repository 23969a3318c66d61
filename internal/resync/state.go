package resync

import (
	"encoding/json"
	"fmt"
)

// State is a step of the resync state machine. Every run starts at Idle and
// ends in Completed or Failed.
type State int

const (
	Idle State = iota
	SchemaEnsured
	Truncated
	Paging
	Completed
	Failed
)

var stateNames = [...]string{
	Idle:          "idle",
	SchemaEnsured: "schema_ensured",
	Truncated:     "truncated",
	Paging:        "paging",
	Completed:     "completed",
	Failed:        "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *State) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	for i, n := range stateNames {
		if n == name {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", name)
}

func (s State) Terminal() bool {
	return s == Completed || s == Failed
}

// CanTransition reports whether the machine may move from s to next.
func (s State) CanTransition(next State) bool {
	switch s {
	case Idle:
		return next == SchemaEnsured || next == Failed
	case SchemaEnsured:
		return next == Truncated || next == Failed
	case Truncated:
		return next == Paging || next == Failed
	case Paging:
		return next == Completed || next == Failed
	}
	return false
}
