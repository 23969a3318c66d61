package resync

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_Transitions(t *testing.T) {
	allowed := map[State][]State{
		Idle:          {SchemaEnsured, Failed},
		SchemaEnsured: {Truncated, Failed},
		Truncated:     {Paging, Failed},
		Paging:        {Completed, Failed},
		Completed:     nil,
		Failed:        nil,
	}
	all := []State{Idle, SchemaEnsured, Truncated, Paging, Completed, Failed}

	for from, nexts := range allowed {
		for _, to := range all {
			want := false
			for _, n := range nexts {
				if n == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransition(to), "%s -> %s", from, to)
		}
	}

	assert.True(t, Completed.Terminal())
	assert.True(t, Failed.Terminal())
	assert.False(t, Paging.Terminal())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "schema_ensured", SchemaEnsured.String())
	assert.Equal(t, "unknown", State(42).String())

	b, err := json.Marshal(map[string]State{"state": Paging})
	require.NoError(t, err)
	assert.JSONEq(t, `{"state":"paging"}`, string(b))
}

func TestRunError(t *testing.T) {
	cause := errors.New("connection reset")
	err := error(&RunError{Kind: ErrStorageIO, State: Paging, Page: 3, VideoID: 7, Err: cause})

	assert.Equal(t, "storage I/O failed in state paging (page 3, video 7): connection reset", err.Error())
	assert.ErrorIs(t, err, ErrStorageIO)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrSchemaApplication)

	wrapped := fmt.Errorf("vodsync run: %w", err)
	assert.Equal(t, "storage_io", KindName(wrapped))

	schema := &RunError{Kind: ErrSchemaApplication, State: Idle, Err: cause}
	assert.Equal(t, "schema application failed in state idle: connection reset", schema.Error())
	assert.Equal(t, "schema_application", KindName(schema))
	assert.Equal(t, "run_in_progress", KindName(ErrRunInProgress))
	assert.Equal(t, "unknown", KindName(cause))
	assert.Empty(t, KindName(nil))
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, 40.0, percentage(100, 250))
	assert.Equal(t, 33.3, percentage(1, 3))
	assert.Equal(t, 66.7, percentage(2, 3))
	assert.Equal(t, 100.0, percentage(250, 250))
	assert.Equal(t, 100.0, percentage(0, 0))
}

func TestState_JSONRoundTrip(t *testing.T) {
	var s State
	require.NoError(t, json.Unmarshal([]byte(`"truncated"`), &s))
	assert.Equal(t, Truncated, s)
	assert.Error(t, json.Unmarshal([]byte(`"halfway"`), &s))
}
