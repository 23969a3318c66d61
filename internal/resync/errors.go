package resync

import (
	"errors"
	"fmt"
	"strings"

	"github.com/937bb/937cms-sub001/internal/config"
)

var (
	// ErrConfigurationMissing is returned before anything destructive runs.
	ErrConfigurationMissing = config.ErrMissing
	// ErrSchemaApplication means the migrations failed; nothing was truncated.
	ErrSchemaApplication = errors.New("schema application failed")
	// ErrStorageIO covers every read or write failure once the run is underway.
	ErrStorageIO = errors.New("storage I/O failed")
	// ErrTruncate wraps a failed truncate. Part of the normalized tables may
	// already be empty.
	ErrTruncate = errors.New("truncate normalized tables")
	// ErrRunInProgress rejects a second concurrent run on one Orchestrator.
	ErrRunInProgress = errors.New("resync already running")
)

// RunError is the error of a Failed run. errors.Is matches both Kind and the
// underlying cause.
type RunError struct {
	Kind    error
	State   State // state the failure happened in
	Page    int   // 1-based page number, 0 outside paging
	VideoID int64 // legacy record being written, 0 if none
	Err     error
}

func (e *RunError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%v in state %s", e.Kind, e.State)
	if e.Page > 0 {
		fmt.Fprintf(&b, " (page %d", e.Page)
		if e.VideoID > 0 {
			fmt.Fprintf(&b, ", video %d", e.VideoID)
		}
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *RunError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// KindName is a short label for metrics and error reports.
func KindName(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfigurationMissing):
		return "configuration_missing"
	case errors.Is(err, ErrSchemaApplication):
		return "schema_application"
	case errors.Is(err, ErrStorageIO):
		return "storage_io"
	case errors.Is(err, ErrRunInProgress):
		return "run_in_progress"
	}
	return "unknown"
}
