// Package telemetry reports failed resync runs to Sentry.
//
//	telemetry.InitSentry(cfg.Telemetry, "vodsync")
//	defer telemetry.Flush()
package telemetry

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/937bb/937cms-sub001/internal/config"
	"github.com/937bb/937cms-sub001/internal/resync"
)

// InitSentry is a no-op returning false when no DSN is configured.
func InitSentry(cfg config.TelemetryConfig, service string) (bool, error) {
	if cfg.SentryDSN == "" {
		return false, nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		AttachStacktrace: true,
		Tags: map[string]string{
			"service": service,
		},
	})
	if err != nil {
		return false, fmt.Errorf("sentry.Init: %w", err)
	}
	return true, nil
}

func Flush() {
	sentry.Flush(2 * time.Second)
}

// Capturer is the part of *sentry.Hub the observer needs.
type Capturer interface {
	WithScope(f func(scope *sentry.Scope))
	CaptureException(err error) *sentry.EventID
}

// Observer captures the error of every Failed run.
type Observer struct {
	Hub Capturer
}

// NewObserver uses the current hub when hub is nil.
func NewObserver(hub Capturer) *Observer {
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	return &Observer{Hub: hub}
}

func (o *Observer) OnState(resync.StateEvent) {}

func (o *Observer) OnProgress(resync.Progress) {}

func (o *Observer) OnFinish(r resync.Report) {
	if r.State != resync.Failed || r.Err == nil {
		return
	}

	o.Hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("run_id", r.RunID)
		scope.SetTag("state", r.State.String())
		scope.SetTag("kind", resync.KindName(r.Err))
		scope.SetContext("resync", sentry.Context{
			"processed": r.ProcessedRecords,
			"skipped":   r.SkippedRecords,
			"total":     r.TotalRecords,
		})

		var runErr *resync.RunError
		if errors.As(r.Err, &runErr) {
			scope.SetTag("failed_in", runErr.State.String())
			if runErr.Page > 0 {
				scope.SetTag("page", strconv.Itoa(runErr.Page))
			}
			if runErr.VideoID > 0 {
				scope.SetTag("video_id", strconv.FormatInt(runErr.VideoID, 10))
			}
		}
		o.Hub.CaptureException(r.Err)
	})
}
