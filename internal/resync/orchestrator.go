// Package resync rebuilds bb_vod_source and bb_vod_episode from the legacy
// vod_play_from/vod_play_url columns of bb_vod.
package resync

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/937bb/937cms-sub001/internal/config"
	"github.com/937bb/937cms-sub001/internal/episode"
	"github.com/937bb/937cms-sub001/internal/logging"
	"github.com/937bb/937cms-sub001/internal/player"
	"github.com/937bb/937cms-sub001/internal/playurl"
	"github.com/937bb/937cms-sub001/internal/vod"
	"github.com/937bb/937cms-sub001/pkg/models"
)

// VideoReader reads the legacy bb_vod table.
type VideoReader interface {
	vod.Reader
	Count(ctx context.Context) (int, error)
}

// PlayerLoader reads the player registry as key → id.
type PlayerLoader interface {
	LoadAll(ctx context.Context) (map[string]int64, error)
}

// Store owns the normalized tables.
type Store interface {
	EnsureSchema(ctx context.Context) (int, error)
	Truncate(ctx context.Context) error
	Begin(ctx context.Context) (episode.PageTx, error)
	Counts(ctx context.Context) (episode.Counts, error)
}

type Deps struct {
	Videos  VideoReader
	Players PlayerLoader
	Store   Store
	Log     *logrus.Entry
	// Now defaults to time.Now.
	Now func() time.Time
}

// Orchestrator runs full resyncs. Runs are strictly sequential; a second Run
// while one is active fails with ErrRunInProgress.
type Orchestrator struct {
	cfg       config.SyncConfig
	deps      Deps
	observers Observers
	log       *logrus.Entry
	running   atomic.Bool
}

func New(cfg config.SyncConfig, deps Deps, observers ...Observer) (*Orchestrator, error) {
	switch {
	case deps.Videos == nil:
		return nil, fmt.Errorf("%w: video reader", ErrConfigurationMissing)
	case deps.Players == nil:
		return nil, fmt.Errorf("%w: player loader", ErrConfigurationMissing)
	case deps.Store == nil:
		return nil, fmt.Errorf("%w: store", ErrConfigurationMissing)
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = config.DefaultPageSize
	}
	if cfg.PageSize < 0 {
		return nil, fmt.Errorf("%w: page size %d", config.ErrInvalid, cfg.PageSize)
	}
	if _, err := vod.ParseMode(cfg.Pagination); err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalid, err)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	return &Orchestrator{
		cfg:       cfg,
		deps:      deps,
		observers: observers,
		log:       logging.Component(deps.Log, "resync"),
	}, nil
}

func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// Run performs one full resync and blocks until it reaches a terminal state.
// The returned error is a *RunError when the run failed.
func (o *Orchestrator) Run(ctx context.Context) (Report, error) {
	if !o.running.CompareAndSwap(false, true) {
		return Report{}, ErrRunInProgress
	}
	defer o.running.Store(false)

	r := o.newRun()
	return r.execute(ctx)
}

// Start launches a run in the background and returns its id. The channel
// receives the report once the run is terminal.
func (o *Orchestrator) Start(ctx context.Context) (string, <-chan Report, error) {
	if !o.running.CompareAndSwap(false, true) {
		return "", nil, ErrRunInProgress
	}

	r := o.newRun()
	done := make(chan Report, 1)
	go func() {
		defer o.running.Store(false)
		rep, _ := r.execute(ctx)
		done <- rep
		close(done)
	}()
	return r.id, done, nil
}

func (o *Orchestrator) newRun() *run {
	id := uuid.NewString()
	return &run{
		o:     o,
		id:    id,
		state: Idle,
		log:   o.log.WithField("run_id", id),
	}
}

// run is one pass of the state machine.
type run struct {
	o       *Orchestrator
	id      string
	state   State
	report  Report
	log     *logrus.Entry
	page    int
	videoID int64
}

func (r *run) execute(ctx context.Context) (Report, error) {
	o := r.o
	r.report = Report{RunID: r.id, State: Idle, StartedAt: o.deps.Now()}
	r.log.WithFields(logrus.Fields{
		"page_size":  o.cfg.PageSize,
		"pagination": o.cfg.Mode(),
		"skip_mode":  o.cfg.ContinueOnRecordError,
	}).Info("resync started")

	migrated, err := o.deps.Store.EnsureSchema(ctx)
	if err != nil {
		return r.fail(ErrSchemaApplication, err)
	}
	r.report.MigrationsRun = migrated
	r.transition(SchemaEnsured)

	players, err := o.deps.Players.LoadAll(ctx)
	if err != nil {
		return r.fail(ErrStorageIO, fmt.Errorf("load players: %w", err))
	}
	resolver := player.NewResolver(players)
	r.report.Players = resolver.Len()

	total, err := o.deps.Videos.Count(ctx)
	if err != nil {
		return r.fail(ErrStorageIO, fmt.Errorf("count videos: %w", err))
	}
	r.report.TotalRecords = total
	r.log.WithFields(logrus.Fields{"players": resolver.Len(), "total": total}).Info("inputs loaded")

	if err := o.deps.Store.Truncate(ctx); err != nil {
		return r.fail(ErrStorageIO, fmt.Errorf("%w: %w", ErrTruncate, err))
	}
	r.transition(Truncated)

	r.transition(Paging)
	norm := &episode.Normalizer{Players: resolver, At: r.report.StartedAt}
	pager := vod.NewPager(o.deps.Videos, vod.PagerOptions{
		PageSize: o.cfg.PageSize,
		Limit:    total,
		Mode:     o.cfg.Mode(),
	})

	for {
		r.page = pager.Pages() + 1
		r.videoID = 0
		page, ok, err := pager.Next(ctx)
		if err != nil {
			return r.fail(ErrStorageIO, fmt.Errorf("fetch page at offset %d: %w", pager.Offset(), err))
		}
		if !ok {
			break
		}
		if err := r.writePage(ctx, norm, page); err != nil {
			return r.fail(ErrStorageIO, err)
		}

		r.report.ProcessedRecords += len(page)
		r.report.Pages = pager.Pages()
		o.observers.OnProgress(Progress{
			RunID:      r.id,
			Page:       r.report.Pages,
			Processed:  r.report.ProcessedRecords,
			Skipped:    r.report.SkippedRecords,
			Total:      total,
			Percentage: percentage(r.report.ProcessedRecords, total),
			Offset:     pager.Offset(),
		})
	}
	r.page, r.videoID = 0, 0

	final, err := o.deps.Store.Counts(ctx)
	if err != nil {
		return r.fail(ErrStorageIO, fmt.Errorf("final counts: %w", err))
	}
	r.report.Final = final
	r.transition(Completed)
	return r.finish(nil)
}

// writePage applies every record of page inside one transaction.
func (r *run) writePage(ctx context.Context, norm *episode.Normalizer, page []models.LegacyVideo) error {
	tx, err := r.o.deps.Store.Begin(ctx)
	if err != nil {
		return err
	}

	var written episode.ApplyStats
	for _, v := range page {
		r.videoID = v.ID
		groups := playurl.Parse(v.PlayFrom, v.PlayURL)

		var stats episode.ApplyStats
		if r.o.cfg.ContinueOnRecordError {
			stats, err = r.applyIsolated(ctx, tx, norm, v, groups)
		} else {
			stats, err = norm.Apply(ctx, tx, v, groups)
		}
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		written.Add(stats)
	}
	r.videoID = 0

	if err := tx.Commit(); err != nil {
		return err
	}
	r.report.Written.Add(written)
	return nil
}

const recordSavepoint = "vodsync_record"

// applyIsolated writes one record behind a savepoint; a failing record is
// rolled back, counted as skipped and the page goes on.
func (r *run) applyIsolated(ctx context.Context, tx episode.PageTx, norm *episode.Normalizer, v models.LegacyVideo, groups []playurl.Group) (episode.ApplyStats, error) {
	if err := tx.Savepoint(ctx, recordSavepoint); err != nil {
		return episode.ApplyStats{}, fmt.Errorf("savepoint: %w", err)
	}

	stats, err := norm.Apply(ctx, tx, v, groups)
	if err == nil {
		if err := tx.Release(ctx, recordSavepoint); err != nil {
			return episode.ApplyStats{}, fmt.Errorf("release savepoint: %w", err)
		}
		return stats, nil
	}

	if rbErr := tx.RollbackTo(ctx, recordSavepoint); rbErr != nil {
		return episode.ApplyStats{}, errors.Join(err, fmt.Errorf("rollback to savepoint: %w", rbErr))
	}
	if relErr := tx.Release(ctx, recordSavepoint); relErr != nil {
		return episode.ApplyStats{}, fmt.Errorf("release savepoint: %w", relErr)
	}
	r.report.SkippedRecords++
	r.log.WithFields(logrus.Fields{
		"page":     r.page,
		"video_id": v.ID,
	}).WithError(err).Warn("record skipped")
	return episode.ApplyStats{}, nil
}

func (r *run) transition(next State) {
	if !r.state.CanTransition(next) {
		panic(fmt.Sprintf("resync: invalid transition %s -> %s", r.state, next))
	}
	ev := StateEvent{RunID: r.id, From: r.state, To: next, At: r.o.deps.Now()}
	r.state = next
	r.report.State = next
	r.o.observers.OnState(ev)
}

func (r *run) fail(kind, cause error) (Report, error) {
	err := &RunError{
		Kind:  kind,
		State: r.state,
		Err:   cause,
	}
	if r.state == Paging {
		err.Page = r.page
		err.VideoID = r.videoID
	}
	r.transition(Failed)
	return r.finish(err)
}

func (r *run) finish(err error) (Report, error) {
	r.report.FinishedAt = r.o.deps.Now()
	if err != nil {
		r.report.Err = err
		r.report.Error = err.Error()
	}
	r.o.observers.OnFinish(r.report)
	return r.report, err
}

// percentage has one decimal, 250 of 250 is 100.0.
func percentage(processed, total int) float64 {
	if total <= 0 {
		return 100
	}
	return math.Round(float64(processed)*1000/float64(total)) / 10
}
