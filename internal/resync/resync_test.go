package resync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/937bb/937cms-sub001/internal/config"
	"github.com/937bb/937cms-sub001/internal/episode"
	"github.com/937bb/937cms-sub001/internal/player"
	"github.com/937bb/937cms-sub001/internal/vod"
	"github.com/937bb/937cms-sub001/pkg/database"
	"github.com/937bb/937cms-sub001/pkg/database/dbtest"
	"github.com/937bb/937cms-sub001/pkg/models"
)

var stamp = time.Unix(1_700_000_000, 0)

var errDisk = errors.New("disk I/O error")

type fixture struct {
	db     *sql.DB
	videos VideoReader
	store  Store
	deps   Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.OpenEmpty(t)
	f := &fixture{
		db:     db,
		videos: vod.NewRepo(db, database.SQLite),
		store:  episode.NewRepo(db, database.SQLite),
	}
	f.deps = Deps{
		Videos:  f.videos,
		Players: player.NewRepo(db),
		Store:   f.store,
		Now:     func() time.Time { return stamp },
	}
	return f
}

// recorder keeps every event it sees.
type recorder struct {
	states   []StateEvent
	progress []Progress
	reports  []Report
}

func (r *recorder) OnState(e StateEvent)  { r.states = append(r.states, e) }
func (r *recorder) OnProgress(p Progress) { r.progress = append(r.progress, p) }
func (r *recorder) OnFinish(rep Report)   { r.reports = append(r.reports, rep) }

func (r *recorder) path() []State {
	out := make([]State, len(r.states))
	for i, e := range r.states {
		out[i] = e.To
	}
	return out
}

func (r *recorder) percentages() []float64 {
	out := make([]float64, len(r.progress))
	for i, p := range r.progress {
		out[i] = p.Percentage
	}
	return out
}

// flakyVideos fails the failCall-th page fetch.
type flakyVideos struct {
	VideoReader
	failCall int
	calls    int
}

func (f *flakyVideos) PageByOffset(ctx context.Context, limit, offset int) ([]models.LegacyVideo, error) {
	f.calls++
	if f.calls == f.failCall {
		return nil, errDisk
	}
	return f.VideoReader.PageByOffset(ctx, limit, offset)
}

// faultyStore injects failures around the real sqlite store.
type faultyStore struct {
	Store
	schemaErr   error
	truncateErr error
	truncated   bool
	// InsertSource fails for this video and source position; 0 disables.
	failVideo int64
	failSort  int
}

func (s *faultyStore) EnsureSchema(ctx context.Context) (int, error) {
	if s.schemaErr != nil {
		return 0, s.schemaErr
	}
	return s.Store.EnsureSchema(ctx)
}

func (s *faultyStore) Truncate(ctx context.Context) error {
	if s.truncateErr != nil {
		return s.truncateErr
	}
	s.truncated = true
	return s.Store.Truncate(ctx)
}

func (s *faultyStore) Begin(ctx context.Context) (episode.PageTx, error) {
	tx, err := s.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &faultyTx{PageTx: tx, store: s}, nil
}

type faultyTx struct {
	episode.PageTx
	store *faultyStore
}

func (t *faultyTx) InsertSource(ctx context.Context, src models.Source) (int64, error) {
	if src.VideoID == t.store.failVideo && src.Sort == t.store.failSort {
		return 0, errDisk
	}
	return t.PageTx.InsertSource(ctx, src)
}

func countRows(t *testing.T, db *sql.DB, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(query, args...).Scan(&n))
	return n
}

func syncConfig(pageSize int) config.SyncConfig {
	return config.SyncConfig{PageSize: pageSize, Pagination: string(vod.ModeOffset)}
}

func TestRun_250RecordsInThreePages(t *testing.T) {
	f := newFixture(t)
	dbtest.SeedPlayers(t, f.db, "p1")
	dbtest.SeedVideos(t, f.db, 250)

	rec := &recorder{}
	o, err := New(syncConfig(100), f.deps, rec)
	require.NoError(t, err)

	rep, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []State{SchemaEnsured, Truncated, Paging, Completed}, rec.path())
	assert.Equal(t, []float64{40.0, 80.0, 100.0}, rec.percentages())
	require.Len(t, rec.progress, 3)
	assert.Equal(t, 100, rec.progress[0].Processed)
	assert.Equal(t, 200, rec.progress[1].Processed)
	assert.Equal(t, 250, rec.progress[2].Processed)
	assert.Equal(t, 3, rec.progress[2].Page)

	assert.Equal(t, Completed, rep.State)
	assert.Equal(t, 250, rep.TotalRecords)
	assert.Equal(t, 250, rep.ProcessedRecords)
	assert.Equal(t, 3, rep.Pages)
	assert.Equal(t, 1, rep.MigrationsRun)
	assert.Equal(t, 1, rep.Players)
	assert.NoError(t, rep.Err)
	assert.NotEmpty(t, rep.RunID)

	// 250 p1 sources plus 125 "retired" ones; 499 p1 episodes plus 125 HD
	want := episode.Counts{Sources: 375, Episodes: 624, OrphanSources: 125}
	assert.Equal(t, want, rep.Final)
	assert.Equal(t, episode.ApplyStats{Sources: 375, Episodes: 624, Orphans: 125}, rep.Written)

	require.Len(t, rec.reports, 1)
	assert.Equal(t, rep.RunID, rec.reports[0].RunID)

	v, err := episode.NewRepo(f.db, database.SQLite).CheckInvariants(context.Background())
	require.NoError(t, err)
	assert.True(t, v.OK(), "%+v", v)
}

func TestRun_KeysetMatchesOffset(t *testing.T) {
	f := newFixture(t)
	dbtest.SeedPlayers(t, f.db, "p1")
	dbtest.SeedVideos(t, f.db, 250)

	rec := &recorder{}
	o, err := New(config.SyncConfig{PageSize: 100, Pagination: "keyset"}, f.deps, rec)
	require.NoError(t, err)

	rep, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Pages)
	assert.Equal(t, []float64{40.0, 80.0, 100.0}, rec.percentages())
	assert.Equal(t, episode.Counts{Sources: 375, Episodes: 624, OrphanSources: 125}, rep.Final)
}

func TestRun_PageFetchFailure(t *testing.T) {
	f := newFixture(t)
	dbtest.SeedPlayers(t, f.db, "p1")
	dbtest.SeedVideos(t, f.db, 250)

	f.deps.Videos = &flakyVideos{VideoReader: f.videos, failCall: 2}
	rec := &recorder{}
	o, err := New(syncConfig(100), f.deps, rec)
	require.NoError(t, err)

	rep, err := o.Run(context.Background())
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrStorageIO)
	assert.ErrorIs(t, err, errDisk)
	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, Paging, runErr.State)
	assert.Equal(t, 2, runErr.Page)

	assert.Equal(t, []State{SchemaEnsured, Truncated, Paging, Failed}, rec.path())
	assert.Equal(t, []float64{40.0}, rec.percentages())
	assert.Equal(t, Failed, rep.State)
	assert.Equal(t, 100, rep.ProcessedRecords)
	require.Len(t, rec.reports, 1)
	assert.ErrorIs(t, rec.reports[0].Err, ErrStorageIO)
	assert.NotEmpty(t, rec.reports[0].Error)

	// page 1 committed, pages 2 and 3 never written
	assert.Equal(t, 150, countRows(t, f.db, `SELECT COUNT(*) FROM bb_vod_source WHERE vod_id <= 100`))
	assert.Zero(t, countRows(t, f.db, `SELECT COUNT(*) FROM bb_vod_source WHERE vod_id > 100`))
	assert.Zero(t, countRows(t, f.db, `SELECT COUNT(*) FROM bb_vod_episode WHERE vod_id > 100`))
}

func TestRun_WriteFailureRollsBackPage(t *testing.T) {
	f := newFixture(t)
	dbtest.SeedPlayers(t, f.db, "p1")
	dbtest.SeedVideos(t, f.db, 250)

	// video 151 has two sources; the second one fails
	f.deps.Store = &faultyStore{Store: f.store, failVideo: 151, failSort: 1}
	o, err := New(syncConfig(100), f.deps)
	require.NoError(t, err)

	rep, err := o.Run(context.Background())
	require.Error(t, err)

	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.ErrorIs(t, err, ErrStorageIO)
	assert.Equal(t, 2, runErr.Page)
	assert.Equal(t, int64(151), runErr.VideoID)
	assert.Contains(t, err.Error(), "page 2, video 151")
	assert.Equal(t, 100, rep.ProcessedRecords)

	assert.Equal(t, 150, countRows(t, f.db, `SELECT COUNT(*) FROM bb_vod_source`))
	assert.Zero(t, countRows(t, f.db, `SELECT COUNT(*) FROM bb_vod_source WHERE vod_id > 100`))
}

func TestRun_ContinueOnRecordError(t *testing.T) {
	f := newFixture(t)
	dbtest.SeedPlayers(t, f.db, "p1")
	dbtest.SeedVideos(t, f.db, 250)

	f.deps.Store = &faultyStore{Store: f.store, failVideo: 151, failSort: 1}
	cfg := syncConfig(100)
	cfg.ContinueOnRecordError = true
	o, err := New(cfg, f.deps)
	require.NoError(t, err)

	rep, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Completed, rep.State)
	assert.Equal(t, 250, rep.ProcessedRecords)
	assert.Equal(t, 1, rep.SkippedRecords)
	// the first source of video 151 was rolled back with its episodes
	assert.Zero(t, countRows(t, f.db, `SELECT COUNT(*) FROM bb_vod_source WHERE vod_id = 151`))
	assert.Zero(t, countRows(t, f.db, `SELECT COUNT(*) FROM bb_vod_episode WHERE vod_id = 151`))
	assert.Equal(t, 2, countRows(t, f.db, `SELECT COUNT(*) FROM bb_vod_source WHERE vod_id = 153`))
	assert.Equal(t, episode.Counts{Sources: 373, Episodes: 622, OrphanSources: 124}, rep.Final)
}

func TestRun_SchemaFailureLeavesTablesAlone(t *testing.T) {
	f := newFixture(t)
	store := &faultyStore{Store: f.store, schemaErr: errDisk}
	f.deps.Store = store
	rec := &recorder{}
	o, err := New(syncConfig(100), f.deps, rec)
	require.NoError(t, err)

	_, err = o.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchemaApplication)
	assert.ErrorIs(t, err, errDisk)
	assert.False(t, store.truncated)
	assert.Equal(t, []State{Failed}, rec.path())
	assert.Equal(t, Idle, rec.states[0].From)
}

func TestRun_TruncateFailure(t *testing.T) {
	f := newFixture(t)
	f.deps.Store = &faultyStore{Store: f.store, truncateErr: errDisk}
	rec := &recorder{}
	o, err := New(syncConfig(100), f.deps, rec)
	require.NoError(t, err)

	_, err = o.Run(context.Background())
	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, SchemaEnsured, runErr.State)
	assert.ErrorIs(t, err, ErrStorageIO)
	assert.ErrorIs(t, err, ErrTruncate)
	assert.ErrorIs(t, err, errDisk)
	assert.Equal(t, []State{SchemaEnsured, Failed}, rec.path())
	assert.Empty(t, rec.progress)
}

func TestRun_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	dbtest.SeedPlayers(t, f.db, "p1")
	dbtest.SeedVideos(t, f.db, 40)

	o, err := New(syncConfig(7), f.deps)
	require.NoError(t, err)

	dump := func() []string {
		rows, err := f.db.Query(`
			SELECT s.id, s.vod_id, s.player_id, s.player_name, s.sort,
			       COALESCE(e.episode_num, 0), COALESCE(e.title, ''), COALESCE(e.url, ''), COALESCE(e.sort, -1)
			FROM bb_vod_source s LEFT JOIN bb_vod_episode e ON e.source_id = s.id
			ORDER BY s.id, e.sort`)
		require.NoError(t, err)
		defer rows.Close()

		var out []string
		for rows.Next() {
			var (
				sid, vid, pid     int64
				name, title, url  string
				ssort, num, esort int
			)
			require.NoError(t, rows.Scan(&sid, &vid, &pid, &name, &ssort, &num, &title, &url, &esort))
			out = append(out, fmt.Sprint(sid, vid, pid, name, ssort, num, title, url, esort))
		}
		require.NoError(t, rows.Err())
		return out
	}

	first, err := o.Run(context.Background())
	require.NoError(t, err)
	before := dump()

	second, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, before, dump())
	assert.Equal(t, first.Final, second.Final)
	assert.Equal(t, 1, first.MigrationsRun)
	assert.Zero(t, second.MigrationsRun)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestRun_OrphanPlayer(t *testing.T) {
	f := newFixture(t)
	dbtest.SeedPlayers(t, f.db, "A")
	id := dbtest.SeedVideo(t, f.db, "A$$$ghost", "t$u$$$t2$u2")

	o, err := New(syncConfig(100), f.deps)
	require.NoError(t, err)
	rep, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, episode.Counts{Sources: 2, Episodes: 2, OrphanSources: 1}, rep.Final)
	lists, err := episode.NewRepo(f.db, database.SQLite).ListByVideo(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, lists, 2)
	assert.Equal(t, "ghost", lists[1].Source.PlayerName)
	assert.Equal(t, player.OrphanID, lists[1].Source.PlayerID)
	assert.Equal(t, "u2", lists[1].Episodes[0].URL)
}

func TestRun_EmptyLegacyTableStillTruncates(t *testing.T) {
	f := newFixture(t)
	dbtest.SeedPlayers(t, f.db, "p1")
	dbtest.SeedVideos(t, f.db, 5)

	rec := &recorder{}
	o, err := New(syncConfig(100), f.deps, rec)
	require.NoError(t, err)
	_, err = o.Run(context.Background())
	require.NoError(t, err)
	require.NotZero(t, countRows(t, f.db, `SELECT COUNT(*) FROM bb_vod_source`))

	_, err = f.db.Exec(`DELETE FROM bb_vod`)
	require.NoError(t, err)
	rec.progress = nil

	rep, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Completed, rep.State)
	assert.Zero(t, rep.TotalRecords)
	assert.Equal(t, episode.Counts{}, rep.Final)
	assert.Empty(t, rec.progress)
}

// blockingVideos parks the run inside Count until released.
type blockingVideos struct {
	VideoReader
	entered chan struct{}
	release chan struct{}
}

func (b *blockingVideos) Count(ctx context.Context) (int, error) {
	close(b.entered)
	<-b.release
	return b.VideoReader.Count(ctx)
}

func TestStart_RejectsConcurrentRun(t *testing.T) {
	f := newFixture(t)
	dbtest.SeedPlayers(t, f.db, "p1")
	dbtest.SeedVideos(t, f.db, 3)

	bv := &blockingVideos{VideoReader: f.videos, entered: make(chan struct{}), release: make(chan struct{})}
	f.deps.Videos = bv
	tracker := NewTracker()
	o, err := New(syncConfig(100), f.deps, tracker)
	require.NoError(t, err)

	runID, done, err := o.Start(context.Background())
	require.NoError(t, err)
	<-bv.entered

	assert.True(t, o.Running())
	assert.True(t, tracker.Current().Running)
	assert.Equal(t, runID, tracker.Current().RunID)

	_, _, err = o.Start(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)
	_, err = o.Run(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(bv.release)
	select {
	case rep := <-done:
		assert.Equal(t, Completed, rep.State)
		assert.Equal(t, runID, rep.RunID)
	case <-time.After(10 * time.Second):
		t.Fatal("run did not finish")
	}

	require.Eventually(t, func() bool { return !o.Running() }, time.Second, 10*time.Millisecond)
	last := tracker.Last()
	require.NotNil(t, last)
	assert.Equal(t, Completed, last.State)
	assert.False(t, tracker.Current().Running)
	require.NotNil(t, tracker.Current().Progress)
	assert.Equal(t, 100.0, tracker.Current().Progress.Percentage)
}

func TestNew_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		cfg  config.SyncConfig
		deps func(Deps) Deps
		want error
	}{
		{name: "no videos", deps: func(d Deps) Deps { d.Videos = nil; return d }, want: ErrConfigurationMissing},
		{name: "no players", deps: func(d Deps) Deps { d.Players = nil; return d }, want: ErrConfigurationMissing},
		{name: "no store", deps: func(d Deps) Deps { d.Store = nil; return d }, want: ErrConfigurationMissing},
		{name: "negative page size", cfg: config.SyncConfig{PageSize: -1}, want: config.ErrInvalid},
		{name: "bad pagination", cfg: config.SyncConfig{Pagination: "cursor"}, want: config.ErrInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := f.deps
			if tt.deps != nil {
				deps = tt.deps(deps)
			}
			_, err := New(tt.cfg, deps)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	o, err := New(config.SyncConfig{}, f.deps)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultPageSize, o.cfg.PageSize)
}
