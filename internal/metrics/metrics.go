// Package metrics exposes resync runs to Prometheus.
//
//	vodsync_runs_total{result}              counter: finished runs by completed/failed
//	vodsync_run_duration_seconds            histogram: wall time of finished runs
//	vodsync_records_processed_total         counter: legacy videos visited
//	vodsync_records_skipped_total           counter: videos skipped with continue_on_record_error
//	vodsync_sources_written_total           counter: bb_vod_source rows written
//	vodsync_episodes_written_total          counter: bb_vod_episode rows written
//	vodsync_orphan_sources_written_total    counter: sources without a registered player
//	vodsync_run_progress_ratio              gauge: processed/total of the current run
//	vodsync_run_state                       gauge: numeric resync.State of the latest run
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/937bb/937cms-sub001/internal/resync"
)

type Metrics struct {
	Runs          *prometheus.CounterVec
	RunDuration   prometheus.Histogram
	Processed     prometheus.Counter
	Skipped       prometheus.Counter
	Sources       prometheus.Counter
	Episodes      prometheus.Counter
	OrphanSources prometheus.Counter
	ProgressRatio prometheus.Gauge
	State         prometheus.Gauge

	lastProcessed int
	lastSkipped   int
}

// New registers every collector on reg and panics on duplicates, like
// prometheus.MustRegister.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vodsync_runs_total",
			Help: "Finished resync runs by result.",
		}, []string{"result"}),
		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "vodsync_run_duration_seconds",
			Help:    "Wall time of finished resync runs.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		}),
		Processed: f.NewCounter(prometheus.CounterOpts{
			Name: "vodsync_records_processed_total",
			Help: "Legacy video records visited by resync runs.",
		}),
		Skipped: f.NewCounter(prometheus.CounterOpts{
			Name: "vodsync_records_skipped_total",
			Help: "Legacy video records skipped after a write error.",
		}),
		Sources: f.NewCounter(prometheus.CounterOpts{
			Name: "vodsync_sources_written_total",
			Help: "Normalized source rows written.",
		}),
		Episodes: f.NewCounter(prometheus.CounterOpts{
			Name: "vodsync_episodes_written_total",
			Help: "Normalized episode rows written.",
		}),
		OrphanSources: f.NewCounter(prometheus.CounterOpts{
			Name: "vodsync_orphan_sources_written_total",
			Help: "Source rows written without a registered player.",
		}),
		ProgressRatio: f.NewGauge(prometheus.GaugeOpts{
			Name: "vodsync_run_progress_ratio",
			Help: "Processed/total ratio of the current or last run.",
		}),
		State: f.NewGauge(prometheus.GaugeOpts{
			Name: "vodsync_run_state",
			Help: "State of the current or last run (0 idle .. 4 completed, 5 failed).",
		}),
	}
}

// Handler serves the registry the collectors were registered on.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (m *Metrics) OnState(e resync.StateEvent) {
	m.State.Set(float64(e.To))
	if e.To == resync.SchemaEnsured {
		m.ProgressRatio.Set(0)
		m.lastProcessed, m.lastSkipped = 0, 0
	}
}

func (m *Metrics) OnProgress(p resync.Progress) {
	m.Processed.Add(float64(p.Processed - m.lastProcessed))
	m.Skipped.Add(float64(p.Skipped - m.lastSkipped))
	m.lastProcessed, m.lastSkipped = p.Processed, p.Skipped
	m.ProgressRatio.Set(p.Percentage / 100)
}

// OnFinish counts rows once per run, from the report totals.
func (m *Metrics) OnFinish(r resync.Report) {
	m.Runs.WithLabelValues(r.State.String()).Inc()
	m.RunDuration.Observe(r.Duration().Seconds())
	m.Sources.Add(float64(r.Written.Sources))
	m.Episodes.Add(float64(r.Written.Episodes))
	m.OrphanSources.Add(float64(r.Written.Orphans))
	m.State.Set(float64(r.State))
	m.lastProcessed, m.lastSkipped = 0, 0
}
