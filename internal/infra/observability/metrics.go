package observability

import (
	"time"

	"github.com/boddenberg/wallet-reports-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the report service.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	jobDuration    *prometheus.HistogramVec
	jobRuns        *prometheus.CounterVec
	dispatches     *prometheus.CounterVec
	schedulerFires *prometheus.CounterVec
	externalErrors *prometheus.CounterVec
	cacheHits      *prometheus.CounterVec
	cacheMisses    *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		jobDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reports_job_duration_seconds",
				Help:    "Duration of report job runs by kind.",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"kind"},
		),
		jobRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reports_job_runs_total",
				Help: "Report job runs by kind and outcome (completed, empty, failed).",
			},
			[]string{"kind", "outcome"},
		),
		dispatches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reports_dispatch_total",
				Help: "Per-recipient dispatch outcomes.",
			},
			[]string{"kind", "status"},
		),
		schedulerFires: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reports_scheduler_fires_total",
				Help: "Scheduler fires by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reports_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reports_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reports_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
	}
}

// RecordJobDuration records the duration of one job run.
func (m *Metrics) RecordJobDuration(kind string, d time.Duration) {
	m.jobDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// IncrJobRun counts a finished job run.
func (m *Metrics) IncrJobRun(kind, outcome string) {
	m.jobRuns.WithLabelValues(kind, outcome).Inc()
}

// IncrDispatch counts one recipient outcome.
func (m *Metrics) IncrDispatch(kind, status string) {
	m.dispatches.WithLabelValues(kind, status).Inc()
}

// IncrSchedulerFire counts a cron fire; outcome is "ok" or "error".
func (m *Metrics) IncrSchedulerFire(kind, outcome string) {
	m.schedulerFires.WithLabelValues(kind, outcome).Inc()
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

var reportKinds = []string{string(domain.ReportWeekly), string(domain.ReportMonthly)}

// Snapshot sums the cumulative counters across report kinds.
func (m *Metrics) Snapshot() *domain.DispatchMetrics {
	s := &domain.DispatchMetrics{}
	for _, kind := range reportKinds {
		for _, outcome := range []string{"completed", "empty", "failed"} {
			s.JobRuns += int64(getCounterValue(m.jobRuns, kind, outcome))
		}
		s.Sent += int64(getCounterValue(m.dispatches, kind, string(domain.DispatchSent)))
		s.Failed += int64(getCounterValue(m.dispatches, kind, string(domain.DispatchFailed)))
		s.Errored += int64(getCounterValue(m.dispatches, kind, string(domain.DispatchError)))
		s.Skipped += int64(getCounterValue(m.dispatches, kind, string(domain.DispatchSkipped)))

		ok := getCounterValue(m.schedulerFires, kind, "ok")
		failed := getCounterValue(m.schedulerFires, kind, "error")
		s.Fires += int64(ok + failed)
		s.Failures += int64(failed)
	}
	return s
}

// getCounterValue extracts the current float64 value from a CounterVec for the given labels.
func getCounterValue(cv *prometheus.CounterVec, labels ...string) float64 {
	counter := cv.WithLabelValues(labels...)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
