package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the sync daemon.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	operationDuration *prometheus.HistogramVec
	externalErrors    *prometheus.CounterVec
	cacheHits         *prometheus.CounterVec
	cacheMisses       *prometheus.CounterVec
	syncRuns          *prometheus.CounterVec
	transactions      *prometheus.CounterVec
	strategyOutcomes  *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bucketsync_operation_duration_seconds",
				Help:    "Duration of pipeline operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bucketsync_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bucketsync_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bucketsync_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		syncRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bucketsync_runs_total",
				Help: "Total sync runs by status.",
			},
			[]string{"status"},
		),
		transactions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bucketsync_transactions_total",
				Help: "Transactions handled per run outcome.",
			},
			[]string{"outcome"}, // seen, new, duplicate, skipped
		),
		strategyOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bucketsync_classifier_strategy_total",
				Help: "Classification strategy attempts by outcome.",
			},
			[]string{"strategy", "outcome"}, // outcome: matched, unmatched, error
		),
	}
}

// RecordOperationDuration records the duration of a pipeline operation.
func (m *Metrics) RecordOperationDuration(operation string, d time.Duration) {
	m.operationDuration.WithLabelValues(operation).Observe(d.Seconds())
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

// IncrSyncRun increments the run counter with a status label.
func (m *Metrics) IncrSyncRun(status string) {
	m.syncRuns.WithLabelValues(status).Inc()
}

// IncrTransaction increments the transaction counter for an outcome.
func (m *Metrics) IncrTransaction(outcome string) {
	m.transactions.WithLabelValues(outcome).Inc()
}

// IncrStrategy increments the classifier strategy counter.
func (m *Metrics) IncrStrategy(strategy, outcome string) {
	m.strategyOutcomes.WithLabelValues(strategy, outcome).Inc()
}

// SyncSnapshot is a point-in-time view of the sync counters, served by the
// GET /status endpoint.
type SyncSnapshot struct {
	RunsOK       int64 `json:"runs_ok"`
	RunsFailed   int64 `json:"runs_failed"`
	Seen         int64 `json:"transactions_seen"`
	New          int64 `json:"transactions_new"`
	Duplicates   int64 `json:"transactions_duplicate"`
	Skipped      int64 `json:"transactions_skipped"`
	SearchHits   int64 `json:"search_cache_hits"`
	SearchMisses int64 `json:"search_cache_misses"`
}

// GetSyncSnapshot gathers cumulative counter values for the status endpoint.
func (m *Metrics) GetSyncSnapshot() *SyncSnapshot {
	return &SyncSnapshot{
		RunsOK:       int64(getCounterValue(m.syncRuns, "ok")),
		RunsFailed:   int64(getCounterValue(m.syncRuns, "failed")),
		Seen:         int64(getCounterValue(m.transactions, "seen")),
		New:          int64(getCounterValue(m.transactions, "new")),
		Duplicates:   int64(getCounterValue(m.transactions, "duplicate")),
		Skipped:      int64(getCounterValue(m.transactions, "skipped")),
		SearchHits:   int64(getCounterValue(m.cacheHits, "search")),
		SearchMisses: int64(getCounterValue(m.cacheMisses, "search")),
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
