// Package metrics defines the Prometheus collectors of the index build,
// merge and search paths. A Metrics value is created once per process and
// passed to the components that record into it; a nil *Metrics records
// nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector.
type Metrics struct {
	DocsIndexedTotal       prometheus.Counter
	DocsSkippedTotal       prometheus.Counter
	TermsInsertedTotal     *prometheus.CounterVec
	PartitionFlushesTotal  *prometheus.CounterVec
	PartitionBytesWritten  *prometheus.CounterVec
	ArenaBytes             *prometheus.GaugeVec
	MergeRangesTotal       *prometheus.CounterVec
	MergeRangeDuration     *prometheus.HistogramVec
	MergesInFlight         prometheus.Gauge
	ShardLoadsTotal        *prometheus.CounterVec
	SearchQueriesTotal     *prometheus.CounterVec
	SearchLatency          prometheus.Histogram
	CacheHitsTotal         prometheus.Counter
	CacheMissesTotal       prometheus.Counter
	CompletionEventsFailed prometheus.Counter

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with reg. Passing a fresh
// prometheus.NewRegistry keeps tests independent of the global registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DocsIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "docs_indexed_total",
				Help: "Total documents added to build partitions.",
			},
		),
		DocsSkippedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "docs_skipped_total",
				Help: "Documents skipped because they were already indexed.",
			},
		),
		TermsInsertedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "terms_inserted_total",
				Help: "Term occurrences inserted by granularity (word, pair, trine).",
			},
			[]string{"granularity"},
		),
		PartitionFlushesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "partition_flushes_total",
				Help: "Partition file writes by status.",
			},
			[]string{"status"},
		),
		PartitionBytesWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "partition_bytes_written_total",
				Help: "Bytes of partition files written by phase (build, merge).",
			},
			[]string{"phase"},
		),
		ArenaBytes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "arena_bytes",
				Help: "Bytes reserved by partition arenas by granularity.",
			},
			[]string{"granularity"},
		),
		MergeRangesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "merge_ranges_total",
				Help: "Merged output ranges by status.",
			},
			[]string{"status"},
		),
		MergeRangeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "merge_range_duration_seconds",
				Help:    "Time to merge one output range.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
			},
			[]string{"granularity"},
		),
		MergesInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "merges_in_flight",
				Help: "Range merges currently running.",
			},
		),
		ShardLoadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shard_loads_total",
				Help: "Partition loads on the query path by result (loaded, missing, error).",
			},
			[]string{"result"},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total search queries by result type (hit, miss, zero_result, error).",
			},
			[]string{"result_type"},
		),
		SearchLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Search latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of result cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of result cache misses.",
			},
		),
		CompletionEventsFailed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "completion_events_failed_total",
				Help: "Index-complete events that could not be published.",
			},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.DocsIndexedTotal,
			m.DocsSkippedTotal,
			m.TermsInsertedTotal,
			m.PartitionFlushesTotal,
			m.PartitionBytesWritten,
			m.ArenaBytes,
			m.MergeRangesTotal,
			m.MergeRangeDuration,
			m.MergesInFlight,
			m.ShardLoadsTotal,
			m.SearchQueriesTotal,
			m.SearchLatency,
			m.CacheHitsTotal,
			m.CacheMissesTotal,
			m.CompletionEventsFailed,
		)
		if g, ok := reg.(prometheus.Gatherer); ok {
			m.gatherer = g
		}
	}
	return m
}

// DocIndexed counts one document added to the build.
func (m *Metrics) DocIndexed() {
	if m == nil {
		return
	}
	m.DocsIndexedTotal.Inc()
}

// DocSkipped counts one redelivered document.
func (m *Metrics) DocSkipped() {
	if m == nil {
		return
	}
	m.DocsSkippedTotal.Inc()
}

// TermsInserted counts n insertions of one granularity.
func (m *Metrics) TermsInserted(granularity string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.TermsInsertedTotal.WithLabelValues(granularity).Add(float64(n))
}

// PartitionWritten records a partition file write attempt.
func (m *Metrics) PartitionWritten(phase string, bytes int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.PartitionFlushesTotal.WithLabelValues("error").Inc()
		return
	}
	m.PartitionFlushesTotal.WithLabelValues("ok").Inc()
	m.PartitionBytesWritten.WithLabelValues(phase).Add(float64(bytes))
}

// SetArenaBytes reports the arena size of one granularity.
func (m *Metrics) SetArenaBytes(granularity string, bytes int64) {
	if m == nil {
		return
	}
	m.ArenaBytes.WithLabelValues(granularity).Set(float64(bytes))
}

// MergeStarted marks a range merge as running and returns the function that
// records its outcome.
func (m *Metrics) MergeStarted(granularity string) func(err error) {
	if m == nil {
		return func(error) {}
	}
	start := time.Now()
	m.MergesInFlight.Inc()
	return func(err error) {
		m.MergesInFlight.Dec()
		m.MergeRangeDuration.WithLabelValues(granularity).Observe(time.Since(start).Seconds())
		status := "ok"
		if err != nil {
			status = "error"
		}
		m.MergeRangesTotal.WithLabelValues(status).Inc()
	}
}

// ShardLoaded records a query-path partition load.
func (m *Metrics) ShardLoaded(result string) {
	if m == nil {
		return
	}
	m.ShardLoadsTotal.WithLabelValues(result).Inc()
}

// SearchDone records one query.
func (m *Metrics) SearchDone(resultType string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	m.SearchLatency.Observe(elapsed.Seconds())
}

// CacheLookup records a result cache hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.Inc()
	} else {
		m.CacheMissesTotal.Inc()
	}
}

// CompletionEventFailed counts an index-complete event that was dropped.
func (m *Metrics) CompletionEventFailed() {
	if m == nil {
		return
	}
	m.CompletionEventsFailed.Inc()
}

// Handler returns the scrape handler for the registry m was created with,
// falling back to the default registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
