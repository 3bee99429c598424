// Package metrics provides Prometheus instrumentation for the memory
// engine's HTTP surface and background subsystems.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector owns every Prometheus metric the engine records.
type Collector struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	ingestTotal       *prometheus.CounterVec
	ingestDuration     prometheus.Histogram
	retrievalTotal     *prometheus.CounterVec
	retrievalDuration  *prometheus.HistogramVec
	retrievalResults   prometheus.Histogram

	consolidationCycles  *prometheus.CounterVec
	consolidationLatency prometheus.Histogram
	factsByResolution    *prometheus.CounterVec

	decaySweeps      *prometheus.CounterVec
	decayPruned      *prometheus.CounterVec
	ltpApplied       *prometheus.CounterVec
	embedderQueueLen prometheus.Gauge

	logger *zap.Logger
}

// NewCollector registers every metric under namespace and returns the
// collector ready to record.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{logger: logger.With(zap.String("component", "metrics"))}

	c.httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "http_requests_total", Help: "Total HTTP requests.",
	}, []string{"method", "path", "status"})

	c.httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Name: "http_request_duration_seconds", Help: "HTTP request duration.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	c.ingestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "ingest_total", Help: "Total ingest calls by outcome.",
	}, []string{"status"})

	c.ingestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Name: "ingest_duration_seconds", Help: "Ingest write latency.",
		Buckets: prometheus.DefBuckets,
	})

	c.retrievalTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "retrieval_total", Help: "Total retrieval calls by mode and outcome.",
	}, []string{"mode", "status"})

	c.retrievalDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Name: "retrieval_duration_seconds", Help: "Retrieval pipeline latency.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"mode"})

	c.retrievalResults = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Name: "retrieval_result_count", Help: "Number of results a retrieval returned.",
		Buckets: []float64{0, 1, 2, 5, 10, 20},
	})

	c.consolidationCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "consolidation_cycles_total", Help: "Consolidation cycles by trigger.",
	}, []string{"trigger"})

	c.consolidationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Name: "consolidation_cycle_duration_seconds", Help: "Consolidation cycle duration.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	})

	c.factsByResolution = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "facts_resolved_total", Help: "Extracted facts by conflict resolution outcome.",
	}, []string{"resolution"})

	c.decaySweeps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "decay_sweeps_total", Help: "Decay sweep passes by tier.",
	}, []string{"tier"})

	c.decayPruned = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "decay_pruned_total", Help: "Rows pruned by the decay sweep, by tier.",
	}, []string{"tier"})

	c.ltpApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "ltp_applied_total", Help: "LTP strengthening writes by source type and outcome.",
	}, []string{"source_type", "status"})

	c.embedderQueueLen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "embedder_queue_length", Help: "Pending items in the embedder fill queue.",
	})

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))
	return c
}

// RecordHTTPRequest records one HTTP request's outcome and latency.
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusClass(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordIngest records one Ingest call.
func (c *Collector) RecordIngest(status string, duration time.Duration) {
	c.ingestTotal.WithLabelValues(status).Inc()
	c.ingestDuration.Observe(duration.Seconds())
}

// RecordRetrieval records one Retrieve call.
func (c *Collector) RecordRetrieval(mode, status string, duration time.Duration, resultCount int) {
	c.retrievalTotal.WithLabelValues(mode, status).Inc()
	c.retrievalDuration.WithLabelValues(mode).Observe(duration.Seconds())
	c.retrievalResults.Observe(float64(resultCount))
}

// RecordConsolidationCycle records one consolidation cycle.
func (c *Collector) RecordConsolidationCycle(trigger string, duration time.Duration) {
	c.consolidationCycles.WithLabelValues(trigger).Inc()
	c.consolidationLatency.Observe(duration.Seconds())
}

// RecordFactResolution records one conflict-resolution outcome.
func (c *Collector) RecordFactResolution(resolution string) {
	c.factsByResolution.WithLabelValues(resolution).Inc()
}

// RecordDecaySweep records one tier's decay pass and how many rows it pruned.
func (c *Collector) RecordDecaySweep(tier string, pruned int) {
	c.decaySweeps.WithLabelValues(tier).Inc()
	c.decayPruned.WithLabelValues(tier).Add(float64(pruned))
}

// RecordLTP records one LTP strengthening attempt.
func (c *Collector) RecordLTP(sourceType, status string) {
	c.ltpApplied.WithLabelValues(sourceType, status).Inc()
}

// SetEmbedderQueueLength reports the embedder worker's current backlog.
func (c *Collector) SetEmbedderQueueLength(n int) {
	c.embedderQueueLen.Set(float64(n))
}

func statusClass(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
