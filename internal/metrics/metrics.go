// Package metrics provides Prometheus metrics for the analysis pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Backend call outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
)

// PipelineMetrics contains Prometheus metrics for analysis requests.
// All methods are safe on a nil receiver, so components may run without metrics.
type PipelineMetrics struct {
	registry *prometheus.Registry

	analysesTotal       *prometheus.CounterVec
	cacheLookupsTotal   *prometheus.CounterVec
	cacheWritesTotal    *prometheus.CounterVec
	backendCallsTotal   *prometheus.CounterVec
	backendCallDuration *prometheus.HistogramVec
	stageDuration       *prometheus.HistogramVec
	similarityScore     *prometheus.HistogramVec
	similarityFailures  *prometheus.CounterVec
	exemplarsIngested   *prometheus.CounterVec

	collectors []prometheus.Collector
}

// NewPipelineMetrics creates the metrics and registers them on registry.
func NewPipelineMetrics(registry *prometheus.Registry) (*PipelineMetrics, error) {
	m := &PipelineMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *PipelineMetrics) initMetrics() {
	m.analysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hazardscope_analyses_total",
			Help: "Completed analyses by backend and analysis method",
		},
		[]string{"backend", "method"},
	)
	m.cacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hazardscope_cache_lookups_total",
			Help: "Result cache lookups by backend and result (hit, miss)",
		},
		[]string{"backend", "result"},
	)
	m.cacheWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hazardscope_cache_writes_total",
			Help: "Result cache writes by status (success, error)",
		},
		[]string{"status"},
	)
	m.backendCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hazardscope_backend_calls_total",
			Help: "Generative backend calls by backend and outcome",
		},
		[]string{"backend", "outcome"},
	)
	m.backendCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hazardscope_backend_call_duration_seconds",
			Help:    "Latency of generative backend calls",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"backend"},
	)
	m.stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hazardscope_stage_duration_seconds",
			Help:    "Duration of local pipeline stages",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		},
		[]string{"stage"},
	)
	m.similarityScore = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hazardscope_similarity_score",
			Help:    "Distribution of description similarity scores by measure",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
		[]string{"measure"},
	)
	m.similarityFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hazardscope_similarity_failures_total",
			Help: "Similarity measures that failed and defaulted to zero",
		},
		[]string{"measure"},
	)
	m.exemplarsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hazardscope_exemplars_ingested_total",
			Help: "Exemplar ingestion outcomes (loaded, updated, skipped, failed)",
		},
		[]string{"outcome"},
	)

	m.collectors = []prometheus.Collector{
		m.analysesTotal, m.cacheLookupsTotal, m.cacheWritesTotal,
		m.backendCallsTotal, m.backendCallDuration, m.stageDuration,
		m.similarityScore, m.similarityFailures, m.exemplarsIngested,
	}
}

// Describe implements prometheus.Collector.
func (m *PipelineMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors {
		c.Describe(ch)
	}
}

// Collect implements prometheus.Collector.
func (m *PipelineMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors {
		c.Collect(ch)
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *PipelineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *PipelineMetrics) RecordAnalysis(backend, method string) {
	if m == nil {
		return
	}
	m.analysesTotal.WithLabelValues(backend, method).Inc()
}

func (m *PipelineMetrics) RecordCacheLookup(backend string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookupsTotal.WithLabelValues(backend, result).Inc()
}

func (m *PipelineMetrics) RecordCacheWrite(ok bool) {
	if m == nil {
		return
	}
	status := "success"
	if !ok {
		status = "error"
	}
	m.cacheWritesTotal.WithLabelValues(status).Inc()
}

func (m *PipelineMetrics) RecordBackendCall(backend, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.backendCallsTotal.WithLabelValues(backend, outcome).Inc()
	m.backendCallDuration.WithLabelValues(backend).Observe(d.Seconds())
}

func (m *PipelineMetrics) RecordStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *PipelineMetrics) RecordSimilarity(measure string, score float64, failed bool) {
	if m == nil {
		return
	}
	if failed {
		m.similarityFailures.WithLabelValues(measure).Inc()
		return
	}
	m.similarityScore.WithLabelValues(measure).Observe(score)
}

func (m *PipelineMetrics) RecordIngest(outcome string) {
	if m == nil {
		return
	}
	m.exemplarsIngested.WithLabelValues(outcome).Inc()
}
