package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineMetricsRecord(t *testing.T) {
	m, err := NewPipelineMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	m.RecordAnalysis("gemini", "fused")
	m.RecordAnalysis("gemini", "fused")
	m.RecordCacheLookup("gpt4o", true)
	m.RecordCacheLookup("gpt4o", false)
	m.RecordCacheWrite(false)
	m.RecordBackendCall("gemini", OutcomeTimeout, 2*time.Second)
	m.RecordSimilarity("lexical", 0, true)
	m.RecordIngest("loaded")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.analysesTotal.WithLabelValues("gemini", "fused")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookupsTotal.WithLabelValues("gpt4o", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookupsTotal.WithLabelValues("gpt4o", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheWritesTotal.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.backendCallsTotal.WithLabelValues("gemini", OutcomeTimeout)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.similarityFailures.WithLabelValues("lexical")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.exemplarsIngested.WithLabelValues("loaded")))
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *PipelineMetrics
	assert.NotPanics(t, func() {
		m.RecordAnalysis("gemini", "fused")
		m.RecordCacheLookup("gemini", true)
		m.RecordCacheWrite(true)
		m.RecordBackendCall("gemini", OutcomeSuccess, time.Second)
		m.RecordStage("embed", time.Millisecond)
		m.RecordSimilarity("semantic", 0.5, false)
		m.RecordIngest("failed")
	})
}

func TestDoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPipelineMetrics(reg)
	require.NoError(t, err)
	_, err = NewPipelineMetrics(reg)
	assert.Error(t, err)
}

func TestHandlerExposesMetrics(t *testing.T) {
	m, err := NewPipelineMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	m.RecordStage("normalize", 5*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "hazardscope_stage_duration_seconds")
}
