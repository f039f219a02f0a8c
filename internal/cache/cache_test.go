package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crimson-sun/hazardscope/internal/metrics"
	"github.com/crimson-sun/hazardscope/internal/model"
	"github.com/crimson-sun/hazardscope/internal/store"
)

func newTestCache(t *testing.T, opts ...Option) *Cache {
	t.Helper()
	s, err := store.Open(store.DriverSQLite, ":memory:", nil, 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return New(s, opts...)
}

func sample(desc string, semantic, lexical float64) model.AnalysisResult {
	return model.AnalysisResult{
		ID:                 "analysis_x",
		CategoryID:         "2",
		Description:        desc,
		SimilarCases:       []string{},
		AnalysisMethod:     model.MethodFused,
		SemanticSimilarity: semantic,
		LexicalSimilarity:  lexical,
	}
}

func TestLookupStore(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	_, ok := c.Lookup(ctx, "abc", model.BackendGemini)
	assert.False(t, ok)

	assert.True(t, c.Store(ctx, "abc", sample("first", 0.5, 0.5), model.BackendGemini))
	got, ok := c.Lookup(ctx, "abc", model.BackendGemini)
	require.True(t, ok)
	assert.Equal(t, "first", got.Description)

	// same key updates in place
	assert.True(t, c.Store(ctx, "abc", sample("second", 0.5, 0.5), model.BackendGemini))
	got, ok = c.Lookup(ctx, "abc", model.BackendGemini)
	require.True(t, ok)
	assert.Equal(t, "second", got.Description)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Total)
	assert.Equal(t, map[string]int64{model.BackendGemini: 1, model.BackendGPT4o: 0}, stats.ByModel)

	_, ok = c.Lookup(ctx, "abc", model.BackendGPT4o)
	assert.False(t, ok)
}

func TestSimilarityAveragesIncludesEveryBackend(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	require.True(t, c.Store(ctx, "h1", sample("a", 0.9, 0.3), model.BackendGPT4o))
	require.True(t, c.Store(ctx, "h2", sample("b", 0.5, 0.1), model.BackendGPT4o))

	avgs, err := c.SimilarityAverages(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.SimilarityAverage{}, avgs[model.BackendGemini])
	assert.Equal(t, int64(2), avgs[model.BackendGPT4o].Count)
	assert.InDelta(t, 0.7, avgs[model.BackendGPT4o].SemanticAvg, 1e-9)
	assert.InDelta(t, 0.2, avgs[model.BackendGPT4o].LexicalAvg, 1e-9)
}

func TestCrossBackend(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	require.True(t, c.Store(ctx, "h1", sample("a", 0.8, 0.4), model.BackendGemini))

	pairs := c.CrossBackend(ctx, "h1")
	assert.Equal(t, model.SimilarityPair{Semantic: 0.8, Lexical: 0.4}, pairs[model.BackendGemini])
	assert.Equal(t, model.SimilarityPair{}, pairs[model.BackendGPT4o])
}

type brokenBacking struct{}

var errDown = errors.New("database down")

func (brokenBacking) PutResult(context.Context, string, string, model.AnalysisResult) error {
	return errDown
}

func (brokenBacking) GetResult(context.Context, string, string) (model.AnalysisResult, bool, error) {
	return model.AnalysisResult{}, false, errDown
}

func (brokenBacking) CountResults(context.Context) (map[string]int64, error) { return nil, errDown }

func (brokenBacking) SimilarityAverages(context.Context) (map[string]model.SimilarityAverage, error) {
	return nil, errDown
}

func TestPersistenceFailures(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	m, err := metrics.NewPipelineMetrics(reg)
	require.NoError(t, err)
	c := New(brokenBacking{}, WithMetrics(m))

	assert.False(t, c.Store(ctx, "h", sample("a", 0, 0), model.BackendGemini))
	_, ok := c.Lookup(ctx, "h", model.BackendGemini)
	assert.False(t, ok)

	_, err = c.Stats(ctx)
	assert.ErrorIs(t, err, errDown)
	_, err = c.SimilarityAverages(ctx)
	assert.ErrorIs(t, err, errDown)

	pairs := c.CrossBackend(ctx, "h")
	assert.Len(t, pairs, 2)

	count, err := testutil.GatherAndCount(reg, "hazardscope_cache_writes_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
