// Package cache memoizes analysis results by image content and backend.
package cache

import (
	"context"
	"log/slog"

	"github.com/crimson-sun/hazardscope/internal/logging"
	"github.com/crimson-sun/hazardscope/internal/metrics"
	"github.com/crimson-sun/hazardscope/internal/model"
)

// Backing is the persistent side of the cache.
type Backing interface {
	PutResult(ctx context.Context, hash, backend string, r model.AnalysisResult) error
	GetResult(ctx context.Context, hash, backend string) (model.AnalysisResult, bool, error)
	CountResults(ctx context.Context) (map[string]int64, error)
	SimilarityAverages(ctx context.Context) (map[string]model.SimilarityAverage, error)
}

// Cache is the result cache keyed by (content hash, backend).
type Cache struct {
	backing  Backing
	backends []string
	metrics  *metrics.PipelineMetrics
	log      *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithMetrics records lookups and writes.
func WithMetrics(m *metrics.PipelineMetrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// WithLogger sets the logger for persistence failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.log = l }
}

// WithBackends sets the backends always reported by Stats, SimilarityAverages
// and CrossBackend. Defaults to model.Backends.
func WithBackends(names ...string) Option {
	return func(c *Cache) { c.backends = names }
}

// New creates a Cache over backing.
func New(backing Backing, opts ...Option) *Cache {
	c := &Cache{backing: backing, backends: model.Backends}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logging.OrDefault(c.log)
	return c
}

// Lookup returns the cached result for (hash, backend). A storage failure
// is logged and reported as a miss.
func (c *Cache) Lookup(ctx context.Context, hash, backend string) (model.AnalysisResult, bool) {
	r, ok, err := c.backing.GetResult(ctx, hash, backend)
	if err != nil {
		c.log.Warn("cache lookup failed", "hash", short(hash), "backend", backend, "error", err)
		ok = false
	}
	c.metrics.RecordCacheLookup(backend, ok)
	return r, ok
}

// Store upserts r under (hash, backend). It returns false when the result
// could not be persisted; the caller keeps using r.
func (c *Cache) Store(ctx context.Context, hash string, r model.AnalysisResult, backend string) bool {
	err := c.backing.PutResult(ctx, hash, backend, r)
	c.metrics.RecordCacheWrite(err == nil)
	if err != nil {
		c.log.Warn("cache write failed", "hash", short(hash), "backend", backend, "error", err)
		return false
	}
	c.log.Debug("cached result", "hash", short(hash), "backend", backend, "id", r.ID)
	return true
}

// Stats counts cached results in total and per backend.
func (c *Cache) Stats(ctx context.Context) (model.CacheStats, error) {
	counts, err := c.backing.CountResults(ctx)
	if err != nil {
		return model.CacheStats{}, err
	}
	stats := model.CacheStats{ByModel: make(map[string]int64, len(c.backends))}
	for _, b := range c.backends {
		stats.ByModel[b] = 0
	}
	for b, n := range counts {
		stats.Total += n
		stats.ByModel[b] = n
	}
	return stats, nil
}

// SimilarityAverages returns the mean similarities per backend over
// cached results with a positive similarity. Backends without such
// results report zeros.
func (c *Cache) SimilarityAverages(ctx context.Context) (map[string]model.SimilarityAverage, error) {
	avgs, err := c.backing.SimilarityAverages(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]model.SimilarityAverage, len(c.backends))
	for _, b := range c.backends {
		out[b] = model.SimilarityAverage{}
	}
	for b, a := range avgs {
		out[b] = a
	}
	return out, nil
}

// CrossBackend returns the similarities cached for hash under every
// backend. Backends without a cached result report zeros.
func (c *Cache) CrossBackend(ctx context.Context, hash string) map[string]model.SimilarityPair {
	out := make(map[string]model.SimilarityPair, len(c.backends))
	for _, b := range c.backends {
		r, ok, err := c.backing.GetResult(ctx, hash, b)
		if err != nil {
			c.log.Warn("cache lookup failed", "hash", short(hash), "backend", b, "error", err)
		}
		if !ok {
			out[b] = model.SimilarityPair{}
			continue
		}
		out[b] = model.SimilarityPair{Semantic: r.SemanticSimilarity, Lexical: r.LexicalSimilarity}
	}
	return out
}

func short(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
