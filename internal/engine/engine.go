// Package engine runs one image through the hazard analysis pipeline:
// normalize, classify and retrieve, generate, fuse, score, cache.
package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/crimson-sun/hazardscope/internal/cache"
	"github.com/crimson-sun/hazardscope/internal/engine/classifier"
	"github.com/crimson-sun/hazardscope/internal/engine/fusion"
	"github.com/crimson-sun/hazardscope/internal/engine/imaging"
	"github.com/crimson-sun/hazardscope/internal/engine/reasoner"
	"github.com/crimson-sun/hazardscope/internal/engine/similarity"
	"github.com/crimson-sun/hazardscope/internal/logging"
	"github.com/crimson-sun/hazardscope/internal/metrics"
	"github.com/crimson-sun/hazardscope/internal/model"
)

// Defaults for retrieval breadth.
const (
	DefaultTopK    = 5
	DefaultFewShot = 3
)

// Report is the outcome of analyzing one image.
type Report struct {
	Result    model.AnalysisResult
	ImageHash string
	CacheHit  bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithTopK sets how many similar exemplars are retrieved per image.
func WithTopK(k int) Option {
	return func(e *Engine) { e.topK = k }
}

// WithFewShot sets how many random exemplars are shown to the backend.
func WithFewShot(n int) Option {
	return func(e *Engine) { e.fewShot = n }
}

// WithMetrics records analyses and stage latencies.
func WithMetrics(m *metrics.PipelineMetrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// Engine orchestrates the analysis stages. It is safe for concurrent use.
type Engine struct {
	classifier *classifier.Classifier
	reasoner   *reasoner.Reasoner
	fuser      *fusion.Fuser
	scorer     *similarity.Scorer
	cache      *cache.Cache

	topK    int
	fewShot int
	metrics *metrics.PipelineMetrics
	log     *slog.Logger

	inflight singleflight.Group
}

// New creates an Engine with the provided components.
func New(cls *classifier.Classifier, rsn *reasoner.Reasoner, fsr *fusion.Fuser, scr *similarity.Scorer, c *cache.Cache, opts ...Option) *Engine {
	e := &Engine{
		classifier: cls,
		reasoner:   rsn,
		fuser:      fsr,
		scorer:     scr,
		cache:      c,
		topK:       DefaultTopK,
		fewShot:    DefaultFewShot,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = logging.OrDefault(e.log)
	return e
}

// Cache returns the result cache.
func (e *Engine) Cache() *cache.Cache { return e.cache }

// AnalyzeFile analyzes the image at path with the named backend. A result
// cached for the same content and backend is returned without running
// the pipeline. Concurrent requests for the same content and backend share
// one pipeline run.
func (e *Engine) AnalyzeFile(ctx context.Context, path, backend string) (Report, error) {
	if !model.IsSupportedBackend(backend) {
		return Report{}, fmt.Errorf("%w: %q", model.ErrUnsupportedBackend, backend)
	}

	hash, err := cache.HashFile(path)
	if err != nil {
		return Report{}, err
	}

	if r, ok := e.cache.Lookup(ctx, hash, backend); ok {
		e.log.Info("cache hit", "hash", hash[:8], "backend", backend, "id", r.ID)
		return Report{Result: r, ImageHash: hash, CacheHit: true}, nil
	}

	v, err, shared := e.inflight.Do(hash+"/"+backend, func() (any, error) {
		// Waiters joining this call must not inherit the first caller's cancellation.
		return e.run(context.WithoutCancel(ctx), path, hash, backend)
	})
	if err != nil {
		return Report{}, err
	}
	r := v.(model.AnalysisResult)
	if shared {
		r.SimilarCases = append([]string(nil), r.SimilarCases...)
	}
	return Report{Result: r, ImageHash: hash}, nil
}

func (e *Engine) run(ctx context.Context, path, hash, backend string) (model.AnalysisResult, error) {
	start := time.Now()

	img, err := stage(e, "normalize", func() (*image.RGBA, error) { return imaging.Load(path) })
	if err != nil {
		return model.AnalysisResult{}, err
	}
	jpeg, err := stage(e, "encode", func() ([]byte, error) { return imaging.Encode(img) })
	if err != nil {
		return model.AnalysisResult{}, fmt.Errorf("engine: encode: %w", err)
	}

	direct, similar := e.classify(ctx, img)

	fewShot, err := e.classifier.SampleExemplars(ctx, e.fewShot)
	if err != nil {
		e.log.Warn("few-shot sampling failed", "error", err)
		fewShot = nil
	}

	resp, _ := stage(e, "generate", func() (reasoner.Response, error) {
		return e.reasoner.Analyze(ctx, jpeg, similar, fewShot, backend), nil
	})

	result := e.fuser.Fuse(direct, resp, similar, backend)

	stage(e, "score", func() (struct{}, error) {
		e.scorer.Apply(&result)
		return struct{}{}, nil
	})

	switch {
	case resp.Failed():
		e.log.Warn("backend failed, result not cached", "hash", hash[:8], "backend", backend, "error", resp.Err)
	case !e.cache.Store(ctx, hash, result, backend):
		e.log.Warn("result not cached", "hash", hash[:8], "backend", backend)
	}

	e.metrics.RecordAnalysis(backend, result.AnalysisMethod)
	e.log.Info("image analyzed",
		"hash", hash[:8],
		"backend", backend,
		"type", result.CategoryID,
		"method", result.AnalysisMethod,
		"confidence", result.Confidence,
		"duration", time.Since(start))
	return result, nil
}

// classify embeds img once for both zero-shot classification and
// retrieval. Failures degrade rather than abort.
func (e *Engine) classify(ctx context.Context, img image.Image) (model.Classification, []model.ExemplarCase) {
	vec, err := stage(e, "embed", func() ([]float32, error) { return e.classifier.Embed(img) })
	if err != nil {
		e.log.Warn("image embedding failed, continuing without classification", "error", err)
		return classifier.Degraded(err), nil
	}
	direct := e.classifier.ClassifyVector(vec)

	similar, err := e.classifier.RetrieveByVector(ctx, vec, e.topK)
	if err != nil {
		e.log.Warn("similar case retrieval failed", "error", err)
		similar = nil
	}
	return direct, similar
}

// stage times fn under name.
func stage[T any](e *Engine, name string, fn func() (T, error)) (T, error) {
	start := time.Now()
	v, err := fn()
	e.metrics.RecordStage(name, time.Since(start))
	return v, err
}

// IsUserError reports whether err was caused by the request rather than
// the system.
func IsUserError(err error) bool {
	return errors.Is(err, model.ErrDecode) || errors.Is(err, model.ErrUnsupportedBackend)
}
