// Package app assembles the analysis pipeline from configuration. It is
// shared by the command line and the public library facade.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/crimson-sun/hazardscope/internal/cache"
	"github.com/crimson-sun/hazardscope/internal/config"
	"github.com/crimson-sun/hazardscope/internal/engine"
	"github.com/crimson-sun/hazardscope/internal/engine/classifier"
	"github.com/crimson-sun/hazardscope/internal/engine/embedder"
	"github.com/crimson-sun/hazardscope/internal/engine/fusion"
	"github.com/crimson-sun/hazardscope/internal/engine/reasoner"
	"github.com/crimson-sun/hazardscope/internal/engine/similarity"
	"github.com/crimson-sun/hazardscope/internal/engine/taxonomy"
	"github.com/crimson-sun/hazardscope/internal/httpclient"
	"github.com/crimson-sun/hazardscope/internal/ingest"
	"github.com/crimson-sun/hazardscope/internal/logging"
	"github.com/crimson-sun/hazardscope/internal/metrics"
	"github.com/crimson-sun/hazardscope/internal/model"
	"github.com/crimson-sun/hazardscope/internal/store"
)

// App owns every long-lived component. Close releases them.
type App struct {
	Config   config.Config
	Log      *slog.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.PipelineMetrics
	Store    *store.Store
	CLIP     *embedder.CLIP
	Taxonomy *taxonomy.Taxonomy
	Cache    *cache.Cache
	Engine   *engine.Engine

	closers []io.Closer
}

// Open loads models, connects the store and builds the engine. Backends
// without an API key are left unregistered; requests for them fall back
// to direct classification. A missing sentence model disables semantic
// similarity instead of failing startup.
func Open(ctx context.Context, cfg config.Config, log *slog.Logger) (_ *App, err error) {
	log = logging.OrDefault(log)
	a := &App{Config: cfg, Log: log, Registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if a.Metrics, err = metrics.NewPipelineMetrics(a.Registry); err != nil {
		return nil, fmt.Errorf("app: metrics: %w", err)
	}

	a.Store, err = store.Open(cfg.Database.Driver, cfg.Database.DSN, log.With("component", "store"), cfg.Database.SlowThreshold)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.Store)

	lib := cfg.Models.ORTLibrary()
	a.CLIP, err = embedder.NewCLIP(embedder.CLIPOptions{
		LibraryPath:    lib,
		ImageModelPath: cfg.Models.CLIP.ImageModel,
		TextModelPath:  cfg.Models.CLIP.TextModel,
		VocabPath:      cfg.Models.CLIP.Vocab,
		ContextLength:  cfg.Models.CLIP.ContextLength,
		ImageSize:      cfg.Models.CLIP.ImageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	a.closers = append(a.closers, a.CLIP)

	categories, err := taxonomy.LoadCategories(cfg.Data.CategoryFile)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	if a.Taxonomy, err = taxonomy.New(categories, a.CLIP); err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	scorer := a.buildScorer(lib)
	rsn, err := a.buildReasoner(ctx)
	if err != nil {
		return nil, err
	}

	cls := classifier.New(a.CLIP, a.Taxonomy, a.Store, classifier.WithLogger(log.With("component", "classifier")))
	fsr := fusion.New(a.Taxonomy.Remediation, fusion.WithLogger(log.With("component", "fusion")))
	a.Cache = cache.New(a.Store,
		cache.WithMetrics(a.Metrics),
		cache.WithLogger(log.With("component", "cache")),
	)
	a.Engine = engine.New(cls, rsn, fsr, scorer, a.Cache,
		engine.WithTopK(cfg.Retrieval.TopK),
		engine.WithFewShot(cfg.Retrieval.FewShot),
		engine.WithMetrics(a.Metrics),
		engine.WithLogger(log.With("component", "engine")),
	)

	log.Info("pipeline ready",
		"categories", len(categories),
		"clip_dim", a.CLIP.Dim(),
		"top_k", cfg.Retrieval.TopK,
		"few_shot", cfg.Retrieval.FewShot)
	return a, nil
}

func (a *App) buildScorer(lib string) *similarity.Scorer {
	log := a.Log.With("component", "similarity")
	standard := a.Taxonomy.StandardDescriptions()

	var semantic similarity.Measure
	sc := a.Config.Models.Sentence
	enc, err := embedder.New(embedder.Options{
		LibraryPath:    lib,
		ModelPath:      sc.Model,
		VocabPath:      sc.Vocab,
		ProjectionPath: sc.Projection,
		Activation:     sc.Activation,
		Lowercase:      sc.Lowercase,
		MaxSeqLen:      sc.MaxSeqLen,
	})
	if err != nil {
		log.Warn("sentence model unavailable, semantic similarity disabled", "error", err)
	} else {
		a.closers = append(a.closers, enc)
		if s, err := similarity.NewSemantic(enc, standard); err != nil {
			log.Warn("semantic similarity disabled", "error", err)
		} else {
			semantic = s
		}
	}

	var word similarity.Analyzer
	if seg, err := similarity.NewSegmentAnalyzer(); err != nil {
		log.Warn("word segmentation unavailable, using character n-grams", "error", err)
	} else {
		word = seg
	}
	lexical := similarity.NewLexical(standard, word, log)

	return similarity.NewScorer(standard, semantic, lexical,
		similarity.WithMetrics(a.Metrics),
		similarity.WithLogger(log),
	)
}

func (a *App) buildReasoner(ctx context.Context) (*reasoner.Reasoner, error) {
	log := a.Log.With("component", "reasoner")
	opts := []reasoner.Option{
		reasoner.WithMetrics(a.Metrics),
		reasoner.WithLogger(log),
	}
	client := httpclient.NewClient(nil, httpclient.WithLogger(log))
	for _, name := range model.Backends {
		bc, ok := a.Config.Backends[name]
		if !ok {
			continue
		}
		if bc.APIKey == "" {
			a.Log.Warn("backend has no API key, requests will use direct classification", "backend", name)
			continue
		}
		b, err := reasoner.NewBackend(ctx, reasoner.BackendConfig{
			Protocol:   bc.Protocol,
			Endpoint:   bc.Endpoint,
			Model:      bc.Model,
			APIKey:     bc.APIKey,
			MaxTokens:  bc.MaxTokens,
			HTTPClient: client,
		})
		if err != nil {
			return nil, fmt.Errorf("app: backend %s: %w", name, err)
		}
		opts = append(opts, reasoner.WithBackend(name, b, bc.Timeout))
	}
	return reasoner.New(a.Taxonomy.Categories(), opts...), nil
}

// Ingester builds an exemplar ingester over the app's store and models.
// descriptionFile may be empty.
func (a *App) Ingester(descriptionFile string) (*ingest.Ingester, error) {
	opts := []ingest.Option{
		ingest.WithMetrics(a.Metrics),
		ingest.WithLogger(a.Log.With("component", "ingest")),
	}
	if descriptionFile != "" {
		desc, err := taxonomy.LoadDescriptions(descriptionFile)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		opts = append(opts, ingest.WithDescriptions(desc))
	}
	return ingest.New(a.CLIP, a.Store, a.Taxonomy, opts...), nil
}

// Close releases components in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
