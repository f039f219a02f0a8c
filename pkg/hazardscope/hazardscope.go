package hazardscope

import (
	"context"
	"fmt"

	"github.com/crimson-sun/hazardscope/internal/app"
	"github.com/crimson-sun/hazardscope/internal/config"
	"github.com/crimson-sun/hazardscope/internal/engine"
	"github.com/crimson-sun/hazardscope/internal/model"
)

// Backends lists the supported generative backend names.
var Backends = append([]string(nil), model.Backends...)

// DefaultBackend is used when Analyze is called with an empty backend.
const DefaultBackend = model.DefaultBackend

// System is a hazard analysis pipeline. Safe for concurrent use.
type System struct {
	app *app.App
}

// New loads the models, opens the store and pre-embeds the category set.
// This is an expensive operation; create once, reuse across requests.
func New(opts ...Option) (*System, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	cfg, err := resolveConfig(o)
	if err != nil {
		return nil, fmt.Errorf("hazardscope: %w", err)
	}
	a, err := app.Open(context.Background(), cfg, o.logger)
	if err != nil {
		return nil, fmt.Errorf("hazardscope: %w", err)
	}
	return &System{app: a}, nil
}

// resolveConfig layers explicit options over the file and environment configuration.
func resolveConfig(o options) (config.Config, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return config.Config{}, err
	}
	if o.modelDir != "" {
		m := &cfg.Models
		m.CLIP.ImageModel, m.CLIP.TextModel, m.CLIP.Vocab,
			m.Sentence.Model, m.Sentence.Vocab, m.Sentence.Projection = modelPaths(o.modelDir)
	}
	if o.driver != "" {
		cfg.Database.Driver, cfg.Database.DSN = o.driver, o.dsn
	}
	if o.categories != "" {
		cfg.Data.CategoryFile = o.categories
	}
	for name, key := range o.apiKeys {
		b, ok := cfg.Backends[name]
		if !ok {
			return config.Config{}, fmt.Errorf("%w: %q", model.ErrUnsupportedBackend, name)
		}
		b.APIKey = key
		cfg.Backends[name] = b
	}
	return cfg, cfg.Validate()
}

// Analyze runs the full pipeline on the image at path. A failing remote
// backend degrades the result to direct classification instead of
// returning an error; errors mean the image could not be read or decoded
// or the backend name is unknown.
func (s *System) Analyze(ctx context.Context, path, backend string) (Result, error) {
	if backend == "" {
		backend = DefaultBackend
	}
	rep, err := s.app.Engine.AnalyzeFile(ctx, path, backend)
	if err != nil {
		return Result{}, err
	}
	return resultFromReport(rep), nil
}

// Ingest loads exemplar images named <category>-<sequence>.<ext> from dir
// into the case library. descriptionFile may be empty.
func (s *System) Ingest(ctx context.Context, dir, descriptionFile string) (IngestStats, error) {
	ing, err := s.app.Ingester(descriptionFile)
	if err != nil {
		return IngestStats{}, err
	}
	st, err := ing.Run(ctx, dir)
	return IngestStats{Loaded: st.Loaded, Updated: st.Updated, Skipped: st.Skipped, Failed: st.Failed}, err
}

// Categories returns the hazard category set. Read-only.
func (s *System) Categories() []Category {
	cats := s.app.Taxonomy.Categories()
	out := make([]Category, len(cats))
	for i, c := range cats {
		out[i] = Category{ID: c.ID, Description: c.Description, Remediation: s.app.Taxonomy.Remediation(c.ID)}
	}
	return out
}

// Close releases model and database resources.
func (s *System) Close() error {
	return s.app.Close()
}

func resultFromReport(rep engine.Report) Result {
	r := rep.Result
	return Result{
		ID:                  r.ID,
		Type:                r.CategoryID,
		Description:         r.Description,
		Suggestion:          r.Suggestion,
		Confidence:          r.Confidence,
		SimilarCases:        append([]string{}, r.SimilarCases...),
		AnalysisMethod:      r.AnalysisMethod,
		Model:               r.Model,
		SemanticSimilarity:  r.SemanticSimilarity,
		LexicalSimilarity:   r.LexicalSimilarity,
		StandardDescription: r.StandardDescription,
		CreatedAt:           r.CreatedAt,
		ImageHash:           rep.ImageHash,
		CacheHit:            rep.CacheHit,
	}
}
