// Package similarity measures how closely a generated hazard description
// matches the standard description of its category, semantically and
// lexically.
package similarity

import (
	"log/slog"
	"math"

	"github.com/crimson-sun/hazardscope/internal/logging"
	"github.com/crimson-sun/hazardscope/internal/metrics"
	"github.com/crimson-sun/hazardscope/internal/model"
)

// Measure names used in logs and metrics.
const (
	MeasureSemantic = "semantic"
	MeasureLexical  = "lexical"
)

// Measure scores text against the standard description of a category.
// Unknown categories score 0 without error.
type Measure interface {
	Score(text, categoryID string) (float64, error)
}

// Scorer fills both similarity fields of analysis results.
type Scorer struct {
	standard map[string]string
	semantic Measure
	lexical  Measure
	metrics  *metrics.PipelineMetrics
	log      *slog.Logger
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithMetrics records score distributions and failures.
func WithMetrics(m *metrics.PipelineMetrics) Option {
	return func(s *Scorer) { s.metrics = m }
}

// WithLogger sets the logger for measure failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scorer) { s.log = l }
}

// NewScorer creates a Scorer over the standard descriptions. A nil
// measure always scores 0.
func NewScorer(standard map[string]string, semantic, lexical Measure, opts ...Option) *Scorer {
	s := &Scorer{standard: standard, semantic: semantic, lexical: lexical}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logging.OrDefault(s.log)
	return s
}

// StandardDescription returns the canonical description of a category.
func (s *Scorer) StandardDescription(categoryID string) (string, bool) {
	d, ok := s.standard[categoryID]
	return d, ok
}

// Apply sets SemanticSimilarity, LexicalSimilarity and
// StandardDescription on r. A failing measure leaves its score at 0 and
// does not affect the other. StandardDescription depends only on the
// category, so it is set for every known category whatever the measures
// return.
func (s *Scorer) Apply(r *model.AnalysisResult) {
	r.SemanticSimilarity, r.LexicalSimilarity, r.StandardDescription = 0, 0, ""

	std, ok := s.standard[r.CategoryID]
	if !ok || std == "" {
		s.log.Debug("no standard description", "type", r.CategoryID)
		return
	}
	r.StandardDescription = std
	r.SemanticSimilarity = s.score(MeasureSemantic, s.semantic, r)
	r.LexicalSimilarity = s.score(MeasureLexical, s.lexical, r)
}

func (s *Scorer) score(name string, m Measure, r *model.AnalysisResult) (score float64) {
	if m == nil {
		return 0
	}
	defer func() {
		if p := recover(); p != nil {
			s.log.Warn("similarity measure panicked", "measure", name, "type", r.CategoryID, "panic", p)
			s.metrics.RecordSimilarity(name, 0, true)
			score = 0
		}
	}()

	v, err := m.Score(r.Description, r.CategoryID)
	if err != nil {
		s.log.Warn("similarity measure failed", "measure", name, "type", r.CategoryID, "error", err)
		s.metrics.RecordSimilarity(name, 0, true)
		return 0
	}
	v = clamp(v)
	s.metrics.RecordSimilarity(name, v, false)
	return v
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
