// Package fusion merges the direct classification with the generative
// verdict into the final analysis result.
package fusion

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/crimson-sun/hazardscope/internal/engine/reasoner"
	"github.com/crimson-sun/hazardscope/internal/engine/taxonomy"
	"github.com/crimson-sun/hazardscope/internal/logging"
	"github.com/crimson-sun/hazardscope/internal/model"
)

// RemediationFunc returns the default suggestion for a category.
type RemediationFunc func(categoryID string) string

// Fuser combines classifier and generative output.
type Fuser struct {
	remediation RemediationFunc
	now         func() time.Time
	log         *slog.Logger
}

// Option configures a Fuser.
type Option func(*Fuser)

// WithClock overrides the time source used for ids and timestamps.
func WithClock(now func() time.Time) Option {
	return func(f *Fuser) { f.now = now }
}

// WithLogger sets the logger for parse failures and recovered panics.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fuser) { f.log = l }
}

// New creates a Fuser. A nil remediation uses the generic template.
func New(remediation RemediationFunc, opts ...Option) *Fuser {
	if remediation == nil {
		remediation = taxonomy.GenericRemediation
	}
	f := &Fuser{remediation: remediation, now: time.Now}
	for _, opt := range opts {
		opt(f)
	}
	f.log = logging.OrDefault(f.log)
	return f
}

// Fuse builds the analysis result. A parsable verdict wins field by field
// over the direct classification; a failed backend or unparsable text
// yields the direct classification. Fuse never panics: a failure while
// merging degrades to the direct classification tagged MethodFallback.
func (f *Fuser) Fuse(direct model.Classification, resp reasoner.Response, similar []model.ExemplarCase, backend string) (result model.AnalysisResult) {
	now := f.now()
	defer func() {
		if r := recover(); r != nil {
			f.log.Error("fusion failed, using direct classification", "backend", backend, "panic", r)
			result = f.direct(direct, similar, backend, now, model.MethodFallback)
		}
	}()

	if resp.Failed() {
		return f.direct(direct, similar, backend, now, model.MethodDirectClassification)
	}

	v, err := ParseVerdict(resp.Text)
	if err != nil {
		f.log.Warn("generative output not parsable", "backend", backend, "error", err, "text", truncate(resp.Text, 200))
		return f.direct(direct, similar, backend, now, model.MethodDirectClassification)
	}

	result = base(similar, backend, now)
	result.AnalysisMethod = model.MethodFused
	result.CategoryID = pick(v.CategoryID, direct.CategoryID)
	result.Description = pick(v.Description, direct.Description)
	if v.Suggestion != nil {
		result.Suggestion = *v.Suggestion
	} else {
		result.Suggestion = f.remediation(direct.CategoryID)
	}
	if v.Confidence != nil {
		result.Confidence = clamp(*v.Confidence)
	} else {
		result.Confidence = clamp(direct.Confidence)
	}
	return result
}

func (f *Fuser) direct(c model.Classification, similar []model.ExemplarCase, backend string, now time.Time, method string) model.AnalysisResult {
	r := base(similar, backend, now)
	r.AnalysisMethod = method
	r.CategoryID = c.CategoryID
	r.Description = c.Description
	r.Confidence = clamp(c.Confidence)
	r.Suggestion = f.safeRemediation(c.CategoryID)
	return r
}

func (f *Fuser) safeRemediation(id string) (s string) {
	defer func() {
		if r := recover(); r != nil {
			s = taxonomy.GenericRemediation(id)
		}
	}()
	return f.remediation(id)
}

func base(similar []model.ExemplarCase, backend string, now time.Time) model.AnalysisResult {
	descs := make([]string, 0, min(len(similar), model.MaxSimilarCases))
	for _, c := range similar {
		if len(descs) == model.MaxSimilarCases {
			break
		}
		descs = append(descs, c.Description)
	}
	return model.AnalysisResult{
		ID:           NewID(now),
		SimilarCases: descs,
		Model:        backend,
		CreatedAt:    now,
	}
}

// NewID derives a result id from the timestamp plus a random suffix.
func NewID(now time.Time) string {
	return fmt.Sprintf("analysis_%s_%s", now.Format("20060102_150405"), uuid.NewString()[:8])
}

func pick(v *string, fallback string) string {
	if v != nil {
		return *v
	}
	return fallback
}

func clamp(v float64) float64 {
	switch {
	case v != v, v < 0: // NaN or negative
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
