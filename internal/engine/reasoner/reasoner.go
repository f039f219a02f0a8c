// Package reasoner asks a remote multimodal model for a hazard verdict,
// prompting it with the category set, few-shot exemplars and the cases
// retrieved for the image.
package reasoner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/crimson-sun/hazardscope/internal/logging"
	"github.com/crimson-sun/hazardscope/internal/metrics"
	"github.com/crimson-sun/hazardscope/internal/model"
)

// Response is the outcome of one generative call. Err is set when the
// backend failed; Text then holds the failure marker.
type Response struct {
	Text string
	Err  error
}

// Failed reports whether no generative verdict is available.
func (r Response) Failed() bool { return r.Err != nil }

type registered struct {
	backend Backend
	timeout time.Duration
}

// Option configures a Reasoner.
type Option func(*Reasoner)

// WithBackend registers b under name. A positive timeout bounds each call.
func WithBackend(name string, b Backend, timeout time.Duration) Option {
	return func(r *Reasoner) { r.backends[name] = registered{backend: b, timeout: timeout} }
}

// WithMetrics records backend call outcomes and latency.
func WithMetrics(m *metrics.PipelineMetrics) Option {
	return func(r *Reasoner) { r.metrics = m }
}

// WithLogger sets the logger for backend failures.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reasoner) { r.log = l }
}

// Reasoner dispatches prompts to the registered backends.
type Reasoner struct {
	categories []model.HazardCategory
	backends   map[string]registered
	metrics    *metrics.PipelineMetrics
	log        *slog.Logger
}

// New creates a Reasoner that enumerates categories in every prompt.
func New(categories []model.HazardCategory, opts ...Option) *Reasoner {
	r := &Reasoner{
		categories: categories,
		backends:   make(map[string]registered),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = logging.OrDefault(r.log)
	return r
}

// Has reports whether a backend is registered under name.
func (r *Reasoner) Has(name string) bool {
	_, ok := r.backends[name]
	return ok
}

// Analyze sends the image with the constructed prompt to the named backend.
// It never returns an error: remote failures, timeouts and unknown backends
// produce a Response carrying the failure marker. Code fences around the
// returned text are removed.
func (r *Reasoner) Analyze(ctx context.Context, jpeg []byte, similar, fewShot []model.ExemplarCase, backend string) Response {
	reg, ok := r.backends[backend]
	if !ok {
		return failure(backend, fmt.Errorf("%w: %q", model.ErrUnsupportedBackend, backend))
	}

	prompt := BuildPrompt(r.categories, fewShot, similar)

	callCtx := ctx
	if reg.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, reg.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := reg.backend.Generate(callCtx, prompt, jpeg)
	elapsed := time.Since(start)

	if err != nil {
		outcome := metrics.OutcomeError
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			outcome = metrics.OutcomeTimeout
		}
		r.metrics.RecordBackendCall(backend, outcome, elapsed)
		r.log.Warn("generative backend failed", "backend", backend, "outcome", outcome, "duration", elapsed, "error", err)
		return failure(backend, err)
	}

	r.metrics.RecordBackendCall(backend, metrics.OutcomeSuccess, elapsed)
	return Response{Text: StripCodeFence(text)}
}

func failure(backend string, err error) Response {
	return Response{
		Text: fmt.Sprintf("%s analysis failed: %v", backend, err),
		Err:  fmt.Errorf("%s: %w: %w", backend, model.ErrBackend, err),
	}
}
