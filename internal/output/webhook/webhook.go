// Package webhook delivers analysis records to an HTTP endpoint as JSON
// arrays, batching by count and by time.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/crimson-sun/hazardscope/internal/httpclient"
	"github.com/crimson-sun/hazardscope/internal/logging"
	"github.com/crimson-sun/hazardscope/internal/output"
)

const (
	defaultBatchSize     = 20
	defaultFlushInterval = 5 * time.Second
	defaultTimeout       = 10 * time.Second
	defaultBackoff       = time.Second
	maxRetries           = 3
)

type settings struct {
	headers       map[string]string
	batchSize     int
	flushInterval time.Duration
	transport     http.RoundTripper
	backoff       time.Duration
	verbosity     output.Verbosity
	onError       func(error)
	log           *slog.Logger
}

// Option configures a webhook Output.
type Option func(*settings)

// WithHeaders adds headers to every POST, e.g. an auth token.
func WithHeaders(h map[string]string) Option {
	return func(s *settings) { s.headers = h }
}

// WithBatchSize sets how many records trigger an immediate send. Default: 20.
func WithBatchSize(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithFlushInterval bounds how long a record waits for its batch to fill. Default: 5s.
func WithFlushInterval(d time.Duration) Option {
	return func(s *settings) { s.flushInterval = d }
}

// WithTransport sets the base transport under the retry layer.
func WithTransport(rt http.RoundTripper) Option {
	return func(s *settings) { s.transport = rt }
}

// WithRetryBackoff sets the first retry delay. Default: 1s.
func WithRetryBackoff(d time.Duration) Option {
	return func(s *settings) { s.backoff = d }
}

// WithVerbosity sets how much of each record is sent. Default: Standard.
func WithVerbosity(v output.Verbosity) Option {
	return func(s *settings) { s.verbosity = v }
}

// WithOnError receives errors from sends that no caller is waiting on.
func WithOnError(f func(error)) Option {
	return func(s *settings) { s.onError = f }
}

// WithLogger sets the logger used for retries and the default error handler.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.log = l }
}

// Output is an output.Output posting to a single URL. Throttled and 5xx
// responses are retried by the shared httpclient transport.
type Output struct {
	url    string
	cfg    settings
	client *http.Client

	mu      sync.Mutex
	pending []output.Record
	timer   *time.Timer

	sendMu sync.Mutex
}

// New creates a webhook output targeting url.
func New(url string, opts ...Option) *Output {
	cfg := settings{
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
		backoff:       defaultBackoff,
		verbosity:     output.Standard,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.log = logging.OrDefault(cfg.log).With("output", "webhook")
	if cfg.onError == nil {
		log := cfg.log
		cfg.onError = func(err error) { log.Warn("webhook flush failed", "url", url, "error", err) }
	}

	client := httpclient.NewClient(cfg.transport,
		httpclient.WithMaxRetries(maxRetries),
		httpclient.WithBackoff(cfg.backoff),
		httpclient.WithLogger(cfg.log),
	)
	client.Timeout = defaultTimeout

	return &Output{url: url, cfg: cfg, client: client}
}

// Write queues rec. A full batch is sent before Write returns and its
// error is returned to the caller.
func (o *Output) Write(ctx context.Context, rec output.Record) error {
	o.mu.Lock()
	o.pending = append(o.pending, output.FormatRecord(rec, o.cfg.verbosity))
	switch {
	case len(o.pending) >= o.cfg.batchSize:
		batch := o.takeLocked()
		o.mu.Unlock()
		return o.send(ctx, batch)
	case o.timer == nil:
		o.timer = time.AfterFunc(o.cfg.flushInterval, o.flushTimer)
	}
	o.mu.Unlock()
	return nil
}

// Close sends whatever is pending.
func (o *Output) Close() error {
	o.mu.Lock()
	batch := o.takeLocked()
	o.mu.Unlock()
	return o.send(context.Background(), batch)
}

func (o *Output) flushTimer() {
	o.mu.Lock()
	batch := o.takeLocked()
	o.mu.Unlock()
	if err := o.send(context.Background(), batch); err != nil {
		o.cfg.onError(err)
	}
}

// takeLocked detaches the pending batch and disarms the timer.
func (o *Output) takeLocked() []output.Record {
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
	batch := o.pending
	o.pending = nil
	return batch
}

func (o *Output) send(ctx context.Context, batch []output.Record) error {
	if len(batch) == 0 {
		return nil
	}
	body, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}

	o.sendMu.Lock()
	defer o.sendMu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range o.cfg.headers {
		req.Header.Set(k, v)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: HTTP %d (%d records)", resp.StatusCode, len(batch))
	}
	o.cfg.log.Debug("webhook batch delivered", "records", len(batch))
	return nil
}
