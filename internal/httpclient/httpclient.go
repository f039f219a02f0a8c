// Package httpclient provides a retrying transport for calls to the remote
// generative backends.
package httpclient

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/crimson-sun/hazardscope/internal/logging"
)

const (
	defaultMaxRetries = 3
	defaultBackoff    = time.Second
	maxRetryAfter     = 30 * time.Second
)

// Option configures a Transport.
type Option func(*Transport)

// WithMaxRetries sets how many times a request is retried. Default: 3.
func WithMaxRetries(n int) Option {
	return func(t *Transport) { t.maxRetries = n }
}

// WithBackoff sets the first retry delay; later retries double it. Default: 1s.
func WithBackoff(d time.Duration) Option {
	return func(t *Transport) { t.backoff = d }
}

// WithLogger sets the logger for retries.
func WithLogger(l *slog.Logger) Option {
	return func(t *Transport) { t.log = l }
}

// Transport retries 429 responses (honouring Retry-After) and 5xx
// responses with exponential backoff. Requests whose body cannot be
// replayed are sent once.
type Transport struct {
	base       http.RoundTripper
	maxRetries int
	backoff    time.Duration
	log        *slog.Logger
}

// NewTransport wraps base; nil means http.DefaultTransport.
func NewTransport(base http.RoundTripper, opts ...Option) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	t := &Transport{base: base, maxRetries: defaultMaxRetries, backoff: defaultBackoff}
	for _, opt := range opts {
		opt(t)
	}
	t.log = logging.OrDefault(t.log)
	return t
}

// NewClient returns an http.Client using a retrying transport over base.
func NewClient(base http.RoundTripper, opts ...Option) *http.Client {
	return &http.Client{Transport: NewTransport(base, opts...)}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	replayable := req.Body == nil || req.Body == http.NoBody || req.GetBody != nil

	for attempt := 0; ; attempt++ {
		r := req
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("httpclient: rewind body: %w", err)
			}
			r = req.Clone(req.Context())
			r.Body = body
		}

		resp, err := t.base.RoundTrip(r)
		if err != nil {
			return nil, err
		}
		if !retryable(resp.StatusCode) || !replayable || attempt >= t.maxRetries {
			return resp, nil
		}

		wait := t.delay(attempt+1, resp)
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		t.log.Debug("retrying backend request",
			"host", req.URL.Host, "status", resp.StatusCode, "attempt", attempt+1, "wait", wait)

		timer := time.NewTimer(wait)
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}
	}
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// delay returns the wait before retry number attempt (1-based).
func (t *Transport) delay(attempt int, resp *http.Response) time.Duration {
	if resp.StatusCode == http.StatusTooManyRequests {
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			return min(time.Duration(secs)*time.Second, maxRetryAfter)
		}
	}
	return t.backoff << (attempt - 1)
}
