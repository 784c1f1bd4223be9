package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chenjy16/webtools-sub001/internal/metrics"
)

const defaultHTTPTimeout = 120 * time.Second

// NewHTTPClient returns a pooled client for talking to inference backends.
// ResponseHeaderTimeout follows timeout since local models can take a long
// time to produce the first byte.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dialer.DialContext,
			MaxIdleConns:          20,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: timeout,
		},
	}
}

// HTTPError is a non-2xx reply from an inference backend.
type HTTPError struct {
	Provider   string
	Status     int
	Body       string
	RetryAfter time.Duration
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned %d", e.Provider, e.Status)
	}
	return fmt.Sprintf("%s returned %d: %s", e.Provider, e.Status, e.Body)
}

// Transient reports whether the same request may succeed later.
func (e *HTTPError) Transient() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// readHTTPError drains up to 512 bytes of resp's body into an HTTPError.
func readHTTPError(provider string, resp *http.Response) *HTTPError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	e := &HTTPError{
		Provider: provider,
		Status:   resp.StatusCode,
		Body:     strings.TrimSpace(string(body)),
	}
	if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
		e.RetryAfter = time.Duration(secs) * time.Second
	}
	return e
}

// retrier resends a request after network failures and transient statuses,
// backing off exponentially with jitter.
type retrier struct {
	attempts int
	base     time.Duration
	ceiling  time.Duration
}

var defaultRetry = retrier{attempts: 4, base: time.Second, ceiling: 30 * time.Second}

// delay is the wait before attempt n (1-based retries). A server-supplied
// hint wins when present; both are capped at the ceiling.
func (r retrier) delay(n int, hint time.Duration) time.Duration {
	if hint > 0 {
		return min(hint, r.ceiling)
	}
	d := r.base << (n - 1)
	d += time.Duration(rand.Int64N(int64(d/2) + 1))
	return min(d, r.ceiling)
}

// do sends the request built by build until it succeeds, fails for a reason
// retrying cannot fix, or runs out of attempts. Any non-2xx reply surfaces as
// an *HTTPError.
func (r retrier) do(ctx context.Context, client *http.Client, provider string, build func() (*http.Request, error), logger *slog.Logger) (*http.Response, error) {
	var (
		lastErr error
		hint    time.Duration
	)
	for attempt := 0; attempt < r.attempts; attempt++ {
		if attempt > 0 {
			wait := r.delay(attempt, hint)
			logger.Warn("retrying inference request", "provider", provider, "attempt", attempt+1, "wait", wait, "err", lastErr)
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, ctx.Err()
			case <-t.C:
			}
		}

		req, err := build()
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr, hint = err, 0
			continue
		}
		if resp.StatusCode < 300 {
			return resp, nil
		}

		he := readHTTPError(provider, resp)
		resp.Body.Close()
		if !he.Transient() {
			metrics.InferenceCalls.Inc(provider, "rejected")
			return nil, he
		}
		lastErr, hint = he, he.RetryAfter
	}
	metrics.InferenceCalls.Inc(provider, "error")
	return nil, fmt.Errorf("gave up after %d attempts: %w", r.attempts, lastErr)
}

// observe records a completed inference call and returns its latency.
func observe(provider string, start time.Time) int64 {
	elapsed := time.Since(start)
	metrics.InferenceCalls.Inc(provider, "ok")
	metrics.InferenceLatency.Observe(elapsed.Seconds(), provider)
	return elapsed.Milliseconds()
}

// endpoint is one backend's base URL together with the client, headers and
// logger every request to it uses.
type endpoint struct {
	name   string
	base   string
	client *http.Client
	header http.Header
	logger *slog.Logger
}

func newEndpoint(name, base string, client *http.Client, logger *slog.Logger) endpoint {
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return endpoint{
		name:   name,
		base:   strings.TrimRight(base, "/"),
		client: client,
		header: make(http.Header),
		logger: logger,
	}
}

func (e endpoint) request(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, e.base+path, rd)
	if err != nil {
		return nil, err
	}
	for k, v := range e.header {
		req.Header[k] = v
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// post sends in as JSON with retries, decodes the reply into out and
// returns the call's latency in milliseconds.
func (e endpoint) post(ctx context.Context, path string, in, out any) (int64, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return 0, fmt.Errorf("%s: encode request: %w", e.name, err)
	}
	start := time.Now()
	resp, err := defaultRetry.do(ctx, e.client, e.name, func() (*http.Request, error) {
		return e.request(ctx, http.MethodPost, path, body)
	}, e.logger)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", e.name, err)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return 0, fmt.Errorf("%s: decode %s: %w", e.name, path, err)
	}
	return observe(e.name, start), nil
}

// get fetches path once and decodes the JSON reply into out.
func (e endpoint) get(ctx context.Context, path string, out any) error {
	req, err := e.request(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s not reachable: %w", e.name, err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%s: invalid API key", e.name)
	case resp.StatusCode >= 300:
		return readHTTPError(e.name, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode %s: %w", e.name, path, err)
	}
	return nil
}

// modelList remembers the model IDs a backend last reported.
type modelList struct {
	fallback string

	mu   sync.RWMutex
	seen []string
}

// get returns the last reported IDs, or the configured default before the
// backend has been asked.
func (m *modelList) get() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.seen) == 0 {
		return []string{m.fallback}
	}
	return slices.Clone(m.seen)
}

func (m *modelList) set(ids []string) {
	m.mu.Lock()
	m.seen = ids
	m.mu.Unlock()
}
