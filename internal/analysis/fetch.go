package analysis

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/chenjy16/webtools-sub001/internal/metrics"
)

const (
	defaultMaxPageBytes = 2 << 20
	defaultMaxTextChars = 6000
	defaultUserAgent    = "Mozilla/5.0 (compatible; toolblog-analyzer/1.0)"
)

// HTTPFetcher snapshots pages with a plain HTTP GET. Script-rendered content
// is not seen; use the browser bridge for that.
type HTTPFetcher struct {
	client       *http.Client
	maxPageBytes int64
	maxTextChars int
	userAgent    string
	logger       *slog.Logger
}

type FetcherConfig struct {
	MaxPageBytes int
	MaxTextChars int
	Timeout      time.Duration
	UserAgent    string
	Client       *http.Client // optional, for tests
	Logger       *slog.Logger
}

func NewHTTPFetcher(cfg FetcherConfig) *HTTPFetcher {
	if cfg.MaxPageBytes <= 0 {
		cfg.MaxPageBytes = defaultMaxPageBytes
	}
	if cfg.MaxTextChars <= 0 {
		cfg.MaxTextChars = defaultMaxTextChars
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &HTTPFetcher{
		client:       client,
		maxPageBytes: int64(cfg.MaxPageBytes),
		maxTextChars: cfg.MaxTextChars,
		userAgent:    cfg.UserAgent,
		logger:       cfg.Logger,
	}
}

func (f *HTTPFetcher) Snapshot(ctx context.Context, rawURL string) (*Snapshot, error) {
	u, err := NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetch %s: HTTP %d", u, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		mt, _, _ := mime.ParseMediaType(ct)
		if mt != "text/html" && mt != "application/xhtml+xml" {
			return nil, fmt.Errorf("fetch %s: not an HTML page (%s)", u, mt)
		}
	}

	body := io.LimitReader(resp.Body, f.maxPageBytes)
	snap, err := ExtractSnapshot(body, resp.Request.URL, f.maxTextChars)
	if err != nil {
		return nil, err
	}
	snap.URL = u.String()
	snap.Status = resp.StatusCode
	snap.LoadTimeMs = time.Since(start).Milliseconds()
	snap.Via = "http"
	snap.FetchedAt = time.Now().UTC()

	metrics.PageSnapshots.Inc("http")
	f.logger.Debug("page snapshot", "url", snap.URL, "status", snap.Status, "words", snap.WordCount)
	return snap, nil
}
