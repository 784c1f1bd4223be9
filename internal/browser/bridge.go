package browser

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/chenjy16/webtools-sub001/internal/analysis"
	"github.com/chenjy16/webtools-sub001/internal/metrics"
)

const (
	userAgent       = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
	defaultTimeout  = 45 * time.Second
	defaultSettle   = 1500 * time.Millisecond
	maxRenderedHTML = 8 << 20
)

// Bridge renders pages in headless Chrome so script-built content is part
// of the snapshot. It implements analysis.Snapshotter.
type Bridge struct {
	profileDir   string
	headless     bool
	timeout      time.Duration
	settle       time.Duration
	maxTextChars int
	logger       *slog.Logger
}

// BridgeConfig holds configuration for the browser bridge.
type BridgeConfig struct {
	ProfileDir   string // Chrome user data directory (persists cookies/sessions)
	Headless     bool
	Timeout      time.Duration
	Settle       time.Duration // wait after load for late scripts
	MaxTextChars int
	Logger       *slog.Logger
}

func NewBridge(cfg BridgeConfig) *Bridge {
	if cfg.ProfileDir == "" {
		home, _ := os.UserHomeDir()
		cfg.ProfileDir = filepath.Join(home, ".toolblog", "chrome-profile")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Settle <= 0 {
		cfg.Settle = defaultSettle
	}
	return &Bridge{
		profileDir:   cfg.ProfileDir,
		headless:     cfg.Headless,
		timeout:      cfg.Timeout,
		settle:       cfg.Settle,
		maxTextChars: cfg.MaxTextChars,
		logger:       cfg.Logger,
	}
}

func (b *Bridge) allocatorOptions(headless bool) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserDataDir(b.profileDir),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(userAgent),
	)
	if headless {
		return append(opts, chromedp.Headless)
	}
	return append(opts, chromedp.Flag("headless", false))
}

// NewContext creates a chromedp context with the bridge's Chrome profile.
// The caller MUST call cancel() when done.
func (b *Bridge) NewContext(parentCtx context.Context) (context.Context, context.CancelFunc) {
	if err := os.MkdirAll(b.profileDir, 0o755); err != nil {
		b.logger.Error("failed to create profile dir", "dir", b.profileDir, "err", err)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parentCtx, b.allocatorOptions(b.headless)...)
	taskCtx, taskCancel := chromedp.NewContext(allocCtx)

	return taskCtx, func() {
		taskCancel()
		allocCancel()
	}
}

// Login opens a visible browser so the user can sign in to a site whose
// pages need a session. Cookies stay in the profile directory for later
// snapshots. It returns when ctx is cancelled.
func (b *Bridge) Login(ctx context.Context, rawURL string) error {
	u, err := analysis.NormalizeURL(rawURL)
	if err != nil {
		return err
	}
	b.logger.Info("opening browser for login", "url", u)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, b.allocatorOptions(false)...)
	defer allocCancel()
	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	if err := chromedp.Run(taskCtx, chromedp.Navigate(u.String())); err != nil {
		return fmt.Errorf("navigate to login page: %w", err)
	}

	b.logger.Info("browser opened. Log in, then press Ctrl+C.")
	<-ctx.Done()
	b.logger.Info("login session saved", "profile", b.profileDir)
	return nil
}

// Snapshot renders rawURL and summarises the resulting DOM.
func (b *Bridge) Snapshot(ctx context.Context, rawURL string) (*analysis.Snapshot, error) {
	u, err := analysis.NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}

	taskCtx, cancel := b.NewContext(ctx)
	defer cancel()
	taskCtx, timeoutCancel := context.WithTimeout(taskCtx, b.timeout)
	defer timeoutCancel()

	start := time.Now()
	resp, err := chromedp.RunResponse(taskCtx, chromedp.Navigate(u.String()))
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", u, err)
	}
	status := 0
	if resp != nil {
		status = int(resp.Status)
	}
	if status >= 400 {
		return nil, fmt.Errorf("render %s: HTTP %d", u, status)
	}

	var finalURL, doc string
	err = chromedp.Run(taskCtx,
		chromedp.WaitReady("body"),
		chromedp.Sleep(b.settle),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &doc, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("read rendered page: %w", err)
	}
	loadTime := time.Since(start)

	if len(doc) > maxRenderedHTML {
		doc = doc[:maxRenderedHTML]
	}
	base, err := url.Parse(finalURL)
	if err != nil {
		base = u
	}
	snap, err := analysis.ExtractSnapshot(strings.NewReader(doc), base, b.maxTextChars)
	if err != nil {
		return nil, err
	}
	snap.URL = u.String()
	snap.Status = status
	snap.LoadTimeMs = loadTime.Milliseconds()
	snap.Via = "browser"
	snap.FetchedAt = time.Now().UTC()

	metrics.PageSnapshots.Inc("browser")
	b.logger.Debug("rendered snapshot", "url", snap.URL, "status", status, "words", snap.WordCount)
	return snap, nil
}

var _ analysis.Snapshotter = (*Bridge)(nil)
