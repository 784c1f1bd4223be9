// Package analysis takes snapshots of web pages and runs analysis chats
// about them against an inference provider.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ErrUnsupportedScheme is returned for URLs that are not http or https.
var ErrUnsupportedScheme = errors.New("only http and https URLs can be analyzed")

// Snapshot summarises a fetched page.
type Snapshot struct {
	URL              string    `json:"url"`
	FinalURL         string    `json:"final_url"`
	Status           int       `json:"status"`
	Title            string    `json:"title"`
	Description      string    `json:"description,omitempty"`
	Language         string    `json:"language,omitempty"`
	Headings         []Heading `json:"headings,omitempty"`
	Links            int       `json:"links"`
	ExternalLinks    int       `json:"external_links"`
	Images           int       `json:"images"`
	ImagesMissingAlt int       `json:"images_missing_alt"`
	WordCount        int       `json:"word_count"`
	Text             string    `json:"text"`
	Truncated        bool      `json:"truncated,omitempty"`
	LoadTimeMs       int64     `json:"load_time_ms"`
	Via              string    `json:"via"` // http | browser
	FetchedAt        time.Time `json:"fetched_at"`
}

type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// Snapshotter fetches a page and summarises it.
type Snapshotter interface {
	Snapshot(ctx context.Context, rawURL string) (*Snapshot, error)
}

// NormalizeURL accepts a bare host ("example.com/x") by assuming https and
// rejects every scheme other than http and https.
func NormalizeURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("url is required")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid url %q: missing host", raw)
	}
	return u, nil
}
