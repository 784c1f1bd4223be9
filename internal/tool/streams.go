package tool

import (
	"context"
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data/streams.yaml
var streamsYAML []byte

// Stream is one entry of the streaming directory.
type Stream struct {
	Name        string   `yaml:"name" json:"name"`
	URL         string   `yaml:"url" json:"url"`
	Category    string   `yaml:"category" json:"category"`
	Description string   `yaml:"description" json:"description"`
	Tags        []string `yaml:"tags" json:"tags"`
}

// StreamDirectory is a read-only, in-memory list of streams.
type StreamDirectory struct {
	streams []Stream
}

// LoadStreamDirectory parses a YAML document with a top-level "streams" list.
func LoadStreamDirectory(data []byte) (*StreamDirectory, error) {
	var doc struct {
		Streams []Stream `yaml:"streams"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse stream directory: %w", err)
	}
	for i, s := range doc.Streams {
		if s.Name == "" || s.URL == "" || s.Category == "" {
			return nil, fmt.Errorf("stream directory entry %d: name, url and category are required", i)
		}
	}
	return &StreamDirectory{streams: doc.Streams}, nil
}

// DefaultStreamDirectory returns the embedded directory.
func DefaultStreamDirectory() *StreamDirectory {
	d, err := LoadStreamDirectory(streamsYAML)
	if err != nil {
		panic(err)
	}
	return d
}

// Categories returns each category with its entry count.
func (d *StreamDirectory) Categories() map[string]int {
	out := make(map[string]int)
	for _, s := range d.streams {
		out[s.Category]++
	}
	return out
}

// List returns entries in category, or all entries when category is empty.
func (d *StreamDirectory) List(category string) []Stream {
	var out []Stream
	for _, s := range d.streams {
		if category == "" || strings.EqualFold(s.Category, category) {
			out = append(out, s)
		}
	}
	return out
}

// Search matches query case-insensitively against name, description and tags.
func (d *StreamDirectory) Search(query string) []Stream {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	var out []Stream
	for _, s := range d.streams {
		if strings.Contains(strings.ToLower(s.Name), q) ||
			strings.Contains(strings.ToLower(s.Description), q) {
			out = append(out, s)
			continue
		}
		for _, tag := range s.Tags {
			if strings.Contains(strings.ToLower(tag), q) {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

// StreamsTool browses the streaming directory.
type StreamsTool struct {
	dir *StreamDirectory
}

func NewStreamsTool(dir *StreamDirectory) *StreamsTool {
	if dir == nil {
		dir = DefaultStreamDirectory()
	}
	return &StreamsTool{dir: dir}
}

func (t *StreamsTool) Name() string { return "streams" }
func (t *StreamsTool) Description() string {
	return "Browse a directory of streaming video sites by category, or search by name, description and tag."
}
func (t *StreamsTool) Parameters() map[string]any {
	return ToolParameters(
		map[string]Param{
			"action":   {Type: "string", Description: "Operation", Enum: []string{"categories", "list", "search"}},
			"category": {Type: "string", Description: "Category filter for list"},
			"query":    {Type: "string", Description: "Search text"},
		},
		[]string{"action"},
	)
}

func (t *StreamsTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	switch action := ArgsString(args, "action"); action {
	case "categories":
		cats := t.dir.Categories()
		names := make([]string, 0, len(cats))
		for c := range cats {
			names = append(names, c)
		}
		sort.Strings(names)
		lines := make([]string, 0, len(names))
		for _, c := range names {
			lines = append(lines, fmt.Sprintf("%s (%d)", c, cats[c]))
		}
		return strings.Join(lines, "\n"), nil
	case "list", "":
		category := ArgsString(args, "category")
		streams := t.dir.List(category)
		if len(streams) == 0 && category != "" {
			return "", fmt.Errorf("no streams in category %q", category)
		}
		return resultJSON(streams)
	case "search":
		query := ArgsString(args, "query")
		if query == "" {
			query = ArgsString(args, "text")
		}
		if strings.TrimSpace(query) == "" {
			return "", fmt.Errorf("search requires a query")
		}
		matches := t.dir.Search(query)
		if matches == nil {
			matches = []Stream{}
		}
		return resultJSON(matches)
	default:
		return "", fmt.Errorf("unknown action %q (use categories, list or search)", action)
	}
}
