package tool

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/chenjy16/webtools-sub001/internal/domain"
	"github.com/chenjy16/webtools-sub001/internal/metrics"
)

// ErrUnknownTool is returned by Execute when no tool has the requested name.
var ErrUnknownTool = errors.New("unknown tool")

// Registry is the set of tools the dispatcher, the web API and the CLI can
// run. It is safe for concurrent use.
type Registry struct {
	logger *slog.Logger

	mu    sync.RWMutex
	tools map[string]domain.Tool
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger, tools: make(map[string]domain.Tool)}
}

// Register adds t, replacing any tool of the same name.
func (r *Registry) Register(t domain.Tool) {
	name := t.Name()
	r.mu.Lock()
	_, replaced := r.tools[name]
	r.tools[name] = t
	r.mu.Unlock()
	if replaced {
		r.logger.Warn("tool registered twice, keeping the latest", "name", name)
	}
}

// Lookup returns the named tool.
func (r *Registry) Lookup(name string) (domain.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Execute runs the named tool and records its latency and outcome. Output is
// discarded when the tool fails.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	t, ok := r.Lookup(name)
	if !ok {
		if near := r.closest(name); near != "" {
			return "", fmt.Errorf("%w %q, did you mean %q?", ErrUnknownTool, name, near)
		}
		return "", fmt.Errorf("%w %q (available: %s)", ErrUnknownTool, name, strings.Join(r.Names(), ", "))
	}

	start := time.Now()
	out, err := t.Execute(ctx, args)
	metrics.ToolExecutions.Inc(name)
	metrics.ToolLatency.Since(start, name)
	if err != nil {
		metrics.ToolErrors.Inc(name)
		r.logger.Debug("tool failed", "tool", name, "elapsed", time.Since(start), "err", err)
		return "", err
	}
	return out, nil
}

// closest suggests a registered name for a mistyped one: the longest shared
// prefix of at least three characters, else a name containing it.
func (r *Registry) closest(name string) string {
	name = strings.ToLower(name)
	best, bestLen := "", 2
	for _, n := range r.Names() {
		if l := commonPrefix(n, name); l > bestLen {
			best, bestLen = n, l
		}
	}
	if best != "" || len(name) < 3 {
		return best
	}
	for _, n := range r.Names() {
		if strings.Contains(n, name) {
			return n
		}
	}
	return ""
}

func commonPrefix(a, b string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.tools))
}

// Definition is the JSON-serialisable description of a tool.
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Definitions describes every tool, sorted by name.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defs := make([]Definition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, Definition{Name: t.Name(), Description: t.Description(), Parameters: t.Parameters()})
	}
	r.mu.RUnlock()
	slices.SortFunc(defs, func(a, b Definition) int { return cmp.Compare(a.Name, b.Name) })
	return defs
}

// Param describes a single tool parameter.
type Param struct {
	Type        string
	Description string
	Enum        []string
}

// ToolParameters builds the JSON Schema object advertised as a tool's
// parameters.
func ToolParameters(properties map[string]Param, required []string) map[string]any {
	props := make(map[string]any, len(properties))
	for name, p := range properties {
		prop := map[string]any{"type": p.Type, "description": p.Description}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		props[name] = prop
	}
	schema := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// resultJSON renders a tool result as indented JSON.
func resultJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return string(data), nil
}
