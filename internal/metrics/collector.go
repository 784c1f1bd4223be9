// Package metrics keeps labeled counters, gauges and histograms and renders
// them in the Prometheus text exposition format.
package metrics

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"net/http"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type kind string

const (
	kindCounter   kind = "counter"
	kindGauge     kind = "gauge"
	kindHistogram kind = "histogram"
)

// Registry owns a set of metric families. The zero value is not usable; use
// NewRegistry.
type Registry struct {
	mu       sync.RWMutex
	families map[string]*family
	started  time.Time
}

// NewRegistry returns an empty registry whose uptime starts now.
func NewRegistry() *Registry {
	return &Registry{families: make(map[string]*family), started: time.Now()}
}

// Default is the process-wide registry served on the metrics endpoint.
var Default = NewRegistry()

// Uptime reports the time since the registry was created.
func (r *Registry) Uptime() time.Duration { return time.Since(r.started) }

type family struct {
	name    string
	help    string
	kind    kind
	labels  []string
	bounds  []float64
	mu      sync.Mutex
	members map[string]*series
}

// series is one labeled time series. Counters and gauges use n; histograms
// use the remaining fields under mu.
type series struct {
	values []string
	n      atomic.Int64

	mu      sync.Mutex
	buckets []uint64
	count   uint64
	sum     float64
}

func (r *Registry) register(name, help string, k kind, labels []string, bounds []float64) *family {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.families[name]; ok {
		if f.kind != k || !slices.Equal(f.labels, labels) {
			panic(fmt.Sprintf("metrics: %s re-registered with a different shape", name))
		}
		return f
	}
	f := &family{
		name:    name,
		help:    help,
		kind:    k,
		labels:  labels,
		bounds:  bounds,
		members: make(map[string]*series),
	}
	r.families[name] = f
	return f
}

func (f *family) with(values []string) *series {
	if len(values) != len(f.labels) {
		panic(fmt.Sprintf("metrics: %s wants %d label values, got %d", f.name, len(f.labels), len(values)))
	}
	key := strings.Join(values, "\xff")
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.members[key]
	if !ok {
		s = &series{values: slices.Clone(values)}
		if f.kind == kindHistogram {
			s.buckets = make([]uint64, len(f.bounds))
		}
		f.members[key] = s
	}
	return s
}

// Counter only goes up.
type Counter struct{ f *family }

// Counter registers (or returns the existing) counter family.
func (r *Registry) Counter(name, help string, labels ...string) *Counter {
	return &Counter{f: r.register(name, help, kindCounter, labels, nil)}
}

// Inc adds one to the series named by labelValues.
func (c *Counter) Inc(labelValues ...string) { c.f.with(labelValues).n.Add(1) }

// Add adds n, which must not be negative.
func (c *Counter) Add(n int64, labelValues ...string) {
	if n < 0 {
		return
	}
	c.f.with(labelValues).n.Add(n)
}

// Value returns the current count of one series.
func (c *Counter) Value(labelValues ...string) int64 { return c.f.with(labelValues).n.Load() }

// Gauge is a value that moves both ways.
type Gauge struct{ f *family }

// Gauge registers (or returns the existing) gauge family.
func (r *Registry) Gauge(name, help string, labels ...string) *Gauge {
	return &Gauge{f: r.register(name, help, kindGauge, labels, nil)}
}

func (g *Gauge) Set(v int64, labelValues ...string) { g.f.with(labelValues).n.Store(v) }
func (g *Gauge) Add(d int64, labelValues ...string) { g.f.with(labelValues).n.Add(d) }
func (g *Gauge) Value(labelValues ...string) int64  { return g.f.with(labelValues).n.Load() }

// Histogram counts observations into cumulative buckets.
type Histogram struct{ f *family }

// Histogram registers a histogram family. bounds are sorted; +Inf is implied.
func (r *Registry) Histogram(name, help string, bounds []float64, labels ...string) *Histogram {
	b := slices.Clone(bounds)
	sort.Float64s(b)
	return &Histogram{f: r.register(name, help, kindHistogram, labels, b)}
}

// Observe records v.
func (h *Histogram) Observe(v float64, labelValues ...string) {
	s := h.f.with(labelValues)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count++
	s.sum += v
	if i := sort.SearchFloat64s(h.f.bounds, v); i < len(s.buckets) {
		s.buckets[i]++
	}
}

// Count returns how many values one series has observed.
func (h *Histogram) Count(labelValues ...string) uint64 {
	s := h.f.with(labelValues)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Since observes the seconds elapsed from start.
func (h *Histogram) Since(start time.Time, labelValues ...string) {
	h.Observe(time.Since(start).Seconds(), labelValues...)
}

// WriteText renders every family, sorted by name and then by label values.
func (r *Registry) WriteText(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# HELP toolblog_uptime_seconds Seconds since the process started.\n")
	fmt.Fprintf(bw, "# TYPE toolblog_uptime_seconds gauge\n")
	fmt.Fprintf(bw, "toolblog_uptime_seconds %d\n", int64(r.Uptime().Seconds()))

	r.mu.RLock()
	fams := make([]*family, 0, len(r.families))
	for _, f := range r.families {
		fams = append(fams, f)
	}
	r.mu.RUnlock()
	sort.Slice(fams, func(i, j int) bool { return fams[i].name < fams[j].name })

	for _, f := range fams {
		f.write(bw)
	}
	return bw.Flush()
}

func (f *family) write(w io.Writer) {
	f.mu.Lock()
	keys := make([]string, 0, len(f.members))
	for k := range f.members {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	members := make([]*series, len(keys))
	for i, k := range keys {
		members[i] = f.members[k]
	}
	f.mu.Unlock()

	if len(members) == 0 {
		return
	}
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n", f.name, f.help, f.name, f.kind)
	for _, s := range members {
		if f.kind != kindHistogram {
			fmt.Fprintf(w, "%s%s %d\n", f.name, labelSet(f.labels, s.values, ""), s.n.Load())
			continue
		}
		s.mu.Lock()
		var cumulative uint64
		for i, le := range f.bounds {
			cumulative += s.buckets[i]
			fmt.Fprintf(w, "%s_bucket%s %d\n", f.name, labelSet(f.labels, s.values, formatBound(le)), cumulative)
		}
		fmt.Fprintf(w, "%s_bucket%s %d\n", f.name, labelSet(f.labels, s.values, "+Inf"), s.count)
		fmt.Fprintf(w, "%s_sum%s %s\n", f.name, labelSet(f.labels, s.values, ""), strconv.FormatFloat(s.sum, 'g', -1, 64))
		fmt.Fprintf(w, "%s_count%s %d\n", f.name, labelSet(f.labels, s.values, ""), s.count)
		s.mu.Unlock()
	}
}

func formatBound(v float64) string {
	if math.IsInf(v, 1) {
		return "+Inf"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

var labelEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

// labelSet renders {k="v",...}; le is appended when non-empty.
func labelSet(names, values []string, le string) string {
	if len(names) == 0 && le == "" {
		return ""
	}
	var sb strings.Builder
	sb.WriteByte('{')
	for i, n := range names {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, `%s="%s"`, n, labelEscaper.Replace(values[i]))
	}
	if le != "" {
		if len(names) > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, `le="%s"`, le)
	}
	sb.WriteByte('}')
	return sb.String()
}

// Handler serves the registry in text format.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_ = r.WriteText(w)
	})
}

// StatusClass buckets an HTTP status code as "2xx", "4xx" and so on.
func StatusClass(code int) string {
	if code < 100 || code > 599 {
		return "other"
	}
	return strconv.Itoa(code/100) + "xx"
}

var (
	ToolExecutions = Default.Counter("toolblog_tool_executions_total", "Tool executions by tool.", "tool")
	ToolErrors     = Default.Counter("toolblog_tool_errors_total", "Tool executions that returned an error.", "tool")
	ToolLatency    = Default.Histogram("toolblog_tool_latency_seconds", "Tool execution latency.",
		[]float64{0.001, 0.01, 0.1, 0.5, 1, 5}, "tool")

	HTTPRequests    = Default.Counter("toolblog_http_requests_total", "HTTP API requests by method and status class.", "method", "code")
	HTTPRateLimited = Default.Counter("toolblog_http_rate_limited_total", "HTTP requests rejected by the rate limiter.")

	BusMessages = Default.Counter("toolblog_bus_messages_total", "Inbound messages offered to the bus by channel and outcome.", "channel", "outcome")

	InferenceCalls   = Default.Counter("toolblog_inference_requests_total", "Inference requests by provider and outcome.", "provider", "outcome")
	InferenceLatency = Default.Histogram("toolblog_inference_latency_seconds", "Inference request latency.",
		[]float64{0.5, 1, 2, 5, 10, 30, 60, 120}, "provider")

	PageSnapshots   = Default.Counter("toolblog_page_snapshots_total", "Website snapshots taken for analysis, by fetch mode.", "via")
	ScoresSubmitted = Default.Counter("toolblog_scores_submitted_total", "High scores recorded by game.", "game")
	ActiveGames     = Default.Gauge("toolblog_active_game_sessions", "Game sessions held in memory.")
)
