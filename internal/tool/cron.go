package tool

import (
	"context"
	"fmt"
	"strings"
	"time"

	crondesc "github.com/lnquy/cron"
	cronparse "github.com/robfig/cron/v3"
)

var cronParser = cronparse.NewParser(
	cronparse.SecondOptional | cronparse.Minute | cronparse.Hour |
		cronparse.Dom | cronparse.Month | cronparse.Dow | cronparse.Descriptor,
)

var (
	fiveFieldNames = []string{"minute", "hour", "day-of-month", "month", "day-of-week"}
	sixFieldNames  = append([]string{"second"}, fiveFieldNames...)
)

// descriptorEquivalents feeds the describer, which only understands fields.
var descriptorEquivalents = map[string]string{
	"@yearly":   "0 0 1 1 *",
	"@annually": "0 0 1 1 *",
	"@monthly":  "0 0 1 * *",
	"@weekly":   "0 0 * * 0",
	"@daily":    "0 0 * * *",
	"@midnight": "0 0 * * *",
	"@hourly":   "0 * * * *",
}

// CronInfo is the result of explaining a cron expression.
type CronInfo struct {
	Expression  string   `json:"expression"`
	Format      string   `json:"format"`
	Description string   `json:"description"`
	Timezone    string   `json:"timezone"`
	NextRuns    []string `json:"nextRuns"`
}

// ExplainCron parses expr and lists its next n run times after from, in
// from's location unless expr carries its own time zone prefix.
func ExplainCron(expr string, from time.Time, n int) (*CronInfo, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("cron: expression is empty")
	}
	if n < 1 || n > 50 {
		return nil, fmt.Errorf("cron: next run count %d out of range 1..50", n)
	}

	// A CRON_TZ= or TZ= prefix overrides the zone runs are computed and
	// reported in.
	body, loc := expr, from.Location()
	if strings.HasPrefix(body, "CRON_TZ=") || strings.HasPrefix(body, "TZ=") {
		if i := strings.IndexByte(body, ' '); i > 0 {
			name := body[strings.IndexByte(body, '=')+1 : i]
			l, err := time.LoadLocation(name)
			if err != nil {
				return nil, fmt.Errorf("cron: unknown time zone %q: %w", name, err)
			}
			body, loc = strings.TrimSpace(body[i:]), l
		}
	}

	format := "descriptor"
	if !strings.HasPrefix(body, "@") {
		fields := strings.Fields(body)
		switch len(fields) {
		case 5:
			format = "5-field"
		case 6:
			format = "6-field"
		default:
			return nil, fmt.Errorf("cron: expected 5 or 6 fields, got %d", len(fields))
		}
		if err := checkCronFields(fields); err != nil {
			return nil, err
		}
	}

	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("cron: %w", err)
	}

	info := &CronInfo{
		Expression:  expr,
		Format:      format,
		Description: describeCron(body),
		Timezone:    loc.String(),
		NextRuns:    make([]string, 0, n),
	}
	t := from
	for i := 0; i < n; i++ {
		t = sched.Next(t)
		if t.IsZero() {
			break
		}
		info.NextRuns = append(info.NextRuns, t.In(loc).Format(time.RFC3339))
	}
	return info, nil
}

// checkCronFields parses each field on its own so the error can name it.
func checkCronFields(fields []string) error {
	names := fiveFieldNames
	if len(fields) == 6 {
		names = sixFieldNames
	}
	for i, f := range fields {
		single := make([]string, len(fields))
		for j := range single {
			single[j] = "*"
		}
		single[i] = f
		if _, err := cronParser.Parse(strings.Join(single, " ")); err != nil {
			return fmt.Errorf("cron: invalid %s field %q: %w", names[i], f, err)
		}
	}
	return nil
}

func describeCron(body string) string {
	if strings.HasPrefix(body, "@every ") {
		d, err := time.ParseDuration(strings.TrimSpace(strings.TrimPrefix(body, "@every ")))
		if err == nil {
			return "Every " + d.String()
		}
	}
	expr := body
	if eq, ok := descriptorEquivalents[body]; ok {
		expr = eq
	}
	desc, err := crondesc.NewDescriptor(crondesc.Use24HourTimeFormat(true))
	if err != nil {
		return ""
	}
	out, err := desc.ToDescription(expr, crondesc.Locale_en)
	if err != nil {
		return ""
	}
	return out
}

// CronTool explains cron expressions and previews their schedule.
type CronTool struct {
	nextRuns int
	loc      *time.Location
	now      func() time.Time
}

func NewCronTool(nextRuns int, timezone string) (*CronTool, error) {
	if nextRuns == 0 {
		nextRuns = 5
	}
	loc := time.Local
	if timezone != "" {
		l, err := time.LoadLocation(timezone)
		if err != nil {
			return nil, fmt.Errorf("cron timezone: %w", err)
		}
		loc = l
	}
	return &CronTool{nextRuns: nextRuns, loc: loc, now: time.Now}, nil
}

func (t *CronTool) Name() string { return "cron" }
func (t *CronTool) Description() string {
	return "Explain a cron expression (5 fields, 6 fields with seconds, or @descriptor) and list its next run times."
}
func (t *CronTool) Parameters() map[string]any {
	return ToolParameters(
		map[string]Param{
			"expression": {Type: "string", Description: "Cron expression, e.g. */15 9-17 * * 1-5"},
			"count":      {Type: "integer", Description: "Number of upcoming runs (1-50)"},
		},
		[]string{"expression"},
	)
}

func (t *CronTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	expr := ArgsString(args, "expression")
	if expr == "" {
		expr = ArgsString(args, "text")
	}
	info, err := ExplainCron(expr, t.now().In(t.loc), ArgsInt(args, "count", t.nextRuns))
	if err != nil {
		return "", err
	}
	return resultJSON(info)
}
