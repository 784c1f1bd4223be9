package tool

import (
	"context"
	"encoding/json"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Monday 2026-01-05 08:00 UTC.
var cronFrom = time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)

func TestCron_FiveField(t *testing.T) {
	info, err := ExplainCron("*/15 9-17 * * 1-5", cronFrom, 3)
	require.NoError(t, err)
	assert.Equal(t, "5-field", info.Format)
	assert.Equal(t, []string{
		"2026-01-05T09:00:00Z",
		"2026-01-05T09:15:00Z",
		"2026-01-05T09:30:00Z",
	}, info.NextRuns)
	assert.Contains(t, info.Description, "15 minutes")
	assert.Equal(t, "UTC", info.Timezone)
}

func TestCron_SixFieldWithSeconds(t *testing.T) {
	info, err := ExplainCron("30 0 12 * * *", cronFrom, 2)
	require.NoError(t, err)
	assert.Equal(t, "6-field", info.Format)
	assert.Equal(t, []string{"2026-01-05T12:00:30Z", "2026-01-06T12:00:30Z"}, info.NextRuns)
}

func TestCron_Descriptors(t *testing.T) {
	info, err := ExplainCron("@daily", cronFrom, 1)
	require.NoError(t, err)
	assert.Equal(t, "descriptor", info.Format)
	assert.Equal(t, []string{"2026-01-06T00:00:00Z"}, info.NextRuns)
	assert.NotEmpty(t, info.Description)

	info, err = ExplainCron("@every 90m", cronFrom, 2)
	require.NoError(t, err)
	assert.Equal(t, "Every 1h30m0s", info.Description)
	assert.Equal(t, []string{"2026-01-05T09:30:00Z", "2026-01-05T11:00:00Z"}, info.NextRuns)
}

func TestCron_ZonePrefixSetsReportedZone(t *testing.T) {
	info, err := ExplainCron("CRON_TZ=Asia/Tokyo 0 9 * * *", cronFrom, 2)
	require.NoError(t, err)
	assert.Equal(t, "Asia/Tokyo", info.Timezone)
	// 08:00 UTC is 17:00 in Tokyo, so the next run is the following morning.
	assert.Equal(t, []string{"2026-01-06T09:00:00+09:00", "2026-01-07T09:00:00+09:00"}, info.NextRuns)

	_, err = ExplainCron("TZ=Mars/Olympus 0 9 * * *", cronFrom, 1)
	assert.ErrorContains(t, err, "unknown time zone")
}

func TestCron_ErrorsNameTheField(t *testing.T) {
	cases := map[string]string{
		"61 * * * *":    "minute",
		"* 24 * * *":    "hour",
		"* * 32 * *":    "day-of-month",
		"* * * 13 *":    "month",
		"* * * * 8":     "day-of-week",
		"61 * * * * *":  "second",
		"* * * *":       "expected 5 or 6 fields",
		"* * * * * * *": "expected 5 or 6 fields",
	}
	for expr, want := range cases {
		_, err := ExplainCron(expr, cronFrom, 1)
		require.Error(t, err, expr)
		assert.Contains(t, err.Error(), want, expr)
	}

	_, err := ExplainCron("* * * * *", cronFrom, 51)
	assert.Error(t, err)
	_, err = ExplainCron("", cronFrom, 1)
	assert.Error(t, err)
}

func TestCronTool_Execute(t *testing.T) {
	tool, err := NewCronTool(5, "")
	require.NoError(t, err)
	tool.loc = time.UTC
	tool.now = func() time.Time { return cronFrom }

	out, err := tool.Execute(context.Background(), map[string]any{"expression": "0 * * * *"})
	require.NoError(t, err)

	var info CronInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Len(t, info.NextRuns, 5)
	assert.Equal(t, "2026-01-05T09:00:00Z", info.NextRuns[0])

	_, err = NewCronTool(5, "Not/AZone")
	assert.Error(t, err)
}
