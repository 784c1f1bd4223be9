package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chenjy16/webtools-sub001/internal/analysis"
	"github.com/chenjy16/webtools-sub001/internal/bus"
	"github.com/chenjy16/webtools-sub001/internal/domain"
	"github.com/chenjy16/webtools-sub001/internal/tool"
)

type fakeAnalyst struct {
	mu       sync.Mutex
	asked    []string
	startErr error
}

func (f *fakeAnalyst) Start(ctx context.Context, rawURL string) (*analysis.Session, error) {
	if strings.Contains(rawURL, "bad") {
		return nil, errors.New("fetch failed")
	}
	sess := &analysis.Session{
		Conversation: domain.Conversation{ID: "conv-" + rawURL, Title: "Example"},
		Snapshot:     &analysis.Snapshot{URL: rawURL, Status: 200, WordCount: 12},
	}
	if f.startErr != nil {
		return sess, f.startErr
	}
	sess.Reply = &analysis.Reply{Content: "initial analysis"}
	return sess, nil
}

func (f *fakeAnalyst) Ask(ctx context.Context, id, q string) (*analysis.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.asked = append(f.asked, id+"|"+q)
	return &analysis.Reply{ConversationID: id, Content: "re: " + q}, nil
}

type fixedScores struct{}

func (fixedScores) SubmitScore(ctx context.Context, s domain.Score) (int64, error) { return 1, nil }
func (fixedScores) BestScore(ctx context.Context, g string) (int, error)          { return 0, nil }
func (fixedScores) TopScores(ctx context.Context, g string, n int) ([]domain.Score, error) {
	if g != "snake" {
		return nil, nil
	}
	return []domain.Score{{Player: "ada", Value: 90}, {Player: "bob", Value: 40}}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDispatcher(analyst Analyst, b domain.MessageBus) *Dispatcher {
	reg := tool.NewRegistry(testLogger())
	reg.Register(tool.NewBase64Tool())
	return NewDispatcher(DispatcherConfig{
		Tools:         reg,
		Analyst:       analyst,
		Scores:        fixedScores{},
		Bus:           b,
		RatePerMinute: 6000,
		Logger:        testLogger(),
	})
}

func TestParseCommand(t *testing.T) {
	assert.Nil(t, ParseCommand("hello"))
	assert.Nil(t, ParseCommand("/"))

	cmd := ParseCommand("  /RUN base64 action=encode ")
	require.NotNil(t, cmd)
	assert.Equal(t, "run", cmd.Name)
	assert.Equal(t, "base64 action=encode", cmd.Rest)

	cmd = ParseCommand("/help@toolblog_bot")
	require.NotNil(t, cmd)
	assert.Equal(t, "help", cmd.Name)
}

func TestSplitQuoted(t *testing.T) {
	got, err := splitQuoted(`action=encode text="hello world" key='a b'`)
	require.NoError(t, err)
	assert.Equal(t, []string{"action=encode", "text=hello world", "key=a b"}, got)

	_, err = splitQuoted(`text="open`)
	assert.Error(t, err)
}

func TestHandle_RunTool(t *testing.T) {
	d := newTestDispatcher(nil, nil)
	ctx := context.Background()

	out, err := d.ProcessDirect(ctx, `/run base64 action=encode text="hi there"`, "cli", "local")
	require.NoError(t, err)
	assert.Contains(t, out, "aGkgdGhlcmU=")

	out, err = d.ProcessDirect(ctx, `/run base64 {"action":"decode","text":"aGk="}`, "cli", "local")
	require.NoError(t, err)
	assert.Contains(t, out, "hi")

	_, err = d.ProcessDirect(ctx, "/run nope", "cli", "local")
	assert.ErrorIs(t, err, tool.ErrUnknownTool)
	_, err = d.ProcessDirect(ctx, "/run", "cli", "local")
	assert.Error(t, err)
}

func TestHandle_InfoCommands(t *testing.T) {
	d := newTestDispatcher(nil, nil)
	ctx := context.Background()

	out, err := d.ProcessDirect(ctx, "/help", "cli", "x")
	require.NoError(t, err)
	assert.Contains(t, out, "/analyze")

	out, err = d.ProcessDirect(ctx, "/tools", "cli", "x")
	require.NoError(t, err)
	assert.Contains(t, out, "base64")

	out, err = d.ProcessDirect(ctx, "/scores snake", "cli", "x")
	require.NoError(t, err)
	assert.Contains(t, out, "1. ada — 90")

	out, err = d.ProcessDirect(ctx, "/scores jump", "cli", "x")
	require.NoError(t, err)
	assert.Contains(t, out, "No scores")

	out, err = d.ProcessDirect(ctx, "/status", "cli", "x")
	require.NoError(t, err)
	assert.Contains(t, out, "Tools: 1")

	_, err = d.ProcessDirect(ctx, "/frobnicate", "cli", "x")
	assert.ErrorContains(t, err, "unknown command")
}

func TestHandle_AnalysisFlow(t *testing.T) {
	a := &fakeAnalyst{}
	d := newTestDispatcher(a, nil)
	ctx := context.Background()

	out, err := d.ProcessDirect(ctx, "what is this?", "telegram", "42")
	require.NoError(t, err)
	assert.Contains(t, out, "No active analysis")

	out, err = d.ProcessDirect(ctx, "/analyze example.com", "telegram", "42")
	require.NoError(t, err)
	assert.Contains(t, out, "initial analysis")
	assert.Contains(t, out, "HTTP 200")

	out, err = d.ProcessDirect(ctx, "who is it for?", "telegram", "42")
	require.NoError(t, err)
	assert.Equal(t, "re: who is it for?", out)
	assert.Equal(t, []string{"conv-example.com|who is it for?"}, a.asked)

	// Sessions are per chat.
	out, err = d.ProcessDirect(ctx, "hello", "telegram", "43")
	require.NoError(t, err)
	assert.Contains(t, out, "No active analysis")

	out, err = d.ProcessDirect(ctx, "/reset", "telegram", "42")
	require.NoError(t, err)
	assert.Contains(t, out, "closed")
	out, err = d.ProcessDirect(ctx, "/reset", "telegram", "42")
	require.NoError(t, err)
	assert.Contains(t, out, "No active")

	_, err = d.ProcessDirect(ctx, "/analyze bad.example", "telegram", "42")
	assert.ErrorContains(t, err, "fetch failed")
}

func TestHandle_AnalysisStartFailureKeepsSession(t *testing.T) {
	a := &fakeAnalyst{startErr: errors.New("provider down")}
	d := newTestDispatcher(a, nil)
	ctx := context.Background()

	_, err := d.ProcessDirect(ctx, "/analyze example.com", "web", "s1")
	assert.ErrorContains(t, err, "provider down")

	out, err := d.ProcessDirect(ctx, "try again", "web", "s1")
	require.NoError(t, err)
	assert.Equal(t, "re: try again", out)
}

func TestHandle_NoAnalyst(t *testing.T) {
	d := newTestDispatcher(nil, nil)
	_, err := d.ProcessDirect(context.Background(), "/analyze example.com", "cli", "x")
	assert.ErrorContains(t, err, "not available")
}

func TestRun_RepliesThroughBus(t *testing.T) {
	b := bus.New(8, testLogger())
	d := newTestDispatcher(nil, b)

	replies := make(chan domain.OutboundMessage, 4)
	b.Route("test", func(m domain.OutboundMessage) { replies <- m })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	require.NoError(t, b.Publish(ctx, domain.InboundMessage{Channel: "test", ChatID: "c1", Content: "/run base64 action=encode text=ok"}))
	require.NoError(t, b.Publish(ctx, domain.InboundMessage{Channel: "test", ChatID: "c2", Content: "/nope"}))

	got := map[string]string{}
	for i := 0; i < 2; i++ {
		select {
		case m := <-replies:
			got[m.ChatID] = m.Content
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for replies")
		}
	}
	assert.Contains(t, got["c1"], "b2s=")
	assert.True(t, strings.HasPrefix(got["c2"], "Error: unknown command"))
}
