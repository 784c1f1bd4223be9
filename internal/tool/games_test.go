package tool

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chenjy16/webtools-sub001/internal/domain"
	"github.com/chenjy16/webtools-sub001/internal/game"
)

type memScores struct {
	mu     sync.Mutex
	scores []domain.Score
}

func (m *memScores) SubmitScore(ctx context.Context, s domain.Score) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores = append(m.scores, s)
	return int64(len(m.scores)), nil
}

func (m *memScores) TopScores(ctx context.Context, g string, limit int) ([]domain.Score, error) {
	return m.scores, nil
}

func (m *memScores) BestScore(ctx context.Context, g string) (int, error) { return 0, nil }

func newGameTools(t *testing.T) (*game.Manager, *memScores, *slog.Logger) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mgr := game.NewManager(game.ManagerConfig{
		Twenty48Size: 4, SnakeWidth: 20, SnakeHeight: 15, JumpWidth: 60, JumpHeight: 12,
		MaxSessions: 8, Seed: 7, Logger: logger,
	})
	return mgr, &memScores{}, logger
}

func decodeView(t *testing.T, out string) game.SessionView {
	t.Helper()
	var v game.SessionView
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	return v
}

func TestGameTool_Names(t *testing.T) {
	mgr, scores, logger := newGameTools(t)
	assert.Equal(t, "game_2048", NewGameTool(game.Kind2048, mgr, scores, logger).Name())
	assert.Equal(t, "game_snake", NewGameTool(game.KindSnake, mgr, scores, logger).Name())
	assert.Equal(t, "game_jump", NewGameTool(game.KindJump, mgr, scores, logger).Name())
}

func TestGameTool_2048Flow(t *testing.T) {
	mgr, scores, logger := newGameTools(t)
	tool := NewGameTool(game.Kind2048, mgr, scores, logger)
	ctx := context.Background()

	out, err := tool.Execute(ctx, map[string]any{"action": "new"})
	require.NoError(t, err)
	v := decodeView(t, out)
	assert.Equal(t, game.Kind2048, v.Kind)
	assert.NotEmpty(t, v.Render)

	for _, d := range []string{"left", "up", "right", "down"} {
		_, err = tool.Execute(ctx, map[string]any{"action": "move", "session": v.ID, "direction": d})
		require.NoError(t, err)
	}

	_, err = tool.Execute(ctx, map[string]any{"action": "move", "session": v.ID, "direction": "diagonal"})
	assert.Error(t, err)
	_, err = tool.Execute(ctx, map[string]any{"action": "move"})
	assert.Error(t, err)
}

func TestGameTool_SnakeGameOverRecordsScore(t *testing.T) {
	mgr, scores, logger := newGameTools(t)
	tool := NewGameTool(game.KindSnake, mgr, scores, logger)
	ctx := context.Background()

	out, err := tool.Execute(ctx, map[string]any{"action": "new"})
	require.NoError(t, err)
	v := decodeView(t, out)

	out, err = tool.Execute(ctx, map[string]any{"action": "step", "session": v.ID, "count": 50, "player": "ada"})
	require.NoError(t, err)
	v = decodeView(t, out)
	assert.True(t, v.Over)

	// A score is only recorded when food was eaten before the crash.
	if v.Score > 0 {
		require.Len(t, scores.scores, 1)
		assert.Equal(t, "ada", scores.scores[0].Player)
		assert.Equal(t, "snake", scores.scores[0].Game)
	} else {
		assert.Empty(t, scores.scores)
	}

	// Further steps return the final state without recording again.
	_, err = tool.Execute(ctx, map[string]any{"action": "step", "session": v.ID})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(scores.scores), 1)
}

func TestGameTool_WrongKindAndUnknownSession(t *testing.T) {
	mgr, scores, logger := newGameTools(t)
	jump := NewGameTool(game.KindJump, mgr, scores, logger)
	snake := NewGameTool(game.KindSnake, mgr, scores, logger)
	ctx := context.Background()

	out, err := jump.Execute(ctx, map[string]any{"action": "new"})
	require.NoError(t, err)
	v := decodeView(t, out)

	_, err = snake.Execute(ctx, map[string]any{"action": "step", "session": v.ID})
	assert.ErrorContains(t, err, "jump game")

	_, err = jump.Execute(ctx, map[string]any{"action": "jump", "session": "nope"})
	assert.ErrorIs(t, err, game.ErrSessionNotFound)

	out, err = jump.Execute(ctx, map[string]any{"action": "delete", "session": v.ID})
	require.NoError(t, err)
	assert.Contains(t, out, v.ID)
	assert.Equal(t, 0, mgr.Len())
}

func snakeState(t *testing.T, mgr *game.Manager, id string) game.SnakeState {
	t.Helper()
	v, err := mgr.Get(id)
	require.NoError(t, err)
	return v.State.(game.SnakeState)
}

// towardFood picks a heading that closes in on the food without reversing.
// A snake of length three or four cannot run into itself this way.
func towardFood(head, food game.Point, heading string) string {
	opposite := map[string]string{"up": "down", "down": "up", "left": "right", "right": "left"}
	var options []string
	switch {
	case food.X > head.X:
		options = append(options, "right")
	case food.X < head.X:
		options = append(options, "left")
	}
	switch {
	case food.Y > head.Y:
		options = append(options, "down")
	case food.Y < head.Y:
		options = append(options, "up")
	}
	for _, d := range options {
		if d != opposite[heading] {
			return d
		}
	}
	if heading == "left" || heading == "right" {
		if head.Y > 0 {
			return "up"
		}
		return "down"
	}
	if head.X > 0 {
		return "left"
	}
	return "right"
}

func TestGameTool_ConcurrentFinalStepRecordsOneScore(t *testing.T) {
	for trial := 0; trial < 10; trial++ {
		mgr, scores, logger := newGameTools(t)
		snake := NewGameTool(game.KindSnake, mgr, scores, logger)
		ctx := context.Background()

		out, err := snake.Execute(ctx, map[string]any{"action": "new"})
		require.NoError(t, err)
		id := decodeView(t, out).ID

		for i := 0; i < 200; i++ {
			st := snakeState(t, mgr, id)
			if st.Score > 0 {
				break
			}
			d := towardFood(st.Body[0], *st.Food, st.Heading)
			_, err = snake.Execute(ctx, map[string]any{"action": "turn", "session": id, "direction": d})
			require.NoError(t, err)
			_, err = snake.Execute(ctx, map[string]any{"action": "step", "session": id})
			require.NoError(t, err)
		}
		st := snakeState(t, mgr, id)
		require.Positive(t, st.Score)
		require.False(t, st.Over)

		// Park the head next to the top or bottom wall.
		dir, steps := "up", st.Body[0].Y
		if st.Heading == "down" {
			dir, steps = "down", st.Height-1-st.Body[0].Y
		}
		_, err = snake.Execute(ctx, map[string]any{"action": "turn", "session": id, "direction": dir})
		require.NoError(t, err)
		if steps > 0 {
			_, err = snake.Execute(ctx, map[string]any{"action": "step", "session": id, "count": steps})
			require.NoError(t, err)
		}
		require.False(t, snakeState(t, mgr, id).Over)

		var wg sync.WaitGroup
		for range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				snake.Execute(ctx, map[string]any{"action": "step", "session": id, "player": "ada"})
			}()
		}
		wg.Wait()

		require.True(t, snakeState(t, mgr, id).Over)
		assert.Len(t, scores.scores, 1, "trial %d", trial)
	}
}
