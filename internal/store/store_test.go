package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chenjy16/webtools-sub001/internal/domain"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "data", "toolblog.db"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestScores_TopAndBest(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	best, err := s.BestScore(ctx, "snake")
	require.NoError(t, err)
	assert.Equal(t, 0, best)

	for i, v := range []int{30, 120, 60, 120} {
		id, err := s.SubmitScore(ctx, domain.Score{Game: "Snake", Player: fmt.Sprintf("p%d", i), Value: v})
		require.NoError(t, err)
		assert.Positive(t, id)
	}
	_, err = s.SubmitScore(ctx, domain.Score{Game: "2048", Player: "x", Value: 9999})
	require.NoError(t, err)

	top, err := s.TopScores(ctx, "snake", 3)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, []int{120, 120, 60}, []int{top[0].Value, top[1].Value, top[2].Value})
	assert.Equal(t, "p1", top[0].Player, "earlier entry wins a tie")
	assert.Equal(t, "snake", top[0].Game)
	assert.False(t, top[0].CreatedAt.IsZero())

	best, err = s.BestScore(ctx, "SNAKE")
	require.NoError(t, err)
	assert.Equal(t, 120, best)
}

func TestScores_Validation(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	_, err := s.SubmitScore(ctx, domain.Score{Game: "", Value: 1})
	assert.Error(t, err)
	_, err = s.SubmitScore(ctx, domain.Score{Game: "jump", Value: -1})
	assert.Error(t, err)

	_, err = s.SubmitScore(ctx, domain.Score{Game: "jump", Player: "  ", Value: 3})
	require.NoError(t, err)
	top, err := s.TopScores(ctx, "jump", 0)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "anonymous", top[0].Player)
}

func TestConversations_CRUD(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.CreateConversation(ctx, domain.Conversation{
		ID: "a", URL: "https://a.example", Title: "A", Snapshot: `{"title":"A"}`,
		Provider: "ollama", Model: "llama3", CreatedAt: old, UpdatedAt: old,
	}))
	newer := old.Add(24 * time.Hour)
	require.NoError(t, s.CreateConversation(ctx, domain.Conversation{
		ID: "b", URL: "https://b.example", CreatedAt: newer, UpdatedAt: newer,
	}))

	got, err := s.GetConversation(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "https://a.example", got.URL)
	assert.Equal(t, `{"title":"A"}`, got.Snapshot)
	assert.Equal(t, "llama3", got.Model)

	_, err = s.GetConversation(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := s.ListConversations(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].ID)
	assert.Empty(t, list[1].Snapshot)

	// A new message makes "a" the most recent.
	require.NoError(t, s.AddMessage(ctx, "a", domain.MessageRecord{Role: "user", Content: "hi"}))
	list, err = s.ListConversations(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, "a", list[0].ID)

	require.NoError(t, s.DeleteConversation(ctx, "a"))
	assert.ErrorIs(t, s.DeleteConversation(ctx, "a"), ErrNotFound)
	msgs, err := s.GetMessages(ctx, "a", 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestMessages_LastNOldestFirst(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateConversation(ctx, domain.Conversation{ID: "c", URL: "https://c.example"}))

	for i := 1; i <= 5; i++ {
		require.NoError(t, s.AddMessage(ctx, "c", domain.MessageRecord{
			Role: "user", Content: fmt.Sprintf("m%d", i), TokensIn: i, LatencyMs: int64(i * 10),
		}))
	}

	msgs, err := s.GetMessages(ctx, "c", 3)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "m3", msgs[0].Content)
	assert.Equal(t, "m5", msgs[2].Content)
	assert.Equal(t, int64(50), msgs[2].LatencyMs)
	assert.Equal(t, "c", msgs[0].ConversationID)

	err = s.AddMessage(ctx, "nope", domain.MessageRecord{Role: "user", Content: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Ping(t *testing.T) {
	s := testStore(t)
	assert.NoError(t, s.Ping(context.Background()))
}

var (
	_ domain.ScoreStore        = (*SQLiteStore)(nil)
	_ domain.ConversationStore = (*SQLiteStore)(nil)
)

func TestStore_Snapshot(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	_, err := s.SubmitScore(ctx, domain.Score{Game: "snake", Player: "ann", Value: 42})
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "copy.db")
	require.NoError(t, s.Snapshot(ctx, dest))
	assert.Error(t, s.Snapshot(ctx, dest), "existing target is refused")

	cp, err := NewSQLiteStore(dest, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer cp.Close()
	best, err := cp.BestScore(ctx, "snake")
	require.NoError(t, err)
	assert.Equal(t, 42, best)
	assert.Equal(t, dest, cp.Path())
}
