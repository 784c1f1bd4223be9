package domain

import (
	"context"
	"time"
)

// ScoreStore persists game high scores.
type ScoreStore interface {
	SubmitScore(ctx context.Context, s Score) (int64, error)
	TopScores(ctx context.Context, game string, limit int) ([]Score, error)
	BestScore(ctx context.Context, game string) (int, error)
}

// ConversationStore persists website-analysis conversations.
type ConversationStore interface {
	CreateConversation(ctx context.Context, conv Conversation) error
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	ListConversations(ctx context.Context, limit int) ([]Conversation, error)
	DeleteConversation(ctx context.Context, id string) error

	AddMessage(ctx context.Context, convID string, msg MessageRecord) error
	GetMessages(ctx context.Context, convID string, limit int) ([]MessageRecord, error)
}

type Score struct {
	ID        int64     `json:"id"`
	Game      string    `json:"game"`
	Player    string    `json:"player"`
	Value     int       `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}

type Conversation struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Snapshot  string    `json:"snapshot,omitempty"` // JSON-encoded page snapshot
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type MessageRecord struct {
	ID             int64     `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	TokensIn       int       `json:"tokens_in"`
	TokensOut      int       `json:"tokens_out"`
	LatencyMs      int64     `json:"latency_ms,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
