package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chenjy16/webtools-sub001/internal/domain"
)

const (
	defaultMaxHistory = 20
	maxQuestionChars  = 4000
)

// Analyzer runs website-analysis conversations: one snapshot per
// conversation, then question/answer turns against a provider.
type Analyzer struct {
	fetcher     Snapshotter
	provider    domain.Provider
	store       domain.ConversationStore
	model       string
	maxHistory  int
	temperature float64
	logger      *slog.Logger
}

type AnalyzerConfig struct {
	Fetcher     Snapshotter
	Provider    domain.Provider
	Store       domain.ConversationStore
	Model       string // "" = provider default
	MaxHistory  int
	Temperature float64
	Logger      *slog.Logger
}

func NewAnalyzer(cfg AnalyzerConfig) *Analyzer {
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = defaultMaxHistory
	}
	return &Analyzer{
		fetcher:     cfg.Fetcher,
		provider:    cfg.Provider,
		store:       cfg.Store,
		model:       cfg.Model,
		maxHistory:  cfg.MaxHistory,
		temperature: cfg.Temperature,
		logger:      cfg.Logger,
	}
}

// Reply is one assistant answer.
type Reply struct {
	ConversationID string       `json:"conversation_id"`
	Content        string       `json:"content"`
	Usage          domain.Usage `json:"usage"`
	LatencyMs      int64        `json:"latency_ms"`
}

// Session is the result of Start.
type Session struct {
	Conversation domain.Conversation `json:"conversation"`
	Snapshot     *Snapshot           `json:"snapshot"`
	Reply        *Reply              `json:"reply,omitempty"`
}

// Start snapshots rawURL, opens a conversation about it and asks for an
// initial analysis. When only the provider call fails, the session is
// returned together with the error so the caller can retry with Ask.
func (a *Analyzer) Start(ctx context.Context, rawURL string) (*Session, error) {
	snap, err := a.fetcher.Snapshot(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}

	title := snap.Title
	if title == "" {
		title = snap.URL
	}
	conv := domain.Conversation{
		ID:        uuid.NewString(),
		URL:       snap.URL,
		Title:     title,
		Snapshot:  string(raw),
		Provider:  a.provider.Name(),
		Model:     a.model,
		CreatedAt: time.Now().UTC(),
	}
	conv.UpdatedAt = conv.CreatedAt
	if err := a.store.CreateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	a.logger.Info("analysis started", "conversation", conv.ID, "url", snap.URL, "via", snap.Via)

	sess := &Session{Conversation: conv, Snapshot: snap}
	reply, err := a.turn(ctx, conv.ID, snap, initialQuestion)
	if err != nil {
		return sess, err
	}
	sess.Reply = reply
	return sess, nil
}

// Ask sends a follow-up question in an existing conversation.
func (a *Analyzer) Ask(ctx context.Context, id, question string) (*Reply, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("question is empty")
	}
	if len([]rune(question)) > maxQuestionChars {
		return nil, fmt.Errorf("question is too long (max %d characters)", maxQuestionChars)
	}

	conv, err := a.store.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(conv.Snapshot), &snap); err != nil {
		return nil, fmt.Errorf("conversation %s has an unreadable snapshot: %w", id, err)
	}
	return a.turn(ctx, id, &snap, question)
}

// turn stores the question, calls the provider with the recent history and
// stores the answer. The question is kept even when the provider fails.
func (a *Analyzer) turn(ctx context.Context, id string, snap *Snapshot, question string) (*Reply, error) {
	if err := a.store.AddMessage(ctx, id, domain.MessageRecord{Role: domain.RoleUser, Content: question}); err != nil {
		return nil, fmt.Errorf("store question: %w", err)
	}

	history, err := a.store.GetMessages(ctx, id, a.maxHistory)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	msgs := make([]domain.Message, 0, len(history)+1)
	msgs = append(msgs, domain.Message{Role: domain.RoleSystem, Content: systemPrompt(snap)})
	for _, m := range history {
		msgs = append(msgs, domain.Message{Role: m.Role, Content: m.Content})
	}

	resp, err := a.provider.Chat(ctx, domain.ChatRequest{
		Messages:    msgs,
		Model:       a.model,
		Temperature: a.temperature,
	})
	if err != nil {
		a.logger.Warn("analysis provider call failed", "conversation", id, "provider", a.provider.Name(), "err", err)
		return nil, fmt.Errorf("provider %s: %w", a.provider.Name(), err)
	}

	rec := domain.MessageRecord{
		Role:      domain.RoleAssistant,
		Content:   resp.Content,
		TokensIn:  resp.Usage.PromptTokens,
		TokensOut: resp.Usage.CompletionTokens,
		LatencyMs: resp.LatencyMs,
	}
	if err := a.store.AddMessage(ctx, id, rec); err != nil {
		return nil, fmt.Errorf("store answer: %w", err)
	}
	return &Reply{ConversationID: id, Content: resp.Content, Usage: resp.Usage, LatencyMs: resp.LatencyMs}, nil
}

// History returns the stored messages of a conversation, oldest first.
func (a *Analyzer) History(ctx context.Context, id string, limit int) ([]domain.MessageRecord, error) {
	if _, err := a.store.GetConversation(ctx, id); err != nil {
		return nil, err
	}
	return a.store.GetMessages(ctx, id, limit)
}

func (a *Analyzer) List(ctx context.Context, limit int) ([]domain.Conversation, error) {
	return a.store.ListConversations(ctx, limit)
}

func (a *Analyzer) Delete(ctx context.Context, id string) error {
	return a.store.DeleteConversation(ctx, id)
}
