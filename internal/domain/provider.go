package domain

import (
	"context"
	"strings"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Finish reasons reported in ChatResponse.
const (
	FinishStop   = "stop"
	FinishLength = "length"
)

// Provider is an inference backend that completes a chat transcript.
type Provider interface {
	Name() string
	Models() []string
	Healthy(ctx context.Context) error
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// ChatRequest is a transcript plus sampling options. Zero values mean the
// provider's defaults.
type ChatRequest struct {
	Messages    []Message
	Model       string
	MaxTokens   int
	Temperature float64
}

// SplitSystem separates system instructions, joined by blank lines, from
// the user and assistant turns. Backends with a dedicated system field use
// it.
func (r ChatRequest) SplitSystem() (string, []Message) {
	var system []string
	turns := make([]Message, 0, len(r.Messages))
	for _, m := range r.Messages {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		turns = append(turns, m)
	}
	return strings.Join(system, "\n\n"), turns
}

type ChatResponse struct {
	Content      string
	FinishReason string
	Usage        Usage
	LatencyMs    int64
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
