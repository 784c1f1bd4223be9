package provider

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/chenjy16/webtools-sub001/internal/domain"
)

const (
	claudeDefaultBase  = "https://api.anthropic.com/v1"
	claudeAPIVersion   = "2023-06-01"
	claudeDefaultModel = "claude-sonnet-4-5"
	// The Messages API requires max_tokens on every request.
	defaultMaxTokens = 4096
)

// Claude calls the Anthropic Messages API.
type Claude struct {
	ep     endpoint
	model  string
	hasKey bool
}

type ClaudeConfig struct {
	APIKey  string
	APIBase string
	Model   string
	Timeout time.Duration
	Logger  *slog.Logger
}

func NewClaude(cfg ClaudeConfig) *Claude {
	return NewClaudeWithClient(cfg, NewHTTPClient(cfg.Timeout))
}

// NewClaudeWithClient is NewClaude with a caller-supplied HTTP client.
func NewClaudeWithClient(cfg ClaudeConfig, client *http.Client) *Claude {
	ep := newEndpoint("claude", cmp.Or(cfg.APIBase, claudeDefaultBase), client, cfg.Logger)
	ep.header.Set("x-api-key", cfg.APIKey)
	ep.header.Set("anthropic-version", claudeAPIVersion)
	return &Claude{ep: ep, model: cmp.Or(cfg.Model, claudeDefaultModel), hasKey: cfg.APIKey != ""}
}

func (c *Claude) Name() string     { return c.ep.name }
func (c *Claude) Models() []string { return []string{c.model} }

// Healthy only checks that a key is configured. The Messages API has no
// free endpoint to probe.
func (c *Claude) Healthy(context.Context) error {
	if !c.hasKey {
		return errors.New("claude: no API key configured")
	}
	return nil
}

type claudeRequest struct {
	Model       string           `json:"model"`
	MaxTokens   int              `json:"max_tokens"`
	System      string           `json:"system,omitempty"`
	Messages    []domain.Message `json:"messages"`
	Temperature *float64         `json:"temperature,omitempty"`
}

type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (c *Claude) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	system, turns := req.SplitSystem()
	in := claudeRequest{
		Model:     cmp.Or(req.Model, c.model),
		MaxTokens: cmp.Or(max(req.MaxTokens, 0), defaultMaxTokens),
		System:    system,
		Messages:  turns,
	}
	if req.Temperature > 0 {
		in.Temperature = &req.Temperature
	}

	var out claudeResponse
	latency, err := c.ep.post(ctx, "/messages", in, &out)
	if err != nil {
		return nil, err
	}

	var text strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	finish := domain.FinishStop
	if out.StopReason == "max_tokens" {
		finish = domain.FinishLength
	}
	u := out.Usage
	return &domain.ChatResponse{
		Content:      text.String(),
		FinishReason: finish,
		Usage:        domain.Usage{PromptTokens: u.InputTokens, CompletionTokens: u.OutputTokens, TotalTokens: u.InputTokens + u.OutputTokens},
		LatencyMs:    latency,
	}, nil
}
