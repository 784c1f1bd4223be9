package provider

import (
	"cmp"
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/chenjy16/webtools-sub001/internal/domain"
)

const (
	openAIDefaultBase  = "https://api.openai.com/v1"
	openAIDefaultModel = "gpt-4o-mini"
)

// OpenAI speaks the /chat/completions dialect shared by OpenAI, Groq,
// OpenRouter, llama.cpp and vLLM.
type OpenAI struct {
	ep     endpoint
	model  string
	models modelList
}

type OpenAIConfig struct {
	Name    string // reported by Name(); defaults to "openai"
	APIKey  string
	APIBase string
	Model   string
	Timeout time.Duration
	Logger  *slog.Logger
}

func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	return NewOpenAIWithClient(cfg, NewHTTPClient(cfg.Timeout))
}

// NewOpenAIWithClient is NewOpenAI with a caller-supplied HTTP client.
func NewOpenAIWithClient(cfg OpenAIConfig, client *http.Client) *OpenAI {
	model := cmp.Or(cfg.Model, openAIDefaultModel)
	ep := newEndpoint(cmp.Or(cfg.Name, "openai"), cmp.Or(cfg.APIBase, openAIDefaultBase), client, cfg.Logger)
	if cfg.APIKey != "" {
		ep.header.Set("Authorization", "Bearer "+cfg.APIKey)
	}
	return &OpenAI{ep: ep, model: model, models: modelList{fallback: model}}
}

func (o *OpenAI) Name() string     { return o.ep.name }
func (o *OpenAI) Models() []string { return o.models.get() }

// ListModels asks /models for the model IDs the key can use.
func (o *OpenAI) ListModels(ctx context.Context) ([]string, error) {
	var list struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := o.ep.get(ctx, "/models", &list); err != nil {
		return nil, err
	}
	ids := make([]string, len(list.Data))
	for i, m := range list.Data {
		ids[i] = m.ID
	}
	o.models.set(ids)
	return ids, nil
}

func (o *OpenAI) Healthy(ctx context.Context) error {
	_, err := o.ListModels(ctx)
	return err
}

type oaiRequest struct {
	Model       string           `json:"model"`
	Messages    []domain.Message `json:"messages"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
	Temperature *float64         `json:"temperature,omitempty"`
	Stream      bool             `json:"stream"`
}

type oaiResponse struct {
	Choices []struct {
		Message      domain.Message `json:"message"`
		FinishReason string         `json:"finish_reason"`
	} `json:"choices"`
	Usage domain.Usage `json:"usage"`
}

func (o *OpenAI) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	in := oaiRequest{Model: cmp.Or(req.Model, o.model), Messages: req.Messages, MaxTokens: req.MaxTokens}
	if req.Temperature > 0 {
		in.Temperature = &req.Temperature
	}

	var out oaiResponse
	latency, err := o.ep.post(ctx, "/chat/completions", in, &out)
	if err != nil {
		return nil, err
	}
	resp := &domain.ChatResponse{FinishReason: domain.FinishStop, Usage: out.Usage, LatencyMs: latency}
	if len(out.Choices) > 0 {
		resp.Content = out.Choices[0].Message.Content
		resp.FinishReason = cmp.Or(out.Choices[0].FinishReason, domain.FinishStop)
	}
	return resp, nil
}
