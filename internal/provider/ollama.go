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
	ollamaDefaultBase  = "http://localhost:11434"
	ollamaDefaultModel = "llama3.1:8b"
)

// Ollama talks to a local or hosted Ollama server through /api/chat.
type Ollama struct {
	ep     endpoint
	model  string
	models modelList
}

type OllamaConfig struct {
	APIBase      string
	DefaultModel string
	Timeout      time.Duration
	Logger       *slog.Logger
}

func NewOllama(cfg OllamaConfig) *Ollama {
	return NewOllamaWithClient(cfg, NewHTTPClient(cfg.Timeout))
}

// NewOllamaWithClient is NewOllama with a caller-supplied HTTP client.
func NewOllamaWithClient(cfg OllamaConfig, client *http.Client) *Ollama {
	base := cmp.Or(cfg.APIBase, ollamaDefaultBase)
	model := cmp.Or(cfg.DefaultModel, ollamaDefaultModel)
	return &Ollama{
		ep:     newEndpoint("ollama", base, client, cfg.Logger),
		model:  model,
		models: modelList{fallback: model},
	}
}

func (o *Ollama) Name() string { return o.ep.name }

// Models returns what the server reported on the last ListModels call, or
// the configured default before that.
func (o *Ollama) Models() []string { return o.models.get() }

// ListModels asks /api/tags for the installed models.
func (o *Ollama) ListModels(ctx context.Context) ([]string, error) {
	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := o.ep.get(ctx, "/api/tags", &tags); err != nil {
		return nil, err
	}
	names := make([]string, len(tags.Models))
	for i, m := range tags.Models {
		names[i] = m.Name
	}
	o.models.set(names)
	return names, nil
}

func (o *Ollama) Healthy(ctx context.Context) error {
	_, err := o.ListModels(ctx)
	return err
}

type ollamaRequest struct {
	Model    string           `json:"model"`
	Messages []domain.Message `json:"messages"`
	Stream   bool             `json:"stream"`
	Options  map[string]any   `json:"options,omitempty"`
}

type ollamaResponse struct {
	Message         domain.Message `json:"message"`
	DoneReason      string         `json:"done_reason"`
	PromptEvalCount int            `json:"prompt_eval_count"`
	EvalCount       int            `json:"eval_count"`
}

func (o *Ollama) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	in := ollamaRequest{Model: cmp.Or(req.Model, o.model), Messages: req.Messages}
	if req.Temperature > 0 || req.MaxTokens > 0 {
		in.Options = make(map[string]any, 2)
		if req.Temperature > 0 {
			in.Options["temperature"] = req.Temperature
		}
		if req.MaxTokens > 0 {
			in.Options["num_predict"] = req.MaxTokens
		}
	}

	var out ollamaResponse
	latency, err := o.ep.post(ctx, "/api/chat", in, &out)
	if err != nil {
		return nil, err
	}
	return &domain.ChatResponse{
		Content:      out.Message.Content,
		FinishReason: cmp.Or(out.DoneReason, domain.FinishStop),
		Usage: domain.Usage{
			PromptTokens:     out.PromptEvalCount,
			CompletionTokens: out.EvalCount,
			TotalTokens:      out.PromptEvalCount + out.EvalCount,
		},
		LatencyMs: latency,
	}, nil
}
