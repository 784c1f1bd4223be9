// Package dispatch turns inbound chat messages into tool runs and analysis
// turns, and sends the replies back through the bus.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/chenjy16/webtools-sub001/internal/analysis"
	"github.com/chenjy16/webtools-sub001/internal/domain"
	"github.com/chenjy16/webtools-sub001/internal/tool"
)

const (
	defaultConcurrency   = 4
	defaultRateBurst     = 5
	defaultRatePerMinute = 30.0
)

// Analyst is the part of analysis.Analyzer the dispatcher needs.
type Analyst interface {
	Start(ctx context.Context, rawURL string) (*analysis.Session, error)
	Ask(ctx context.Context, id, question string) (*analysis.Reply, error)
}

// Dispatcher consumes the bus: slash commands run tools, other text goes to
// the chat's active analysis conversation.
type Dispatcher struct {
	tools       *tool.Registry
	analyst     Analyst // nil when no provider is configured
	scores      domain.ScoreStore
	bus         domain.MessageBus
	sessions    *SessionTable
	limiter     *rate.Limiter // throttles inference calls
	concurrency int
	logger      *slog.Logger
}

type DispatcherConfig struct {
	Tools         *tool.Registry
	Analyst       Analyst
	Scores        domain.ScoreStore
	Bus           domain.MessageBus
	Concurrency   int     // max messages handled in parallel
	RatePerMinute float64 // inference calls per minute, 0 = default
	Logger        *slog.Logger
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.RatePerMinute <= 0 {
		cfg.RatePerMinute = defaultRatePerMinute
	}
	return &Dispatcher{
		tools:       cfg.Tools,
		analyst:     cfg.Analyst,
		scores:      cfg.Scores,
		bus:         cfg.Bus,
		sessions:    NewSessionTable(),
		limiter:     rate.NewLimiter(rate.Limit(cfg.RatePerMinute/60.0), defaultRateBurst),
		concurrency: cfg.Concurrency,
		logger:      cfg.Logger,
	}
}

// Run consumes inbound messages with bounded concurrency until ctx is done
// or the bus closes.
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Info("dispatcher started", "concurrency", d.concurrency)

	sem := make(chan struct{}, d.concurrency)
	inbound := d.bus.Subscribe()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher stopping")
			return
		case msg, ok := <-inbound:
			if !ok {
				d.logger.Info("inbound channel closed, dispatcher stopping")
				return
			}
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			go func(m domain.InboundMessage) {
				defer func() { <-sem }()
				d.processMessage(ctx, m)
			}(msg)
		}
	}
}

func (d *Dispatcher) processMessage(ctx context.Context, msg domain.InboundMessage) {
	d.logger.Info("processing message", "channel", msg.Channel, "sender", msg.SenderID, "content_len", len(msg.Content))

	response, err := d.Handle(ctx, msg)
	if err != nil {
		d.logger.Warn("message failed", "channel", msg.Channel, "err", err)
		response = "Error: " + err.Error()
	}
	err = d.bus.SendOutbound(domain.OutboundMessage{
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
		Content: response,
		Format:  domain.FormatMarkdown,
	})
	if err != nil {
		d.logger.Error("reply not delivered", "channel", msg.Channel, "chat", msg.ChatID, "err", err)
	}
}

// ProcessDirect handles a message synchronously. Used by the CLI REPL and
// the HTTP API, which need the reply inline.
func (d *Dispatcher) ProcessDirect(ctx context.Context, content, channel, chatID string) (string, error) {
	return d.Handle(ctx, domain.InboundMessage{
		Channel:   channel,
		ChatID:    chatID,
		SenderID:  "user",
		Content:   content,
		Timestamp: time.Now(),
	})
}

// Handle returns the reply for one message.
func (d *Dispatcher) Handle(ctx context.Context, msg domain.InboundMessage) (string, error) {
	key := msg.Channel + ":" + msg.ChatID
	if cmd := ParseCommand(msg.Content); cmd != nil {
		return d.handleCommand(ctx, key, cmd)
	}

	text := strings.TrimSpace(msg.Content)
	if text == "" {
		return "", fmt.Errorf("empty message")
	}
	id, ok := d.sessions.Get(key)
	if !ok {
		return "No active analysis. Start one with /analyze <url>, or see /help.", nil
	}
	if err := d.requireAnalyst(ctx); err != nil {
		return "", err
	}
	reply, err := d.analyst.Ask(ctx, id, text)
	if err != nil {
		return "", err
	}
	return reply.Content, nil
}

func (d *Dispatcher) analyze(ctx context.Context, key, rawURL string) (string, error) {
	if rawURL == "" {
		return "", fmt.Errorf("usage: /analyze <url>")
	}
	if err := d.requireAnalyst(ctx); err != nil {
		return "", err
	}
	sess, err := d.analyst.Start(ctx, rawURL)
	if sess != nil {
		d.sessions.Set(key, sess.Conversation.ID)
	}
	if err != nil {
		if sess != nil {
			return "", fmt.Errorf("snapshot saved but the analysis failed (ask again to retry): %w", err)
		}
		return "", err
	}

	s := sess.Snapshot
	header := fmt.Sprintf("**%s** (%s, HTTP %d, %d words, %d ms)\n\n",
		sess.Conversation.Title, s.URL, s.Status, s.WordCount, s.LoadTimeMs)
	return header + sess.Reply.Content, nil
}

func (d *Dispatcher) requireAnalyst(ctx context.Context) error {
	if d.analyst == nil {
		return fmt.Errorf("website analysis is not available: no inference provider configured")
	}
	if err := d.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limited: %w", err)
	}
	return nil
}
