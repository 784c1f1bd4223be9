package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/chenjy16/webtools-sub001/internal/domain"
)

const (
	// Telegram rejects messages above 4096 UTF-16 units; bytes are a safe
	// over-estimate.
	telegramChunkLimit = 4000
	telegramAttempts   = 4
	telegramPollSecs   = 30
)

// telegramAPI is the part of *tgbotapi.BotAPI used after connecting.
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Telegram implements domain.Channel for a Telegram bot. Every text message,
// including slash commands, is forwarded to the dispatcher.
type Telegram struct {
	token     string
	allowed   map[int64]bool // empty allows everyone
	parseMode string
	logger    *slog.Logger

	api     telegramAPI
	limiter *rate.Limiter
	backoff time.Duration
	bus     domain.MessageBus
}

type TelegramConfig struct {
	Token     string
	AllowFrom []string // numeric user IDs
	ParseMode string
	Logger    *slog.Logger
}

func NewTelegram(cfg TelegramConfig) *Telegram {
	allowed := make(map[int64]bool, len(cfg.AllowFrom))
	for _, s := range cfg.AllowFrom {
		id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			cfg.Logger.Warn("ignoring invalid telegram allowFrom entry", "value", s)
			continue
		}
		allowed[id] = true
	}
	mode := cfg.ParseMode
	if mode == "" {
		mode = tgbotapi.ModeMarkdown
	}
	return &Telegram{
		token:     cfg.Token,
		allowed:   allowed,
		parseMode: mode,
		logger:    cfg.Logger,
		// The Bot API allows about 30 messages a second across all chats.
		limiter: rate.NewLimiter(rate.Limit(25), 5),
		backoff: time.Second,
	}
}

func (t *Telegram) Name() string { return "telegram" }

// Start connects the bot and long-polls for updates until ctx ends.
func (t *Telegram) Start(ctx context.Context, mb domain.MessageBus) error {
	bot, err := tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}
	t.api, t.bus = bot, mb
	t.logger.Info("telegram bot connected", "username", bot.Self.UserName, "id", bot.Self.ID)

	mb.Route(t.Name(), func(msg domain.OutboundMessage) {
		if err := t.Send(ctx, msg); err != nil {
			t.logger.Error("telegram reply failed", "chat_id", msg.ChatID, "err", err)
		}
	})

	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = telegramPollSecs
	updates := bot.GetUpdatesChan(cfg)
	for {
		select {
		case <-ctx.Done():
			bot.StopReceivingUpdates()
			t.logger.Info("telegram channel stopped")
			return nil
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			t.handleUpdate(ctx, u)
		}
	}
}

// Stop does nothing. Polling ends with Start's context, and the library
// panics if StopReceivingUpdates runs twice.
func (t *Telegram) Stop() error { return nil }

// Send delivers a reply to a numeric chat ID, split into chunks Telegram
// accepts.
func (t *Telegram) Send(ctx context.Context, msg domain.OutboundMessage) error {
	if t.api == nil {
		return errors.New("telegram bot not started")
	}
	chatID, err := strconv.ParseInt(msg.ChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat ID %q: %w", msg.ChatID, err)
	}
	markdown := msg.Format == domain.FormatMarkdown
	for i, chunk := range splitMessage(msg.Content, telegramChunkLimit) {
		if err := t.deliver(ctx, chatID, chunk, markdown); err != nil {
			return fmt.Errorf("chunk %d: %w", i+1, err)
		}
	}
	return nil
}

func (t *Telegram) handleUpdate(ctx context.Context, u tgbotapi.Update) {
	m := u.Message
	if m == nil || m.From == nil || m.Chat == nil {
		return
	}
	if !t.isAllowed(m.From.ID) {
		t.logger.Warn("unauthorized telegram user", "user_id", m.From.ID, "username", m.From.UserName)
		t.notify(ctx, m.Chat.ID, "Unauthorized. Your user ID is not in the allow list.")
		return
	}
	text := strings.TrimSpace(m.Text)
	if text == "" {
		return
	}
	t.logger.Debug("telegram message received", "user_id", m.From.ID, "chat_id", m.Chat.ID, "len", len(text))

	_, _ = t.api.Request(tgbotapi.NewChatAction(m.Chat.ID, tgbotapi.ChatTyping))
	err := t.bus.Publish(ctx, domain.InboundMessage{
		Channel:   t.Name(),
		ChatID:    strconv.FormatInt(m.Chat.ID, 10),
		SenderID:  strconv.FormatInt(m.From.ID, 10),
		Content:   text,
		Timestamp: m.Time(),
	})
	if err != nil {
		t.logger.Warn("telegram message not queued", "chat_id", m.Chat.ID, "err", err)
		t.notify(ctx, m.Chat.ID, "Busy right now, please resend in a moment.")
	}
}

// notify sends a short plain-text notice, logging rather than returning
// failures.
func (t *Telegram) notify(ctx context.Context, chatID int64, text string) {
	if err := t.deliver(ctx, chatID, text, false); err != nil {
		t.logger.Warn("telegram notice failed", "chat_id", chatID, "err", err)
	}
}

func (t *Telegram) isAllowed(userID int64) bool {
	return len(t.allowed) == 0 || t.allowed[userID]
}

// deliver sends one chunk. A flood-control reply waits the interval Telegram
// asks for. A markdown entity error downgrades the chunk to plain text.
func (t *Telegram) deliver(ctx context.Context, chatID int64, text string, markdown bool) error {
	var lastErr error
	for attempt := 1; attempt <= telegramAttempts; attempt++ {
		if err := t.limiter.Wait(ctx); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(chatID, text)
		if markdown {
			msg.ParseMode = t.parseMode
		}
		_, err := t.api.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err

		wait := time.Duration(attempt) * t.backoff
		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) {
			switch {
			case apiErr.RetryAfter > 0:
				wait = time.Duration(apiErr.RetryAfter) * time.Second
				t.logger.Warn("telegram flood control", "chat_id", chatID, "retry_after", wait)
			case markdown && strings.Contains(apiErr.Message, "can't parse entities"):
				t.logger.Debug("telegram markdown rejected, sending plain", "chat_id", chatID)
				markdown = false
				continue
			case apiErr.Code == 400 || apiErr.Code == 403:
				return err
			}
		}
		if attempt == telegramAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("gave up after %d attempts: %w", telegramAttempts, lastErr)
}

// splitMessage cuts text into chunks of at most maxLen bytes. It prefers a
// newline in the second half of the window and never splits a rune.
func splitMessage(text string, maxLen int) []string {
	var chunks []string
	for len(text) > maxLen {
		cut := strings.LastIndexByte(text[:maxLen], '\n')
		if cut < maxLen/2 {
			cut = maxLen
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
		}
		chunks = append(chunks, text[:cut])
		text = strings.TrimPrefix(text[cut:], "\n")
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}

var _ domain.Channel = (*Telegram)(nil)
