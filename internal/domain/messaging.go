package domain

import (
	"context"
	"time"
)

// Reply formats understood by channels.
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
)

// InboundMessage is one line of user input from a channel.
type InboundMessage struct {
	Channel   string
	ChatID    string
	SenderID  string
	Content   string
	Timestamp time.Time
}

// OutboundMessage is a reply addressed to a chat on a channel.
type OutboundMessage struct {
	Channel string
	ChatID  string
	Content string
	Format  string
}

// MessageBus decouples channels from the dispatcher. Channels publish what
// users type and register a route to receive replies for their chats.
type MessageBus interface {
	Publish(ctx context.Context, msg InboundMessage) error
	Subscribe() <-chan InboundMessage
	Route(channel string, handler func(OutboundMessage))
	SendOutbound(msg OutboundMessage) error
	Close()
}

// Channel is a user-facing transport: the terminal, the HTTP API or a chat
// bot. Start blocks until ctx ends or the transport fails.
type Channel interface {
	Name() string
	Start(ctx context.Context, bus MessageBus) error
	Stop() error
	Send(ctx context.Context, msg OutboundMessage) error
}
