// Package bus carries messages between the user-facing channels and the
// dispatcher inside one process.
package bus

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/chenjy16/webtools-sub001/internal/domain"
	"github.com/chenjy16/webtools-sub001/internal/metrics"
)

var (
	// ErrClosed is returned by Publish after Close.
	ErrClosed = errors.New("bus closed")
	// ErrFull is returned when the inbound queue stayed full for the whole
	// publish wait.
	ErrFull = errors.New("bus full")
	// ErrNoRoute is returned by SendOutbound when no channel claimed the
	// message's channel name.
	ErrNoRoute = errors.New("no outbound route")
)

// DefaultWait bounds how long Publish blocks on a full queue.
const DefaultWait = 5 * time.Second

// Bus is a bounded in-memory queue for inbound messages plus a routing
// table for replies.
type Bus struct {
	queue  chan domain.InboundMessage
	wait   time.Duration
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
	routes map[string]func(domain.OutboundMessage)
}

// New creates a bus holding up to capacity unread messages.
func New(capacity int, logger *slog.Logger) *Bus {
	if capacity <= 0 {
		capacity = 64
	}
	return &Bus{
		queue:  make(chan domain.InboundMessage, capacity),
		wait:   DefaultWait,
		logger: logger,
		routes: make(map[string]func(domain.OutboundMessage)),
	}
}

// Publish enqueues msg. When the queue is full it waits up to DefaultWait or
// until ctx ends, whichever is first.
func (b *Bus) Publish(ctx context.Context, msg domain.InboundMessage) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		metrics.BusMessages.Inc(msg.Channel, "closed")
		return ErrClosed
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	select {
	case b.queue <- msg:
		metrics.BusMessages.Inc(msg.Channel, "queued")
		return nil
	default:
	}

	b.logger.Warn("inbound queue full, waiting", "channel", msg.Channel, "chat", msg.ChatID)
	t := time.NewTimer(b.wait)
	defer t.Stop()
	select {
	case b.queue <- msg:
		metrics.BusMessages.Inc(msg.Channel, "queued")
		return nil
	case <-ctx.Done():
		metrics.BusMessages.Inc(msg.Channel, "cancelled")
		return ctx.Err()
	case <-t.C:
		metrics.BusMessages.Inc(msg.Channel, "dropped")
		b.logger.Error("inbound message dropped", "channel", msg.Channel, "chat", msg.ChatID, "waited", b.wait)
		return ErrFull
	}
}

// Subscribe returns the inbound queue. It is closed by Close.
func (b *Bus) Subscribe() <-chan domain.InboundMessage { return b.queue }

// Pending reports how many inbound messages are waiting.
func (b *Bus) Pending() int { return len(b.queue) }

// Route registers the reply handler for a channel name, replacing any
// previous one.
func (b *Bus) Route(channel string, handler func(domain.OutboundMessage)) {
	b.mu.Lock()
	b.routes[channel] = handler
	b.mu.Unlock()
}

// SendOutbound hands msg to its channel's handler.
func (b *Bus) SendOutbound(msg domain.OutboundMessage) error {
	b.mu.RLock()
	handler := b.routes[msg.Channel]
	b.mu.RUnlock()
	if handler == nil {
		b.logger.Warn("reply has no route", "channel", msg.Channel, "chat", msg.ChatID)
		return ErrNoRoute
	}
	handler(msg)
	return nil
}

// Close stops intake and closes the subscription. Repeated calls are no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.queue)
}

var _ domain.MessageBus = (*Bus)(nil)
