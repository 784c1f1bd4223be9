package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chenjy16/webtools-sub001/internal/domain"
)

// ErrEmptyChain is returned by a Chain with no members.
var ErrEmptyChain = errors.New("provider chain is empty")

const defaultCooldown = 30 * time.Second

// Chain sends each request to the first member that answers. A member that
// fails is benched for a cooldown and tried last until the bench expires, so
// a dead primary does not add its timeout to every request.
type Chain struct {
	members  []domain.Provider
	cooldown time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	benched map[string]time.Time
}

// NewChain builds a chain tried in the given order.
func NewChain(members []domain.Provider, cooldown time.Duration, logger *slog.Logger) *Chain {
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}
	return &Chain{
		members:  members,
		cooldown: cooldown,
		logger:   logger,
		now:      time.Now,
		benched:  make(map[string]time.Time),
	}
}

func (c *Chain) Name() string {
	names := make([]string, len(c.members))
	for i, p := range c.members {
		names[i] = p.Name()
	}
	return "chain(" + strings.Join(names, ",") + ")"
}

// Models lists every member's models once, in member order.
func (c *Chain) Models() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, p := range c.members {
		for _, m := range p.Models() {
			if _, dup := seen[m]; dup {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	return out
}

// Healthy succeeds when any member is healthy.
func (c *Chain) Healthy(ctx context.Context) error {
	var errs []error
	for _, p := range c.members {
		err := p.Healthy(ctx)
		if err == nil {
			return nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}
	if len(errs) == 0 {
		return ErrEmptyChain
	}
	return fmt.Errorf("no healthy provider: %w", errors.Join(errs...))
}

// order returns members with benched ones moved to the back, preserving the
// configured order within each group.
func (c *Chain) order() []domain.Provider {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	ready := make([]domain.Provider, 0, len(c.members))
	var resting []domain.Provider
	for _, p := range c.members {
		until, ok := c.benched[p.Name()]
		switch {
		case !ok:
			ready = append(ready, p)
		case now.After(until):
			delete(c.benched, p.Name())
			ready = append(ready, p)
		default:
			resting = append(resting, p)
		}
	}
	return append(ready, resting...)
}

func (c *Chain) bench(name string) {
	c.mu.Lock()
	c.benched[name] = c.now().Add(c.cooldown)
	c.mu.Unlock()
}

func (c *Chain) restore(name string) {
	c.mu.Lock()
	delete(c.benched, name)
	c.mu.Unlock()
}

// Chat returns the first successful reply. The requested Model belongs to
// the first configured member; the others fall back to their own default.
func (c *Chain) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	if len(c.members) == 0 {
		return nil, ErrEmptyChain
	}
	primary := c.members[0].Name()

	var errs []error
	for _, p := range c.order() {
		attempt := req
		if p.Name() != primary {
			attempt.Model = ""
		}
		resp, err := p.Chat(ctx, attempt)
		if err == nil {
			c.restore(p.Name())
			if len(errs) > 0 {
				c.logger.Info("answered by fallback provider", "provider", p.Name(), "failed", len(errs))
			}
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.bench(p.Name())
		c.logger.Warn("provider failed, benched", "provider", p.Name(), "cooldown", c.cooldown, "err", err)
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}
	return nil, fmt.Errorf("every provider failed: %w", errors.Join(errs...))
}

var _ domain.Provider = (*Chain)(nil)
