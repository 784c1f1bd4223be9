package provider

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/chenjy16/webtools-sub001/internal/config"
	"github.com/chenjy16/webtools-sub001/internal/domain"
)

// ProviderConstructor builds a provider from its config entry.
type ProviderConstructor func(name string, pc config.ProviderConfig, logger *slog.Logger) domain.Provider

func timeoutOf(pc config.ProviderConfig) time.Duration {
	return time.Duration(pc.TimeoutSeconds) * time.Second
}

func newOllama(_ string, pc config.ProviderConfig, logger *slog.Logger) domain.Provider {
	return NewOllama(OllamaConfig{APIBase: pc.APIBase, DefaultModel: pc.DefaultModel, Timeout: timeoutOf(pc), Logger: logger})
}

func newOpenAI(name string, pc config.ProviderConfig, logger *slog.Logger) domain.Provider {
	return NewOpenAI(OpenAIConfig{Name: name, APIKey: pc.APIKey, APIBase: pc.APIBase, Model: pc.DefaultModel, Timeout: timeoutOf(pc), Logger: logger})
}

func newClaude(_ string, pc config.ProviderConfig, logger *slog.Logger) domain.Provider {
	return NewClaude(ClaudeConfig{APIKey: pc.APIKey, APIBase: pc.APIBase, Model: pc.DefaultModel, Timeout: timeoutOf(pc), Logger: logger})
}

// Factory builds providers from config on first use and reuses them after.
// Entries without a dedicated constructor are treated as OpenAI-compatible
// as long as they name an apiBase.
type Factory struct {
	cfg    *config.Config
	logger *slog.Logger

	mu        sync.Mutex
	builders  map[string]ProviderConstructor
	instances map[string]domain.Provider
}

func NewFactory(cfg *config.Config, logger *slog.Logger) *Factory {
	return &Factory{
		cfg:    cfg,
		logger: logger,
		builders: map[string]ProviderConstructor{
			"ollama": newOllama,
			"openai": newOpenAI,
			"claude": newClaude,
		},
		instances: make(map[string]domain.Provider),
	}
}

// RegisterConstructor installs ctor for name and drops any instance already
// built under that name.
func (f *Factory) RegisterConstructor(name string, ctor ProviderConstructor) {
	f.mu.Lock()
	f.builders[name] = ctor
	delete(f.instances, name)
	f.mu.Unlock()
}

// Get returns the named provider. An empty name means general.defaultProvider.
func (f *Factory) Get(name string) (domain.Provider, error) {
	name = cmp.Or(name, f.cfg.General.DefaultProvider)

	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.instances[name]; ok {
		return p, nil
	}

	pc, ok := f.cfg.Providers[name]
	switch {
	case !ok:
		return nil, fmt.Errorf("unknown provider: %s", name)
	case !pc.Enabled:
		return nil, fmt.Errorf("provider %s is disabled", name)
	}

	build, ok := f.builders[name]
	if !ok {
		if pc.APIBase == "" {
			return nil, fmt.Errorf("provider %s: not a built-in and no apiBase set", name)
		}
		build = newOpenAI
	}
	p := build(name, pc, f.logger)
	f.instances[name] = p
	return p, nil
}

func (f *Factory) DefaultProvider() (domain.Provider, error) {
	return f.Get("")
}

// Chat returns what analysis chats should talk to. When
// general.failoverChain resolves to two or more providers they are wrapped
// in a Chain; unusable entries are logged and skipped.
func (f *Factory) Chat() (domain.Provider, error) {
	var members []domain.Provider
	for _, name := range f.cfg.General.FailoverChain {
		p, err := f.Get(name)
		if err != nil {
			f.logger.Warn("failover chain entry skipped", "provider", name, "err", err)
			continue
		}
		members = append(members, p)
	}
	if len(members) > 1 {
		return NewChain(members, 0, f.logger), nil
	}
	if len(members) == 1 {
		return members[0], nil
	}
	return f.DefaultProvider()
}

// Enabled lists the enabled provider names in sorted order.
func (f *Factory) Enabled() []string {
	names := slices.Sorted(maps.Keys(f.cfg.Providers))
	return slices.DeleteFunc(names, func(n string) bool {
		return !f.cfg.Providers[n].Enabled
	})
}

// HealthyProvider probes enabled providers in name order and returns the
// first that answers, or nil.
func (f *Factory) HealthyProvider(ctx context.Context) domain.Provider {
	for _, name := range f.Enabled() {
		if p, err := f.Get(name); err == nil && p.Healthy(ctx) == nil {
			return p
		}
	}
	return nil
}
