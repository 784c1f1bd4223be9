package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chenjy16/webtools-sub001/internal/config"
)

func TestFactory_GetCachesAndValidates(t *testing.T) {
	cfg := config.Defaults()
	cfg.Providers["openai"] = config.ProviderConfig{Enabled: false}
	cfg.Providers["groq"] = config.ProviderConfig{Enabled: true, APIBase: "https://api.groq.example/v1", APIKey: "k"}
	cfg.Providers["broken"] = config.ProviderConfig{Enabled: true}
	f := NewFactory(cfg, testLogger())

	p, err := f.DefaultProvider()
	require.NoError(t, err)
	assert.Equal(t, "ollama", p.Name())
	again, _ := f.Get("ollama")
	assert.Same(t, p, again)

	g, err := f.Get("groq")
	require.NoError(t, err)
	assert.Equal(t, "groq", g.Name())

	_, err = f.Get("openai")
	assert.ErrorContains(t, err, "disabled")
	_, err = f.Get("missing")
	assert.ErrorContains(t, err, "unknown provider")
	_, err = f.Get("broken")
	assert.Error(t, err)

	assert.Equal(t, []string{"broken", "groq", "ollama"}, f.Enabled())
}

func TestFactory_ChatBuildsFailoverChain(t *testing.T) {
	cfg := config.Defaults()
	cfg.Providers["claude"] = config.ProviderConfig{Enabled: true, APIKey: "k"}
	cfg.General.FailoverChain = []string{"ollama", "nope", "claude"}
	f := NewFactory(cfg, testLogger())

	p, err := f.Chat()
	require.NoError(t, err)
	assert.Equal(t, "chain(ollama,claude)", p.Name())

	cfg.General.FailoverChain = nil
	p, err = f.Chat()
	require.NoError(t, err)
	assert.Equal(t, "ollama", p.Name())
}

func TestFactory_HealthyProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"models":[]}`))
	}))
	defer srv.Close()

	cfg := config.Defaults()
	cfg.Providers["ollama"] = config.ProviderConfig{Enabled: true, APIBase: srv.URL}
	f := NewFactory(cfg, testLogger())
	p := f.HealthyProvider(context.Background())
	require.NotNil(t, p)
	assert.Equal(t, "ollama", p.Name())
}
