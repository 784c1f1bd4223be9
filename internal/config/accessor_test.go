package config

import (
	"errors"
	"reflect"
	"testing"
)

func TestGetByPath(t *testing.T) {
	cfg := Defaults()
	cfg.General.FailoverChain = []string{"ollama"}

	cases := map[string]any{
		"general.defaultProvider":  "ollama",
		"tools.qr.size":            float64(256),
		"channels.web.enabled":     true,
		"providers.ollama.apiBase": "http://localhost:11434",
		"general.failoverChain.0":  "ollama",
	}
	for path, want := range cases {
		got, err := GetByPath(cfg, path)
		if err != nil {
			t.Errorf("%s: %v", path, err)
			continue
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("%s = %#v, want %#v", path, got, want)
		}
	}

	section, err := GetByPath(cfg, "tools.qr")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := section.(map[string]any); !ok {
		t.Errorf("tools.qr should be an object, got %T", section)
	}
}

func TestGetByPath_Errors(t *testing.T) {
	cfg := Defaults()
	if _, err := GetByPath(cfg, "nonexistent.path"); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("unknown key: err = %v", err)
	}
	for _, path := range []string{"", "tools..qr", "tools.qr.size.deeper", "general.failoverChain.3"} {
		if _, err := GetByPath(cfg, path); err == nil {
			t.Errorf("%q: expected error", path)
		}
	}
}

func TestSetByPath_Coercion(t *testing.T) {
	cfg := Defaults()
	steps := []struct{ path, value string }{
		{"general.defaultProvider", "claude"},
		{"channels.web.enabled", "false"},
		{"tools.qr.size", "512"},
		{"analysis.temperature", "0.7"},
		{"general.failoverChain", `["ollama"]`},
		{"channels.telegram.allowFrom", `[7, "ada"]`},
	}
	for _, s := range steps {
		if err := SetByPath(cfg, s.path, s.value); err != nil {
			t.Fatalf("set %s: %v", s.path, err)
		}
	}
	if cfg.General.DefaultProvider != "claude" {
		t.Errorf("defaultProvider = %q", cfg.General.DefaultProvider)
	}
	if cfg.Channels.Web.Enabled {
		t.Error("web should be disabled")
	}
	if cfg.Tools.QR.Size != 512 {
		t.Errorf("qr size = %d", cfg.Tools.QR.Size)
	}
	if cfg.Analysis.Temperature != 0.7 {
		t.Errorf("temperature = %v", cfg.Analysis.Temperature)
	}
	if !reflect.DeepEqual(cfg.General.FailoverChain, []string{"ollama"}) {
		t.Errorf("failoverChain = %v", cfg.General.FailoverChain)
	}
	if !reflect.DeepEqual(cfg.Channels.Telegram.AllowFrom, FlexStringList{"7", "ada"}) {
		t.Errorf("allowFrom = %v", cfg.Channels.Telegram.AllowFrom)
	}
}

func TestSetByPath_EmptyStringIsAValue(t *testing.T) {
	cfg := Defaults()
	if err := SetByPath(cfg, "general.defaultProvider", ""); err != nil {
		t.Fatal(err)
	}
	if cfg.General.DefaultProvider != "" {
		t.Errorf("defaultProvider = %q", cfg.General.DefaultProvider)
	}
}

func TestSetByPath_NewProviderEntry(t *testing.T) {
	cfg := Defaults()
	if err := SetByPath(cfg, "providers.groq.apiKey", "gsk_123"); err != nil {
		t.Fatal(err)
	}
	if err := SetByPath(cfg, "providers.groq.enabled", "true"); err != nil {
		t.Fatal(err)
	}
	groq := cfg.Providers["groq"]
	if !groq.Enabled || groq.APIKey != "gsk_123" {
		t.Errorf("groq = %+v", groq)
	}
	if _, ok := cfg.Providers["ollama"]; !ok {
		t.Error("existing provider dropped")
	}
}

func TestSetByPath_OmittedFieldIsSettable(t *testing.T) {
	cfg := Defaults()
	if err := SetByPath(cfg, "general.logFile", "/var/log/toolblog.log"); err != nil {
		t.Fatal(err)
	}
	if cfg.General.LogFile != "/var/log/toolblog.log" {
		t.Errorf("logFile = %q", cfg.General.LogFile)
	}
}

func TestSetByPath_RejectsAndLeavesConfigUntouched(t *testing.T) {
	cases := []struct {
		path, value string
		unknown     bool
	}{
		{"", "x", false},
		{"general.defaultProviderz", "x", true},
		{"tools.qrcode.size", "1", true},
		{"tools.qr.size", "huge", false},
		{"general.defaultProvider.inner", "x", false},
	}
	for _, tc := range cases {
		cfg := Defaults()
		err := SetByPath(cfg, tc.path, tc.value)
		if err == nil {
			t.Errorf("%q: expected error", tc.path)
			continue
		}
		if tc.unknown && !errors.Is(err, ErrUnknownKey) {
			t.Errorf("%q: err = %v, want ErrUnknownKey", tc.path, err)
		}
		if !reflect.DeepEqual(cfg, Defaults()) {
			t.Errorf("%q: config modified by failed set", tc.path)
		}
	}
}

func TestClone_IsDeep(t *testing.T) {
	cfg := Defaults()
	c, err := Clone(cfg)
	if err != nil {
		t.Fatal(err)
	}
	c.Providers["ollama"] = ProviderConfig{APIBase: "http://elsewhere"}
	c.General.FailoverChain = append(c.General.FailoverChain, "ollama")
	if cfg.Providers["ollama"].APIBase != "http://localhost:11434" {
		t.Error("clone shares providers map")
	}
	if len(cfg.General.FailoverChain) != 0 {
		t.Error("clone shares failover chain")
	}
}

func TestSanitize(t *testing.T) {
	cfg := Defaults()
	cfg.Channels.Telegram.Token = "123456789:ABCdefGHIjklMNOpqrSTUvwxyz"
	cfg.Channels.Web.Auth.PasswordHash = "5e884898da28047151d0e56f8dc6292773603d0d6aabbdd62a11ef721d1542d8"
	cfg.Providers["openai"] = ProviderConfig{Enabled: true, APIKey: "sk-1234567890abcdefghijklmnop"}
	cfg.Providers["groq"] = ProviderConfig{Enabled: true, APIKey: "short"}

	s := Sanitize(cfg)

	if got := s.Channels.Telegram.Token; got != "1234****wxyz" {
		t.Errorf("token = %q", got)
	}
	if got := s.Providers["openai"].APIKey; got != "sk-1****mnop" {
		t.Errorf("openai key = %q", got)
	}
	if got := s.Providers["groq"].APIKey; got != "***" {
		t.Errorf("short key = %q", got)
	}
	if got := s.Providers["ollama"].APIKey; got != "" {
		t.Errorf("empty key should stay empty, got %q", got)
	}
	if got := s.Channels.Web.Auth.PasswordHash; got != "***" {
		t.Errorf("password hash = %q", got)
	}
	if cfg.Channels.Telegram.Token != "123456789:ABCdefGHIjklMNOpqrSTUvwxyz" {
		t.Error("original config modified")
	}
}

func TestListPaths(t *testing.T) {
	paths := ListPaths(Defaults())
	for _, p := range []string{
		"general.dataDir", "general.logLevel", "tools.qr.size",
		"games.snake.width", "providers.ollama.apiBase", "channels.web.auth.enabled",
	} {
		if _, ok := paths[p]; !ok {
			t.Errorf("missing path %s", p)
		}
	}
	if _, ok := paths["tools.qr"]; ok {
		t.Error("objects should be flattened, not listed")
	}
}
