package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Config is the root configuration for tool.blog.
type Config struct {
	General   GeneralConfig             `json:"general"`
	Providers map[string]ProviderConfig `json:"providers"`
	Channels  ChannelsConfig            `json:"channels"`
	Store     StoreConfig               `json:"store"`
	Analysis  AnalysisConfig            `json:"analysis"`
	Tools     ToolsConfig               `json:"tools"`
	Games     GamesConfig               `json:"games"`
	Metrics   MetricsConfig             `json:"metrics"`
}

type GeneralConfig struct {
	DataDir         string   `json:"dataDir"`
	LogLevel        string   `json:"logLevel"`
	LogFile         string   `json:"logFile,omitempty"`
	DefaultProvider string   `json:"defaultProvider"`
	FailoverChain   []string `json:"failoverChain,omitempty"` // provider failover order
	MaxConcurrent   int      `json:"maxConcurrentMessages"`
}

type ProviderConfig struct {
	Enabled        bool   `json:"enabled"`
	APIBase        string `json:"apiBase,omitempty"`
	APIKey         string `json:"apiKey,omitempty"`
	DefaultModel   string `json:"defaultModel,omitempty"`
	TimeoutSeconds int    `json:"timeoutSeconds,omitempty"`
}

type ChannelsConfig struct {
	Web      WebConfig      `json:"web"`
	Telegram TelegramConfig `json:"telegram"`
}

type TelegramConfig struct {
	Enabled   bool           `json:"enabled"`
	Token     string         `json:"token"`
	AllowFrom FlexStringList `json:"allowFrom"`
	ParseMode string         `json:"parseMode"`
}

// FlexStringList is a []string that can unmarshal from JSON arrays containing
// both strings and numbers (e.g. ["123", 456] both become "123", "456").
type FlexStringList []string

func (f *FlexStringList) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			result = append(result, s)
			continue
		}
		var n float64
		if err := json.Unmarshal(item, &n); err == nil {
			result = append(result, strconv.FormatInt(int64(n), 10))
			continue
		}
		result = append(result, string(item))
	}
	*f = result
	return nil
}

type WebConfig struct {
	Enabled            bool    `json:"enabled"`
	Host               string  `json:"host"`
	Port               int     `json:"port"`
	Auth               WebAuth `json:"auth"`
	RateLimitPerMinute int     `json:"rateLimitPerMinute"` // 0 = unlimited
}

type WebAuth struct {
	Enabled      bool   `json:"enabled"`
	Username     string `json:"username"`
	PasswordHash string `json:"passwordHash"` // hex SHA-256
}

type StoreConfig struct {
	DBPath string `json:"dbPath"`
}

type AnalysisConfig struct {
	FetchMode    string        `json:"fetchMode"` // "http" | "browser"
	MaxPageBytes int           `json:"maxPageBytes"`
	MaxTextChars int           `json:"maxTextChars"`
	MaxHistory   int           `json:"maxHistory"`
	Temperature  float64       `json:"temperature"`
	Browser      BrowserConfig `json:"browser"`
}

type BrowserConfig struct {
	ProfileDir string `json:"profileDir,omitempty"`
	Headless   bool   `json:"headless"`
}

type ToolsConfig struct {
	QR   QRToolConfig   `json:"qr"`
	Cron CronToolConfig `json:"cron"`
	Hash HashToolConfig `json:"hash"`
}

type QRToolConfig struct {
	Size  int    `json:"size"`
	Level string `json:"level"` // L | M | Q | H
}

type CronToolConfig struct {
	NextRuns int    `json:"nextRuns"`
	Timezone string `json:"timezone"` // IANA name, "" = local
}

type HashToolConfig struct {
	DefaultAlgorithm string `json:"defaultAlgorithm"`
}

type GamesConfig struct {
	Twenty48    Twenty48Config `json:"twenty48"`
	Snake       SnakeConfig    `json:"snake"`
	Jump        JumpConfig     `json:"jump"`
	MaxSessions int            `json:"maxSessions"`
}

type Twenty48Config struct {
	Size int `json:"size"`
}

type SnakeConfig struct {
	Width      int  `json:"width"`
	Height     int  `json:"height"`
	Wrap       bool `json:"wrap"`
	TickMillis int  `json:"tickMillis"`
}

type JumpConfig struct {
	Width      int `json:"width"`
	Height     int `json:"height"`
	TickMillis int `json:"tickMillis"`
}

// MetricsConfig configures the Prometheus text endpoint on the web channel.
type MetricsConfig struct {
	Enabled  bool   `json:"enabled"`
	Endpoint string `json:"endpoint"`
}

// Tick returns the snake tick interval.
func (s SnakeConfig) Tick() time.Duration { return time.Duration(s.TickMillis) * time.Millisecond }

// Tick returns the jump game tick interval.
func (j JumpConfig) Tick() time.Duration { return time.Duration(j.TickMillis) * time.Millisecond }

// DefaultConfigDir returns the default config directory (~/.toolblog).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".toolblog"
	}
	return filepath.Join(home, ".toolblog")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.General.DataDir = ExpandPath(cfg.General.DataDir)
	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)
	cfg.Store.DBPath = ExpandPath(cfg.Store.DBPath)
	cfg.Analysis.Browser.ProfileDir = ExpandPath(cfg.Analysis.Browser.ProfileDir)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-[^}]*)?\}`)

// ExpandEnvVars substitutes ${NAME} and ${NAME:-fallback} references. The
// fallback applies when NAME is unset or empty; a reference with neither a
// value nor a fallback is left as written. Bare $NAME is not expanded.
func ExpandEnvVars(input string) string {
	return envRef.ReplaceAllStringFunc(input, func(ref string) string {
		m := envRef.FindStringSubmatch(ref)
		if v := os.Getenv(m[1]); v != "" {
			return v
		}
		if fallback, ok := strings.CutPrefix(m[2], ":-"); ok && fallback != "" {
			return fallback
		}
		return ref
	})
}

// Save writes cfg as indented JSON. The file is replaced by rename so a
// crash never leaves a truncated config behind.
func Save(path string, cfg *Config) error {
	path = ExpandPath(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	switch cfg.General.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}
	if cfg.General.MaxConcurrent < 1 || cfg.General.MaxConcurrent > 100 {
		errs = append(errs, "general.maxConcurrentMessages must be between 1 and 100")
	}

	if cfg.Channels.Web.Port < 0 || cfg.Channels.Web.Port > 65535 {
		errs = append(errs, "channels.web.port must be between 0 and 65535")
	}
	if cfg.Channels.Web.RateLimitPerMinute < 0 {
		errs = append(errs, "channels.web.rateLimitPerMinute must be >= 0")
	}

	switch cfg.Analysis.FetchMode {
	case "http", "browser":
	default:
		errs = append(errs, "analysis.fetchMode must be one of: http, browser")
	}
	if cfg.Analysis.MaxPageBytes < 1024 {
		errs = append(errs, "analysis.maxPageBytes must be >= 1024")
	}
	if cfg.Analysis.MaxHistory < 1 {
		errs = append(errs, "analysis.maxHistory must be >= 1")
	}
	if cfg.Analysis.Temperature < 0 || cfg.Analysis.Temperature > 2 {
		errs = append(errs, "analysis.temperature must be between 0 and 2")
	}

	if cfg.Tools.QR.Size < 64 || cfg.Tools.QR.Size > 2048 {
		errs = append(errs, "tools.qr.size must be between 64 and 2048")
	}
	switch cfg.Tools.QR.Level {
	case "L", "M", "Q", "H":
	default:
		errs = append(errs, "tools.qr.level must be one of: L, M, Q, H")
	}
	if cfg.Tools.Cron.NextRuns < 1 || cfg.Tools.Cron.NextRuns > 50 {
		errs = append(errs, "tools.cron.nextRuns must be between 1 and 50")
	}
	if cfg.Tools.Cron.Timezone != "" {
		if _, err := time.LoadLocation(cfg.Tools.Cron.Timezone); err != nil {
			errs = append(errs, fmt.Sprintf("tools.cron.timezone: %v", err))
		}
	}

	if cfg.Games.Twenty48.Size < 3 || cfg.Games.Twenty48.Size > 8 {
		errs = append(errs, "games.twenty48.size must be between 3 and 8")
	}
	if cfg.Games.Snake.Width < 5 || cfg.Games.Snake.Height < 5 {
		errs = append(errs, "games.snake.width and height must be >= 5")
	}
	if cfg.Games.Jump.Width < 20 || cfg.Games.Jump.Height < 5 {
		errs = append(errs, "games.jump.width must be >= 20 and height >= 5")
	}
	if cfg.Games.MaxSessions < 1 {
		errs = append(errs, "games.maxSessions must be >= 1")
	}

	for _, provName := range cfg.General.FailoverChain {
		if _, ok := cfg.Providers[provName]; !ok {
			errs = append(errs, fmt.Sprintf("general.failoverChain references unknown provider: %s", provName))
		}
	}
	for name, pc := range cfg.Providers {
		if pc.Enabled && pc.APIBase == "" && name != "ollama" && name != "openai" {
			errs = append(errs, fmt.Sprintf("providers.%s: apiBase is required", name))
		}
		if pc.TimeoutSeconds < 0 {
			errs = append(errs, fmt.Sprintf("providers.%s: timeoutSeconds must be >= 0", name))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
