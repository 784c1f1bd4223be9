package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/chenjy16/webtools-sub001/internal/analysis"
	"github.com/chenjy16/webtools-sub001/internal/browser"
	"github.com/chenjy16/webtools-sub001/internal/channel"
	"github.com/chenjy16/webtools-sub001/internal/config"
	"github.com/chenjy16/webtools-sub001/internal/dispatch"
	"github.com/chenjy16/webtools-sub001/internal/domain"
	"github.com/chenjy16/webtools-sub001/internal/game"
	"github.com/chenjy16/webtools-sub001/internal/provider"
	"github.com/chenjy16/webtools-sub001/internal/store"
	"github.com/chenjy16/webtools-sub001/internal/tool"
)

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return config.ExpandPath(configPath)
	}
	return config.DefaultConfigPath()
}

// loadConfig loads the config file, falling back to defaults when it does
// not exist yet. A file that exists but fails to parse or validate is an
// error.
func loadConfig() (*config.Config, string, error) {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		if _, statErr := os.Stat(cfgPath); os.IsNotExist(statErr) {
			logger.Debug("config not found, using defaults", "path", cfgPath)
			return config.Defaults(), cfgPath, nil
		}
		return nil, cfgPath, fmt.Errorf("load config: %w", err)
	}
	return cfg, cfgPath, nil
}

// setupLogger replaces the bootstrap logger with one honouring
// general.logLevel and general.logFile. The returned closer releases the
// log file, if any.
func setupLogger(cfg *config.Config) (io.Closer, error) {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.General.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	var w io.Writer = os.Stderr
	var closer io.Closer = io.NopCloser(nil)
	if cfg.General.LogFile != "" {
		path := config.ExpandPath(cfg.General.LogFile)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		w, closer = f, f
	}
	logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	return closer, nil
}

// dbPathFor resolves store.dbPath, defaulting into general.dataDir.
func dbPathFor(cfg *config.Config) string {
	if cfg.Store.DBPath == "" {
		return config.ExpandPath(filepath.Join(cfg.General.DataDir, "toolblog.db"))
	}
	return config.ExpandPath(cfg.Store.DBPath)
}

func openStore(cfg *config.Config) (*store.SQLiteStore, error) {
	st, err := store.NewSQLiteStore(dbPathFor(cfg), logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

func newGameManager(cfg *config.Config) *game.Manager {
	return game.NewManager(game.ManagerConfig{
		Twenty48Size: cfg.Games.Twenty48.Size,
		SnakeWidth:   cfg.Games.Snake.Width,
		SnakeHeight:  cfg.Games.Snake.Height,
		SnakeWrap:    cfg.Games.Snake.Wrap,
		JumpWidth:    cfg.Games.Jump.Width,
		JumpHeight:   cfg.Games.Jump.Height,
		MaxSessions:  cfg.Games.MaxSessions,
		Logger:       logger,
	})
}

// registerTools creates and registers every tool with the registry. The
// game tools share games and record final scores in scores.
func registerTools(cfg *config.Config, games *game.Manager, scores domain.ScoreStore) (*tool.Registry, error) {
	reg := tool.NewRegistry(logger)
	reg.Register(tool.NewBase64Tool())
	reg.Register(tool.NewURLTool())
	reg.Register(tool.NewJSONTool())
	reg.Register(tool.NewColorTool())
	reg.Register(tool.NewHashTool(cfg.Tools.Hash.DefaultAlgorithm))
	reg.Register(tool.NewHMACTool(cfg.Tools.Hash.DefaultAlgorithm))
	reg.Register(tool.NewQRTool(cfg.Tools.QR.Size, cfg.Tools.QR.Level))
	reg.Register(tool.NewBeautifyTool())
	reg.Register(tool.NewMinifyTool())
	reg.Register(tool.NewStreamsTool(nil))

	cronTool, err := tool.NewCronTool(cfg.Tools.Cron.NextRuns, cfg.Tools.Cron.Timezone)
	if err != nil {
		return nil, fmt.Errorf("cron tool: %w", err)
	}
	reg.Register(cronTool)

	if games != nil {
		for _, k := range []game.Kind{game.Kind2048, game.KindSnake, game.KindJump} {
			reg.Register(tool.NewGameTool(k, games, scores, logger))
		}
	}
	return reg, nil
}

// newSnapshotter returns the page fetcher for mode ("http" or "browser").
func newSnapshotter(cfg *config.Config, mode string) analysis.Snapshotter {
	if mode == "" {
		mode = cfg.Analysis.FetchMode
	}
	if mode == "browser" {
		return newBridge(cfg)
	}
	return analysis.NewHTTPFetcher(analysis.FetcherConfig{
		MaxPageBytes: cfg.Analysis.MaxPageBytes,
		MaxTextChars: cfg.Analysis.MaxTextChars,
		UserAgent:    "toolblog/" + version,
		Logger:       logger,
	})
}

func newBridge(cfg *config.Config) *browser.Bridge {
	return browser.NewBridge(browser.BridgeConfig{
		ProfileDir:   config.ExpandPath(cfg.Analysis.Browser.ProfileDir),
		Headless:     cfg.Analysis.Browser.Headless,
		MaxTextChars: cfg.Analysis.MaxTextChars,
		Logger:       logger,
	})
}

// newAnalyzer wires the configured provider chain to the store. It returns
// nil with the reason when no provider can be built.
func newAnalyzer(cfg *config.Config, st domain.ConversationStore, fetchMode string) (*analysis.Analyzer, error) {
	prov, err := provider.NewFactory(cfg, logger).Chat()
	if err != nil {
		return nil, err
	}
	return analysis.NewAnalyzer(analysis.AnalyzerConfig{
		Fetcher:     newSnapshotter(cfg, fetchMode),
		Provider:    prov,
		Store:       st,
		MaxHistory:  cfg.Analysis.MaxHistory,
		Temperature: cfg.Analysis.Temperature,
		Logger:      logger,
	}), nil
}

// services holds everything the long-running commands share.
type services struct {
	cfg      *config.Config
	store    *store.SQLiteStore
	games    *game.Manager
	tools    *tool.Registry
	analyzer *analysis.Analyzer // nil without a provider
}

func newServices(cfg *config.Config, fetchMode string) (*services, error) {
	st, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	games := newGameManager(cfg)
	reg, err := registerTools(cfg, games, st)
	if err != nil {
		st.Close()
		return nil, err
	}
	analyzer, err := newAnalyzer(cfg, st, fetchMode)
	if err != nil {
		logger.Warn("page analysis disabled", "err", err)
	}
	return &services{cfg: cfg, store: st, games: games, tools: reg, analyzer: analyzer}, nil
}

// dispatchAnalyst keeps a nil analyzer a nil interface.
func (s *services) dispatchAnalyst() dispatch.Analyst {
	if s.analyzer == nil {
		return nil
	}
	return s.analyzer
}

func (s *services) webAnalyst() channel.Analyst {
	if s.analyzer == nil {
		return nil
	}
	return s.analyzer
}

func (s *services) newDispatcher(b domain.MessageBus) *dispatch.Dispatcher {
	return dispatch.NewDispatcher(dispatch.DispatcherConfig{
		Tools:       s.tools,
		Analyst:     s.dispatchAnalyst(),
		Scores:      s.store,
		Bus:         b,
		Concurrency: s.cfg.General.MaxConcurrent,
		Logger:      logger,
	})
}

func (s *services) Close() error {
	return s.store.Close()
}
