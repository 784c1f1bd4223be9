package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			DataDir:         "~/.toolblog",
			LogLevel:        "info",
			DefaultProvider: "ollama",
			MaxConcurrent:   4,
		},
		Providers: map[string]ProviderConfig{
			"ollama": {
				Enabled:      true,
				APIBase:      "http://localhost:11434",
				DefaultModel: "llama3.1:8b",
			},
		},
		Channels: ChannelsConfig{
			Web: WebConfig{
				Enabled:            true,
				Host:               "127.0.0.1",
				Port:               8080,
				RateLimitPerMinute: 120,
			},
			Telegram: TelegramConfig{
				Enabled:   false,
				ParseMode: "Markdown",
			},
		},
		Store: StoreConfig{
			DBPath: "~/.toolblog/toolblog.db",
		},
		Analysis: AnalysisConfig{
			FetchMode:    "http",
			MaxPageBytes: 2 << 20,
			MaxTextChars: 6000,
			MaxHistory:   20,
			Temperature:  0.3,
			Browser: BrowserConfig{
				Headless: true,
			},
		},
		Tools: ToolsConfig{
			QR: QRToolConfig{
				Size:  256,
				Level: "M",
			},
			Cron: CronToolConfig{
				NextRuns: 5,
			},
			Hash: HashToolConfig{
				DefaultAlgorithm: "sha256",
			},
		},
		Games: GamesConfig{
			Twenty48: Twenty48Config{Size: 4},
			Snake: SnakeConfig{
				Width:      20,
				Height:     15,
				TickMillis: 120,
			},
			Jump: JumpConfig{
				Width:      60,
				Height:     12,
				TickMillis: 50,
			},
			MaxSessions: 256,
		},
		Metrics: MetricsConfig{
			Enabled:  false,
			Endpoint: "/metrics",
		},
	}
}
