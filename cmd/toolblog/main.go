package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/chenjy16/webtools-sub001/internal/config"
	"github.com/chenjy16/webtools-sub001/internal/dispatch"
	"github.com/chenjy16/webtools-sub001/internal/provider"

	"github.com/spf13/cobra"
)

var (
	version    = "0.3.0"
	logger     *slog.Logger
	configPath string
	verbose    bool
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	dispatch.Version = version

	root := &cobra.Command{
		Use:           "toolblog",
		Short:         "tool.blog: developer utilities, page analysis and terminal games",
		Long:          "tool.blog bundles encoders, formatters, generators, an AI page analyst and three small games behind a CLI, a JSON web API and Telegram.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.toolblog/config.json)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		initCmd(), statusCmd(), configCmd(), doctorCmd(), serviceCmd(),
		toolsCmd(), execCmd(), streamsCmd(),
		serveCmd(), chatCmd(),
		analyzeCmd(), conversationsCmd(), loginCmd(),
		playCmd(), scoresCmd(),
		backupCmd(), restoreCmd(),
	)

	if err := root.Execute(); err != nil {
		printError(err)
		os.Exit(1)
	}
}

// bootstrap loads the config and installs the configured logger. Callers
// must close the returned closer.
func bootstrap() (*config.Config, string, io.Closer, error) {
	cfg, cfgPath, err := loadConfig()
	if err != nil {
		return nil, cfgPath, nil, err
	}
	closer, err := setupLogger(cfg)
	if err != nil {
		return nil, cfgPath, nil, err
	}
	return cfg, cfgPath, closer, nil
}

func initCmd() *cobra.Command {
	var interactive, force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the config file and data directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			if _, err := os.Stat(cfgPath); err == nil && !force {
				return fmt.Errorf("config already exists at %s (use --force to overwrite)", cfgPath)
			}

			cfg := config.Defaults()
			if interactive {
				if err := runWizard(cmd.InOrStdin(), cmd.OutOrStdout(), cfg); err != nil {
					return err
				}
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			dataDir := config.ExpandPath(cfg.General.DataDir)
			if err := os.MkdirAll(dataDir, 0o755); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath, "data", dataDir)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&interactive, "wizard", "w", false, "answer setup questions interactively")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration and provider status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cfgPath, closer, err := bootstrap()
			if err != nil {
				return err
			}
			defer closer.Close()

			_, statErr := os.Stat(cfgPath)
			rows := [][]string{
				{"version", version},
				{"config", fmt.Sprintf("%s (loaded: %t)", cfgPath, statErr == nil)},
				{"database", config.ExpandPath(cfg.Store.DBPath)},
				{"fetch mode", cfg.Analysis.FetchMode},
				{"web", fmt.Sprintf("%t (%s:%d)", cfg.Channels.Web.Enabled, cfg.Channels.Web.Host, cfg.Channels.Web.Port)},
				{"telegram", fmt.Sprintf("%t", cfg.Channels.Telegram.Enabled)},
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			if prov := provider.NewFactory(cfg, logger).HealthyProvider(ctx); prov != nil {
				rows = append(rows, []string{"provider", prov.Name() + " (healthy)"})
			} else {
				rows = append(rows, []string{"provider", "none healthy"})
			}
			return printTable(cmd.OutOrStdout(), []string{"Item", "Value"}, rows)
		},
	}
}
