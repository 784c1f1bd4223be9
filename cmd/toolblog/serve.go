package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/chenjy16/webtools-sub001/internal/bus"
	"github.com/chenjy16/webtools-sub001/internal/channel"
	"github.com/chenjy16/webtools-sub001/internal/config"
	"github.com/chenjy16/webtools-sub001/internal/domain"
)

const (
	busCapacity  = 100
	drainTimeout = 10 * time.Second
)

// runnable is a channel plus whether its failure should stop the server.
type runnable struct {
	ch       domain.Channel
	critical bool
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the web API and Telegram bot",
		Long:  "Runs every enabled channel (web, Telegram) and the message dispatcher until interrupted.",
		RunE:  runServe,
	}
}

// serverChannels builds the enabled long-running channels.
func serverChannels(cfg *config.Config, cfgPath string, svc *services) []runnable {
	var out []runnable
	if tg := cfg.Channels.Telegram; tg.Enabled && tg.Token != "" {
		out = append(out, runnable{ch: channel.NewTelegram(channel.TelegramConfig{
			Token:     tg.Token,
			AllowFrom: tg.AllowFrom,
			ParseMode: tg.ParseMode,
			Logger:    logger,
		})})
	} else if tg.Enabled {
		logger.Warn("telegram enabled without a token, skipping")
	}
	if cfg.Channels.Web.Enabled {
		out = append(out, runnable{critical: true, ch: channel.NewWeb(channel.WebConfig{
			Host:       cfg.Channels.Web.Host,
			Port:       cfg.Channels.Web.Port,
			Logger:     logger,
			Config:     cfg,
			ConfigPath: cfgPath,
			Version:    version,
			Tools:      svc.tools,
			Games:      svc.games,
			Scores:     svc.store,
			Analyst:    svc.webAnalyst(),
		})})
	}
	return out
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, cfgPath, closer, err := bootstrap()
	if err != nil {
		return err
	}
	defer closer.Close()

	svc, err := newServices(cfg, "")
	if err != nil {
		return err
	}
	defer svc.Close()

	channels := serverChannels(cfg, cfgPath, svc)
	if len(channels) == 0 {
		return errors.New("no channels enabled: set channels.web.enabled or channels.telegram.enabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mb := bus.New(busCapacity, logger)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		svc.newDispatcher(mb).Run(gctx)
		return nil
	})
	for _, r := range channels {
		g.Go(func() error {
			err := r.ch.Start(gctx, mb)
			switch {
			case err == nil:
				return nil
			case r.critical:
				return fmt.Errorf("%s channel: %w", r.ch.Name(), err)
			default:
				logger.Error("channel stopped", "channel", r.ch.Name(), "err", err)
				return nil
			}
		})
		logger.Info("channel enabled", "channel", r.ch.Name())
	}
	logger.Info("toolblog started, press Ctrl+C to stop", "version", version)

	<-gctx.Done()
	logger.Info("shutting down")

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()
	select {
	case err = <-done:
	case <-time.After(drainTimeout):
		for _, r := range channels {
			if serr := r.ch.Stop(); serr != nil {
				logger.Warn("forced channel stop failed", "channel", r.ch.Name(), "err", serr)
			}
		}
		err = fmt.Errorf("shutdown did not finish within %s", drainTimeout)
	}
	mb.Close()
	if err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

func chatCmd() *cobra.Command {
	var fetchMode string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive terminal session (slash commands and page analysis)",
		Long:  "Reads lines from the terminal. /help lists the tool commands; /analyze <url> starts a conversation about a page.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, closer, err := bootstrap()
			if err != nil {
				return err
			}
			defer closer.Close()

			svc, err := newServices(cfg, fetchMode)
			if err != nil {
				return err
			}
			defer svc.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			mb := bus.New(busCapacity, logger)
			defer mb.Close()
			go svc.newDispatcher(mb).Run(ctx)

			return channel.NewCLI(channel.CLIConfig{
				Logger:  logger,
				In:      cmd.InOrStdin(),
				Out:     cmd.OutOrStdout(),
				Render:  renderMarkdown,
				Spinner: true,
			}).Start(ctx, mb)
		},
	}
	cmd.Flags().StringVar(&fetchMode, "fetch", "", "page fetch mode: http or browser (default from config)")
	return cmd
}
