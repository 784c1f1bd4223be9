package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"os/user"
	"syscall"
	"time"

	"github.com/chenjy16/webtools-sub001/internal/game"
	"github.com/chenjy16/webtools-sub001/internal/ui"

	"github.com/spf13/cobra"
)

func playCmd() *cobra.Command {
	var player string
	var noScores bool
	cmd := &cobra.Command{
		Use:       "play <2048|snake|jump>",
		Short:     "Play a game in the terminal",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(game.Kind2048), string(game.KindSnake), string(game.KindJump)},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := game.ParseKind(args[0])
			if err != nil {
				return err
			}
			cfg, _, closer, err := bootstrap()
			if err != nil {
				return err
			}
			defer closer.Close()

			if player == "" {
				player = currentUser()
			}

			uiCfg := ui.Config{
				Kind:    kind,
				Manager: newGameManager(cfg),
				Player:  player,
			}
			switch kind {
			case game.KindSnake:
				uiCfg.Tick = cfg.Games.Snake.Tick()
			case game.KindJump:
				uiCfg.Tick = cfg.Games.Jump.Tick()
			}
			if !noScores {
				st, err := openStore(cfg)
				if err != nil {
					return err
				}
				defer st.Close()
				uiCfg.Scores = st
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return ui.Run(ctx, uiCfg)
		},
	}
	cmd.Flags().StringVarP(&player, "player", "p", "", "name on the high score table (default: login name)")
	cmd.Flags().BoolVar(&noScores, "no-scores", false, "do not read or save high scores")
	return cmd
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "anonymous"
}

func scoresCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "scores <2048|snake|jump>",
		Short: "Show the high score table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := game.ParseKind(args[0])
			if err != nil {
				return err
			}
			cfg, _, closer, err := bootstrap()
			if err != nil {
				return err
			}
			defer closer.Close()

			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			scores, err := st.TopScores(cmd.Context(), string(kind), limit)
			if err != nil {
				return err
			}
			if len(scores) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No %s scores yet.\n", kind)
				return nil
			}
			rows := make([][]string, 0, len(scores))
			for i, s := range scores {
				rows = append(rows, []string{
					fmt.Sprint(i + 1), s.Player, fmt.Sprint(s.Value), s.CreatedAt.Local().Format(time.DateTime),
				})
			}
			return printTable(cmd.OutOrStdout(), []string{"#", "Player", "Score", "Date"}, rows)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of entries")
	return cmd
}
