package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/chenjy16/webtools-sub001/internal/analysis"

	"github.com/spf13/cobra"
)

func analyzeCmd() *cobra.Command {
	var (
		fetchMode   string
		questions   []string
		interactive bool
	)
	cmd := &cobra.Command{
		Use:   "analyze <url>",
		Short: "Snapshot a page and ask the configured model about it",
		Long: `Fetches the page (plain HTTP or headless Chrome), stores a snapshot,
prints the model's initial analysis and then answers follow-up questions.
The conversation is saved; continue it later with 'toolblog conversations ask'.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, closer, err := bootstrap()
			if err != nil {
				return err
			}
			defer closer.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc, err := newServices(cfg, fetchMode)
			if err != nil {
				return err
			}
			defer svc.Close()
			if svc.analyzer == nil {
				return errors.New("no inference provider configured; see 'toolblog init --wizard'")
			}

			out := cmd.OutOrStdout()
			sess, err := svc.analyzer.Start(ctx, args[0])
			if sess == nil {
				return err
			}
			s := sess.Snapshot
			fmt.Fprintf(out, "%s\n%s  HTTP %d  %d words  %d links  %d images (%d without alt)  %d ms via %s\n",
				s.Title, s.FinalURL, s.Status, s.WordCount, s.Links, s.Images, s.ImagesMissingAlt, s.LoadTimeMs, s.Via)
			fmt.Fprintf(out, "conversation %s\n\n", sess.Conversation.ID)
			if err != nil {
				printError(err)
			} else {
				fmt.Fprintln(out, renderMarkdown(sess.Reply.Content, "markdown"))
			}

			ask := func(q string) error {
				reply, err := svc.analyzer.Ask(ctx, sess.Conversation.ID, q)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, renderMarkdown(reply.Content, "markdown"))
				return nil
			}
			for _, q := range questions {
				fmt.Fprintf(out, "\n> %s\n", q)
				if err := ask(q); err != nil {
					return err
				}
			}
			if interactive {
				return askLoop(ctx, cmd.InOrStdin(), out, ask)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&fetchMode, "fetch", "", "page fetch mode: http or browser (default from config)")
	cmd.Flags().StringArrayVarP(&questions, "ask", "a", nil, "follow-up question (repeatable)")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "keep asking questions from the terminal")
	return cmd
}

// askLoop reads questions line by line until EOF, /quit or ctx is done.
func askLoop(ctx context.Context, in io.Reader, out io.Writer, ask func(string) error) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "\nask> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		q := strings.TrimSpace(scanner.Text())
		switch q {
		case "":
			continue
		case "/quit", "/exit", "/q":
			return nil
		}
		if err := ask(q); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			printError(err)
		}
	}
}

func conversationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"conv"},
		Short:   "List, show, continue and delete saved page analyses",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List conversations, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAnalyzer(cmd, func(ctx context.Context, a *analysis.Analyzer) error {
				convs, err := a.List(ctx, limit)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(convs))
				for _, c := range convs {
					rows = append(rows, []string{c.ID, c.Title, c.URL, c.Provider, c.UpdatedAt.Local().Format(time.DateTime)})
				}
				return printTable(cmd.OutOrStdout(), []string{"ID", "Title", "URL", "Provider", "Updated"}, rows)
			})
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", 20, "maximum conversations to list")
	cmd.AddCommand(list)

	var historyLimit int
	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a conversation's messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAnalyzer(cmd, func(ctx context.Context, a *analysis.Analyzer) error {
				msgs, err := a.History(ctx, args[0], historyLimit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, m := range msgs {
					fmt.Fprintf(out, "--- %s (%s)\n", m.Role, m.CreatedAt.Local().Format(time.DateTime))
					fmt.Fprintln(out, renderMarkdown(m.Content, "markdown"))
				}
				return nil
			})
		},
	}
	show.Flags().IntVarP(&historyLimit, "limit", "n", 100, "only the last n messages")
	cmd.AddCommand(show)

	cmd.AddCommand(&cobra.Command{
		Use:   "ask <id> <question...>",
		Short: "Continue a conversation",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAnalyzer(cmd, func(ctx context.Context, a *analysis.Analyzer) error {
				reply, err := a.Ask(ctx, args[0], strings.Join(args[1:], " "))
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderMarkdown(reply.Content, "markdown"))
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a conversation and its messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAnalyzer(cmd, func(ctx context.Context, a *analysis.Analyzer) error {
				if err := a.Delete(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			})
		},
	})
	return cmd
}

func withAnalyzer(cmd *cobra.Command, fn func(context.Context, *analysis.Analyzer) error) error {
	cfg, _, closer, err := bootstrap()
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := newServices(cfg, "")
	if err != nil {
		return err
	}
	defer svc.Close()
	if svc.analyzer == nil {
		return errors.New("no inference provider configured; see 'toolblog init --wizard'")
	}
	return fn(ctx, svc.analyzer)
}

func loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login <url>",
		Short: "Open Chrome to sign in to a site before analyzing it",
		Long:  "Opens a visible Chrome window using the analysis browser profile. Cookies are kept for later headless snapshots (analysis.fetchMode browser).",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, closer, err := bootstrap()
			if err != nil {
				return err
			}
			defer closer.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return newBridge(cfg).Login(ctx, args[0])
		},
	}
}
