package channel

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/chenjy16/webtools-sub001/internal/bus"
	"github.com/chenjy16/webtools-sub001/internal/domain"
)

const (
	cliChatID = "direct"
	cliPrompt = "you> "
	// clearLine returns the cursor to column 0 and erases the line.
	clearLine = "\r\033[K"
)

var spinnerFrames = []rune("⠋⠙⠹⠸⠼⠴⠦⠧⠇⠏")

// CLI implements domain.Channel for an interactive terminal session.
type CLI struct {
	logger *slog.Logger
	in     io.Reader
	render func(content, format string) string

	outMu sync.Mutex
	out   io.Writer

	spin *spinner
}

type CLIConfig struct {
	Logger *slog.Logger
	In     io.Reader
	Out    io.Writer
	// Render formats a reply before printing, e.g. markdown to ANSI.
	Render func(content, format string) string
	// Spinner animates a progress indicator while a reply is pending.
	Spinner bool
}

func NewCLI(cfg CLIConfig) *CLI {
	if cfg.In == nil {
		cfg.In = os.Stdin
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	c := &CLI{logger: cfg.Logger, in: cfg.In, out: cfg.Out, render: cfg.Render}
	if cfg.Spinner {
		c.spin = &spinner{print: c.print}
	}
	return c
}

func (c *CLI) Name() string { return "cli" }

func isQuit(line string) bool {
	switch line {
	case "/quit", "/exit", "/q":
		return true
	}
	return false
}

// scanLines feeds trimmed input lines to the returned channel until EOF. The
// error channel receives the scanner's error, nil on clean EOF.
func scanLines(r io.Reader) (<-chan string, <-chan error) {
	lines := make(chan string)
	done := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			lines <- strings.TrimSpace(sc.Text())
		}
		done <- sc.Err()
	}()
	return lines, done
}

// Start runs the REPL and blocks until EOF, a quit command or ctx ends.
func (c *CLI) Start(ctx context.Context, mb domain.MessageBus) error {
	mb.Route(c.Name(), func(msg domain.OutboundMessage) { _ = c.Send(ctx, msg) })
	c.print("tool.blog chat. Try /help, /tools or /analyze <url>. Type /quit to exit.\n" + cliPrompt)

	lines, done := scanLines(c.in)
	for {
		var line string
		select {
		case <-ctx.Done():
			return nil
		case l, ok := <-lines:
			if !ok {
				return <-done
			}
			line = l
		}

		switch {
		case line == "":
			c.print(cliPrompt)
			continue
		case isQuit(line):
			c.logger.Info("cli session ended by user")
			return nil
		}

		c.spin.start()
		err := mb.Publish(ctx, domain.InboundMessage{
			Channel:  c.Name(),
			ChatID:   cliChatID,
			SenderID: "user",
			Content:  line,
		})
		if err == nil {
			continue
		}
		c.spin.stop()
		if errors.Is(err, context.Canceled) || errors.Is(err, bus.ErrClosed) {
			return nil
		}
		c.print(clearLine + "error: " + err.Error() + "\n" + cliPrompt)
	}
}

func (c *CLI) print(s string) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	_, _ = io.WriteString(c.out, s)
}

// Stop does nothing; the session ends when Start returns.
func (c *CLI) Stop() error { return nil }

// Send prints a reply over the current line and re-prompts.
func (c *CLI) Send(_ context.Context, msg domain.OutboundMessage) error {
	c.spin.stop()
	content := msg.Content
	if c.render != nil {
		content = c.render(content, msg.Format)
	}
	c.print(clearLine + strings.TrimRight(content, "\n") + "\n\n" + cliPrompt)
	return nil
}

// spinner draws an animated "working" line. A nil spinner is inert.
type spinner struct {
	print func(string)

	mu   sync.Mutex
	quit chan struct{}
}

func (s *spinner) start() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quit != nil {
		return
	}
	quit := make(chan struct{})
	s.quit = quit
	go func() {
		tick := time.NewTicker(100 * time.Millisecond)
		defer tick.Stop()
		for i := 0; ; i++ {
			select {
			case <-quit:
				return
			case <-tick.C:
				s.print(fmt.Sprintf("\r%c working...", spinnerFrames[i%len(spinnerFrames)]))
			}
		}
	}()
}

func (s *spinner) stop() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quit != nil {
		close(s.quit)
		s.quit = nil
	}
}

var _ domain.Channel = (*CLI)(nil)
