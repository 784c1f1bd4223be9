package dispatch

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"
	"unicode"

	"github.com/chenjy16/webtools-sub001/internal/tool"
)

// ChatCommand is a parsed "/name args..." message.
type ChatCommand struct {
	Name string // without "/"
	Rest string // everything after the name, trimmed
	Raw  string
}

// startTime records when the process started for /status.
var startTime = time.Now()

// Version is reported by /status; set by main from build flags.
var Version = "dev"

// ParseCommand returns nil when text is not a command.
func ParseCommand(text string) *ChatCommand {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") || len(text) == 1 {
		return nil
	}
	name, rest, _ := strings.Cut(text[1:], " ")
	// Telegram appends the bot name in groups: /help@toolblog_bot
	name, _, _ = strings.Cut(name, "@")
	return &ChatCommand{
		Name: strings.ToLower(name),
		Rest: strings.TrimSpace(rest),
		Raw:  text,
	}
}

func (d *Dispatcher) handleCommand(ctx context.Context, key string, cmd *ChatCommand) (string, error) {
	switch cmd.Name {
	case "help", "start":
		return helpText(), nil
	case "tools":
		return d.toolsText(), nil
	case "run":
		return d.runTool(ctx, cmd.Rest)
	case "analyze":
		return d.analyze(ctx, key, cmd.Rest)
	case "reset", "new":
		if d.sessions.Clear(key) {
			return "Analysis session closed. Start another with /analyze <url>.", nil
		}
		return "No active analysis session.", nil
	case "scores":
		return d.scoresText(ctx, cmd.Rest)
	case "status":
		return d.statusText(), nil
	}
	return "", fmt.Errorf("unknown command /%s (try /help)", cmd.Name)
}

func helpText() string {
	return `**tool.blog commands**

/tools — list the tools
/run <tool> [key=value ...] — run a tool, e.g. /run hash text="hello" algorithm=sha256
/analyze <url> — snapshot a website and start an analysis chat
/reset — close the current analysis chat
/scores <game> — show the high scores for 2048, snake or jump
/status — show version and uptime

Any other text is sent to the current analysis chat.`
}

func (d *Dispatcher) toolsText() string {
	defs := d.tools.Definitions()
	var sb strings.Builder
	fmt.Fprintf(&sb, "**Available tools** (%d)\n\n", len(defs))
	for _, def := range defs {
		fmt.Fprintf(&sb, "• **%s** — %s\n", def.Name, def.Description)
	}
	return sb.String()
}

func (d *Dispatcher) runTool(ctx context.Context, rest string) (string, error) {
	name, argText, _ := strings.Cut(strings.TrimSpace(rest), " ")
	if name == "" {
		return "", fmt.Errorf("usage: /run <tool> [key=value ...]")
	}
	argText = strings.TrimSpace(argText)
	fields := []string{argText}
	if !strings.HasPrefix(argText, "{") {
		var err error
		if fields, err = splitQuoted(argText); err != nil {
			return "", err
		}
	}
	args, err := tool.ParseArgs(fields)
	if err != nil {
		return "", err
	}
	out, err := d.tools.Execute(ctx, name, args)
	if err != nil {
		return "", err
	}
	return "```\n" + out + "\n```", nil
}

func (d *Dispatcher) scoresText(ctx context.Context, game string) (string, error) {
	if d.scores == nil {
		return "", fmt.Errorf("high scores are not available")
	}
	game = strings.ToLower(strings.TrimSpace(game))
	if game == "" {
		return "", fmt.Errorf("usage: /scores <2048|snake|jump>")
	}
	top, err := d.scores.TopScores(ctx, game, 10)
	if err != nil {
		return "", err
	}
	if len(top) == 0 {
		return fmt.Sprintf("No scores for %s yet.", game), nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "**%s high scores**\n\n", game)
	for i, s := range top {
		fmt.Fprintf(&sb, "%d. %s — %d\n", i+1, s.Player, s.Value)
	}
	return sb.String(), nil
}

func (d *Dispatcher) statusText() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "**tool.blog %s**\n\n", Version)
	fmt.Fprintf(&sb, "Tools: %d registered\n", len(d.tools.Names()))
	fmt.Fprintf(&sb, "Analysis sessions: %d\n", d.sessions.Len())
	fmt.Fprintf(&sb, "Uptime: %s\n", time.Since(startTime).Round(time.Second))
	fmt.Fprintf(&sb, "Runtime: %s/%s, Go %s\n", runtime.GOOS, runtime.GOARCH, runtime.Version())
	return sb.String()
}

// splitQuoted splits on whitespace, keeping single- or double-quoted runs
// together and dropping the quotes: text="hello world" -> text=hello world.
func splitQuoted(s string) ([]string, error) {
	var fields []string
	var cur strings.Builder
	var quote rune
	inField := false
	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
			inField = true
		case unicode.IsSpace(r):
			if inField {
				fields = append(fields, cur.String())
				cur.Reset()
				inField = false
			}
		default:
			cur.WriteRune(r)
			inField = true
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated %c quote", quote)
	}
	if inField {
		fields = append(fields, cur.String())
	}
	return fields, nil
}
