package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
)

var (
	passLabel = color.New(color.FgGreen, color.Bold).Sprint("[PASS]")
	failLabel = color.New(color.FgRed, color.Bold).Sprint("[FAIL]")
	warnLabel = color.New(color.FgYellow, color.Bold).Sprint("[WARN]")
)

// printTable writes rows under header to w.
func printTable(w io.Writer, header []string, rows [][]string) error {
	table := tablewriter.NewTable(w, tablewriter.WithHeader(header))
	for _, r := range rows {
		if err := table.Append(r); err != nil {
			return err
		}
	}
	return table.Render()
}

func printError(err error) {
	fmt.Fprintln(os.Stderr, color.RedString("Error: ")+err.Error())
}

// highlight colours code for the terminal. language may be empty, in which
// case the lexer is guessed from the content.
func highlight(code, language string) string {
	if color.NoColor {
		return code
	}
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		return code
	}
	lexer = chroma.Coalesce(lexer)

	style := chromaStyles.Get("monokai")
	if style == nil {
		style = chromaStyles.Fallback
	}
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}
	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return code
	}
	return buf.String()
}

// outputLanguage guesses how a tool result should be highlighted.
func outputLanguage(out string) string {
	trimmed := strings.TrimSpace(out)
	switch {
	case json.Valid([]byte(trimmed)) && (strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")):
		return "json"
	case strings.HasPrefix(trimmed, "<"):
		return "html"
	}
	return ""
}

var (
	markdownOnce     sync.Once
	markdownRenderer *glamour.TermRenderer
)

// renderMarkdown renders a chat reply; plain text is returned unchanged when
// colour is off or the renderer is unavailable.
func renderMarkdown(content, format string) string {
	if color.NoColor || (format != "" && format != "markdown") {
		return content
	}
	markdownOnce.Do(func() {
		markdownRenderer, _ = glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(100),
		)
	})
	if markdownRenderer == nil {
		return content
	}
	out, err := markdownRenderer.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(out, "\n")
}

func printPass(check, detail string) {
	fmt.Printf("  %s %-20s %s\n", passLabel, check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  %s %-20s %s\n", failLabel, check, detail)
}

func printWarn(check, detail string) {
	fmt.Printf("  %s %-20s %s\n", warnLabel, check, detail)
}
