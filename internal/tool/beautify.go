package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/dop251/goja"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	minjson "github.com/tdewolff/minify/v2/json"
	"github.com/tdewolff/minify/v2/svg"
	"github.com/tdewolff/minify/v2/xml"
)

var languageAliases = map[string]string{
	"js":         "js",
	"javascript": "js",
	"css":        "css",
	"html":       "html",
	"htm":        "html",
	"json":       "json",
	"xml":        "xml",
	"svg":        "svg",
}

var languageMediaTypes = map[string]string{
	"js":   "text/javascript",
	"css":  "text/css",
	"html": "text/html",
	"json": "application/json",
	"xml":  "text/xml",
	"svg":  "image/svg+xml",
}

func normalizeLanguage(lang string) (string, error) {
	if l, ok := languageAliases[strings.ToLower(strings.TrimSpace(lang))]; ok {
		return l, nil
	}
	return "", fmt.Errorf("unsupported language %q (use js, css, html, json, xml or svg)", lang)
}

func newMinifier() *minify.M {
	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("text/html", html.Minify)
	m.AddFunc("image/svg+xml", svg.Minify)
	m.AddFuncRegexp(regexp.MustCompile(`^(application|text)/(x-)?(java|ecma)script$`), js.Minify)
	m.AddFuncRegexp(regexp.MustCompile(`[/+]json$`), minjson.Minify)
	m.AddFuncRegexp(regexp.MustCompile(`[/+]xml$`), xml.Minify)
	return m
}

// MinifyResult reports the minified code and the bytes saved.
type MinifyResult struct {
	Output        string  `json:"output"`
	OriginalBytes int     `json:"originalBytes"`
	MinifiedBytes int     `json:"minifiedBytes"`
	SavedPercent  float64 `json:"savedPercent"`
}

// MinifyCode minifies code in the given language.
func MinifyCode(lang, code string) (*MinifyResult, error) {
	l, err := normalizeLanguage(lang)
	if err != nil {
		return nil, err
	}
	if l == "js" {
		if err := ValidateJS(code); err != nil {
			return nil, err
		}
	}
	out, err := newMinifier().String(languageMediaTypes[l], code)
	if err != nil {
		return nil, fmt.Errorf("minify %s: %w", l, err)
	}
	res := &MinifyResult{
		Output:        out,
		OriginalBytes: len(code),
		MinifiedBytes: len(out),
	}
	if len(code) > 0 {
		saved := float64(len(code)-len(out)) / float64(len(code)) * 100
		res.SavedPercent = float64(int(saved*10+0.5)) / 10
	}
	return res, nil
}

// ValidateJS reports JavaScript syntax errors with their line and column.
func ValidateJS(code string) error {
	if _, err := goja.Compile("input.js", code, false); err != nil {
		return fmt.Errorf("javascript syntax error: %w", err)
	}
	return nil
}

// Beautify re-indents code with width spaces per level.
func Beautify(lang, code string, width int) (string, error) {
	l, err := normalizeLanguage(lang)
	if err != nil {
		return "", err
	}
	if width < 1 || width > 8 {
		return "", fmt.Errorf("indent width %d out of range 1..8", width)
	}
	unit := strings.Repeat(" ", width)

	switch l {
	case "js":
		if err := ValidateJS(code); err != nil {
			return "", err
		}
		return indentBraces(code, unit, true), nil
	case "css":
		return indentBraces(code, unit, false), nil
	case "json":
		if err := CheckJSON([]byte(code)); err != nil {
			return "", err
		}
		var buf bytes.Buffer
		if err := json.Indent(&buf, bytes.TrimSpace([]byte(code)), "", unit); err != nil {
			return "", fmt.Errorf("indent json: %w", err)
		}
		return buf.String(), nil
	case "html":
		return BeautifyHTML(code, unit)
	}
	return "", fmt.Errorf("beautify does not support %s (minify only)", l)
}

// braceIndenter lays out C-like source one statement per line. It copies
// strings and comments verbatim and does not recognise regex literals.
type braceIndenter struct {
	src    []rune
	unit   string
	jsMode bool
	out    []string
	line   strings.Builder
	depth  int
	parens int
	saved  []int
}

func indentBraces(code, unit string, jsMode bool) string {
	b := &braceIndenter{src: []rune(code), unit: unit, jsMode: jsMode}
	b.run()
	return strings.Join(b.out, "\n")
}

func (b *braceIndenter) flush() {
	s := strings.TrimSpace(b.line.String())
	b.line.Reset()
	if s != "" {
		b.out = append(b.out, strings.Repeat(b.unit, b.depth)+s)
	}
}

func (b *braceIndenter) space() {
	s := b.line.String()
	if s != "" && !strings.HasSuffix(s, " ") {
		b.line.WriteByte(' ')
	}
}

func (b *braceIndenter) run() {
	src := b.src
	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case c == '"' || c == '\'' || (c == '`' && b.jsMode):
			i = b.copyString(i)
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			end := commentEnd(src, i+2)
			b.line.WriteString(string(src[i:end]))
			i = end - 1
		case c == '/' && b.jsMode && i+1 < len(src) && src[i+1] == '/':
			end := i
			for end < len(src) && src[end] != '\n' {
				end++
			}
			b.line.WriteString(string(src[i:end]))
			b.flush()
			i = end
		case c == '\n':
			b.flush()
		case c == ' ' || c == '\t' || c == '\r':
			b.space()
		case c == '(' || c == '[':
			b.parens++
			b.line.WriteRune(c)
		case c == ')' || c == ']':
			if b.parens > 0 {
				b.parens--
			}
			b.line.WriteRune(c)
		case c == '{':
			b.space()
			b.line.WriteRune('{')
			b.flush()
			b.depth++
			b.saved = append(b.saved, b.parens)
			b.parens = 0
		case c == '}':
			b.flush()
			if b.depth > 0 {
				b.depth--
			}
			if n := len(b.saved); n > 0 {
				b.parens = b.saved[n-1]
				b.saved = b.saved[:n-1]
			}
			b.line.WriteRune('}')
			switch b.afterBrace(i + 1) {
			case braceBreak:
				b.flush()
			case braceKeyword:
				b.line.WriteByte(' ')
			}
		case c == ';' && b.parens == 0:
			b.line.WriteRune(';')
			b.flush()
		default:
			b.line.WriteRune(c)
		}
	}
	b.flush()
}

const (
	braceBreak = iota
	bracePunct
	braceKeyword
)

// afterBrace decides whether the text after a closing brace stays on the
// same line, as in "});" or "} else {".
func (b *braceIndenter) afterBrace(i int) int {
	for i < len(b.src) && (b.src[i] == ' ' || b.src[i] == '\t') {
		i++
	}
	if i >= len(b.src) {
		return braceBreak
	}
	switch b.src[i] {
	case ';', ',', ')', ']':
		return bracePunct
	}
	if !b.jsMode {
		return braceBreak
	}
	rest := string(b.src[i:min(len(b.src), i+8)])
	for _, kw := range []string{"else", "catch", "finally", "while"} {
		if strings.HasPrefix(rest, kw) {
			return braceKeyword
		}
	}
	return braceBreak
}

func (b *braceIndenter) copyString(start int) int {
	quote := b.src[start]
	i := start + 1
	for i < len(b.src) {
		if b.src[i] == '\\' {
			i += 2
			continue
		}
		if b.src[i] == quote {
			break
		}
		if b.src[i] == '\n' && quote != '`' {
			break
		}
		i++
	}
	if i >= len(b.src) {
		i = len(b.src) - 1
	}
	b.line.WriteString(string(b.src[start : i+1]))
	return i
}

// commentEnd returns the index just past the "*/" closing a block comment.
func commentEnd(src []rune, from int) int {
	for j := from; j+1 < len(src); j++ {
		if src[j] == '*' && src[j+1] == '/' {
			return j + 2
		}
	}
	return len(src)
}

// BeautifyTool re-indents source code.
type BeautifyTool struct{}

func NewBeautifyTool() *BeautifyTool { return &BeautifyTool{} }

func (t *BeautifyTool) Name() string { return "beautify" }
func (t *BeautifyTool) Description() string {
	return "Re-indent JavaScript, CSS, HTML or JSON. JavaScript is syntax-checked first."
}
func (t *BeautifyTool) Parameters() map[string]any {
	return ToolParameters(
		map[string]Param{
			"language": {Type: "string", Description: "Source language", Enum: []string{"js", "css", "html", "json"}},
			"text":     {Type: "string", Description: "Source code"},
			"indent":   {Type: "integer", Description: "Spaces per level (default 2)"},
		},
		[]string{"language", "text"},
	)
}

func (t *BeautifyTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	return Beautify(ArgsString(args, "language"), ArgsString(args, "text"), ArgsInt(args, "indent", 2))
}

// MinifyTool shrinks source code.
type MinifyTool struct{}

func NewMinifyTool() *MinifyTool { return &MinifyTool{} }

func (t *MinifyTool) Name() string { return "minify" }
func (t *MinifyTool) Description() string {
	return "Minify JavaScript, CSS, HTML, JSON, XML or SVG. stats=true reports the bytes saved."
}
func (t *MinifyTool) Parameters() map[string]any {
	return ToolParameters(
		map[string]Param{
			"language": {Type: "string", Description: "Source language", Enum: []string{"js", "css", "html", "json", "xml", "svg"}},
			"text":     {Type: "string", Description: "Source code"},
			"stats":    {Type: "boolean", Description: "Return JSON with output and byte savings"},
		},
		[]string{"language", "text"},
	)
}

func (t *MinifyTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	res, err := MinifyCode(ArgsString(args, "language"), ArgsString(args, "text"))
	if err != nil {
		return "", err
	}
	if ArgsBool(args, "stats") {
		return resultJSON(res)
	}
	return res.Output, nil
}
