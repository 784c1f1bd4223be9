package tool

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"unicode/utf8"
)

// ErrURIMalformed mirrors the browser's decodeURIComponent failure.
var ErrURIMalformed = errors.New("URI malformed")

const (
	componentUnreserved = "-_.!~*'()"
	uriReserved         = ";,/?:@&=+$#"
)

// EncodeURIComponent percent-encodes every byte outside A-Za-z0-9 and -_.!~*'().
func EncodeURIComponent(s string) (string, error) {
	return percentEncode(s, componentUnreserved)
}

// EncodeURI is like EncodeURIComponent but keeps URI delimiters intact.
func EncodeURI(s string) (string, error) {
	return percentEncode(s, componentUnreserved+uriReserved)
}

func percentEncode(s, keep string) (string, error) {
	if !utf8.ValidString(s) {
		return "", fmt.Errorf("%w: input is not valid UTF-8", ErrURIMalformed)
	}
	const hexDigits = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isAlnum(c) || strings.IndexByte(keep, c) >= 0 {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hexDigits[c>>4])
		b.WriteByte(hexDigits[c&0x0f])
	}
	return b.String(), nil
}

func isAlnum(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// DecodeURIComponent reverses percent-encoding. When plusAsSpace is set a '+'
// decodes to a space, as in form-encoded query strings.
func DecodeURIComponent(s string, plusAsSpace bool) (string, error) {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '%':
			if i+2 >= len(s) {
				return "", fmt.Errorf("%w: truncated escape at offset %d", ErrURIMalformed, i)
			}
			hi, ok1 := unhex(s[i+1])
			lo, ok2 := unhex(s[i+2])
			if !ok1 || !ok2 {
				return "", fmt.Errorf("%w: invalid escape %q at offset %d", ErrURIMalformed, s[i:i+3], i)
			}
			b.WriteByte(hi<<4 | lo)
			i += 2
		case c == '+' && plusAsSpace:
			b.WriteByte(' ')
		default:
			b.WriteByte(c)
		}
	}
	out := b.String()
	if !utf8.ValidString(out) {
		return "", fmt.Errorf("%w: decoded bytes are not valid UTF-8", ErrURIMalformed)
	}
	return out, nil
}

func unhex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// ParsedURL is the broken-down form returned by the parse action.
type ParsedURL struct {
	Scheme   string       `json:"scheme"`
	User     string       `json:"user,omitempty"`
	Host     string       `json:"host"`
	Port     string       `json:"port,omitempty"`
	Path     string       `json:"path"`
	Query    []QueryParam `json:"query"`
	Fragment string       `json:"fragment,omitempty"`
}

type QueryParam struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ParseURL splits raw into its components with query parameters sorted by key.
func ParseURL(raw string) (*ParsedURL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme == "" {
		return nil, fmt.Errorf("parse url: %q has no scheme", raw)
	}
	values, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return nil, fmt.Errorf("parse query: %w", err)
	}

	p := &ParsedURL{
		Scheme:   u.Scheme,
		Host:     u.Hostname(),
		Port:     u.Port(),
		Path:     u.Path,
		Query:    []QueryParam{},
		Fragment: u.Fragment,
	}
	if u.User != nil {
		p.User = u.User.Username()
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range values[k] {
			p.Query = append(p.Query, QueryParam{Key: k, Value: v})
		}
	}
	return p, nil
}

// URLTool exposes percent-encoding and URL parsing.
type URLTool struct{}

func NewURLTool() *URLTool { return &URLTool{} }

func (t *URLTool) Name() string { return "url" }
func (t *URLTool) Description() string {
	return "Percent-encode or decode text for URLs, or break a URL into scheme, host, path, query and fragment."
}
func (t *URLTool) Parameters() map[string]any {
	return ToolParameters(
		map[string]Param{
			"action": {Type: "string", Description: "Operation", Enum: []string{"encode", "encodeURI", "decode", "parse"}},
			"text":   {Type: "string", Description: "Input text or URL"},
			"plus":   {Type: "boolean", Description: "On decode, treat '+' as a space"},
		},
		[]string{"action", "text"},
	)
}

func (t *URLTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	text := ArgsString(args, "text")
	switch action := ArgsString(args, "action"); action {
	case "encode", "":
		return EncodeURIComponent(text)
	case "encodeURI":
		return EncodeURI(text)
	case "decode":
		return DecodeURIComponent(text, ArgsBool(args, "plus"))
	case "parse":
		p, err := ParseURL(text)
		if err != nil {
			return "", err
		}
		return resultJSON(p)
	default:
		return "", fmt.Errorf("unknown action %q (use encode, encodeURI, decode or parse)", action)
	}
}
