package tool

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
)

// ErrNotUTF8 is returned when decoded bytes are not valid UTF-8 text.
var ErrNotUTF8 = errors.New("decoded data is not valid UTF-8 text (use binary=true for hex output)")

// EncodeBase64 encodes the UTF-8 bytes of text.
func EncodeBase64(text string, urlSafe, noPadding bool) string {
	return base64Encoding(urlSafe, noPadding).EncodeToString([]byte(text))
}

// DecodeBase64 decodes standard or URL-safe base64, with or without padding.
// Whitespace (including line breaks from MIME-wrapped input) is ignored.
func DecodeBase64(input string) ([]byte, error) {
	cleaned := strings.Map(func(r rune) rune {
		if r < utf8.RuneSelf && isBase64Space(byte(r)) {
			return -1
		}
		return r
	}, input)
	if cleaned == "" {
		return []byte{}, nil
	}

	urlSafe := strings.ContainsAny(cleaned, "-_")
	if urlSafe && strings.ContainsAny(cleaned, "+/") {
		return nil, fmt.Errorf("invalid base64: mixes standard (+/) and URL-safe (-_) alphabets")
	}

	unpadded := strings.TrimRight(cleaned, "=")
	if pad := len(cleaned) - len(unpadded); pad > 2 {
		return nil, fmt.Errorf("invalid base64: too much padding")
	}
	if len(unpadded)%4 == 1 {
		return nil, fmt.Errorf("invalid base64: length %d cannot be decoded", len(unpadded))
	}

	data, err := base64Encoding(urlSafe, true).DecodeString(unpadded)
	if err != nil {
		var corrupt base64.CorruptInputError
		if errors.As(err, &corrupt) {
			return nil, fmt.Errorf("invalid base64 at byte offset %d", inputOffset(input, int(corrupt)))
		}
		return nil, fmt.Errorf("invalid base64: %w", err)
	}
	return data, nil
}

func isBase64Space(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// inputOffset maps n, an offset into input with whitespace removed, back to
// the byte offset in input itself.
func inputOffset(input string, n int) int {
	for i := 0; i < len(input); i++ {
		if isBase64Space(input[i]) {
			continue
		}
		if n == 0 {
			return i
		}
		n--
	}
	return len(input)
}

// DecodeBase64Text decodes input and requires the result to be UTF-8 text.
func DecodeBase64Text(input string) (string, error) {
	data, err := DecodeBase64(input)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", ErrNotUTF8
	}
	return string(data), nil
}

// EncodeDataURL renders data as a data: URL with a sniffed media type.
func EncodeDataURL(data []byte) string {
	mime := strings.ReplaceAll(mimetype.Detect(data).String(), " ", "")
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func base64Encoding(urlSafe, noPadding bool) *base64.Encoding {
	enc := base64.StdEncoding
	if urlSafe {
		enc = base64.URLEncoding
	}
	if noPadding {
		return enc.WithPadding(base64.NoPadding)
	}
	return enc
}

// Base64Tool exposes base64 encoding and decoding.
type Base64Tool struct{}

func NewBase64Tool() *Base64Tool { return &Base64Tool{} }

func (t *Base64Tool) Name() string { return "base64" }
func (t *Base64Tool) Description() string {
	return "Encode text to base64 or decode base64 back to text. Supports the URL-safe alphabet, unpadded output and data: URLs."
}
func (t *Base64Tool) Parameters() map[string]any {
	return ToolParameters(
		map[string]Param{
			"action":    {Type: "string", Description: "encode, decode or dataurl", Enum: []string{"encode", "decode", "dataurl"}},
			"text":      {Type: "string", Description: "Input text"},
			"urlSafe":   {Type: "boolean", Description: "Use the URL-safe alphabet (-_) when encoding"},
			"noPadding": {Type: "boolean", Description: "Omit trailing '=' padding when encoding"},
			"binary":    {Type: "boolean", Description: "On decode, return hex instead of requiring UTF-8 text"},
		},
		[]string{"action", "text"},
	)
}

func (t *Base64Tool) Execute(ctx context.Context, args map[string]any) (string, error) {
	text := ArgsString(args, "text")
	switch action := ArgsString(args, "action"); action {
	case "encode", "":
		return EncodeBase64(text, ArgsBool(args, "urlSafe"), ArgsBool(args, "noPadding")), nil
	case "decode":
		if ArgsBool(args, "binary") {
			data, err := DecodeBase64(text)
			if err != nil {
				return "", err
			}
			return hex.EncodeToString(data), nil
		}
		return DecodeBase64Text(text)
	case "dataurl":
		return EncodeDataURL([]byte(text)), nil
	default:
		return "", fmt.Errorf("unknown action %q (use encode, decode or dataurl)", action)
	}
}
