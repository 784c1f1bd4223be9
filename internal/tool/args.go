package tool

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Argument maps arrive either decoded from JSON (numbers are float64) or
// from ParseArgs, so the accessors below accept both spellings.

// ArgsString returns args[key] as a string. Non-string values are rendered
// as JSON; a missing key yields "".
func ArgsString(args map[string]any, key string) string {
	switch v := args[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}

// ArgsInt returns args[key] as an int, or def when absent or not numeric.
func ArgsInt(args map[string]any, key string, def int) int {
	f := ArgsFloat(args, key, float64(def))
	return int(f)
}

// ArgsFloat returns args[key] as a float64, or def when absent or not numeric.
func ArgsFloat(args map[string]any, key string, def float64) float64 {
	var s string
	switch v := args[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		s = v.String()
	case string:
		s = strings.TrimSpace(v)
	default:
		return def
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return f
}

// ArgsBool returns args[key] as a bool. The strings true, 1, yes and on
// count as true, as does any non-zero number.
func ArgsBool(args map[string]any, key string) bool {
	switch v := args[key].(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes", "on":
			return true
		}
	}
	return false
}

// ParseArgs turns command-line fields into tool arguments. A leading "{"
// means the joined fields are one JSON object. Otherwise each field is
// key=value, and a value that decodes as a JSON number, bool, array or
// object is stored decoded.
func ParseArgs(fields []string) (map[string]any, error) {
	args := make(map[string]any, len(fields))
	joined := strings.TrimSpace(strings.Join(fields, " "))
	if joined == "" {
		return args, nil
	}
	if joined[0] == '{' {
		if err := json.Unmarshal([]byte(joined), &args); err != nil {
			return nil, fmt.Errorf("parse JSON arguments: %w", err)
		}
		return args, nil
	}
	for _, f := range fields {
		key, raw, ok := strings.Cut(f, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("argument %q is not key=value", f)
		}
		args[key] = decodeValue(raw)
	}
	return args, nil
}

// decodeValue keeps quoted JSON strings verbatim so text="x" stays `"x"`.
func decodeValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	switch v.(type) {
	case float64, bool, []any, map[string]any:
		return v
	}
	return raw
}
