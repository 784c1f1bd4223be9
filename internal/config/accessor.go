package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnknownKey is returned when a dotted path names a field Config lacks.
var ErrUnknownKey = errors.New("unknown config key")

// tree is the generic JSON form of a Config, addressed by dotted paths.
type tree map[string]any

func toTree(cfg *Config) (tree, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	var t tree
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("decode config tree: %w", err)
	}
	return t, nil
}

// decode rebuilds a Config. Keys with no matching field are rejected, so a
// mistyped path cannot be silently dropped.
func (t tree) decode() (*Config, error) {
	raw, err := json.Marshal(map[string]any(t))
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	out := new(Config)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(err.Error(), "unknown field") {
			return nil, fmt.Errorf("%w: %v", ErrUnknownKey, err)
		}
		return nil, err
	}
	return out, nil
}

func splitPath(path string) ([]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("empty path")
	}
	keys := strings.Split(path, ".")
	for _, k := range keys {
		if k == "" {
			return nil, fmt.Errorf("malformed path %q", path)
		}
	}
	return keys, nil
}

// Clone returns a deep copy of cfg.
func Clone(cfg *Config) (*Config, error) {
	t, err := toTree(cfg)
	if err != nil {
		return nil, err
	}
	return t.decode()
}

// GetByPath returns the value at a dotted path such as "tools.qr.size".
// Numeric segments index into lists.
func GetByPath(cfg *Config, path string) (any, error) {
	keys, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	t, err := toTree(cfg)
	if err != nil {
		return nil, err
	}

	var node any = map[string]any(t)
	for i, k := range keys {
		here := strings.Join(keys[:i+1], ".")
		switch n := node.(type) {
		case map[string]any:
			v, ok := n[k]
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrUnknownKey, here)
			}
			node = v
		case []any:
			idx, err := strconv.Atoi(k)
			if err != nil || idx < 0 || idx >= len(n) {
				return nil, fmt.Errorf("index %q out of range at %s", k, here)
			}
			node = n[idx]
		default:
			return nil, fmt.Errorf("%s is a %T, not an object", strings.Join(keys[:i], "."), node)
		}
	}
	return node, nil
}

// SetByPath assigns value at a dotted path. Strings that read as a bool,
// number, JSON array or JSON object are stored as that type. cfg is only
// modified when the result decodes cleanly.
func SetByPath(cfg *Config, path string, value any) error {
	keys, err := splitPath(path)
	if err != nil {
		return err
	}
	t, err := toTree(cfg)
	if err != nil {
		return err
	}

	obj := map[string]any(t)
	for i, k := range keys[:len(keys)-1] {
		child, ok := obj[k]
		if !ok || child == nil {
			fresh := map[string]any{}
			obj[k] = fresh
			obj = fresh
			continue
		}
		next, isObj := child.(map[string]any)
		if !isObj {
			return fmt.Errorf("%s is a %T, not an object", strings.Join(keys[:i+1], "."), child)
		}
		obj = next
	}

	leaf := keys[len(keys)-1]
	obj[leaf] = coerce(value)

	updated, err := t.decode()
	if err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	*cfg = *updated
	return nil
}

// coerce converts CLI-style string input into the JSON type it spells.
func coerce(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	switch s {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if trimmed := strings.TrimSpace(s); strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{") {
		var structured any
		if json.Unmarshal([]byte(trimmed), &structured) == nil {
			return structured
		}
	}
	return s
}

// Sanitize returns a copy of cfg safe to display: API keys and the bot
// token keep their first and last four characters, the password hash is
// hidden entirely.
func Sanitize(cfg *Config) *Config {
	c, err := Clone(cfg)
	if err != nil {
		return &Config{}
	}
	for name, p := range c.Providers {
		p.APIKey = mask(p.APIKey)
		c.Providers[name] = p
	}
	c.Channels.Telegram.Token = mask(c.Channels.Telegram.Token)
	if c.Channels.Web.Auth.PasswordHash != "" {
		c.Channels.Web.Auth.PasswordHash = "***"
	}
	return c
}

func mask(secret string) string {
	switch {
	case secret == "":
		return ""
	case len(secret) <= 8:
		return "***"
	}
	return secret[:4] + strings.Repeat("*", 4) + secret[len(secret)-4:]
}

// ListPaths flattens cfg into dotted leaf paths and their values. Lists are
// leaves.
func ListPaths(cfg *Config) map[string]any {
	t, err := toTree(cfg)
	if err != nil {
		return nil
	}
	out := make(map[string]any)
	var walk func(prefix string, node map[string]any)
	walk = func(prefix string, node map[string]any) {
		for k, v := range node {
			p := k
			if prefix != "" {
				p = prefix + "." + k
			}
			if child, ok := v.(map[string]any); ok && len(child) > 0 {
				walk(p, child)
				continue
			}
			out[p] = v
		}
	}
	walk("", t)
	return out
}
