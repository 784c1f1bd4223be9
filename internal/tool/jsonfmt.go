package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"gopkg.in/yaml.v3"
)

// JSONSyntaxError locates a parse failure in the original input.
type JSONSyntaxError struct {
	Line   int
	Column int
	Msg    string
}

func (e *JSONSyntaxError) Error() string {
	return fmt.Sprintf("invalid JSON at line %d, column %d: %s", e.Line, e.Column, e.Msg)
}

// CheckJSON reports whether data holds exactly one JSON value.
func CheckJSON(data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return &JSONSyntaxError{Line: 1, Column: 1, Msg: "empty input"}
	}
	var v any
	err := json.Unmarshal(data, &v)
	if err == nil {
		return nil
	}
	var syn *json.SyntaxError
	if errors.As(err, &syn) {
		line, col := lineCol(data, syn.Offset)
		return &JSONSyntaxError{Line: line, Column: col, Msg: syn.Error()}
	}
	return fmt.Errorf("invalid JSON: %w", err)
}

// lineCol converts the decoder's byte offset into a 1-based line and column
// of the offending byte.
func lineCol(data []byte, offset int64) (int, int) {
	pos := int(offset) - 1
	if pos < 0 {
		pos = 0
	}
	if pos > len(data) {
		pos = len(data)
	}
	line, col := 1, 1
	for _, c := range data[:pos] {
		if c == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}

// indentString maps "2", "4" or "tab" to the indentation unit.
func indentString(spec string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(spec)) {
	case "", "2":
		return "  ", nil
	case "4":
		return "    ", nil
	case "tab", "\t":
		return "\t", nil
	}
	return "", fmt.Errorf("unsupported indent %q (use 2, 4 or tab)", spec)
}

// FormatJSON pretty-prints data. Without sortKeys the key order and number
// literals of the input are kept exactly.
func FormatJSON(data []byte, indent string, sortKeys bool) (string, error) {
	unit, err := indentString(indent)
	if err != nil {
		return "", err
	}
	if err := CheckJSON(data); err != nil {
		return "", err
	}
	if sortKeys {
		v, err := decodeNumbers(data)
		if err != nil {
			return "", err
		}
		return encodeJSON(v, unit)
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimSpace(data), "", unit); err != nil {
		return "", fmt.Errorf("indent: %w", err)
	}
	return buf.String(), nil
}

// MinifyJSON strips insignificant whitespace.
func MinifyJSON(data []byte) (string, error) {
	if err := CheckJSON(data); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return "", fmt.Errorf("compact: %w", err)
	}
	return buf.String(), nil
}

// DescribeJSON validates data and summarises its top-level value.
func DescribeJSON(data []byte) (string, error) {
	if err := CheckJSON(data); err != nil {
		return "", err
	}
	v, err := decodeNumbers(data)
	if err != nil {
		return "", err
	}
	switch t := v.(type) {
	case map[string]any:
		return fmt.Sprintf("valid JSON: object with %d keys", len(t)), nil
	case []any:
		return fmt.Sprintf("valid JSON: array with %d items", len(t)), nil
	case string:
		return "valid JSON: string", nil
	case json.Number:
		return "valid JSON: number", nil
	case bool:
		return "valid JSON: boolean", nil
	default:
		return "valid JSON: null", nil
	}
}

func decodeNumbers(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return v, nil
}

func encodeJSON(v any, unit string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if unit != "" {
		enc.SetIndent("", unit)
	}
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("encode: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// JSONToYAML converts a JSON document to YAML, keeping key order.
func JSONToYAML(data []byte) (string, error) {
	if err := CheckJSON(data); err != nil {
		return "", err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	node, err := jsonNode(dec)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return "", fmt.Errorf("encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("encode yaml: %w", err)
	}
	return buf.String(), nil
}

func jsonNode(dec *json.Decoder) (*yaml.Node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, fmt.Errorf("read key: %w", err)
				}
				key, _ := keyTok.(string)
				val, err := jsonNode(dec)
				if err != nil {
					return nil, err
				}
				n.Content = append(n.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, fmt.Errorf("read object end: %w", err)
			}
			return n, nil
		case '[':
			n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
			for dec.More() {
				val, err := jsonNode(dec)
				if err != nil {
					return nil, err
				}
				n.Content = append(n.Content, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, fmt.Errorf("read array end: %w", err)
			}
			return n, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %q", t)
	case string:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: t}, nil
	case json.Number:
		tag := "!!int"
		if strings.ContainsAny(string(t), ".eE") {
			tag = "!!float"
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: string(t)}, nil
	case bool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: fmt.Sprint(t)}, nil
	case nil:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}

// YAMLToJSON converts a YAML document to indented JSON, keeping key order.
func YAMLToJSON(data []byte, indent string) (string, error) {
	unit, err := indentString(indent)
	if err != nil {
		return "", err
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("invalid YAML: %w", err)
	}
	var buf bytes.Buffer
	if doc.Kind == 0 {
		buf.WriteString("null")
	} else if err := writeYAMLNode(&buf, &doc); err != nil {
		return "", err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", unit); err != nil {
		return "", fmt.Errorf("indent: %w", err)
	}
	return out.String(), nil
}

func writeYAMLNode(w io.Writer, n *yaml.Node) error {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			_, err := io.WriteString(w, "null")
			return err
		}
		return writeYAMLNode(w, n.Content[0])
	case yaml.AliasNode:
		return writeYAMLNode(w, n.Alias)
	case yaml.MappingNode:
		io.WriteString(w, "{")
		for i := 0; i+1 < len(n.Content); i += 2 {
			if i > 0 {
				io.WriteString(w, ",")
			}
			key, err := encodeJSON(n.Content[i].Value, "")
			if err != nil {
				return err
			}
			io.WriteString(w, key+":")
			if err := writeYAMLNode(w, n.Content[i+1]); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, "}")
		return err
	case yaml.SequenceNode:
		io.WriteString(w, "[")
		for i, c := range n.Content {
			if i > 0 {
				io.WriteString(w, ",")
			}
			if err := writeYAMLNode(w, c); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, "]")
		return err
	case yaml.ScalarNode:
		var v any
		switch n.ShortTag() {
		case "!!str", "!!timestamp", "!!binary":
			v = n.Value
		default:
			if err := n.Decode(&v); err != nil {
				return fmt.Errorf("line %d: %w", n.Line, err)
			}
		}
		if f, ok := v.(float64); ok && (math.IsInf(f, 0) || math.IsNaN(f)) {
			return fmt.Errorf("line %d: %s has no JSON representation", n.Line, n.Value)
		}
		s, err := encodeJSON(v, "")
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, s)
		return err
	}
	return fmt.Errorf("line %d: unsupported YAML node", n.Line)
}

// JSONTool formats, minifies, validates and converts JSON.
type JSONTool struct{}

func NewJSONTool() *JSONTool { return &JSONTool{} }

func (t *JSONTool) Name() string { return "json" }
func (t *JSONTool) Description() string {
	return "Format, minify or validate JSON, and convert between JSON and YAML. Errors report line and column."
}
func (t *JSONTool) Parameters() map[string]any {
	return ToolParameters(
		map[string]Param{
			"action":   {Type: "string", Description: "Operation", Enum: []string{"format", "minify", "validate", "toYAML", "fromYAML"}},
			"text":     {Type: "string", Description: "JSON (or YAML for fromYAML) input"},
			"indent":   {Type: "string", Description: "Indentation: 2, 4 or tab", Enum: []string{"2", "4", "tab"}},
			"sortKeys": {Type: "boolean", Description: "Sort object keys when formatting"},
		},
		[]string{"action", "text"},
	)
}

func (t *JSONTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	data := []byte(ArgsString(args, "text"))
	indent := ArgsString(args, "indent")
	switch action := ArgsString(args, "action"); action {
	case "format", "":
		return FormatJSON(data, indent, ArgsBool(args, "sortKeys"))
	case "minify":
		return MinifyJSON(data)
	case "validate":
		return DescribeJSON(data)
	case "toYAML":
		return JSONToYAML(data)
	case "fromYAML":
		return YAMLToJSON(data, indent)
	default:
		return "", fmt.Errorf("unknown action %q (use format, minify, validate, toYAML or fromYAML)", action)
	}
}
