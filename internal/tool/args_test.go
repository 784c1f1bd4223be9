package tool

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArgsString(t *testing.T) {
	args := map[string]any{"s": "value", "n": 42.0, "null": nil}
	assert.Equal(t, "value", ArgsString(args, "s"))
	assert.Equal(t, "42", ArgsString(args, "n"))
	assert.Empty(t, ArgsString(args, "null"))
	assert.Empty(t, ArgsString(args, "missing"))
	assert.Empty(t, ArgsString(nil, "s"))
}

func TestArgsNumbers(t *testing.T) {
	args := map[string]any{
		"f": 12.0, "i": 3, "i64": int64(9), "num": json.Number("2.5"),
		"s": " 7 ", "bad": "x", "b": true,
	}
	tests := []struct {
		key     string
		wantInt int
		wantF   float64
	}{
		{"f", 12, 12},
		{"i", 3, 3},
		{"i64", 9, 9},
		{"num", 2, 2.5},
		{"s", 7, 7},
		{"bad", -1, -1},
		{"b", -1, -1},
		{"missing", -1, -1},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.wantInt, ArgsInt(args, tt.key, -1))
			assert.Equal(t, tt.wantF, ArgsFloat(args, tt.key, -1))
		})
	}
}

func TestArgsBool(t *testing.T) {
	args := map[string]any{"a": true, "b": "yes", "c": "false", "d": 1.0, "e": "ON", "z": 0.0}
	for key, want := range map[string]bool{"a": true, "b": true, "c": false, "d": true, "e": true, "z": false, "missing": false} {
		assert.Equal(t, want, ArgsBool(args, key), key)
	}
}

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name   string
		fields []string
		want   map[string]any
	}{
		{"empty", nil, map[string]any{}},
		{
			"key value with typed values",
			[]string{"action=encode", "text=hello world", "urlSafe=true", "size=128"},
			map[string]any{"action": "encode", "text": "hello world", "urlSafe": true, "size": 128.0},
		},
		{"quoted string stays raw", []string{`text="quoted"`}, map[string]any{"text": `"quoted"`}},
		{"null stays raw", []string{"v=null"}, map[string]any{"v": "null"}},
		{"array", []string{"xs=[1,2]"}, map[string]any{"xs": []any{1.0, 2.0}}},
		{"empty value", []string{"text="}, map[string]any{"text": ""}},
		{
			"json object split across fields",
			[]string{`{"action":"decode",`, `"text":"aGk="}`},
			map[string]any{"action": "decode", "text": "aGk="},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseArgs(tt.fields)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseArgs_Invalid(t *testing.T) {
	for _, fields := range [][]string{{"novalue"}, {"=x"}, {"{broken"}} {
		_, err := ParseArgs(fields)
		assert.Error(t, err, fields)
	}
}
