package tool

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSON_FormatKeepsKeyOrder(t *testing.T) {
	got, err := FormatJSON([]byte(`{"b":1,"a":[1,2]}`), "2", false)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"b\": 1,\n  \"a\": [\n    1,\n    2\n  ]\n}", got)
}

func TestJSON_FormatSortKeys(t *testing.T) {
	got, err := FormatJSON([]byte(`{"b":1,"a":[1,2]}`), "2", true)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": [\n    1,\n    2\n  ],\n  \"b\": 1\n}", got)
}

func TestJSON_FormatIndentVariants(t *testing.T) {
	got, err := FormatJSON([]byte(`{"a":1}`), "4", false)
	require.NoError(t, err)
	assert.Equal(t, "{\n    \"a\": 1\n}", got)

	got, err = FormatJSON([]byte(`{"a":1}`), "tab", false)
	require.NoError(t, err)
	assert.Equal(t, "{\n\t\"a\": 1\n}", got)

	_, err = FormatJSON([]byte(`{"a":1}`), "3", false)
	assert.Error(t, err)
}

func TestJSON_LargeNumbersPreserved(t *testing.T) {
	got, err := FormatJSON([]byte(`{"n":12345678901234567890}`), "2", true)
	require.NoError(t, err)
	assert.Contains(t, got, "12345678901234567890")
}

func TestJSON_MalformedReportsPosition(t *testing.T) {
	_, err := FormatJSON([]byte("{\n  \"a\": 1,\n}"), "2", false)
	require.Error(t, err)
	var syn *JSONSyntaxError
	require.ErrorAs(t, err, &syn)
	assert.Equal(t, 3, syn.Line)
	assert.Equal(t, 1, syn.Column)
	assert.Contains(t, err.Error(), "invalid character '}'")

	_, err = MinifyJSON([]byte(`{"a":1} x`))
	require.ErrorAs(t, err, &syn)
	assert.Equal(t, 1, syn.Line)
	assert.Equal(t, 9, syn.Column)

	_, err = DescribeJSON([]byte("   "))
	assert.Error(t, err)

	_, err = DescribeJSON([]byte(`{"a":`))
	assert.Error(t, err)
}

func TestJSON_Minify(t *testing.T) {
	got, err := MinifyJSON([]byte("{\n  \"a\" : [ 1, 2 ],\n  \"b\": \"x y\"\n}"))
	require.NoError(t, err)
	assert.Equal(t, `{"a":[1,2],"b":"x y"}`, got)
}

func TestJSON_Describe(t *testing.T) {
	got, err := DescribeJSON([]byte(`{"a":1,"b":2}`))
	require.NoError(t, err)
	assert.Equal(t, "valid JSON: object with 2 keys", got)

	got, err = DescribeJSON([]byte(`[1,2,3]`))
	require.NoError(t, err)
	assert.Equal(t, "valid JSON: array with 3 items", got)
}

func TestJSON_ToYAML(t *testing.T) {
	got, err := JSONToYAML([]byte(`{"name":"tool","n":1.5,"flag":"true","ok":true,"none":null}`))
	require.NoError(t, err)
	assert.Contains(t, got, "name: tool")
	assert.Contains(t, got, "n: 1.5")
	assert.Contains(t, got, `flag: "true"`)
	assert.Contains(t, got, "ok: true")
	assert.Contains(t, got, "none: null")
	assert.Less(t, strings.Index(got, "name:"), strings.Index(got, "none:"))
}

func TestJSON_FromYAML(t *testing.T) {
	got, err := YAMLToJSON([]byte("b: 1\na: [x, 2]\nc: ~\n"), "2")
	require.NoError(t, err)
	compact, err := MinifyJSON([]byte(got))
	require.NoError(t, err)
	assert.Equal(t, `{"b":1,"a":["x",2],"c":null}`, compact)

	_, err = YAMLToJSON([]byte("a: [unclosed"), "2")
	assert.Error(t, err)
}

func TestJSON_YAMLRoundTrip(t *testing.T) {
	in := `{"z":1,"a":{"k":[true,null,"s"]},"f":2.5}`
	y, err := JSONToYAML([]byte(in))
	require.NoError(t, err)
	back, err := YAMLToJSON([]byte(y), "2")
	require.NoError(t, err)
	compact, err := MinifyJSON([]byte(back))
	require.NoError(t, err)
	assert.Equal(t, in, compact)
}

func TestJSONTool_Execute(t *testing.T) {
	tool := NewJSONTool()
	out, err := tool.Execute(context.Background(), map[string]any{"action": "minify", "text": "{ \"a\" : 1 }"})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, out)

	_, err = tool.Execute(context.Background(), map[string]any{"action": "validate", "text": "{bad"})
	assert.Error(t, err)
}
