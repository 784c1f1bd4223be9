package tool

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColor_DescribeRed(t *testing.T) {
	info, err := DescribeColor("#f00")
	require.NoError(t, err)
	assert.Equal(t, "#ff0000", info.Hex)
	assert.Equal(t, "rgb(255, 0, 0)", info.RGB)
	assert.Equal(t, "hsl(0, 100%, 50%)", info.HSL)
	assert.Equal(t, "hsv(0, 100%, 100%)", info.HSV)
	assert.Equal(t, "cmyk(0%, 100%, 100%, 0%)", info.CMYK)
	assert.Equal(t, "#00ffff", info.Complement)
	assert.Equal(t, "red", info.Name)
	assert.Equal(t, 1.0, info.Alpha)
}

func TestColor_ParseNotations(t *testing.T) {
	cases := map[string]string{
		"#FF8800":              "#ff8800",
		"ff8800":               "#ff8800",
		"rgb(255, 136, 0)":     "#ff8800",
		"rgb(255 136 0)":       "#ff8800",
		"rgb(100%, 0%, 0%)":    "#ff0000",
		"hsl(120, 100%, 50%)":  "#00ff00",
		"hsv(240, 100%, 100%)": "#0000ff",
		"RebeccaPurple":        "#663399",
		"  white ":             "#ffffff",
	}
	for in, want := range cases {
		info, err := DescribeColor(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, info.Hex, in)
	}
}

func TestColor_Alpha(t *testing.T) {
	info, err := DescribeColor("rgba(0, 128, 255, 0.5)")
	require.NoError(t, err)
	assert.Equal(t, 0.5, info.Alpha)
	assert.Equal(t, "#0080ff80", info.Hex)
	assert.Equal(t, "rgba(0, 128, 255, 0.5)", info.RGB)

	info, err = DescribeColor("#00000000")
	require.NoError(t, err)
	assert.Equal(t, 0.0, info.Alpha)
	assert.Equal(t, "cmyk(0%, 0%, 0%, 100%)", info.CMYK)
}

func TestColor_Invalid(t *testing.T) {
	for _, in := range []string{"", "#12", "#ggg", "rgb(1,2)", "hsl(x, 1%, 1%)", "notacolor", "cmyk(1,2,3,4)"} {
		_, err := DescribeColor(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestColorTool_Execute(t *testing.T) {
	out, err := NewColorTool().Execute(context.Background(), map[string]any{"color": "lime"})
	require.NoError(t, err)

	var info ColorInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "#00ff00", info.Hex)
	assert.Equal(t, "lime", info.Name)
}
