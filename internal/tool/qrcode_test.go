package tool

import (
	"bytes"
	"context"
	"encoding/base64"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQR_PNGSize(t *testing.T) {
	data, err := QRPNG("https://tool.blog", "M", 256)
	require.NoError(t, err)
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 256, cfg.Width)
	assert.Equal(t, 256, cfg.Height)
}

func TestQR_Errors(t *testing.T) {
	_, err := QRPNG("", "M", 256)
	assert.ErrorContains(t, err, "empty")

	_, err = QRPNG("x", "Z", 256)
	assert.ErrorContains(t, err, "level")

	_, err = QRPNG("x", "M", 10)
	assert.ErrorContains(t, err, "size")

	_, err = QRPNG(strings.Repeat("a", 4000), "H", 256)
	assert.Error(t, err)
}

func TestQR_ASCII(t *testing.T) {
	out, err := QRASCII("hello", "M")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	// Version 1 is 21 modules plus a quiet zone of 2 on each side.
	assert.Len(t, lines, 13)
	for _, l := range lines {
		assert.Equal(t, 25, utf8.RuneCountInString(l))
	}
	assert.Equal(t, strings.Repeat(" ", 25), lines[0])
	assert.Contains(t, out, "█")
}

func TestQRTool_Execute(t *testing.T) {
	tool := NewQRTool(128, "L")
	ctx := context.Background()

	out, err := tool.Execute(ctx, map[string]any{"text": "hi"})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "data:image/png;base64,"))
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(out, "data:image/png;base64,"))
	require.NoError(t, err)
	cfg, err := png.DecodeConfig(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 128, cfg.Width)

	path := filepath.Join(t.TempDir(), "codes", "hi.png")
	out, err = tool.Execute(ctx, map[string]any{"text": "hi", "format": "png", "output": path})
	require.NoError(t, err)
	assert.Contains(t, out, path)
	_, err = os.Stat(path)
	assert.NoError(t, err)

	_, err = tool.Execute(ctx, map[string]any{"text": "hi", "format": "png"})
	assert.Error(t, err)
}
