package tool

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
)

const qrQuietZone = 2

var qrLevels = map[string]qr.ErrorCorrectionLevel{
	"L": qr.L,
	"M": qr.M,
	"Q": qr.Q,
	"H": qr.H,
}

// EncodeQR builds the unscaled QR symbol for text.
func EncodeQR(text, level string) (barcode.Barcode, error) {
	if text == "" {
		return nil, fmt.Errorf("qrcode: text is empty")
	}
	lvl, ok := qrLevels[strings.ToUpper(level)]
	if !ok {
		return nil, fmt.Errorf("qrcode: unknown error correction level %q (use L, M, Q or H)", level)
	}
	code, err := qr.Encode(text, lvl, qr.Auto)
	if err != nil {
		return nil, fmt.Errorf("qrcode: %w", err)
	}
	return code, nil
}

// QRPNG renders text as a size x size PNG.
func QRPNG(text, level string, size int) ([]byte, error) {
	if size < 64 || size > 2048 {
		return nil, fmt.Errorf("qrcode: size %d out of range 64..2048", size)
	}
	code, err := EncodeQR(text, level)
	if err != nil {
		return nil, err
	}
	scaled, err := barcode.Scale(code, size, size)
	if err != nil {
		return nil, fmt.Errorf("qrcode: size %d too small for %d modules: %w", size, code.Bounds().Dx(), err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, scaled); err != nil {
		return nil, fmt.Errorf("qrcode: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// QRASCII renders the symbol with half-block characters, two module rows per
// line, surrounded by a quiet zone.
func QRASCII(text, level string) (string, error) {
	code, err := EncodeQR(text, level)
	if err != nil {
		return "", err
	}
	b := code.Bounds()
	n := b.Dx()
	dark := func(x, y int) bool {
		x -= qrQuietZone
		y -= qrQuietZone
		if x < 0 || y < 0 || x >= n || y >= n {
			return false
		}
		return isDark(code, b.Min.X+x, b.Min.Y+y)
	}

	total := n + 2*qrQuietZone
	var sb strings.Builder
	for y := 0; y < total; y += 2 {
		for x := 0; x < total; x++ {
			top, bottom := dark(x, y), dark(x, y+1)
			switch {
			case top && bottom:
				sb.WriteRune('█')
			case top:
				sb.WriteRune('▀')
			case bottom:
				sb.WriteRune('▄')
			default:
				sb.WriteRune(' ')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

func isDark(img image.Image, x, y int) bool {
	g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
	return g.Y < 128
}

// QRTool generates QR codes.
type QRTool struct {
	size  int
	level string
}

func NewQRTool(size int, level string) *QRTool {
	if size == 0 {
		size = 256
	}
	if level == "" {
		level = "M"
	}
	return &QRTool{size: size, level: level}
}

func (t *QRTool) Name() string { return "qrcode" }
func (t *QRTool) Description() string {
	return "Generate a QR code for text as a PNG data URL, a PNG file, or terminal ASCII art."
}
func (t *QRTool) Parameters() map[string]any {
	return ToolParameters(
		map[string]Param{
			"text":   {Type: "string", Description: "Content to encode"},
			"size":   {Type: "integer", Description: "Image size in pixels (64-2048)"},
			"level":  {Type: "string", Description: "Error correction level", Enum: []string{"L", "M", "Q", "H"}},
			"format": {Type: "string", Description: "Output format", Enum: []string{"dataurl", "png", "ascii"}},
			"output": {Type: "string", Description: "File path for format=png"},
		},
		[]string{"text"},
	)
}

func (t *QRTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	text := ArgsString(args, "text")
	level := ArgsString(args, "level")
	if level == "" {
		level = t.level
	}
	size := ArgsInt(args, "size", t.size)

	switch format := ArgsString(args, "format"); format {
	case "ascii":
		return QRASCII(text, level)
	case "dataurl", "":
		data, err := QRPNG(text, level, size)
		if err != nil {
			return "", err
		}
		return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data), nil
	case "png":
		out := ArgsString(args, "output")
		if out == "" {
			return "", fmt.Errorf("qrcode: format=png requires output=<path>")
		}
		data, err := QRPNG(text, level, size)
		if err != nil {
			return "", err
		}
		if dir := filepath.Dir(out); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return "", fmt.Errorf("qrcode: create directory: %w", err)
			}
		}
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return "", fmt.Errorf("qrcode: write %s: %w", out, err)
		}
		return fmt.Sprintf("wrote %d bytes to %s", len(data), out), nil
	default:
		return "", fmt.Errorf("qrcode: unknown format %q (use dataurl, png or ascii)", format)
	}
}
