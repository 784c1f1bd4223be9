package tool

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/colornames"
)

// ColorInfo is every representation the color tool reports.
type ColorInfo struct {
	Hex        string  `json:"hex"`
	RGB        string  `json:"rgb"`
	HSL        string  `json:"hsl"`
	HSV        string  `json:"hsv"`
	CMYK       string  `json:"cmyk"`
	Alpha      float64 `json:"alpha"`
	Complement string  `json:"complement"`
	Name       string  `json:"name,omitempty"`
}

// namesByHex maps "#rrggbb" to the alphabetically first CSS name.
var namesByHex = func() map[string]string {
	names := make([]string, 0, len(colornames.Map))
	for n := range colornames.Map {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make(map[string]string, len(names))
	for _, n := range names {
		c := colornames.Map[n]
		key := fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
		if _, ok := out[key]; !ok {
			out[key] = n
		}
	}
	return out
}()

// ParseColor accepts hex, rgb()/rgba(), hsl()/hsla(), hsv() and CSS names.
// It returns the opaque colour and its alpha in [0,1].
func ParseColor(input string) (colorful.Color, float64, error) {
	s := strings.ToLower(strings.TrimSpace(input))
	if s == "" {
		return colorful.Color{}, 0, fmt.Errorf("empty color")
	}
	if strings.HasPrefix(s, "#") {
		return parseHexColor(s[1:])
	}
	if open := strings.IndexByte(s, '('); open > 0 && strings.HasSuffix(s, ")") {
		return parseColorFunc(s[:open], s[open+1:len(s)-1])
	}
	if s == "transparent" {
		return colorful.Color{}, 0, nil
	}
	if c, ok := colornames.Map[s]; ok {
		return colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}, 1, nil
	}
	if isHexDigits(s) {
		return parseHexColor(s)
	}
	return colorful.Color{}, 0, fmt.Errorf("unrecognised color %q", input)
}

func isHexDigits(s string) bool {
	switch len(s) {
	case 3, 4, 6, 8:
	default:
		return false
	}
	for i := 0; i < len(s); i++ {
		if _, ok := unhex(s[i]); !ok {
			return false
		}
	}
	return true
}

func parseHexColor(h string) (colorful.Color, float64, error) {
	if !isHexDigits(h) {
		return colorful.Color{}, 0, fmt.Errorf("invalid hex color #%s (want 3, 4, 6 or 8 hex digits)", h)
	}
	if len(h) <= 4 {
		var b strings.Builder
		for i := 0; i < len(h); i++ {
			b.WriteByte(h[i])
			b.WriteByte(h[i])
		}
		h = b.String()
	}
	channel := func(i int) float64 {
		v, _ := strconv.ParseUint(h[i:i+2], 16, 8)
		return float64(v) / 255
	}
	alpha := 1.0
	if len(h) == 8 {
		alpha = channel(6)
	}
	return colorful.Color{R: channel(0), G: channel(2), B: channel(4)}, alpha, nil
}

func parseColorFunc(name, body string) (colorful.Color, float64, error) {
	body = strings.ReplaceAll(body, "/", " ")
	body = strings.ReplaceAll(body, ",", " ")
	parts := strings.Fields(body)
	if len(parts) != 3 && len(parts) != 4 {
		return colorful.Color{}, 0, fmt.Errorf("%s() needs 3 or 4 components, got %d", name, len(parts))
	}
	alpha := 1.0
	if len(parts) == 4 {
		a, err := parseComponent(parts[3], 1)
		if err != nil {
			return colorful.Color{}, 0, fmt.Errorf("%s() alpha: %w", name, err)
		}
		alpha = clamp01(a)
	}

	switch name {
	case "rgb", "rgba":
		var ch [3]float64
		for i := 0; i < 3; i++ {
			v, err := parseComponent(parts[i], 255)
			if err != nil {
				return colorful.Color{}, 0, fmt.Errorf("%s() component %d: %w", name, i+1, err)
			}
			ch[i] = clamp01(v / 255)
		}
		return colorful.Color{R: ch[0], G: ch[1], B: ch[2]}, alpha, nil
	case "hsl", "hsla", "hsv":
		h, err := strconv.ParseFloat(strings.TrimSuffix(parts[0], "deg"), 64)
		if err != nil {
			return colorful.Color{}, 0, fmt.Errorf("%s() hue: %w", name, err)
		}
		s, err := parsePercent(parts[1])
		if err != nil {
			return colorful.Color{}, 0, fmt.Errorf("%s() saturation: %w", name, err)
		}
		l, err := parsePercent(parts[2])
		if err != nil {
			return colorful.Color{}, 0, fmt.Errorf("%s() lightness: %w", name, err)
		}
		h = math.Mod(math.Mod(h, 360)+360, 360)
		if name == "hsv" {
			return colorful.Hsv(h, s, l).Clamped(), alpha, nil
		}
		return colorful.Hsl(h, s, l).Clamped(), alpha, nil
	}
	return colorful.Color{}, 0, fmt.Errorf("unknown color function %s()", name)
}

// parseComponent reads a plain number or a percentage of scale.
func parseComponent(s string, scale float64) (float64, error) {
	if strings.HasSuffix(s, "%") {
		v, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
		if err != nil {
			return 0, err
		}
		return v / 100 * scale, nil
	}
	return strconv.ParseFloat(s, 64)
}

// parsePercent reads "50%" or a bare 0..1 fraction.
func parsePercent(s string) (float64, error) {
	if strings.HasSuffix(s, "%") {
		v, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
		return clamp01(v / 100), err
	}
	v, err := strconv.ParseFloat(s, 64)
	if v > 1 {
		v /= 100
	}
	return clamp01(v), err
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// DescribeColor converts input into every supported notation.
func DescribeColor(input string) (*ColorInfo, error) {
	c, alpha, err := ParseColor(input)
	if err != nil {
		return nil, err
	}
	r, g, b := c.RGB255()
	h, sl, l := c.Hsl()
	_, sv, v := c.Hsv()

	info := &ColorInfo{
		Hex:   c.Hex(),
		RGB:   fmt.Sprintf("rgb(%d, %d, %d)", r, g, b),
		HSL:   fmt.Sprintf("hsl(%d, %d%%, %d%%)", roundHue(h), pct(sl), pct(l)),
		HSV:   fmt.Sprintf("hsv(%d, %d%%, %d%%)", roundHue(h), pct(sv), pct(v)),
		CMYK:  cmyk(c),
		Alpha: math.Round(alpha*1000) / 1000,
		Name:  namesByHex[c.Hex()],
	}
	if alpha < 1 {
		info.Hex += fmt.Sprintf("%02x", uint8(alpha*255+0.5))
		info.RGB = fmt.Sprintf("rgba(%d, %d, %d, %g)", r, g, b, info.Alpha)
	}
	info.Complement = colorful.Hsl(math.Mod(h+180, 360), sl, l).Clamped().Hex()
	return info, nil
}

func roundHue(h float64) int {
	if math.IsNaN(h) {
		return 0
	}
	return int(math.Round(h)) % 360
}

func pct(v float64) int { return int(math.Round(v * 100)) }

func cmyk(c colorful.Color) string {
	k := 1 - math.Max(c.R, math.Max(c.G, c.B))
	if k >= 1 {
		return "cmyk(0%, 0%, 0%, 100%)"
	}
	cc := (1 - c.R - k) / (1 - k)
	m := (1 - c.G - k) / (1 - k)
	y := (1 - c.B - k) / (1 - k)
	return fmt.Sprintf("cmyk(%d%%, %d%%, %d%%, %d%%)", pct(cc), pct(m), pct(y), pct(k))
}

// ColorTool converts between colour notations.
type ColorTool struct{}

func NewColorTool() *ColorTool { return &ColorTool{} }

func (t *ColorTool) Name() string { return "color" }
func (t *ColorTool) Description() string {
	return "Convert a color between hex, rgb, hsl, hsv and cmyk, with its complement and CSS name."
}
func (t *ColorTool) Parameters() map[string]any {
	return ToolParameters(
		map[string]Param{
			"color": {Type: "string", Description: "Color such as #ff8800, rgb(255,136,0), hsl(32,100%,50%) or orange"},
		},
		[]string{"color"},
	)
}

func (t *ColorTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	input := ArgsString(args, "color")
	if input == "" {
		input = ArgsString(args, "text")
	}
	info, err := DescribeColor(input)
	if err != nil {
		return "", err
	}
	return resultJSON(info)
}
