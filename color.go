package tplmerge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Color is an RGBA colour with 8-bit channels and a fractional alpha in [0, 1].
type Color struct {
	R, G, B uint8
	A       float64
}

// RGBA returns a Color, clamping a into [0, 1].
func RGBA(r, g, b uint8, a float64) Color {
	return Color{R: r, G: g, B: b, A: clampAlpha(a)}
}

func clampAlpha(a float64) float64 {
	switch {
	case math.IsNaN(a), a < 0:
		return 0
	case a > 1:
		return 1
	}
	return a
}

// String returns the rgba(r,g,b,a) text form.
func (c Color) String() string {
	return fmt.Sprintf("rgba(%d,%d,%d,%s)", c.R, c.G, c.B,
		strconv.FormatFloat(clampAlpha(c.A), 'f', -1, 64))
}

// NRGBA converts c to a non-premultiplied image colour.
func (c Color) NRGBA() color.NRGBA {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: uint8(math.Round(clampAlpha(c.A) * 255))}
}

// Transparent reports whether c has no visible coverage.
func (c Color) Transparent() bool {
	return c.NRGBA().A == 0
}

// ParseColor parses the rgba(r,g,b,a) or rgb(r,g,b) text form, or a
// #rrggbb / #rrggbbaa hex colour.
func ParseColor(s string) (Color, error) {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	switch {
	case strings.HasPrefix(lower, "#"):
		return parseHexColor(lower)
	case strings.HasPrefix(lower, "rgba(") && strings.HasSuffix(lower, ")"):
		return parseFuncColor(lower[len("rgba(") : len(lower)-1])
	case strings.HasPrefix(lower, "rgb(") && strings.HasSuffix(lower, ")"):
		return parseFuncColor(lower[len("rgb(") : len(lower)-1])
	}
	return Color{}, fmt.Errorf("tplmerge: unrecognised colour %q", s)
}

func parseHexColor(s string) (Color, error) {
	alpha := 1.0
	if len(s) == 9 {
		a, err := strconv.ParseUint(s[7:], 16, 8)
		if err != nil {
			return Color{}, fmt.Errorf("tplmerge: colour %q: %w", s, err)
		}
		alpha = float64(a) / 255
		s = s[:7]
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return Color{}, fmt.Errorf("tplmerge: colour %q: %w", s, err)
	}
	r, g, b := c.RGB255()
	return RGBA(r, g, b, alpha), nil
}

func parseFuncColor(args string) (Color, error) {
	parts := strings.Split(args, ",")
	if len(parts) != 3 && len(parts) != 4 {
		return Color{}, fmt.Errorf("tplmerge: colour needs 3 or 4 components, got %d", len(parts))
	}
	var ch [3]uint8
	for i := 0; i < 3; i++ {
		n, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil {
			return Color{}, fmt.Errorf("tplmerge: colour component %q: %w", parts[i], err)
		}
		ch[i] = uint8(math.Round(math.Max(0, math.Min(255, n))))
	}
	alpha := 1.0
	if len(parts) == 4 {
		a, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
		if err != nil {
			return Color{}, fmt.Errorf("tplmerge: colour alpha %q: %w", parts[3], err)
		}
		alpha = a
	}
	return RGBA(ch[0], ch[1], ch[2], alpha), nil
}

type colorObject struct {
	R float64  `json:"r"`
	G float64  `json:"g"`
	B float64  `json:"b"`
	A *float64 `json:"a,omitempty"`
}

func (c Color) MarshalJSON() ([]byte, error) {
	a := clampAlpha(c.A)
	return json.Marshal(colorObject{R: float64(c.R), G: float64(c.G), B: float64(c.B), A: &a})
}

// UnmarshalJSON accepts {"r","g","b","a"} objects as written by the
// placement editor, as well as any text form understood by ParseColor.
func (c *Color) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := ParseColor(s)
		if err != nil {
			return err
		}
		*c = parsed
		return nil
	}
	var obj colorObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("tplmerge: colour: %w", err)
	}
	alpha := 1.0
	if obj.A != nil {
		alpha = *obj.A
	}
	clamp := func(f float64) uint8 { return uint8(math.Round(math.Max(0, math.Min(255, f)))) }
	*c = RGBA(clamp(obj.R), clamp(obj.G), clamp(obj.B), alpha)
	return nil
}
