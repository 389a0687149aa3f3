// Package contrast implements the WCAG 2.x contrast math used by the audit:
// parsing rendered colors, relative luminance, contrast ratio, large-text
// classification and the AA pass/fail decision.
package contrast

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Color is an sRGB color sample as read from a computed style.
// The zero value is opaque black; use Transparent for "no paint".
type Color struct {
	R, G, B     uint8
	Transparent bool
}

var (
	Black = Color{}
	White = Color{R: 255, G: 255, B: 255}

	// TransparentColor is what ParseColor returns for alpha 0 and for input
	// it cannot read.
	TransparentColor = Color{Transparent: true}
)

// RGB builds an opaque color.
func RGB(r, g, b uint8) Color {
	return Color{R: r, G: g, B: b}
}

// String renders the color the way getComputedStyle does.
func (c Color) String() string {
	if c.Transparent {
		return "transparent"
	}
	return fmt.Sprintf("rgb(%d, %d, %d)", c.R, c.G, c.B)
}

// Hex renders an opaque color as #rrggbb.
func (c Color) Hex() string {
	if c.Transparent {
		return "transparent"
	}
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func (c Color) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Color) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("contrast: color must be a string: %w", err)
	}
	*c = ParseColor(s)
	return nil
}

// ParseColor reads rgb()/rgba() strings as produced by getComputedStyle,
// the "transparent" keyword and hex notation (#rgb, #rrggbb, #rrggbbaa).
// It never fails; empty or unreadable input yields TransparentColor so
// callers treat it the same way as real transparency.
func ParseColor(s string) Color {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case s == "" || s == "transparent" || s == "none":
		return TransparentColor
	case strings.HasPrefix(s, "#"):
		return parseHex(s[1:])
	case strings.HasPrefix(s, "rgba(") || strings.HasPrefix(s, "rgb("):
		return parseFunctional(s)
	default:
		return TransparentColor
	}
}

func parseFunctional(s string) Color {
	open := strings.IndexByte(s, '(')
	if open < 0 || !strings.HasSuffix(s, ")") {
		return TransparentColor
	}
	body := s[open+1 : len(s)-1]

	// Accept both legacy "r, g, b, a" and modern "r g b / a" syntax.
	body = strings.ReplaceAll(body, "/", " ")
	body = strings.ReplaceAll(body, ",", " ")
	parts := strings.Fields(body)
	if len(parts) != 3 && len(parts) != 4 {
		return TransparentColor
	}

	var ch [3]uint8
	for i := 0; i < 3; i++ {
		v, ok := parseChannel(parts[i])
		if !ok {
			return TransparentColor
		}
		ch[i] = v
	}
	if len(parts) == 4 {
		a, ok := parseAlpha(parts[3])
		if !ok || a <= 0 {
			return TransparentColor
		}
	}
	return RGB(ch[0], ch[1], ch[2])
}

func parseChannel(p string) (uint8, bool) {
	if strings.HasSuffix(p, "%") {
		f, err := strconv.ParseFloat(strings.TrimSuffix(p, "%"), 64)
		if err != nil {
			return 0, false
		}
		return clampByte(f * 255 / 100), true
	}
	f, err := strconv.ParseFloat(p, 64)
	if err != nil {
		return 0, false
	}
	return clampByte(f), true
}

func parseAlpha(p string) (float64, bool) {
	scale := 1.0
	if strings.HasSuffix(p, "%") {
		p = strings.TrimSuffix(p, "%")
		scale = 100
	}
	f, err := strconv.ParseFloat(p, 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f / scale, true
}

func clampByte(f float64) uint8 {
	if math.IsNaN(f) || f <= 0 {
		return 0
	}
	if f >= 255 {
		return 255
	}
	return uint8(math.Round(f))
}

func parseHex(h string) Color {
	switch len(h) {
	case 3, 4:
		var expanded strings.Builder
		for _, r := range h {
			expanded.WriteRune(r)
			expanded.WriteRune(r)
		}
		return parseHex(expanded.String())
	case 6, 8:
	default:
		return TransparentColor
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return TransparentColor
	}
	if len(h) == 8 {
		if v&0xff == 0 {
			return TransparentColor
		}
		v >>= 8
	}
	return RGB(uint8(v>>16), uint8(v>>8), uint8(v))
}
