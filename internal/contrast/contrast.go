package contrast

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// WCAG AA minimum ratios.
const (
	NormalTextThreshold = 4.5
	LargeTextThreshold  = 3.0

	// 18pt and 14pt expressed in CSS px.
	LargeTextMinPx     = 24.0
	LargeBoldTextMinPx = 18.66
	BoldWeight         = 700
	DefaultFontWeight  = 400
	MinFontWeight      = 1
	MaxFontWeight      = 1000
)

// ErrColorUnresolved is returned by Evaluate when either color is
// transparent. No Check is produced; the caller skips the element.
var ErrColorUnresolved = errors.New("color unresolved")

// Luminance returns the WCAG relative luminance of c in [0, 1].
func Luminance(c Color) float64 {
	return 0.2126*linearize(c.R) + 0.7152*linearize(c.G) + 0.0722*linearize(c.B)
}

func linearize(v uint8) float64 {
	c := float64(v) / 255
	if c <= 0.03928 {
		return c / 12.92
	}
	return math.Pow((c+0.055)/1.055, 2.4)
}

// Ratio returns the contrast ratio between a and b. It is symmetric and
// always in [1, 21].
func Ratio(a, b Color) float64 {
	return ratioOf(Luminance(a), Luminance(b))
}

func ratioOf(l1, l2 float64) float64 {
	lighter, darker := math.Max(l1, l2), math.Min(l1, l2)
	return (lighter + 0.05) / (darker + 0.05)
}

// IsLargeText reports whether text qualifies for the relaxed threshold.
func IsLargeText(fontSizePx float64, fontWeight int) bool {
	return fontSizePx >= LargeTextMinPx ||
		(fontSizePx >= LargeBoldTextMinPx && fontWeight >= BoldWeight)
}

// Threshold returns the AA minimum ratio for the text category.
func Threshold(large bool) float64 {
	if large {
		return LargeTextThreshold
	}
	return NormalTextThreshold
}

// Passes applies the AA decision; equality passes.
func Passes(ratio, threshold float64) bool {
	return ratio >= threshold
}

// Sample is one element's rendered text styling.
type Sample struct {
	Selector    string
	Description string
	Text        string

	Foreground Color
	Background Color
	FontSizePx float64
	FontWeight int
}

// Check is the immutable outcome of evaluating one Sample.
type Check struct {
	Selector    string  `json:"selector"`
	Description string  `json:"description"`
	Text        string  `json:"text,omitempty"`
	Foreground  Color   `json:"color"`
	Background  Color   `json:"background_color"`
	FontSizePx  float64 `json:"font_size_px"`
	FontWeight  int     `json:"font_weight"`
	Ratio       float64 `json:"contrast_ratio"`
	Required    float64 `json:"required"`
	LargeText   bool    `json:"is_large_text"`
	Passes      bool    `json:"passes"`
}

// Evaluate computes ratio, category, threshold and verdict for s.
func Evaluate(s Sample) (Check, error) {
	if s.Foreground.Transparent || s.Background.Transparent {
		return Check{}, ErrColorUnresolved
	}
	ratio := Ratio(s.Foreground, s.Background)
	large := IsLargeText(s.FontSizePx, s.FontWeight)
	required := Threshold(large)

	return Check{
		Selector:    s.Selector,
		Description: s.Description,
		Text:        s.Text,
		Foreground:  s.Foreground,
		Background:  s.Background,
		FontSizePx:  s.FontSizePx,
		FontWeight:  s.FontWeight,
		Ratio:       ratio,
		Required:    required,
		LargeText:   large,
		Passes:      Passes(ratio, required),
	}, nil
}

// ParseFontSize reads a computed font-size such as "16px". Unreadable
// values return 0, which classifies as normal text.
func ParseFontSize(s string) float64 {
	s = strings.TrimSuffix(strings.TrimSpace(strings.ToLower(s)), "px")
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f < 0 || math.IsNaN(f) {
		return 0
	}
	return f
}

// ParseFontWeight reads a computed font-weight. Browsers report numbers;
// keywords are mapped to their numeric equivalents and anything else
// counts as normal.
func ParseFontWeight(s string) int {
	s = strings.TrimSpace(strings.ToLower(s))
	switch s {
	case "bold", "bolder":
		return BoldWeight
	case "", "normal", "lighter":
		return DefaultFontWeight
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return DefaultFontWeight
	}
	// CSS font-weight is defined on [1, 1000].
	switch {
	case f < MinFontWeight:
		return MinFontWeight
	case f > MaxFontWeight:
		return MaxFontWeight
	}
	return int(f)
}
