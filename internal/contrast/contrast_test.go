package contrast_test

import (
	"encoding/json"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raysh454/lumen/internal/contrast"
)

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want contrast.Color
	}{
		{"rgb(6, 37, 28)", contrast.RGB(6, 37, 28)},
		{"rgb(255,255,255)", contrast.White},
		{"rgba(13, 69, 56, 1)", contrast.RGB(13, 69, 56)},
		{"rgba(92, 163, 184, 0.1)", contrast.RGB(92, 163, 184)},
		{"rgba(0, 0, 0, 0)", contrast.TransparentColor},
		{"rgba(0, 0, 0, -0.5)", contrast.TransparentColor},
		{"rgb(0 0 0 / -20%)", contrast.TransparentColor},
		{"rgb(10 20 30 / 0)", contrast.TransparentColor},
		{"rgb(10 20 30 / 50%)", contrast.RGB(10, 20, 30)},
		{"rgb(100%, 0%, 0%)", contrast.RGB(255, 0, 0)},
		{"rgb(300, -4, 12.4)", contrast.RGB(255, 0, 12)},
		{"transparent", contrast.TransparentColor},
		{"#06251c", contrast.RGB(6, 37, 28)},
		{"#FFF", contrast.White},
		{"#0d453800", contrast.TransparentColor},
		{"#0d4538ff", contrast.RGB(13, 69, 56)},
		{"", contrast.TransparentColor},
		{"hsl(0, 0%, 0%)", contrast.TransparentColor},
		{"rgb(1, 2)", contrast.TransparentColor},
		{"rgb(a, b, c)", contrast.TransparentColor},
		{"#12345", contrast.TransparentColor},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, contrast.ParseColor(tt.in))
		})
	}
}

func TestLuminance_Extremes(t *testing.T) {
	assert.Equal(t, 0.0, contrast.Luminance(contrast.Black))
	assert.InDelta(t, 1.0, contrast.Luminance(contrast.White), 1e-12)
}

func TestRatio_WhiteOnBlack(t *testing.T) {
	assert.InDelta(t, 21.0, contrast.Ratio(contrast.White, contrast.Black), 0.05)
}

func TestRatio_SameColorIsOne(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		c := contrast.RGB(uint8(r.Intn(256)), uint8(r.Intn(256)), uint8(r.Intn(256)))
		assert.InDelta(t, 1.0, contrast.Ratio(c, c), 1e-12, "color %s", c)
	}
}

func TestRatio_SymmetricAndBounded(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		a := contrast.RGB(uint8(r.Intn(256)), uint8(r.Intn(256)), uint8(r.Intn(256)))
		b := contrast.RGB(uint8(r.Intn(256)), uint8(r.Intn(256)), uint8(r.Intn(256)))
		ab, ba := contrast.Ratio(a, b), contrast.Ratio(b, a)
		assert.Equal(t, ab, ba)
		assert.GreaterOrEqual(t, ab, 1.0)
		assert.LessOrEqual(t, ab, 21.0+1e-9)
	}
}

func TestIsLargeTextAndThreshold(t *testing.T) {
	tests := []struct {
		name   string
		px     float64
		weight int
		large  bool
		want   float64
	}{
		{"24px regular", 24, 400, true, 3.0},
		{"16px bold", 16, 700, false, 4.5},
		{"18.66px bold", 18.66, 700, true, 3.0},
		{"18.66px semibold", 18.66, 600, false, 4.5},
		{"18.65px bold", 18.65, 900, false, 4.5},
		{"32px light", 32, 100, true, 3.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			large := contrast.IsLargeText(tt.px, tt.weight)
			assert.Equal(t, tt.large, large)
			assert.Equal(t, tt.want, contrast.Threshold(large))
		})
	}
}

func TestPasses_BoundaryInclusive(t *testing.T) {
	assert.True(t, contrast.Passes(4.5, 4.5))
	assert.True(t, contrast.Passes(3.0, contrast.Threshold(true)))
	assert.False(t, contrast.Passes(4.4999, 4.5))
	assert.False(t, contrast.Passes(2.9, contrast.Threshold(true)))
}

func TestEvaluate_DarkOnDarkDialogFails(t *testing.T) {
	check, err := contrast.Evaluate(contrast.Sample{
		Selector:   ".dialog .guest-name",
		Foreground: contrast.ParseColor("rgb(6,37,28)"),
		Background: contrast.ParseColor("rgb(13,69,56)"),
		FontSizePx: 16,
		FontWeight: 400,
	})
	require.NoError(t, err)
	assert.InDelta(t, 1.49, check.Ratio, 0.01)
	assert.Equal(t, 4.5, check.Required)
	assert.False(t, check.LargeText)
	assert.False(t, check.Passes)
}

func TestEvaluate_WhiteOnBlackPassesBoth(t *testing.T) {
	check, err := contrast.Evaluate(contrast.Sample{
		Foreground: contrast.ParseColor("rgb(255,255,255)"),
		Background: contrast.ParseColor("rgb(0,0,0)"),
		FontSizePx: 16,
		FontWeight: 400,
	})
	require.NoError(t, err)
	assert.InDelta(t, 21.0, check.Ratio, 0.05)
	assert.True(t, check.Passes)
	assert.True(t, contrast.Passes(check.Ratio, contrast.LargeTextThreshold))
}

func TestEvaluate_LargeTextJustBelowThreshold(t *testing.T) {
	// #959595 on white is 2.995:1.
	check, err := contrast.Evaluate(contrast.Sample{
		Foreground: contrast.RGB(149, 149, 149),
		Background: contrast.White,
		FontSizePx: 24,
		FontWeight: 400,
	})
	require.NoError(t, err)
	assert.True(t, check.LargeText)
	assert.Equal(t, 3.0, check.Required)
	assert.Less(t, check.Ratio, 3.0)
	assert.False(t, check.Passes)
}

func TestEvaluate_PassMatchesRatioVsThreshold(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	for i := 0; i < 300; i++ {
		s := contrast.Sample{
			Foreground: contrast.RGB(uint8(r.Intn(256)), uint8(r.Intn(256)), uint8(r.Intn(256))),
			Background: contrast.RGB(uint8(r.Intn(256)), uint8(r.Intn(256)), uint8(r.Intn(256))),
			FontSizePx: float64(10 + r.Intn(30)),
			FontWeight: 100 * (1 + r.Intn(9)),
		}
		check, err := contrast.Evaluate(s)
		require.NoError(t, err)
		assert.Equal(t, check.Ratio >= check.Required, check.Passes)
		assert.Contains(t, []float64{3.0, 4.5}, check.Required)
	}
}

func TestEvaluate_TransparentIsUnresolved(t *testing.T) {
	_, err := contrast.Evaluate(contrast.Sample{Foreground: contrast.TransparentColor, Background: contrast.White})
	assert.True(t, errors.Is(err, contrast.ErrColorUnresolved))

	_, err = contrast.Evaluate(contrast.Sample{Foreground: contrast.Black, Background: contrast.ParseColor("rgba(0, 0, 0, 0)")})
	assert.ErrorIs(t, err, contrast.ErrColorUnresolved)
}

func TestParseFontSizeAndWeight(t *testing.T) {
	assert.Equal(t, 16.0, contrast.ParseFontSize("16px"))
	assert.Equal(t, 18.66, contrast.ParseFontSize(" 18.66px "))
	assert.Equal(t, 0.0, contrast.ParseFontSize("large"))

	assert.Equal(t, 700, contrast.ParseFontWeight("700"))
	assert.Equal(t, 700, contrast.ParseFontWeight("bold"))
	assert.Equal(t, 400, contrast.ParseFontWeight("normal"))
	assert.Equal(t, 550, contrast.ParseFontWeight("550.5"))
	assert.Equal(t, 400, contrast.ParseFontWeight("heavy"))
	assert.Equal(t, 1000, contrast.ParseFontWeight("1e300"))
	assert.Equal(t, 1000, contrast.ParseFontWeight("99999999999999999999"))
	assert.Equal(t, 1, contrast.ParseFontWeight("-5"))
	assert.Equal(t, 400, contrast.ParseFontWeight("NaN"))
}

func TestColor_JSONRoundTrip(t *testing.T) {
	in := []contrast.Color{contrast.RGB(6, 37, 28), contrast.TransparentColor, contrast.White}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `["rgb(6, 37, 28)","transparent","rgb(255, 255, 255)"]`, string(data))

	var out []contrast.Color
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}
