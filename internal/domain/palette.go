package domain

import (
	"fmt"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// ColorBrewer anchors, lightest to darkest for the sequential families.
var (
	brewerBlues   = []string{"#F7FBFF", "#DEEBF7", "#C6DBEF", "#9ECAE1", "#6BAED6", "#4292C6", "#2171B5", "#08519C", "#08306B"}
	brewerOranges = []string{"#FFF5EB", "#FEE6CE", "#FDD0A2", "#FDAE6B", "#FD8D3C", "#F16913", "#D94801", "#A63603", "#7F2704"}
	brewerGreens  = []string{"#F7FCF5", "#E5F5E0", "#C7E9C0", "#A1D99B", "#74C476", "#41AB5D", "#238B45", "#006D2C", "#00441B"}
	brewerPurples = []string{"#FCFBFD", "#EFEDF5", "#DADAEB", "#BCBDDC", "#9E9AC8", "#807DBA", "#6A51A3", "#54278F", "#3F007D"}
	brewerReds    = []string{"#FFF5F0", "#FEE0D2", "#FCBBA1", "#FC9272", "#FB6A4A", "#EF3B2C", "#CB181D", "#A50F15", "#67000D"}
	brewerDark2   = []string{"#1B9E77", "#D95F02", "#7570B3", "#E7298A", "#66A61E", "#E6AB02", "#A6761D", "#666666"}

	// RibbonColors outline interval bands in every mode.
	RibbonColors = []string{"#F0F0F0", "#BDBDBD", "#636363"}

	// colorFamilies is the per-model family order for FamilyRamp.
	colorFamilies = [][]string{brewerBlues, brewerOranges, brewerGreens, brewerPurples, brewerReds}
)

// Sequential ramps skip the two near-white anchors so the lightest band is
// still visible against a white background.
const rampStartAnchor = 2

// Palette maps each model to a forecast color and one interval color per
// quantile pair, in the same order as the pairs.
type Palette struct {
	Strategy string              `json:"strategy"`
	Forecast map[string]string   `json:"forecast"`
	Interval map[string][]string `json:"interval"`
	Ribbon   []string            `json:"ribbon"`
}

// PaletteStrategy assigns colors to models and interval bands.
type PaletteStrategy interface {
	Name() string
	Assign(models []string, pairs []QuantilePair) Palette
}

// ChoosePalette picks the strategy for a plot: a single blue ramp unless
// colors are split by model, then one family per model up to five models and
// a qualitative palette beyond that.
func ChoosePalette(fillByModel bool, modelCount int, transparency float64) PaletteStrategy {
	switch {
	case !fillByModel:
		return SingleHue{}
	case modelCount <= len(colorFamilies):
		return FamilyRamp{}
	default:
		return Qualitative{Transparency: transparency}
	}
}

// SingleHue colors every model with the same blue ramp.
type SingleHue struct{}

func (SingleHue) Name() string { return "single_hue" }

func (SingleHue) Assign(models []string, pairs []QuantilePair) Palette {
	shades := sequentialRamp(brewerBlues, max(len(pairs)+1, 2))
	forecast := shades[len(shades)-1]
	intervals := intervalShades(shades, pairs)

	p := newPalette("single_hue", len(models))
	for _, m := range models {
		p.Forecast[m] = forecast
		p.Interval[m] = append([]string(nil), intervals...)
	}
	return p
}

// FamilyRamp gives each model its own sequential family.
type FamilyRamp struct{}

func (FamilyRamp) Name() string { return "family_ramp" }

func (FamilyRamp) Assign(models []string, pairs []QuantilePair) Palette {
	p := newPalette("family_ramp", len(models))
	for i, m := range models {
		shades := sequentialRamp(colorFamilies[i%len(colorFamilies)], len(pairs)+1)
		p.Forecast[m] = shades[len(shades)-1]
		p.Interval[m] = intervalShades(shades, pairs)
	}
	return p
}

// Qualitative interpolates Dark2 to one hue per model; interval bands reuse
// the hue at the configured transparency.
type Qualitative struct {
	Transparency float64
}

func (Qualitative) Name() string { return "qualitative" }

func (q Qualitative) Assign(models []string, pairs []QuantilePair) Palette {
	hues := qualitativeRamp(brewerDark2, len(models))
	p := newPalette("qualitative", len(models))
	for i, m := range models {
		p.Forecast[m] = hues[i]
		band := withAlpha(hues[i], q.Transparency)
		bands := make([]string, len(pairs))
		for j := range bands {
			bands[j] = band
		}
		p.Interval[m] = bands
	}
	return p
}

func newPalette(strategy string, n int) Palette {
	return Palette{
		Strategy: strategy,
		Forecast: make(map[string]string, n),
		Interval: make(map[string][]string, n),
		Ribbon:   append([]string(nil), RibbonColors...),
	}
}

// intervalShades gives wider intervals lighter shades. shades is ordered
// lightest to darkest and its last entry is reserved for the point forecast.
func intervalShades(shades []string, pairs []QuantilePair) []string {
	out := make([]string, len(pairs))
	for i, p := range pairs {
		rank := 0
		for j, other := range pairs {
			if other.Interval > p.Interval || (other.Interval == p.Interval && j < i) {
				rank++
			}
		}
		out[i] = shades[rank]
	}
	return out
}

// sequentialRamp samples n shades from anchors, evenly between the first
// visible anchor and the darkest. A single shade is the darkest anchor.
func sequentialRamp(anchors []string, n int) []string {
	last := float64(len(anchors) - 1)
	if n <= 1 {
		return []string{strings.ToUpper(anchors[len(anchors)-1])}
	}
	out := make([]string, n)
	for i := range out {
		pos := rampStartAnchor + (last-rampStartAnchor)*float64(i)/float64(n-1)
		out[i] = interpolate(anchors, pos, colorful.Color.BlendLab)
	}
	return out
}

// qualitativeRamp spreads n hues linearly across all anchors.
func qualitativeRamp(anchors []string, n int) []string {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []string{strings.ToUpper(anchors[0])}
	}
	last := float64(len(anchors) - 1)
	out := make([]string, n)
	for i := range out {
		out[i] = interpolate(anchors, last*float64(i)/float64(n-1), colorful.Color.BlendRgb)
	}
	return out
}

func interpolate(anchors []string, pos float64, blend func(colorful.Color, colorful.Color, float64) colorful.Color) string {
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if hi >= len(anchors) {
		hi = len(anchors) - 1
	}
	a := mustHex(anchors[lo])
	if lo == hi {
		return strings.ToUpper(a.Hex())
	}
	b := mustHex(anchors[hi])
	return strings.ToUpper(blend(a, b, pos-float64(lo)).Clamped().Hex())
}

func withAlpha(hex string, alpha float64) string {
	alpha = math.Max(0, math.Min(1, alpha))
	return fmt.Sprintf("%s%02X", hex, int(math.Round(alpha*255)))
}

func mustHex(s string) colorful.Color {
	c, err := colorful.Hex(s)
	if err != nil {
		panic(fmt.Sprintf("palette anchor %q: %v", s, err))
	}
	return c
}
