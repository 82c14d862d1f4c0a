package caption

import (
	"math"
	"strconv"
	"strings"
)

// Display geometry defaults.
const (
	DefaultLineWidth           = 30
	DefaultCharacterLineWidth  = 10
	DefaultNumberOfLines       = 3
	DefaultMaxFinalTranscripts = 30
)

// Geometry is the caption window shape: NumberOfLines rows of at most
// LineWidth characters each.
type Geometry struct {
	LineWidth     int
	NumberOfLines int
	// CharacterMode selects character wrapping for scripts without
	// inter-word spacing.
	CharacterMode bool
}

// DefaultGeometry returns the default window for the given wrap mode.
func DefaultGeometry(characterMode bool) Geometry {
	return Geometry{
		LineWidth:     defaultWidth(characterMode),
		NumberOfLines: DefaultNumberOfLines,
		CharacterMode: characterMode,
	}
}

// Normalize clamps out-of-range values to the defaults so invalid settings
// never reach the wrapper.
func (g Geometry) Normalize() Geometry {
	if g.LineWidth <= 0 {
		g.LineWidth = defaultWidth(g.CharacterMode)
	}
	if g.NumberOfLines < 1 {
		g.NumberOfLines = DefaultNumberOfLines
	}
	return g
}

func defaultWidth(characterMode bool) int {
	if characterMode {
		return DefaultCharacterLineWidth
	}
	return DefaultLineWidth
}

// lineWidthPresets are the named widths offered by the glasses settings UI,
// as {word mode, character mode}.
var lineWidthPresets = map[string][2]int{
	"very narrow": {21, 7},
	"narrow":      {30, 10},
	"medium":      {38, 14},
	"wide":        {44, 18},
	"very wide":   {52, 21},
}

// ParseLineWidth converts a line_width setting into a character count.
// Positive numbers pass through (fractions are truncated); named presets
// map to fixed widths; anything else, NaN included, yields the default
// for the mode.
func ParseLineWidth(value string, characterMode bool) int {
	v := strings.ToLower(strings.TrimSpace(value))
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		if math.IsNaN(f) || math.IsInf(f, 0) || f < 1 {
			return defaultWidth(characterMode)
		}
		return int(f)
	}
	if p, ok := lineWidthPresets[v]; ok {
		if characterMode {
			return p[1]
		}
		return p[0]
	}
	return defaultWidth(characterMode)
}
