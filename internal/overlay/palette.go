package overlay

import (
	"fmt"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/ironsheep/product-overlay/internal/match"
)

// defaultPaletteHex is a set of mutually distinct, saturated colors.
var defaultPaletteHex = []string{
	"#FF3838", "#FF701F", "#FFB21D", "#CFD231", "#48F90A",
	"#1A9334", "#00D4BB", "#00C2FF", "#344593", "#6473FF",
	"#0018EC", "#8438FF", "#520085", "#FF95C8", "#FF37C7",
	"#FF9D97", "#2C99A8", "#3DDB86", "#CB38FF", "#92CC17",
}

// Palette is a cyclic list of group colors.
type Palette []color.RGBA

// NewPalette parses "#RRGGBB" colors into a palette.
func NewPalette(hexes ...string) (Palette, error) {
	if len(hexes) == 0 {
		return nil, fmt.Errorf("palette needs at least one color")
	}
	p := make(Palette, 0, len(hexes))
	for _, h := range hexes {
		c, err := colorful.Hex(h)
		if err != nil {
			return nil, fmt.Errorf("invalid palette color %q: %w", h, err)
		}
		r, g, b := c.RGB255()
		p = append(p, color.RGBA{R: r, G: g, B: b, A: 255})
	}
	return p, nil
}

// DefaultPalette returns the built-in palette.
func DefaultPalette() Palette {
	p, err := NewPalette(defaultPaletteHex...)
	if err != nil {
		panic(err)
	}
	return p
}

// At returns the i-th color, wrapping around the end of the palette.
func (p Palette) At(i int) color.RGBA {
	return p[i%len(p)]
}

// Assignment maps a group key to its color for one render.
type Assignment map[string]color.RGBA

// Assign gives each distinct group key the next palette color in
// first-seen order.
func (p Palette) Assign(groups []match.Group) Assignment {
	a := make(Assignment, len(groups))
	for _, g := range groups {
		if _, ok := a[g.Key]; ok {
			continue
		}
		a[g.Key] = p.At(len(a))
	}
	return a
}
