package overlay

import (
	"fmt"
	"image"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ironsheep/product-overlay/internal/detect"
	"github.com/ironsheep/product-overlay/internal/match"
)

const (
	// labelGap separates a label from its anchor box and from image edges.
	labelGap = 5

	// labelMargin pads the label background on every side.
	labelMargin = 2
)

// LabelText formats the caption for a group, e.g.
// "Cat: $9.99, In Stock: Yes".
func LabelText(g match.Group) string {
	stock := "No"
	if g.InStock {
		stock = "Yes"
	}
	return fmt.Sprintf("%s: $%s, In Stock: %s", capitalize(g.Key), formatPrice(g.Price), stock)
}

// capitalize upper-cases the first rune and lower-cases the rest.
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}

// formatPrice prints the shortest decimal that round-trips, keeping a ".0"
// on whole numbers (10 -> "10.0", 9.99 -> "9.99").
func formatPrice(p float64) string {
	s := strconv.FormatFloat(p, 'f', -1, 64)
	if !strings.ContainsAny(s, ".") {
		s += ".0"
	}
	return s
}

// PlaceLabel returns the top-left corner for a width×height label attached
// to anchor inside an imgW×imgH image.
//
// The label sits labelGap pixels above the anchor, left-aligned with it. If
// it would run past the right edge it is pulled left to end labelGap pixels
// from that edge. If it would start above the image it moves labelGap pixels
// below the anchor instead, and if that runs past the bottom edge it is
// pulled up to end labelGap pixels above it.
func PlaceLabel(anchor detect.BBox, width, height, imgW, imgH int) image.Point {
	x := anchor.XMin
	y := anchor.YMin - height - labelGap

	if x+width > imgW {
		x = imgW - width - labelGap
	}
	if y < 0 {
		y = anchor.YMax + labelGap
		if y+height > imgH {
			y = imgH - height - labelGap
		}
	}

	return image.Pt(x, y)
}
