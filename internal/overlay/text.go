package overlay

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// DefaultFontSize is the label font size in points at 72 DPI.
const DefaultFontSize = 20

// TextDrawer measures and draws single-line label text.
//
// (x, y) is the top-left corner of the text's line box: the returned height
// spans ascent plus descent, so the text occupies [x, x+w) × [y, y+h).
type TextDrawer interface {
	Measure(text string) (width, height int)
	Draw(dst draw.Image, x, y int, text string, c color.Color)
}

// FaceDrawer is a TextDrawer over a golang.org/x/image font face.
type FaceDrawer struct {
	face font.Face
}

var _ TextDrawer = (*FaceDrawer)(nil)

// NewFaceDrawer wraps face.
func NewFaceDrawer(face font.Face) *FaceDrawer {
	return &FaceDrawer{face: face}
}

// BasicDrawer uses the fixed 7x13 bitmap face. It needs no font data.
func BasicDrawer() *FaceDrawer {
	return NewFaceDrawer(basicfont.Face7x13)
}

// Measure returns the advance width and line height of text.
func (d *FaceDrawer) Measure(text string) (int, int) {
	m := d.face.Metrics()
	return font.MeasureString(d.face, text).Ceil(), (m.Ascent + m.Descent).Ceil()
}

// Draw renders text with its line box's top-left corner at (x, y).
func (d *FaceDrawer) Draw(dst draw.Image, x, y int, text string, c color.Color) {
	drawer := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: d.face,
		Dot:  fixed.P(x, y+d.face.Metrics().Ascent.Ceil()),
	}
	drawer.DrawString(text)
}

// LoadTextDrawer loads a TrueType/OpenType font at size points.
//
// A label must always be drawable, so loading never fails outright: when
// path is empty the bundled Go Regular face is used, and when path cannot be
// read or parsed the same fallback is returned together with the load error
// so the caller can report it. If even the bundled face fails, the 7x13
// bitmap face is used.
func LoadTextDrawer(path string, size float64) (TextDrawer, error) {
	if size <= 0 {
		size = DefaultFontSize
	}

	var loadErr error
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			face, perr := parseFace(data, size)
			if perr == nil {
				return NewFaceDrawer(face), nil
			}
			err = perr
		}
		loadErr = fmt.Errorf("failed to load font %s: %w", path, err)
	}

	face, err := parseFace(goregular.TTF, size)
	if err != nil {
		if loadErr == nil {
			loadErr = err
		}
		return BasicDrawer(), loadErr
	}
	return NewFaceDrawer(face), loadErr
}

func parseFace(data []byte, size float64) (font.Face, error) {
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("create face: %w", err)
	}
	return face, nil
}
