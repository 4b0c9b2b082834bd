// Package overlay draws matched product groups onto an image.
//
// For each group the renderer outlines every box in the group's color, then
// writes a single caption (name, price, stock) next to the group's largest
// box. Captions are kept inside the image: they move left when they would
// overflow the right edge and below the box when there is no room above.
//
// # Colors
//
// Colors come from a fixed cyclic Palette indexed by the order in which
// groups are first seen, so the same input always renders identically.
//
// # Fonts
//
// Text goes through the TextDrawer interface. LoadTextDrawer falls back to
// a bundled face when a font file is missing, so font problems never fail a
// render. Only failures to read the source image or write the output are
// reported, as errors matching ErrRender.
package overlay

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"

	"github.com/anthonynsimon/bild/clone"
	"github.com/disintegration/imaging"

	"github.com/ironsheep/product-overlay/internal/detect"
	"github.com/ironsheep/product-overlay/internal/match"
)

// DefaultStrokeWidth is the box outline width in pixels.
const DefaultStrokeWidth = 3

// OutputPrefix is prepended to the source file name to name the output.
const OutputPrefix = "output_"

// ErrRender is matched by every error Render returns.
var ErrRender = errors.New("render failed")

// RenderError reports a failed render.
type RenderError struct {
	Path string
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render failed for %s: %v", e.Path, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// Is reports whether target is ErrRender.
func (e *RenderError) Is(target error) bool { return target == ErrRender }

// Label describes one caption as it was placed on the image.
type Label struct {
	Key    string      `json:"key"`
	Text   string      `json:"text"`
	Anchor detect.BBox `json:"anchor"`
	Origin image.Point `json:"origin"`
	Width  int         `json:"width"`
	Height int         `json:"height"`
	Color  color.RGBA  `json:"color"`
}

// Result is the outcome of a render.
type Result struct {
	OutputPath string  `json:"output_path"`
	Labels     []Label `json:"labels"`
}

// Renderer draws groups onto images and saves them under workDir.
type Renderer struct {
	workDir string
	text    TextDrawer
	palette Palette
	stroke  int
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithPalette replaces the default palette. An empty palette is ignored.
func WithPalette(p Palette) Option {
	return func(r *Renderer) {
		if len(p) > 0 {
			r.palette = p
		}
	}
}

// WithStrokeWidth sets the box outline width.
func WithStrokeWidth(w int) Option {
	return func(r *Renderer) {
		if w > 0 {
			r.stroke = w
		}
	}
}

// NewRenderer creates a renderer writing into workDir. A nil text drawer
// uses the built-in bitmap face.
func NewRenderer(workDir string, text TextDrawer, opts ...Option) *Renderer {
	if text == nil {
		text = BasicDrawer()
	}
	r := &Renderer{
		workDir: workDir,
		text:    text,
		palette: DefaultPalette(),
		stroke:  DefaultStrokeWidth,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OutputPath returns where Render writes the result for imagePath.
func (r *Renderer) OutputPath(imagePath string) string {
	return filepath.Join(r.workDir, OutputPrefix+filepath.Base(imagePath))
}

// Render decodes imagePath, draws groups on a private copy and saves it
// next to the other outputs. With no groups the output is a plain copy.
func (r *Renderer) Render(imagePath string, groups []match.Group) (*Result, error) {
	src, err := imaging.Open(imagePath)
	if err != nil {
		return nil, &RenderError{Path: imagePath, Err: err}
	}

	canvas := clone.AsRGBA(src)
	labels := r.Draw(canvas, groups)

	if err := os.MkdirAll(r.workDir, 0755); err != nil {
		return nil, &RenderError{Path: imagePath, Err: fmt.Errorf("create work dir: %w", err)}
	}
	out := r.OutputPath(imagePath)
	if err := imaging.Save(canvas, out); err != nil {
		return nil, &RenderError{Path: imagePath, Err: fmt.Errorf("save %s: %w", out, err)}
	}

	return &Result{OutputPath: out, Labels: labels}, nil
}

// Draw paints boxes and captions for groups onto canvas and returns the
// captions in group order. All boxes are drawn before any caption so that
// captions stay on top.
func (r *Renderer) Draw(canvas *image.RGBA, groups []match.Group) []Label {
	colors := r.palette.Assign(groups)
	bounds := canvas.Bounds()

	for _, g := range groups {
		c := colors[g.Key]
		for _, b := range g.Boxes {
			strokeRect(canvas, b, c, r.stroke)
		}
	}

	labels := make([]Label, 0, len(groups))
	for _, g := range groups {
		c := colors[g.Key]
		anchor := g.Anchor()
		text := LabelText(g)

		w, h := r.text.Measure(text)
		origin := PlaceLabel(anchor, w, h, bounds.Dx(), bounds.Dy())

		bg := image.Rect(origin.X-labelMargin, origin.Y-labelMargin,
			origin.X+w+labelMargin+1, origin.Y+h+labelMargin+1)
		draw.Draw(canvas, bg, image.NewUniform(color.White), image.Point{}, draw.Src)
		r.text.Draw(canvas, origin.X, origin.Y, text, c)

		labels = append(labels, Label{
			Key:    g.Key,
			Text:   text,
			Anchor: anchor,
			Origin: origin,
			Width:  w,
			Height: h,
			Color:  c,
		})
	}

	return labels
}

// strokeRect outlines b with width pixels drawn inward from its edges.
// Both corners are inclusive; pixels outside dst are skipped.
func strokeRect(dst *image.RGBA, b detect.BBox, c color.RGBA, width int) {
	for i := 0; i < width; i++ {
		x0, y0 := b.XMin+i, b.YMin+i
		x1, y1 := b.XMax-i, b.YMax-i
		if x0 > x1 || y0 > y1 {
			return
		}
		for x := x0; x <= x1; x++ {
			dst.SetRGBA(x, y0, c)
			dst.SetRGBA(x, y1, c)
		}
		for y := y0; y <= y1; y++ {
			dst.SetRGBA(x0, y, c)
			dst.SetRGBA(x1, y, c)
		}
	}
}
