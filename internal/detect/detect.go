// Package detect turns the output of an object detector into a normalized
// list of detections.
//
// A Detector is anything that, given the path to a decoded-able raster image,
// returns every object it found as a class name, an integer bounding box and a
// confidence score. No confidence threshold is applied at this layer; whatever
// the backend returns is passed on.
//
// # Backends
//
//   - ModelAdapter wraps an opaque Model that reports class indices and a
//     label table (HTTPModel talks to a remote inference service).
//   - VisionDetector uses Google Cloud Vision object localization.
//   - TextDetector uses Tesseract word boxes, so printed product names can
//     be matched like detected objects.
//
// # Errors
//
// Every backend reports failures as *Error, which matches ErrDetection under
// errors.Is. A failed call never returns partial results.
package detect

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// ErrDetection is matched by every error a Detector returns.
var ErrDetection = errors.New("detection failed")

// Error reports a failed detector invocation for one image.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("detection failed for %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is ErrDetection.
func (e *Error) Is(target error) bool { return target == ErrDetection }

// BBox is an axis-aligned box in pixel coordinates.
type BBox struct {
	XMin int `json:"x_min"`
	YMin int `json:"y_min"`
	XMax int `json:"x_max"`
	YMax int `json:"y_max"`
}

// Valid reports whether the box has positive width and height.
func (b BBox) Valid() bool {
	return b.XMin < b.XMax && b.YMin < b.YMax
}

// Width returns XMax - XMin.
func (b BBox) Width() int { return b.XMax - b.XMin }

// Height returns YMax - YMin.
func (b BBox) Height() int { return b.YMax - b.YMin }

// Area returns Width * Height.
func (b BBox) Area() int { return b.Width() * b.Height() }

// Detection is one object found in an image.
type Detection struct {
	ClassName  string  `json:"class_name"`
	Box        BBox    `json:"bbox"`
	Confidence float64 `json:"confidence"`
}

// Detector finds objects in the image at imagePath.
type Detector interface {
	Detect(ctx context.Context, imagePath string) ([]Detection, error)
}

// truncBox converts float corner coordinates to an integer box, truncating
// toward zero. Non-finite or inverted coordinates are rejected.
func truncBox(x1, y1, x2, y2 float64) (BBox, error) {
	for _, v := range []float64{x1, y1, x2, y2} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return BBox{}, fmt.Errorf("non-finite box coordinate in [%v %v %v %v]", x1, y1, x2, y2)
		}
	}
	box := BBox{XMin: int(x1), YMin: int(y1), XMax: int(x2), YMax: int(y2)}
	if !box.Valid() {
		return BBox{}, fmt.Errorf("degenerate box [%d %d %d %d]", box.XMin, box.YMin, box.XMax, box.YMax)
	}
	return box, nil
}

func checkConfidence(c float64) error {
	if math.IsNaN(c) || c < 0 || c > 1 {
		return fmt.Errorf("confidence %v outside [0,1]", c)
	}
	return nil
}
