package detect

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/otiai10/gosseract/v2"
)

// TextDetector reports each word Tesseract recognizes as a detection whose
// class name is the word itself. Product names printed on packaging or shelf
// tags then match catalog entries the same way detected objects do.
type TextDetector struct {
	language string
}

var _ Detector = (*TextDetector)(nil)

// NewTextDetector creates a detector for a Tesseract language code such as
// "eng". The language data must be installed.
func NewTextDetector(language string) *TextDetector {
	if language == "" {
		language = "eng"
	}
	return &TextDetector{language: language}
}

// Detect runs OCR on the image and returns one detection per word.
func (d *TextDetector) Detect(ctx context.Context, imagePath string) ([]Detection, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(d.language); err != nil {
		return nil, &Error{Path: imagePath, Err: fmt.Errorf("failed to set language: %w", err)}
	}
	if err := client.SetImage(imagePath); err != nil {
		return nil, &Error{Path: imagePath, Err: fmt.Errorf("failed to set image: %w", err)}
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, &Error{Path: imagePath, Err: fmt.Errorf("OCR failed: %w", err)}
	}

	return wordDetections(boxes), nil
}

// wordDetections converts Tesseract word boxes. Surrounding punctuation is
// stripped; empty words and zero-area boxes are skipped.
func wordDetections(boxes []gosseract.BoundingBox) []Detection {
	dets := make([]Detection, 0, len(boxes))
	for _, b := range boxes {
		word := strings.TrimFunc(b.Word, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		if word == "" {
			continue
		}

		box := BBox{XMin: b.Box.Min.X, YMin: b.Box.Min.Y, XMax: b.Box.Max.X, YMax: b.Box.Max.Y}
		if !box.Valid() {
			continue
		}

		conf := b.Confidence / 100.0
		if conf < 0 {
			conf = 0
		} else if conf > 1 {
			conf = 1
		}

		dets = append(dets, Detection{
			ClassName:  word,
			Box:        box,
			Confidence: conf,
		})
	}
	return dets
}
