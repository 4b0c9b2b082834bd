package detect

import (
	"context"
	"fmt"
)

// RawBox is one record of raw model output: corner coordinates in pixels,
// a confidence score and a class index into the model's label table.
type RawBox struct {
	Box        [4]float64 `json:"box"`
	Confidence float64    `json:"confidence"`
	Class      int        `json:"class"`
}

// Model is an opaque classifier and localizer.
type Model interface {
	// Infer runs the model once on the image at imagePath.
	Infer(ctx context.Context, imagePath string) ([]RawBox, error)

	// ClassName resolves a class index through the model's label table.
	ClassName(index int) (string, bool)
}

// ModelAdapter converts raw Model output into Detections.
type ModelAdapter struct {
	model Model
}

var _ Detector = (*ModelAdapter)(nil)

// NewModelAdapter wraps model.
func NewModelAdapter(model Model) *ModelAdapter {
	return &ModelAdapter{model: model}
}

// Detect invokes the model once and converts every record. Boxes are
// truncated to integers and class indices resolved to names. Model errors,
// panics and malformed records all fail the whole call.
func (a *ModelAdapter) Detect(ctx context.Context, imagePath string) (dets []Detection, err error) {
	defer func() {
		if r := recover(); r != nil {
			dets = nil
			err = &Error{Path: imagePath, Err: fmt.Errorf("model panicked: %v", r)}
		}
	}()

	raw, err := a.model.Infer(ctx, imagePath)
	if err != nil {
		return nil, &Error{Path: imagePath, Err: err}
	}

	dets = make([]Detection, 0, len(raw))
	for i, r := range raw {
		name, ok := a.model.ClassName(r.Class)
		if !ok {
			return nil, &Error{Path: imagePath, Err: fmt.Errorf("record %d: unknown class index %d", i, r.Class)}
		}
		box, err := truncBox(r.Box[0], r.Box[1], r.Box[2], r.Box[3])
		if err != nil {
			return nil, &Error{Path: imagePath, Err: fmt.Errorf("record %d: %w", i, err)}
		}
		if err := checkConfidence(r.Confidence); err != nil {
			return nil, &Error{Path: imagePath, Err: fmt.Errorf("record %d: %w", i, err)}
		}
		dets = append(dets, Detection{
			ClassName:  name,
			Box:        box,
			Confidence: r.Confidence,
		})
	}

	return dets, nil
}
