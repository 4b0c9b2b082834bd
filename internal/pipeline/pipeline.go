// Package pipeline runs one image through detection, matching and overlay
// rendering.
//
// A run is synchronous and owns its image buffer. The catalog is passed in
// as a Snapshot so concurrent catalog edits never change a run in flight.
//
// Failures are reported as *Failure, whose Kind tells a detection failure
// (no output written) from a render failure. Finding no catalog products in
// the image is not a failure: the output is then an unannotated copy.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/product-overlay/internal/catalog"
	"github.com/ironsheep/product-overlay/internal/detect"
	"github.com/ironsheep/product-overlay/internal/match"
	"github.com/ironsheep/product-overlay/internal/overlay"
)

// Kind classifies a Failure.
type Kind int

const (
	// KindDetection means the detector failed. Nothing was written.
	KindDetection Kind = iota + 1

	// KindRender means the image could not be read or the output not saved.
	KindRender
)

func (k Kind) String() string {
	switch k {
	case KindDetection:
		return "detection"
	case KindRender:
		return "render"
	default:
		return "unknown"
	}
}

// Failure is the error Process returns.
type Failure struct {
	Kind Kind
	Err  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s failure: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Result describes a completed run.
type Result struct {
	RunID      string             `json:"run_id"`
	OutputPath string             `json:"output_path"`
	Detections []detect.Detection `json:"detections"`
	Groups     []match.Group      `json:"groups"`
	Labels     []overlay.Label    `json:"labels"`
}

// Pipeline wires a detector to a renderer.
type Pipeline struct {
	detector detect.Detector
	renderer *overlay.Renderer
	log      *logrus.Logger
}

// New creates a pipeline. A nil logger discards log output.
func New(detector detect.Detector, renderer *overlay.Renderer, log *logrus.Logger) *Pipeline {
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	return &Pipeline{detector: detector, renderer: renderer, log: log}
}

// Process detects objects in imagePath, matches them against snap and
// writes the annotated image. A nil snapshot behaves like an empty catalog.
func (p *Pipeline) Process(ctx context.Context, imagePath string, snap *catalog.Snapshot) (*Result, error) {
	start := time.Now()
	runID := uuid.NewString()
	log := p.log.WithFields(logrus.Fields{"run_id": runID, "image": imagePath})

	dets, err := p.detector.Detect(ctx, imagePath)
	if err != nil {
		log.WithError(err).Error("detection failed")
		return nil, &Failure{Kind: KindDetection, Err: err}
	}

	groups := match.Match(dets, snap.Entries())
	log.WithFields(logrus.Fields{
		"detections": len(dets),
		"groups":     len(groups),
	}).Debug("matched detections")

	if err := ctx.Err(); err != nil {
		return nil, &Failure{Kind: KindRender, Err: err}
	}

	res, err := p.renderer.Render(imagePath, groups)
	if err != nil {
		log.WithError(err).Error("render failed")
		return nil, &Failure{Kind: KindRender, Err: err}
	}

	log.WithFields(logrus.Fields{
		"output":  res.OutputPath,
		"labels":  len(res.Labels),
		"elapsed": time.Since(start).String(),
	}).Info("image annotated")

	return &Result{
		RunID:      runID,
		OutputPath: res.OutputPath,
		Detections: dets,
		Groups:     groups,
		Labels:     res.Labels,
	}, nil
}

// IsDetectionFailure reports whether err is a detection Failure.
func IsDetectionFailure(err error) bool {
	var f *Failure
	return errors.As(err, &f) && f.Kind == KindDetection
}

// IsRenderFailure reports whether err is a render Failure.
func IsRenderFailure(err error) bool {
	var f *Failure
	return errors.As(err, &f) && f.Kind == KindRender
}
