package detect

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"math"
	"os"

	gvision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/googleapis/gax-go/v2"
)

// DefaultVisionMaxResults caps the number of localized objects requested.
const DefaultVisionMaxResults = 50

// imageAnnotator is the part of the Vision client the detector uses.
type imageAnnotator interface {
	BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error)
	Close() error
}

// VisionDetector finds objects with Google Cloud Vision object localization.
// Vision returns class names directly and boxes as normalized vertices, which
// are scaled to pixels using the image's own dimensions.
type VisionDetector struct {
	client     imageAnnotator
	maxResults int32
}

var _ Detector = (*VisionDetector)(nil)

// NewVisionDetector creates a detector using Application Default Credentials.
func NewVisionDetector(ctx context.Context) (*VisionDetector, error) {
	client, err := gvision.NewImageAnnotatorClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create vision client: %w", err)
	}
	return &VisionDetector{client: client, maxResults: DefaultVisionMaxResults}, nil
}

// Close releases the Vision client.
func (v *VisionDetector) Close() error {
	return v.client.Close()
}

// Detect sends the image to Vision and converts every localized object.
func (v *VisionDetector) Detect(ctx context.Context, imagePath string) ([]Detection, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, &Error{Path: imagePath, Err: fmt.Errorf("read image: %w", err)}
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &Error{Path: imagePath, Err: fmt.Errorf("decode image header: %w", err)}
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: data},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_OBJECT_LOCALIZATION, MaxResults: v.maxResults},
				},
			},
		},
	}

	resp, err := v.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return nil, &Error{Path: imagePath, Err: fmt.Errorf("vision API request failed: %w", err)}
	}

	dets, err := localizedObjects(resp, cfg.Width, cfg.Height)
	if err != nil {
		return nil, &Error{Path: imagePath, Err: err}
	}
	return dets, nil
}

// localizedObjects converts a Vision response into pixel-space detections.
func localizedObjects(resp *visionpb.BatchAnnotateImagesResponse, width, height int) ([]Detection, error) {
	if len(resp.GetResponses()) == 0 {
		return []Detection{}, nil
	}

	r := resp.GetResponses()[0]
	if r.GetError() != nil {
		return nil, fmt.Errorf("vision API error: %s", r.GetError().GetMessage())
	}

	objects := r.GetLocalizedObjectAnnotations()
	dets := make([]Detection, 0, len(objects))
	for i, obj := range objects {
		vertices := obj.GetBoundingPoly().GetNormalizedVertices()
		if len(vertices) == 0 {
			return nil, fmt.Errorf("object %d (%s): no bounding vertices", i, obj.GetName())
		}

		minX, minY := math.Inf(1), math.Inf(1)
		maxX, maxY := math.Inf(-1), math.Inf(-1)
		for _, vtx := range vertices {
			x := float64(vtx.GetX()) * float64(width)
			y := float64(vtx.GetY()) * float64(height)
			minX, maxX = math.Min(minX, x), math.Max(maxX, x)
			minY, maxY = math.Min(minY, y), math.Max(maxY, y)
		}

		box, err := truncBox(minX, minY, maxX, maxY)
		if err != nil {
			return nil, fmt.Errorf("object %d (%s): %w", i, obj.GetName(), err)
		}
		conf := float64(obj.GetScore())
		if err := checkConfidence(conf); err != nil {
			return nil, fmt.Errorf("object %d (%s): %w", i, obj.GetName(), err)
		}

		dets = append(dets, Detection{
			ClassName:  obj.GetName(),
			Box:        box,
			Confidence: conf,
		})
	}

	return dets, nil
}
