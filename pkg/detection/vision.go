package detection

import (
	"context"
	"fmt"
	"image"

	"github.com/menta2k/portrait-cropper/pkg/client"
	"github.com/menta2k/portrait-cropper/pkg/processing"
	"github.com/menta2k/portrait-cropper/pkg/types"
)

// DefaultPrompt asks a vision model for every face in the picture
const DefaultPrompt = `You are a face locator for ID card photos.

Return JSON only:
{
  "faces": [
    {"confidence": 0.0, "box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0}}
  ]
}

HARD RULES
- One entry per human face, including faces in the background.
- All coordinates are normalized to [0,1] (NOT pixels), origin top-left.
- The box must tightly bound the face from eyebrows to chin, not the hair or shoulders.
- If there is no face, return {"faces": []}.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// VisionParams configures a vision-model backed detector
type VisionParams struct {
	Model         string
	Prompt        string
	SendFormat    string
	SendSize      int
	SendQuality   int
	MinConfidence float64
	MinSize       int
}

// DefaultVisionParams returns the defaults for vision-model detection
func DefaultVisionParams() VisionParams {
	return VisionParams{
		Model:         "openbmb/minicpm-v4.5",
		Prompt:        DefaultPrompt,
		SendFormat:    "jpg",
		SendSize:      1536,
		SendQuality:   85,
		MinConfidence: 0.3,
		MinSize:       20,
	}
}

// VisionDetector asks a multimodal model for face boxes
type VisionDetector struct {
	client    client.VisionClient
	processor *processing.Processor
	params    VisionParams
}

// NewVisionDetector creates a detector on top of a vision client
func NewVisionDetector(c client.VisionClient, params VisionParams) *VisionDetector {
	if params.Prompt == "" {
		params.Prompt = DefaultPrompt
	}
	return &VisionDetector{
		client:    c,
		processor: processing.NewProcessor(),
		params:    params,
	}
}

// Detect sends the image to the model and converts the reported boxes
func (d *VisionDetector) Detect(ctx context.Context, gray *image.Gray) ([]types.Rect, error) {
	b := gray.Bounds()
	if b.Empty() {
		return nil, nil
	}

	imgB64, err := d.processor.PrepareImageForModel(gray, d.params.SendFormat, d.params.SendSize, d.params.SendQuality)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare image: %w", err)
	}

	result, err := d.client.LocateFaces(ctx, d.params.Model, d.params.Prompt, imgB64)
	if err != nil {
		return nil, fmt.Errorf("vision model: %w", err)
	}

	return facesToRects(result.Faces, d.params.MinConfidence, b.Dx(), b.Dy(), d.params.MinSize), nil
}

// facesToRects converts normalized model boxes to pixel rectangles. A
// confidence of zero means the model did not report one and is accepted.
func facesToRects(faces []types.Face, minConfidence float64, w, h, minSize int) []types.Rect {
	rects := make([]types.Rect, 0, len(faces))
	for _, f := range faces {
		if f.Confidence != 0 && f.Confidence < minConfidence {
			continue
		}
		if f.Box.W <= 0 || f.Box.H <= 0 {
			continue
		}
		rects = append(rects, f.Box.ToRect(w, h))
	}
	return clip(rects, w, h, minSize)
}
