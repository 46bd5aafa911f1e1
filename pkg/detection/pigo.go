package detection

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"

	pigo "github.com/esimov/pigo/core"

	"github.com/menta2k/portrait-cropper/pkg/types"
)

// PigoParams tunes the pure-Go pixel intensity comparison cascade
type PigoParams struct {
	MinSize          int
	MaxSize          int // 0 uses the longest image side
	ShiftFactor      float64
	ScaleFactor      float64
	IoUThreshold     float64
	QualityThreshold float32
}

// DefaultPigoParams returns parameters suited to single-person ID photos
func DefaultPigoParams() PigoParams {
	return PigoParams{
		MinSize:          100,
		ShiftFactor:      0.1,
		ScaleFactor:      1.1,
		IoUThreshold:     0.2,
		QualityThreshold: 5.0,
	}
}

// PigoDetector detects faces with the pigo cascade classifier
type PigoDetector struct {
	classifier *pigo.Pigo
	params     PigoParams
}

// NewPigoDetector unpacks a pigo face cascade
func NewPigoDetector(cascade []byte, params PigoParams) (*PigoDetector, error) {
	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("error unpacking cascade file: %w", err)
	}
	return &PigoDetector{classifier: classifier, params: params}, nil
}

// PigoCascadeURL is where the facefinder cascade used by the pigo backend is
// published.
const PigoCascadeURL = "https://raw.githubusercontent.com/esimov/pigo/master/cascade/facefinder"

// LoadPigoDetector reads a pigo face cascade from disk
func LoadPigoDetector(path string, params PigoParams) (*PigoDetector, error) {
	cascade, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("cascade file %s not found, download it from %s: %w", path, PigoCascadeURL, err)
		}
		return nil, fmt.Errorf("failed to read cascade file: %w", err)
	}
	return NewPigoDetector(cascade, params)
}

// Detect runs the cascade over the image and clusters overlapping hits
func (d *PigoDetector) Detect(ctx context.Context, gray *image.Gray) ([]types.Rect, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := gray.Bounds()
	cols, rows := b.Dx(), b.Dy()
	if cols == 0 || rows == 0 {
		return nil, nil
	}

	maxSize := d.params.MaxSize
	if maxSize <= 0 {
		maxSize = max(cols, rows)
	}

	cParams := pigo.CascadeParams{
		MinSize:     d.params.MinSize,
		MaxSize:     maxSize,
		ShiftFactor: d.params.ShiftFactor,
		ScaleFactor: d.params.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: gray.Pix[gray.PixOffset(b.Min.X, b.Min.Y):],
			Rows:   rows,
			Cols:   cols,
			Dim:    gray.Stride,
		},
	}

	dets := d.classifier.RunCascade(cParams, 0)
	dets = d.classifier.ClusterDetections(dets, d.params.IoUThreshold)

	return pigoRects(dets, d.params.QualityThreshold, cols, rows, d.params.MinSize), nil
}

// pigoRects converts centre/scale detections to clipped rectangles
func pigoRects(dets []pigo.Detection, qThresh float32, w, h, minSize int) []types.Rect {
	rects := make([]types.Rect, 0, len(dets))
	for _, det := range dets {
		if det.Q < qThresh {
			continue
		}
		rects = append(rects, types.Rect{
			X:      det.Col - det.Scale/2,
			Y:      det.Row - det.Scale/2,
			Width:  det.Scale,
			Height: det.Scale,
		})
	}
	return clip(rects, w, h, minSize)
}
