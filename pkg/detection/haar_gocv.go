//go:build gocv

package detection

import (
	"context"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/menta2k/portrait-cropper/pkg/types"
)

// cv::CASCADE_SCALE_IMAGE
const cascadeScaleImage = 2

// HaarDetector detects faces with an OpenCV Haar cascade
type HaarDetector struct {
	mu     sync.Mutex
	cls    gocv.CascadeClassifier
	params HaarParams
}

// NewHaarDetector loads an OpenCV cascade XML file
func NewHaarDetector(cascadePath string, params HaarParams) (*HaarDetector, error) {
	cls := gocv.NewCascadeClassifier()
	if !cls.Load(cascadePath) {
		cls.Close()
		return nil, fmt.Errorf("failed to load haar cascade %s", cascadePath)
	}
	return &HaarDetector{cls: cls, params: params}, nil
}

// Detect runs DetectMultiScale on the image
func (d *HaarDetector) Detect(ctx context.Context, gray *image.Gray) ([]types.Rect, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mat, err := gocv.ImageGrayToMatGray(gray)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	defer mat.Close()

	minSize := image.Pt(d.params.MinSize, d.params.MinSize)

	d.mu.Lock()
	found := d.cls.DetectMultiScaleWithParams(mat, d.params.ScaleFactor, d.params.MinNeighbors,
		cascadeScaleImage, minSize, image.Point{})
	d.mu.Unlock()

	rects := make([]types.Rect, 0, len(found))
	for _, r := range found {
		rects = append(rects, types.RectFromImage(r))
	}
	b := gray.Bounds()
	return clip(rects, b.Dx(), b.Dy(), 0), nil
}

// Close releases the classifier
func (d *HaarDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cls.Close()
}
