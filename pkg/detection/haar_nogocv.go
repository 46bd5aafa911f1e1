//go:build !gocv

package detection

import (
	"context"
	"image"

	"github.com/menta2k/portrait-cropper/pkg/types"
)

// HaarDetector is unavailable without the gocv build tag
type HaarDetector struct{}

// NewHaarDetector always fails without the gocv build tag
func NewHaarDetector(cascadePath string, params HaarParams) (*HaarDetector, error) {
	return nil, ErrGoCVUnavailable
}

// Detect always fails without the gocv build tag
func (d *HaarDetector) Detect(ctx context.Context, gray *image.Gray) ([]types.Rect, error) {
	return nil, ErrGoCVUnavailable
}

// Close is a no-op
func (d *HaarDetector) Close() error {
	return nil
}
