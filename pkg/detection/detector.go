// Package detection provides face candidate detectors. Every detector takes
// a grayscale, histogram-equalized image and returns zero or more
// axis-aligned candidate rectangles in its pixel grid.
package detection

import (
	"context"
	"errors"
	"image"
	"sort"

	"github.com/menta2k/portrait-cropper/pkg/types"
)

var (
	// ErrUnknownBackend is returned by New for an unsupported backend name
	ErrUnknownBackend = errors.New("unknown detector backend")
	// ErrGoCVUnavailable is returned when the haar backend is requested from
	// a binary built without the gocv tag
	ErrGoCVUnavailable = errors.New("haar backend requires building with -tags gocv")
	// ErrAccessDenied is returned when a cloud detector rejects the credentials
	ErrAccessDenied = errors.New("detector access denied")
)

// Detector finds face candidates in a normalized grayscale image
type Detector interface {
	Detect(ctx context.Context, gray *image.Gray) ([]types.Rect, error)
}

// DetectorFunc adapts a function to the Detector interface
type DetectorFunc func(ctx context.Context, gray *image.Gray) ([]types.Rect, error)

// Detect calls f
func (f DetectorFunc) Detect(ctx context.Context, gray *image.Gray) ([]types.Rect, error) {
	return f(ctx, gray)
}

// Sort orders candidates top-to-bottom, then left-to-right, so a candidate
// index stays meaningful across runs even if a backend reorders its output
func Sort(rects []types.Rect) {
	sort.SliceStable(rects, func(i, j int) bool {
		a, b := rects[i], rects[j]
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		if a.X != b.X {
			return a.X < b.X
		}
		return a.Width < b.Width
	})
}

// clip intersects r with a w x h image and drops boxes smaller than minSize
// on either side
func clip(rects []types.Rect, w, h, minSize int) []types.Rect {
	bounds := image.Rect(0, 0, w, h)
	out := make([]types.Rect, 0, len(rects))
	for _, r := range rects {
		c := types.RectFromImage(r.Image().Intersect(bounds))
		if c.Empty() || c.Width < minSize || c.Height < minSize {
			continue
		}
		out = append(out, c)
	}
	return out
}
