package cropper

import (
	"math"

	"github.com/menta2k/portrait-cropper/pkg/types"
)

// Expand turns a tight face rectangle into a head-and-shoulders portrait
// rectangle with the given aspect ratio, clamped to an imgW x imgH image.
// All shifts are floor divisions by powers of two and run in this order.
func Expand(face types.Rect, imgW, imgH int, ratio types.AspectRatio) types.Rect {
	x, y, w, h := face.X, face.Y, face.Width, face.Height
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}

	// make room for the rest of the head
	x -= w >> 2
	y -= h >> 2
	w += w >> 1
	h += h >> 1

	// height follows the expanded width; the grown h above is discarded
	h = int(math.Round(float64(w) * ratio.Value()))

	// eyes go above the centre line
	y -= h >> 3

	return Clamp(types.Rect{X: x, Y: y, Width: w, Height: h}, imgW, imgH)
}

// ExpandAll expands every candidate, keeping their order
func ExpandAll(faces []types.Rect, imgW, imgH int, ratio types.AspectRatio) []types.Rect {
	out := make([]types.Rect, len(faces))
	for i, f := range faces {
		out[i] = Expand(f, imgW, imgH, ratio)
	}
	return out
}

// Clamp moves a rectangle inside an imgW x imgH image. A negative origin is
// zeroed and the opposite edge pushed outward by the same amount, an edge past
// the image is pulled back inward, and only an axis longer than the image
// itself is clipped.
// The size is kept; a box is never grown to absorb a negative offset.
func Clamp(r types.Rect, imgW, imgH int) types.Rect {
	r.X, r.Width = clampAxis(r.X, r.Width, imgW)
	r.Y, r.Height = clampAxis(r.Y, r.Height, imgH)
	return r
}

func clampAxis(pos, size, limit int) (int, int) {
	if limit < 0 {
		limit = 0
	}
	if size < 0 {
		size = 0
	}
	if size > limit {
		return 0, limit
	}
	if pos < 0 {
		pos = 0
	}
	if pos+size > limit {
		pos = limit - size
	}
	return pos, size
}
