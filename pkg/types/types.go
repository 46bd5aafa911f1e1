package types

import (
	"fmt"
	"image"
	"math"
)

// Rect is an axis-aligned pixel rectangle relative to the top-left corner
// of the source image.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Area returns the number of pixels covered by the rectangle
func (r Rect) Area() int {
	if r.Width <= 0 || r.Height <= 0 {
		return 0
	}
	return r.Width * r.Height
}

// Empty reports whether the rectangle covers no pixels
func (r Rect) Empty() bool {
	return r.Area() == 0
}

// Image converts the rectangle to an image.Rectangle
func (r Rect) Image() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Within reports whether the rectangle lies inside a w x h image
func (r Rect) Within(w, h int) bool {
	return r.X >= 0 && r.Y >= 0 && r.Width >= 0 && r.Height >= 0 &&
		r.X+r.Width <= w && r.Y+r.Height <= h
}

func (r Rect) String() string {
	return fmt.Sprintf("%dx%d@%d,%d", r.Width, r.Height, r.X, r.Y)
}

// RectFromImage converts an image.Rectangle to a Rect
func RectFromImage(r image.Rectangle) Rect {
	r = r.Canon()
	return Rect{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// Box represents a normalized bounding box with coordinates in [0,1] range
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// ToRect converts the normalized box into pixel coordinates of a w x h image.
// Coordinates are clamped to [0,1] before scaling.
func (b Box) ToRect(w, h int) Rect {
	fw, fh := float64(w), float64(h)
	x0 := int(clamp01(b.X)*fw + 0.5)
	y0 := int(clamp01(b.Y)*fh + 0.5)
	x1 := int(clamp01(b.X+b.W)*fw + 0.5)
	y1 := int(clamp01(b.Y+b.H)*fh + 0.5)
	if x1 < x0 {
		x1 = x0
	}
	if y1 < y0 {
		y1 = y0
	}
	return Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// AspectRatio is a portrait ratio expressed as height:width
type AspectRatio struct {
	Height int `json:"height"`
	Width  int `json:"width"`
}

// IDPhoto is the 35x26 mm photo block used on the printed cards
var IDPhoto = AspectRatio{Height: 35, Width: 26}

// Value returns height divided by width
func (a AspectRatio) Value() float64 {
	if a.Width == 0 {
		return 0
	}
	return float64(a.Height) / float64(a.Width)
}

func (a AspectRatio) String() string {
	return fmt.Sprintf("%d:%d", a.Height, a.Width)
}

// FaceLocations is the structured answer expected from vision models
type FaceLocations struct {
	Faces []Face `json:"faces"`
}

// Face is a single face reported by a vision model
type Face struct {
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
}
