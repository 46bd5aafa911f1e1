package cropper

import (
	"bytes"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"

	"github.com/menta2k/portrait-cropper/pkg/types"
)

// Cropper cuts the chosen region out of the original colour image and
// serializes it for the document layout stage
type Cropper struct {
	config CropConfig
}

// CropConfig holds configuration for cropping and encoding
type CropConfig struct {
	Ratio        types.AspectRatio
	Quality      int
	OutputWidth  int // 0 keeps the cropped size
	OutputHeight int
}

// New creates a new Cropper with default configuration
func New() *Cropper {
	return &Cropper{
		config: CropConfig{
			Ratio:   types.IDPhoto,
			Quality: 90,
		},
	}
}

// NewWithConfig creates a new Cropper with custom configuration
func NewWithConfig(config CropConfig) *Cropper {
	if config.Quality <= 0 || config.Quality > 100 {
		config.Quality = 90
	}
	if config.Ratio.Width == 0 || config.Ratio.Height == 0 {
		config.Ratio = types.IDPhoto
	}
	return &Cropper{config: config}
}

// Ratio returns the portrait aspect ratio used for expansion
func (c *Cropper) Ratio() types.AspectRatio {
	return c.config.Ratio
}

// Expand expands a tight face box using the configured ratio
func (c *Cropper) Expand(face types.Rect, imgW, imgH int) types.Rect {
	return Expand(face, imgW, imgH, c.config.Ratio)
}

// ExpandAll expands every candidate using the configured ratio
func (c *Cropper) ExpandAll(faces []types.Rect, imgW, imgH int) []types.Rect {
	return ExpandAll(faces, imgW, imgH, c.config.Ratio)
}

// Crop returns a new image holding the pixels of r. The source is never
// modified. A zero-area rectangle yields a zero-pixel image.
func (c *Cropper) Crop(img image.Image, r types.Rect) *image.NRGBA {
	bounds := img.Bounds()
	rect := r.Image().Add(bounds.Min).Intersect(bounds)
	if rect.Empty() {
		return &image.NRGBA{}
	}
	return imaging.Crop(img, rect)
}

// Encode serializes img as a JPEG into a buffer positioned at its start.
// A zero-pixel image encodes to an empty buffer, see Decode.
func (c *Cropper) Encode(img image.Image) (*bytes.Buffer, error) {
	buf := new(bytes.Buffer)
	if img == nil || img.Bounds().Empty() {
		return buf, nil
	}

	if c.config.OutputWidth > 0 || c.config.OutputHeight > 0 {
		img = imaging.Resize(img, c.config.OutputWidth, c.config.OutputHeight, imaging.Lanczos)
	}

	if err := imaging.Encode(buf, img, imaging.JPEG, imaging.JPEGQuality(c.config.Quality)); err != nil {
		return nil, fmt.Errorf("failed to encode crop: %w", err)
	}
	return buf, nil
}

// CropAndEncode crops r out of img and encodes the result
func (c *Cropper) CropAndEncode(img image.Image, r types.Rect) (*bytes.Buffer, error) {
	return c.Encode(c.Crop(img, r))
}

// Decode reads a buffer produced by Encode. An empty buffer decodes to a
// valid 0x0 image.
func Decode(r io.Reader) (image.Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read crop: %w", err)
	}
	if len(data) == 0 {
		return image.NewNRGBA(image.Rect(0, 0, 0, 0)), nil
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode crop: %w", err)
	}
	return img, nil
}
