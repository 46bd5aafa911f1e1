package processing

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/menta2k/portrait-cropper/pkg/types"
)

var overlayPalette = []color.NRGBA{
	{0, 255, 0, 255},
	{255, 204, 0, 255},
	{255, 0, 0, 255},
	{0, 170, 255, 255},
	{255, 0, 255, 255},
}

// CreateDebugOverlay draws the detector candidates and their expanded crops
// on a copy of img. Candidate i and crop i share a colour; crops are drawn
// with a thicker stroke.
func (p *Processor) CreateDebugOverlay(img image.Image, candidates, crops []types.Rect) image.Image {
	nrgba := imaging.Clone(img)
	w := nrgba.Bounds().Dx()
	h := nrgba.Bounds().Dy()

	stroke := int(math.Max(2, 0.004*float64(min(w, h)))) // ~0.4% of min side

	for i, r := range candidates {
		drawRect(nrgba, r, overlayPalette[i%len(overlayPalette)], stroke)
	}
	for i, r := range crops {
		drawRect(nrgba, r, overlayPalette[i%len(overlayPalette)], 2*stroke)
	}

	return nrgba
}

func drawRect(img *image.NRGBA, r types.Rect, c color.NRGBA, stroke int) {
	if r.Empty() {
		return
	}
	x0, y0 := r.X, r.Y
	x1, y1 := r.X+r.Width, r.Y+r.Height
	for s := 0; s < stroke; s++ {
		drawHLine(img, y0+s, x0, x1, c)
		drawHLine(img, y1-1-s, x0, x1, c)
		drawVLine(img, x0+s, y0, y1, c)
		drawVLine(img, x1-1-s, y0, y1, c)
	}
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	if y < 0 || y >= img.Bounds().Dy() {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if x1 <= 0 || x0 >= img.Bounds().Dx() {
		return
	}
	x0 = max(x0, 0)
	x1 = min(x1, img.Bounds().Dx())
	i := y*img.Stride + x0*4
	for x := x0; x < x1; x++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += 4
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	if x < 0 || x >= img.Bounds().Dx() {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	if y1 <= 0 || y0 >= img.Bounds().Dy() {
		return
	}
	y0 = max(y0, 0)
	y1 = min(y1, img.Bounds().Dy())
	i := y0*img.Stride + x*4
	for y := y0; y < y1; y++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += img.Stride
	}
}
