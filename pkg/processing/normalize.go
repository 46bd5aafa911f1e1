package processing

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// Normalize prepares an image for face detection: single channel
// grayscale followed by histogram equalization. The source is not modified.
func (p *Processor) Normalize(img image.Image) *image.Gray {
	return EqualizeHist(Grayscale(img))
}

// Grayscale converts img to an 8-bit single channel image whose bounds
// start at the origin
func Grayscale(img image.Image) *image.Gray {
	nrgba := imaging.Clone(img)
	b := nrgba.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))

	for y := 0; y < b.Dy(); y++ {
		si := y * nrgba.Stride
		di := y * gray.Stride
		for x := 0; x < b.Dx(); x++ {
			c := color.NRGBA{
				R: nrgba.Pix[si+0],
				G: nrgba.Pix[si+1],
				B: nrgba.Pix[si+2],
				A: 255,
			}
			gray.Pix[di] = color.GrayModel.Convert(c).(color.Gray).Y
			si += 4
			di++
		}
	}

	return gray
}

// EqualizeHist spreads the intensity histogram of img over the full 0..255
// range. A uniform image is returned unchanged.
func EqualizeHist(img *image.Gray) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(b)
	total := b.Dx() * b.Dy()
	if total == 0 {
		return out
	}

	var hist [256]int
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):]
		for x := 0; x < b.Dx(); x++ {
			hist[row[x]]++
		}
	}

	first := 0
	for hist[first] == 0 {
		first++
	}

	var lut [256]uint8
	if hist[first] == total {
		for i := range lut {
			lut[i] = uint8(first)
		}
	} else {
		scale := 255.0 / float64(total-hist[first])
		sum := 0
		for i := first + 1; i < 256; i++ {
			sum += hist[i]
			v := math.Round(float64(sum) * scale)
			if v > 255 {
				v = 255
			}
			lut[i] = uint8(v)
		}
	}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		src := img.Pix[img.PixOffset(b.Min.X, y):]
		dst := out.Pix[out.PixOffset(b.Min.X, y):]
		for x := 0; x < b.Dx(); x++ {
			dst[x] = lut[src[x]]
		}
	}

	return out
}
