package processing

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// maxDownloadSize caps photos fetched over http(s)
const maxDownloadSize = 64 << 20

// Processor loads photos, prepares detector input and writes image files
type Processor struct {
	httpClient *http.Client
}

// NewProcessor creates a new image processor
func NewProcessor() *Processor {
	return &Processor{
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// LoadImageFromURL downloads a photo over http(s)
func (p *Processor) LoadImageFromURL(ctx context.Context, imageURL string) (image.Image, error) {
	u, err := url.Parse(imageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "portrait-cropper/1.0")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", imageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download %s: %s", imageURL, resp.Status)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("%s is not an image (Content-Type %q)", imageURL, ct)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", imageURL, err)
	}
	if len(data) > maxDownloadSize {
		return nil, fmt.Errorf("%s is larger than %d bytes", imageURL, maxDownloadSize)
	}

	return p.DecodeImage(data)
}

// LoadImage opens a photo from disk. EXIF orientation is applied so every
// later coordinate refers to the upright picture.
func (p *Processor) LoadImage(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err == nil {
		return img, nil
	}

	// retry through the WebP fallback decoder
	data, rerr := os.ReadFile(path)
	if rerr != nil {
		return nil, rerr
	}
	if img, derr := p.DecodeImage(data); derr == nil {
		return img, nil
	}
	return nil, fmt.Errorf("%s: %w", path, err)
}

// LoadImageSmart loads a photo from a file path or an http(s) URL
func (p *Processor) LoadImageSmart(ctx context.Context, source string) (image.Image, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return p.LoadImageFromURL(ctx, source)
	}
	return p.LoadImage(source)
}

// DecodeImage decodes image bytes with orientation correction and WebP support
func (p *Processor) DecodeImage(data []byte) (image.Image, error) {
	if img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true)); err == nil {
		return img, nil
	}
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	return nil, fmt.Errorf("image: unknown or unsupported format")
}

// PrepareImageForModel encodes an image as base64 for vision model requests
func (p *Processor) PrepareImageForModel(img image.Image, format string, maxDim int, quality int) (string, error) {
	data, err := p.EncodeForUpload(img, format, maxDim, quality)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// EncodeForUpload encodes an image for a remote detector, shrinking it so
// its long side is at most maxDim (0 keeps the original size). Remote
// detectors answer in normalized coordinates so the shrink needs no
// correction.
func (p *Processor) EncodeForUpload(img image.Image, format string, maxDim int, quality int) ([]byte, error) {
	if maxDim > 0 {
		img = imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
	}

	var buf bytes.Buffer
	var err error
	if strings.EqualFold(format, "png") {
		err = imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression))
	} else {
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", format, err)
	}
	return buf.Bytes(), nil
}

// SaveImage writes an image as jpg, png or webp
func (p *Processor) SaveImage(img image.Image, path, format string, quality int, lossless bool) error {
	switch strings.ToLower(format) {
	case "webp":
		var buf bytes.Buffer
		if err := webp.Encode(&buf, img, &webp.Options{Lossless: lossless, Quality: float32(quality)}); err != nil {
			return fmt.Errorf("failed to encode webp: %w", err)
		}
		return os.WriteFile(path, buf.Bytes(), 0644)
	case "png":
		return imaging.Save(img, path)
	default:
		return imaging.Save(img, path, imaging.JPEGQuality(quality))
	}
}
