// Package portraitcropper turns raw photographs into ID-card portrait crops.
//
// Each photo goes through the same pipeline: the image is decoded and
// auto-oriented, a grayscale, histogram-equalized copy is handed to a face
// detector, and the resulting candidates decide what gets cropped:
//
//   - no candidate: the whole image is used as is
//   - one candidate: it is expanded to a portrait box and cropped
//   - several candidates: all are expanded and the decision package picks
//     one, asking the operator only the first time a photo is seen
//
// Basic usage:
//
//	det, err := detection.New(ctx, detection.DefaultOptions())
//	if err != nil {
//		log.Fatal(err)
//	}
//	store, err := decision.OpenFileStore("decisions.json", nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	chooser := decision.NewConsoleChooser(os.Stdin, os.Stdout)
//	pc := portraitcropper.New(det, decision.New(store, chooser, decision.DefaultOptions()))
//
//	result, err := pc.ProcessFile(ctx, "photos/jane.jpg")
//	if err != nil {
//		log.Fatal(err)
//	}
//	os.WriteFile("jane_portrait.jpg", result.Buffer.Bytes(), 0644)
package portraitcropper

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"strings"

	"github.com/menta2k/portrait-cropper/pkg/cropper"
	"github.com/menta2k/portrait-cropper/pkg/decision"
	"github.com/menta2k/portrait-cropper/pkg/detection"
	"github.com/menta2k/portrait-cropper/pkg/processing"
	"github.com/menta2k/portrait-cropper/pkg/types"
)

// Version of the portrait cropper library
const Version = "1.0.0"

// Outcome records how the crop region of a photo was chosen
type Outcome int

const (
	// Skipped means no face was found and the full image was used
	Skipped Outcome = iota
	// AutoResolved means exactly one face was found
	AutoResolved
	// Resolved means several faces were found and one was picked from the
	// decision store or by the operator
	Resolved
)

func (o Outcome) String() string {
	switch o {
	case Skipped:
		return "skipped"
	case AutoResolved:
		return "auto"
	case Resolved:
		return "resolved"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Result describes one processed photo
type Result struct {
	Key        string
	Width      int
	Height     int
	Candidates []types.Rect // detector output, sorted
	Crops      []types.Rect // expanded candidates, same order
	Chosen     types.Rect
	Index      int // index into Candidates, -1 when Skipped
	Outcome    Outcome
	Buffer     *bytes.Buffer

	// Source is the oriented input image
	Source image.Image
}

// PortraitCropper runs the detection, disambiguation and cropping pipeline
type PortraitCropper struct {
	processor     *processing.Processor
	detector      detection.Detector
	cropper       *cropper.Cropper
	disambiguator *decision.Disambiguator
	logger        *slog.Logger
}

// New creates a PortraitCropper with the default crop configuration
func New(detector detection.Detector, disambiguator *decision.Disambiguator) *PortraitCropper {
	return NewWithConfig(detector, disambiguator, cropper.CropConfig{}, nil)
}

// NewWithConfig creates a PortraitCropper with a custom crop configuration.
// A nil logger uses slog.Default().
func NewWithConfig(detector detection.Detector, disambiguator *decision.Disambiguator, cropConfig cropper.CropConfig, logger *slog.Logger) *PortraitCropper {
	if logger == nil {
		logger = slog.Default()
	}
	return &PortraitCropper{
		processor:     processing.NewProcessor(),
		detector:      detector,
		cropper:       cropper.NewWithConfig(cropConfig),
		disambiguator: disambiguator,
		logger:        logger,
	}
}

// ProcessFile loads a photo from a path or http(s) URL and crops it. Local
// paths are keyed by their absolute path, URLs by themselves.
func (pc *PortraitCropper) ProcessFile(ctx context.Context, source string) (*Result, error) {
	key := source
	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		var err error
		if key, err = decision.Key(source); err != nil {
			return nil, err
		}
	}

	img, err := pc.processor.LoadImageSmart(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("failed to load image: %w", err)
	}

	return pc.ProcessImage(ctx, key, img)
}

// ProcessReader decodes a photo from r and crops it under the given key
func (pc *PortraitCropper) ProcessReader(ctx context.Context, key string, r io.Reader) (*Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	img, err := pc.processor.DecodeImage(data)
	if err != nil {
		return nil, err
	}

	return pc.ProcessImage(ctx, key, img)
}

// ProcessImage crops an already decoded, oriented image
func (pc *PortraitCropper) ProcessImage(ctx context.Context, key string, img image.Image) (*Result, error) {
	b := img.Bounds()
	result := &Result{
		Key:    key,
		Width:  b.Dx(),
		Height: b.Dy(),
		Index:  -1,
		Source: img,
	}

	gray := pc.processor.Normalize(img)

	candidates, err := pc.detector.Detect(ctx, gray)
	if err != nil {
		return nil, fmt.Errorf("face detection failed for %s: %w", key, err)
	}
	detection.Sort(candidates)
	result.Candidates = candidates

	switch len(candidates) {
	case 0:
		result.Outcome = Skipped
		result.Chosen = types.Rect{Width: b.Dx(), Height: b.Dy()}
	case 1:
		result.Outcome = AutoResolved
		result.Index = 0
		result.Crops = pc.cropper.ExpandAll(candidates, b.Dx(), b.Dy())
		result.Chosen = result.Crops[0]
	default:
		result.Outcome = Resolved
		result.Crops = pc.cropper.ExpandAll(candidates, b.Dx(), b.Dy())
		if pc.disambiguator == nil {
			return nil, fmt.Errorf("%s has %d faces: %w", key, len(candidates), decision.ErrInvalidChoice)
		}
		chosen, idx, err := pc.disambiguator.Resolve(ctx, key, img, result.Crops)
		if err != nil {
			return nil, err
		}
		result.Chosen = chosen
		result.Index = idx
	}

	pc.logger.Debug("crop region selected",
		"key", key,
		"outcome", result.Outcome.String(),
		"candidates", len(candidates),
		"index", result.Index,
		"rect", result.Chosen.String())

	buf, err := pc.cropper.CropAndEncode(img, result.Chosen)
	if err != nil {
		return nil, fmt.Errorf("failed to encode crop for %s: %w", key, err)
	}
	result.Buffer = buf

	return result, nil
}

// DebugOverlay draws the candidates and expanded crops of r on its source
func (pc *PortraitCropper) DebugOverlay(r *Result) image.Image {
	return pc.processor.CreateDebugOverlay(r.Source, r.Candidates, r.Crops)
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
