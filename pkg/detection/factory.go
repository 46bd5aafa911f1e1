package detection

import (
	"context"
	"fmt"
	"strings"

	"github.com/menta2k/portrait-cropper/pkg/client"
	"github.com/menta2k/portrait-cropper/pkg/llamacpp"
	"github.com/menta2k/portrait-cropper/pkg/ollama"
)

// Backend names accepted by New
const (
	BackendPigo        = "pigo"
	BackendHaar        = "haar"
	BackendOllama      = "ollama"
	BackendLlamaCpp    = "llamacpp"
	BackendRekognition = "rekognition"
)

// Options selects and configures a detector backend
type Options struct {
	Backend string
	// CascadePath is the pigo facefinder file or the OpenCV Haar XML. The
	// pigo cascade is not bundled; fetch it from PigoCascadeURL.
	CascadePath string
	ServerURL   string

	Pigo        PigoParams
	Haar        HaarParams
	Vision      VisionParams
	Rekognition RekognitionParams
}

// DefaultOptions returns options for the pigo backend, reading the cascade
// from cascade/facefinder relative to the working directory.
func DefaultOptions() Options {
	return Options{
		Backend:     BackendPigo,
		CascadePath: "cascade/facefinder",
		Pigo:        DefaultPigoParams(),
		Haar:        DefaultHaarParams(),
		Vision:      DefaultVisionParams(),
		Rekognition: DefaultRekognitionParams(),
	}
}

// New builds the detector named by opts.Backend. The caller owns the
// returned detector and should call Close on it if it implements io.Closer.
func New(ctx context.Context, opts Options) (Detector, error) {
	switch strings.ToLower(opts.Backend) {
	case BackendPigo, "":
		d, err := LoadPigoDetector(opts.CascadePath, opts.Pigo)
		if err != nil {
			return nil, err
		}
		return d, nil
	case BackendHaar:
		d, err := NewHaarDetector(opts.CascadePath, opts.Haar)
		if err != nil {
			return nil, err
		}
		return d, nil
	case BackendOllama, BackendLlamaCpp:
		vc, err := newVisionClient(opts.Backend, opts.ServerURL)
		if err != nil {
			return nil, err
		}
		return NewVisionDetector(vc, opts.Vision), nil
	case BackendRekognition:
		d, err := NewRekognitionDetector(ctx, opts.Rekognition)
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}

func newVisionClient(backend, serverURL string) (client.VisionClient, error) {
	if strings.EqualFold(backend, BackendLlamaCpp) {
		c, err := llamacpp.NewClient(serverURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create llama.cpp client: %w", err)
		}
		return c, nil
	}

	if serverURL == "" {
		serverURL = "http://localhost:11434"
	}
	c, err := ollama.NewClient(serverURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create Ollama client: %w", err)
	}
	return c, nil
}
