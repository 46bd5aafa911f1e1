package decision

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/disintegration/imaging"

	"github.com/menta2k/portrait-cropper/pkg/processing"
	"github.com/menta2k/portrait-cropper/pkg/types"
)

// Options configures a Disambiguator
type Options struct {
	PreviewDir     string
	PreviewFormat  string // jpg, png or webp
	PreviewQuality int
	Logger         *slog.Logger
}

// DefaultOptions returns options writing JPEG previews to ./decisions
func DefaultOptions() Options {
	return Options{
		PreviewDir:     "decisions",
		PreviewFormat:  "jpg",
		PreviewQuality: 90,
	}
}

// Disambiguator picks one crop among several candidates, consulting the
// store first and the operator only for photos without a decision
type Disambiguator struct {
	store     Store
	chooser   Chooser
	processor *processing.Processor
	opts      Options
	logger    *slog.Logger

	// serializes the operator prompt and the shared preview directory
	manual sync.Mutex
}

// New creates a Disambiguator. chooser may be nil, in which case photos
// without a stored decision fail with ErrInvalidChoice.
func New(store Store, chooser Chooser, opts Options) *Disambiguator {
	def := DefaultOptions()
	if opts.PreviewDir == "" {
		opts.PreviewDir = def.PreviewDir
	}
	if opts.PreviewFormat == "" {
		opts.PreviewFormat = def.PreviewFormat
	}
	if opts.PreviewQuality <= 0 {
		opts.PreviewQuality = def.PreviewQuality
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Disambiguator{
		store:     store,
		chooser:   chooser,
		processor: processing.NewProcessor(),
		opts:      opts,
		logger:    logger,
	}
}

// Resolve returns the chosen crop and its index. A single candidate is
// returned as is without touching the store. img is the oriented source
// the candidates refer to and is only read to render previews.
func (d *Disambiguator) Resolve(ctx context.Context, key string, img image.Image, candidates []types.Rect) (types.Rect, int, error) {
	switch len(candidates) {
	case 0:
		return types.Rect{}, 0, ErrNoCandidates
	case 1:
		return candidates[0], 0, nil
	}

	idx, ok, err := d.lookup(ctx, key, len(candidates))
	if err != nil {
		return types.Rect{}, 0, err
	}
	if ok {
		return candidates[idx], idx, nil
	}

	d.manual.Lock()
	defer d.manual.Unlock()

	// another worker may have asked about the same key meanwhile
	idx, ok, err = d.lookup(ctx, key, len(candidates))
	if err != nil {
		return types.Rect{}, 0, err
	}
	if ok {
		return candidates[idx], idx, nil
	}

	idx, err = d.ask(ctx, key, img, candidates)
	if err != nil {
		return types.Rect{}, 0, err
	}

	if err := d.store.Save(ctx, key, idx); err != nil {
		return types.Rect{}, 0, fmt.Errorf("failed to save decision for %s: %w", key, err)
	}

	d.logger.Info("decision recorded", "key", key, "index", idx, "candidates", len(candidates))
	return candidates[idx], idx, nil
}

// lookup returns a stored index that is valid for n candidates
func (d *Disambiguator) lookup(ctx context.Context, key string, n int) (int, bool, error) {
	idx, ok, err := d.store.Lookup(ctx, key)
	if err != nil {
		return 0, false, fmt.Errorf("failed to look up decision for %s: %w", key, err)
	}
	if !ok {
		return 0, false, nil
	}
	if idx < 0 || idx >= n {
		return 0, false, fmt.Errorf("%w: %s has index %d but %d candidates", ErrStaleDecision, key, idx, n)
	}
	d.logger.Debug("using stored decision", "key", key, "index", idx)
	return idx, true, nil
}

func (d *Disambiguator) ask(ctx context.Context, key string, img image.Image, candidates []types.Rect) (int, error) {
	if d.chooser == nil {
		return 0, fmt.Errorf("%w: no operator available for %s", ErrInvalidChoice, key)
	}

	previews, err := d.writePreviews(img, candidates)
	defer d.removePreviews(previews)
	if err != nil {
		return 0, err
	}

	idx, err := d.chooser.Choose(ctx, key, previews)
	if err != nil {
		if errors.Is(err, ErrInvalidChoice) {
			return 0, err
		}
		return 0, fmt.Errorf("failed to get choice for %s: %w", key, err)
	}
	if idx < 0 || idx >= len(candidates) {
		return 0, fmt.Errorf("%w: %d not in 0..%d", ErrInvalidChoice, idx, len(candidates)-1)
	}
	return idx, nil
}

// writePreviews renders candidate i to <PreviewDir>/<i>.<ext>. The paths
// written so far are returned even on error.
func (d *Disambiguator) writePreviews(img image.Image, candidates []types.Rect) ([]string, error) {
	if err := os.MkdirAll(d.opts.PreviewDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create preview directory: %w", err)
	}

	origin := img.Bounds().Min
	paths := make([]string, 0, len(candidates))
	for i, c := range candidates {
		path := filepath.Join(d.opts.PreviewDir, strconv.Itoa(i)+"."+previewExt(d.opts.PreviewFormat))
		preview := imaging.Crop(img, c.Image().Add(origin))
		if err := d.processor.SaveImage(preview, path, d.opts.PreviewFormat, d.opts.PreviewQuality, false); err != nil {
			return paths, fmt.Errorf("failed to write preview %d: %w", i, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (d *Disambiguator) removePreviews(paths []string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			d.logger.Warn("failed to remove preview", "path", p, "error", err)
		}
	}
}

func previewExt(format string) string {
	switch format {
	case "jpeg", "":
		return "jpg"
	}
	return format
}
