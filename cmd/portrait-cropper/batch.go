package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	portraitcropper "github.com/menta2k/portrait-cropper"
	"github.com/menta2k/portrait-cropper/internal/utils"
	"github.com/menta2k/portrait-cropper/pkg/processing"
)

var errDuplicateOutput = errors.New("duplicate output name")

// batch crops a list of photos into an output directory
type batch struct {
	pc        *portraitcropper.PortraitCropper
	processor *processing.Processor
	logger    *slog.Logger

	outDir    string
	prefix    string
	suffix    string
	overwrite bool
	workers   int

	debug    bool
	debugExt string

	written atomic.Int32
	skipped atomic.Int32
	failed  atomic.Int32
}

// run processes every input. A failing photo is logged and counted but does
// not stop the others; only cancellation of ctx aborts the batch. Inputs that
// would write the same output file as an earlier input are failed without
// being processed.
func (b *batch) run(ctx context.Context, inputs []utils.Input) error {
	if err := utils.EnsureDir(b.outDir); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(b.workers, 1))

	claimed := make(map[string]string, len(inputs))
	for _, in := range inputs {
		if ctx.Err() != nil {
			break
		}
		out := utils.OutputPath(in, b.outDir, b.prefix, b.suffix)
		if prev, ok := claimed[out]; ok {
			b.failed.Add(1)
			b.logger.Error("photo failed", "input", in.Source,
				"error", fmt.Errorf("%w: %s already claimed by %s", errDuplicateOutput, out, prev))
			continue
		}
		claimed[out] = in.Source

		g.Go(func() error {
			if err := b.processOne(ctx, in.Source, out); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				b.failed.Add(1)
				b.logger.Error("photo failed", "input", in.Source, "error", err)
			}
			return nil
		})
	}

	return g.Wait()
}

func (b *batch) processOne(ctx context.Context, input, out string) error {
	if !b.overwrite && utils.FileExists(out) {
		b.skipped.Add(1)
		b.logger.Debug("output exists, skipping", "input", input, "output", out)
		return nil
	}

	result, err := b.pc.ProcessFile(ctx, input)
	if err != nil {
		return err
	}

	if err := utils.EnsureDir(filepath.Dir(out)); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(out), err)
	}
	if err := os.WriteFile(out, result.Buffer.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	b.written.Add(1)

	b.logger.Info("wrote portrait",
		"input", input,
		"output", out,
		"outcome", result.Outcome.String(),
		"faces", len(result.Candidates),
		"rect", result.Chosen.String())

	if b.debug {
		ext := strings.ToLower(b.debugExt)
		dbgPath := strings.TrimSuffix(out, filepath.Ext(out)) + "_debug." + ext
		overlay := b.pc.DebugOverlay(result)
		if err := b.processor.SaveImage(overlay, dbgPath, ext, 92, false); err != nil {
			b.logger.Warn("debug overlay save failed", "path", dbgPath, "error", err)
		} else {
			b.logger.Debug("wrote debug overlay", "path", dbgPath)
		}
	}

	return nil
}
