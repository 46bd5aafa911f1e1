package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/google/uuid"

	portraitcropper "github.com/menta2k/portrait-cropper"
	"github.com/menta2k/portrait-cropper/internal/config"
	"github.com/menta2k/portrait-cropper/internal/utils"
	"github.com/menta2k/portrait-cropper/pkg/decision"
	"github.com/menta2k/portrait-cropper/pkg/detection"
	"github.com/menta2k/portrait-cropper/pkg/processing"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", filepath.Base(os.Args[0]), err)
		os.Exit(1)
	}
}

func run() error {
	var configPath, writeConfig string
	var outDir, prefix, suffix string
	var backend, cascade, serverURL, model string
	var storeKind, storePath, previewDir string
	var quality, width, height, workers int
	var overwrite, debug bool
	var dbgext string
	var logLevel, logFormat string

	flag.StringVar(&configPath, "config", "", "config file (default "+config.GetConfigPath()+" if present)")
	flag.StringVar(&writeConfig, "write-config", "", "write the effective configuration to this path and exit")

	flag.StringVar(&outDir, "out", "", "output directory")
	flag.StringVar(&prefix, "prefix", "", "output filename prefix")
	flag.StringVar(&suffix, "suffix", "", "output filename suffix")
	flag.BoolVar(&overwrite, "overwrite", false, "re-crop photos whose output already exists")

	flag.StringVar(&backend, "backend", "", "face detector: pigo|haar|ollama|llamacpp|rekognition")
	flag.StringVar(&cascade, "cascade", "", "cascade file for pigo/haar")
	flag.StringVar(&serverURL, "url", "", "server URL for ollama/llamacpp")
	flag.StringVar(&model, "model", "", "vision model name for ollama/llamacpp")

	flag.StringVar(&storeKind, "store", "", "decision store: json|sqlite|memory")
	flag.StringVar(&storePath, "decisions", "", "decision store path")
	flag.StringVar(&previewDir, "previews", "", "directory for candidate previews")

	flag.IntVar(&quality, "quality", 0, "JPEG quality for portraits (1-100)")
	flag.IntVar(&width, "width", 0, "resize portraits to this width (0 keeps crop size)")
	flag.IntVar(&height, "height", 0, "resize portraits to this height (0 keeps crop size)")
	flag.IntVar(&workers, "workers", 0, "photos processed in parallel")

	flag.BoolVar(&debug, "debug", false, "write debug overlays next to the portraits")
	flag.StringVar(&dbgext, "dbgext", "png", "debug overlay format: png|jpg|webp")

	flag.StringVar(&logLevel, "log-level", "", "log level: debug|info|warn|error")
	flag.StringVar(&logFormat, "log-format", "", "log format: text|json")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] photo|dir|URL ...\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	// flags override the file and the environment only when given
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "out":
			cfg.Output.Dir = outDir
		case "prefix":
			cfg.Output.Prefix = prefix
		case "suffix":
			cfg.Output.Suffix = suffix
		case "overwrite":
			cfg.Output.Overwrite = overwrite
		case "backend":
			cfg.Detector.Backend = backend
		case "cascade":
			cfg.Detector.CascadePath = cascade
		case "url":
			cfg.Detector.ServerURL = serverURL
		case "model":
			cfg.Detector.Model = model
		case "store":
			cfg.Decisions.Store = storeKind
		case "decisions":
			cfg.Decisions.Path = storePath
		case "previews":
			cfg.Decisions.PreviewDir = previewDir
		case "quality":
			cfg.Crop.Quality = quality
		case "width":
			cfg.Crop.OutputWidth = width
		case "height":
			cfg.Crop.OutputHeight = height
		case "workers":
			cfg.Workers = workers
		case "log-level":
			cfg.Log.Level = logLevel
		case "log-format":
			cfg.Log.Format = logFormat
		}
	})

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if writeConfig != "" {
		return cfg.SaveToFile(writeConfig)
	}

	if flag.NArg() == 0 {
		flag.Usage()
		return fmt.Errorf("no input photos given")
	}

	logger := config.NewLogger(cfg.Log.Level, cfg.Log.Format).With("run_id", uuid.NewString())
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	detector, err := detection.New(ctx, cfg.DetectorOptions())
	if err != nil {
		return fmt.Errorf("failed to create %s detector: %w", cfg.Detector.Backend, err)
	}
	if c, ok := detector.(io.Closer); ok {
		defer c.Close()
	}

	store, err := cfg.OpenStore(ctx, logger)
	if err != nil {
		return fmt.Errorf("failed to open decision store: %w", err)
	}
	defer store.Close()

	chooser := decision.NewConsoleChooser(os.Stdin, os.Stdout)
	pc := portraitcropper.NewWithConfig(
		detector,
		decision.New(store, chooser, cfg.DecisionOptions(logger)),
		cfg.CropConfig(),
		logger,
	)

	inputs, err := utils.CollectInputs(flag.Args(), cfg.Output.Dir, cfg.Decisions.PreviewDir)
	if err != nil {
		return err
	}

	logger.Info("starting batch",
		"version", portraitcropper.GetVersion(),
		"photos", len(inputs),
		"backend", cfg.Detector.Backend,
		"store", cfg.Decisions.Store,
		"workers", cfg.Workers)

	b := &batch{
		pc:        pc,
		processor: processing.NewProcessor(),
		logger:    logger,
		outDir:    cfg.Output.Dir,
		prefix:    cfg.Output.Prefix,
		suffix:    cfg.Output.Suffix,
		overwrite: cfg.Output.Overwrite,
		workers:   cfg.Workers,
		debug:     debug,
		debugExt:  dbgext,
	}
	err = b.run(ctx, inputs)

	logger.Info("batch finished",
		"written", b.written.Load(),
		"skipped", b.skipped.Load(),
		"failed", b.failed.Load())

	if err != nil {
		return err
	}
	if n := b.failed.Load(); n > 0 {
		return fmt.Errorf("%d of %d photos failed", n, len(inputs))
	}
	return nil
}

// loadConfig reads the explicit config file, or the default one when it
// exists, and applies environment overrides
func loadConfig(path string) (*config.Config, error) {
	cfg := config.Default()
	if path == "" && utils.FileExists(config.GetConfigPath()) {
		path = config.GetConfigPath()
	}
	if path != "" {
		var err error
		if cfg, err = config.LoadFromFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}
