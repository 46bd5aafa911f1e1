package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"

	"github.com/menta2k/portrait-cropper/pkg/cropper"
	"github.com/menta2k/portrait-cropper/pkg/decision"
	"github.com/menta2k/portrait-cropper/pkg/detection"
	"github.com/menta2k/portrait-cropper/pkg/types"
)

// EnvPrefix prefixes every environment override, e.g. PORTRAIT_DETECTOR_BACKEND
const EnvPrefix = "PORTRAIT"

// Config holds the application configuration
type Config struct {
	Detector  DetectorConfig  `json:"detector"`
	Crop      CropConfig      `json:"crop"`
	Decisions DecisionsConfig `json:"decisions"`
	Output    OutputConfig    `json:"output"`
	Log       LogConfig       `json:"log"`
	Workers   int             `json:"workers"`
}

// DetectorConfig selects and tunes the face detector
type DetectorConfig struct {
	Backend       string  `json:"backend"`
	CascadePath   string  `json:"cascade_path" split_words:"true"`
	ServerURL     string  `json:"server_url" split_words:"true"`
	Model         string  `json:"model"`
	Region        string  `json:"region"`
	MinSize       int     `json:"min_size" split_words:"true"`
	MinConfidence float64 `json:"min_confidence" split_words:"true"`
}

// CropConfig holds the portrait geometry and encoding settings
type CropConfig struct {
	RatioHeight  int `json:"ratio_height" split_words:"true"`
	RatioWidth   int `json:"ratio_width" split_words:"true"`
	Quality      int `json:"quality"`
	OutputWidth  int `json:"output_width" split_words:"true"`
	OutputHeight int `json:"output_height" split_words:"true"`
}

// DecisionsConfig holds configuration for the decision store
type DecisionsConfig struct {
	Store         string `json:"store"` // json, sqlite or memory
	Path          string `json:"path"`
	PreviewDir    string `json:"preview_dir" split_words:"true"`
	PreviewFormat string `json:"preview_format" split_words:"true"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	Dir       string `json:"dir"`
	Prefix    string `json:"prefix"`
	Suffix    string `json:"suffix"`
	Overwrite bool   `json:"overwrite"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"` // text or json
}

// Default returns a configuration with default values
func Default() *Config {
	det := detection.DefaultOptions()
	return &Config{
		Detector: DetectorConfig{
			Backend:       det.Backend,
			CascadePath:   det.CascadePath,
			Model:         det.Vision.Model,
			Region:        det.Rekognition.Region,
			MinSize:       det.Pigo.MinSize,
			MinConfidence: det.Vision.MinConfidence,
		},
		Crop: CropConfig{
			RatioHeight: types.IDPhoto.Height,
			RatioWidth:  types.IDPhoto.Width,
			Quality:     90,
		},
		Decisions: DecisionsConfig{
			Store:         "json",
			Path:          "decisions.json",
			PreviewDir:    "decisions",
			PreviewFormat: "jpg",
		},
		Output: OutputConfig{
			Dir: "./output",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Workers: 1,
	}
}

// LoadFromFile loads configuration from a JSON file on top of the defaults
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// ApplyEnv overrides fields from PORTRAIT_* environment variables named
// after the section and field, e.g. PORTRAIT_CROP_OUTPUT_WIDTH. Unset
// variables leave the current value alone.
func (c *Config) ApplyEnv() error {
	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return fmt.Errorf("failed to apply environment: %w", err)
	}
	return nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch strings.ToLower(c.Detector.Backend) {
	case detection.BackendPigo, detection.BackendHaar, detection.BackendOllama,
		detection.BackendLlamaCpp, detection.BackendRekognition:
	default:
		return fmt.Errorf("detector.backend %q is not supported", c.Detector.Backend)
	}

	if c.Detector.MinSize < 0 {
		return fmt.Errorf("detector.min_size must not be negative")
	}

	if c.Detector.MinConfidence < 0 || c.Detector.MinConfidence > 1 {
		return fmt.Errorf("detector.min_confidence must be between 0 and 1")
	}

	if c.Crop.RatioHeight < 1 || c.Crop.RatioWidth < 1 {
		return fmt.Errorf("crop.ratio_height and crop.ratio_width must be positive")
	}

	if c.Crop.Quality < 1 || c.Crop.Quality > 100 {
		return fmt.Errorf("crop.quality must be between 1 and 100")
	}

	if c.Crop.OutputWidth < 0 || c.Crop.OutputHeight < 0 {
		return fmt.Errorf("crop.output_width and crop.output_height must not be negative")
	}

	switch c.Decisions.Store {
	case "json", "sqlite":
		if c.Decisions.Path == "" {
			return fmt.Errorf("decisions.path cannot be empty")
		}
	case "memory":
	default:
		return fmt.Errorf("decisions.store %q is not supported", c.Decisions.Store)
	}

	switch c.Decisions.PreviewFormat {
	case "jpg", "jpeg", "png", "webp":
	default:
		return fmt.Errorf("decisions.preview_format %q is not supported", c.Decisions.PreviewFormat)
	}

	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}

	return nil
}

// DetectorOptions maps the detector section onto detection.Options
func (c *Config) DetectorOptions() detection.Options {
	opts := detection.DefaultOptions()
	opts.Backend = c.Detector.Backend
	opts.CascadePath = c.Detector.CascadePath
	opts.ServerURL = c.Detector.ServerURL
	opts.Pigo.MinSize = c.Detector.MinSize
	opts.Haar.MinSize = c.Detector.MinSize
	opts.Vision.MinConfidence = c.Detector.MinConfidence
	opts.Rekognition.MinConfidence = c.Detector.MinConfidence * 100
	if c.Detector.Model != "" {
		opts.Vision.Model = c.Detector.Model
	}
	if c.Detector.Region != "" {
		opts.Rekognition.Region = c.Detector.Region
	}
	return opts
}

// CropConfig maps the crop section onto cropper.CropConfig
func (c *Config) CropConfig() cropper.CropConfig {
	return cropper.CropConfig{
		Ratio:        types.AspectRatio{Height: c.Crop.RatioHeight, Width: c.Crop.RatioWidth},
		Quality:      c.Crop.Quality,
		OutputWidth:  c.Crop.OutputWidth,
		OutputHeight: c.Crop.OutputHeight,
	}
}

// DecisionOptions maps the decisions section onto decision.Options
func (c *Config) DecisionOptions(logger *slog.Logger) decision.Options {
	return decision.Options{
		PreviewDir:    c.Decisions.PreviewDir,
		PreviewFormat: c.Decisions.PreviewFormat,
		Logger:        logger,
	}
}

// OpenStore opens the configured decision store
func (c *Config) OpenStore(ctx context.Context, logger *slog.Logger) (decision.Store, error) {
	switch c.Decisions.Store {
	case "sqlite":
		s, err := decision.OpenSQLiteStore(ctx, c.Decisions.Path, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "memory":
		return decision.NewMemoryStore(), nil
	default:
		s, err := decision.OpenFileStore(c.Decisions.Path, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "portrait-cropper", "config.json")
}
