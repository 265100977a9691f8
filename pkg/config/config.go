// Package config provides configuration loading and management for centersweep.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Input parameters
	Input struct {
		// Path is an image stack directory or a raw float32 file
		Path string `yaml:"path"`

		// Shape is the (projections, slices, pixels) shape of a raw input file
		Shape []int `yaml:"shape,omitempty"`
	} `yaml:"input"`

	// Diagnose holds the center sweep parameters. Nil values are
	// resolved against the loaded dataset.
	Diagnose struct {
		// SliceIndex is the slice to reconstruct, default is the middle slice
		SliceIndex *int `yaml:"sliceIndex,omitempty"`

		// CenterStart is the first candidate center, default is half the detector width minus 20
		CenterStart *float64 `yaml:"centerStart,omitempty"`

		// CenterEnd is the exclusive end of the sweep, default is half the detector width plus 20
		CenterEnd *float64 `yaml:"centerEnd,omitempty"`

		// CenterStep is the sweep increment, default 1
		CenterStep *float64 `yaml:"centerStep,omitempty"`

		// OutputDir is replaced on every run
		OutputDir string `yaml:"outputDir"`

		// Prefix is prepended to every output filename
		Prefix string `yaml:"prefix"`
	} `yaml:"diagnose"`

	// Reconstruction parameters
	Reconstruction struct {
		// Filter is the ramp filter window: ramlak, shepp-logan, cosine, hamming or hann
		Filter string `yaml:"filter"`

		// NumCores specifies how many CPU cores to use for parallel processing
		NumCores int `yaml:"numCores"`

		// CircularMask zeroes pixels outside the reconstruction circle
		CircularMask bool `yaml:"circularMask"`

		// AngleStart and AngleEnd bound the evenly spaced projection angles in degrees
		AngleStart float64 `yaml:"angleStart"`
		AngleEnd   float64 `yaml:"angleEnd"`
	} `yaml:"reconstruction"`

	// Preprocess parameters applied to the projections before the sweep
	Preprocess struct {
		RemoveNaN   bool    `yaml:"removeNaN"`
		RemoveNeg   bool    `yaml:"removeNeg"`
		OutlierDiff float64 `yaml:"outlierDiff"`
		MedianSize  int     `yaml:"medianSize"`
		MinusLog    bool    `yaml:"minusLog"`

		// ClipMin and ClipMax clip the projections after negative removal.
		// Unset or NaN leaves that side unclipped.
		ClipMin *float64 `yaml:"clipMin,omitempty"`
		ClipMax *float64 `yaml:"clipMax,omitempty"`
	} `yaml:"preprocess"`

	// Output parameters
	Output struct {
		// Format is the image format: tiff, png or jpeg
		Format string `yaml:"format"`

		// Normalize is global or slice
		Normalize string `yaml:"normalize"`

		// ScoreMetric ranks centers: entropy, gradient or none
		ScoreMetric string `yaml:"scoreMetric"`

		// WriteManifest writes centers.yaml next to the images
		WriteManifest bool `yaml:"writeManifest"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Diagnose.OutputDir = "data/diagnose"
	cfg.Diagnose.Prefix = "center_"

	cfg.Reconstruction.Filter = "shepp-logan"
	cfg.Reconstruction.NumCores = runtime.NumCPU()
	cfg.Reconstruction.CircularMask = true
	cfg.Reconstruction.AngleStart = 0
	cfg.Reconstruction.AngleEnd = 180

	cfg.Output.Format = "tiff"
	cfg.Output.Normalize = "global"
	cfg.Output.ScoreMetric = "entropy"
	cfg.Output.WriteManifest = false
	cfg.Output.Verbose = false

	return cfg
}

// Validate checks values that cannot be resolved later against the dataset
func (c *Config) Validate() error {
	if c.Diagnose.OutputDir == "" {
		return fmt.Errorf("diagnose.outputDir must not be empty")
	}
	if c.Diagnose.CenterStep != nil && *c.Diagnose.CenterStep == 0 {
		return fmt.Errorf("diagnose.centerStep must not be zero")
	}
	if c.Reconstruction.NumCores < 1 {
		return fmt.Errorf("reconstruction.numCores must be at least 1, got %d", c.Reconstruction.NumCores)
	}
	if c.Reconstruction.AngleEnd == c.Reconstruction.AngleStart {
		return fmt.Errorf("reconstruction angle range is empty")
	}
	if c.Preprocess.MedianSize < 0 || (c.Preprocess.MedianSize > 0 && c.Preprocess.MedianSize%2 == 0) {
		return fmt.Errorf("preprocess.medianSize must be an odd positive number, got %d", c.Preprocess.MedianSize)
	}
	if lo, hi := c.Preprocess.ClipMin, c.Preprocess.ClipMax; lo != nil && hi != nil && *lo > *hi {
		return fmt.Errorf("preprocess.clipMin %g exceeds clipMax %g", *lo, *hi)
	}
	switch c.Reconstruction.Filter {
	case "ramlak", "shepp-logan", "cosine", "hamming", "hann":
	default:
		return fmt.Errorf("unknown reconstruction.filter %q", c.Reconstruction.Filter)
	}
	if len(c.Input.Shape) != 0 && len(c.Input.Shape) != 3 {
		return fmt.Errorf("input.shape needs 3 dimensions, got %d", len(c.Input.Shape))
	}
	switch c.Output.Format {
	case "tiff", "png", "jpeg":
	default:
		return fmt.Errorf("unsupported output.format %q", c.Output.Format)
	}
	switch c.Output.Normalize {
	case "global", "slice":
	default:
		return fmt.Errorf("unsupported output.normalize %q", c.Output.Normalize)
	}
	return nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
