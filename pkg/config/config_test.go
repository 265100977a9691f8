package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "data/diagnose", cfg.Diagnose.OutputDir)
	assert.Equal(t, "center_", cfg.Diagnose.Prefix)
	assert.Nil(t, cfg.Diagnose.SliceIndex)
	assert.Nil(t, cfg.Diagnose.CenterStart)
	assert.Nil(t, cfg.Diagnose.CenterEnd)
	assert.Nil(t, cfg.Diagnose.CenterStep)
	assert.Equal(t, "tiff", cfg.Output.Format)
	assert.GreaterOrEqual(t, cfg.Reconstruction.NumCores, 1)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Diagnose.OutputDir, cfg.Diagnose.OutputDir)
}

func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	slice := 7
	start, end, step := 44.0, 46.0, 0.5
	cfg.Diagnose.SliceIndex = &slice
	cfg.Diagnose.CenterStart = &start
	cfg.Diagnose.CenterEnd = &end
	cfg.Diagnose.CenterStep = &step
	cfg.Output.Format = "png"
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	require.NotNil(t, loaded.Diagnose.SliceIndex)
	assert.Equal(t, 7, *loaded.Diagnose.SliceIndex)
	assert.Equal(t, 44.0, *loaded.Diagnose.CenterStart)
	assert.Equal(t, 46.0, *loaded.Diagnose.CenterEnd)
	assert.Equal(t, 0.5, *loaded.Diagnose.CenterStep)
	assert.Equal(t, "png", loaded.Output.Format)
}

func TestLoadConfigPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("diagnose:\n  centerStart: 10\n"), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Diagnose.CenterStart)
	assert.Equal(t, 10.0, *cfg.Diagnose.CenterStart)
	assert.Nil(t, cfg.Diagnose.CenterEnd)
	assert.Equal(t, "shepp-logan", cfg.Reconstruction.Filter)
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("diagnose: [unclosed"), 0644))

	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	zero := 0.0
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"empty output dir", func(c *Config) { c.Diagnose.OutputDir = "" }},
		{"zero step", func(c *Config) { c.Diagnose.CenterStep = &zero }},
		{"no cores", func(c *Config) { c.Reconstruction.NumCores = 0 }},
		{"even median", func(c *Config) { c.Preprocess.MedianSize = 4 }},
		{"bad shape", func(c *Config) { c.Input.Shape = []int{1, 2} }},
		{"bad format", func(c *Config) { c.Output.Format = "bmp" }},
		{"empty angles", func(c *Config) { c.Reconstruction.AngleEnd = c.Reconstruction.AngleStart }},
		{"bad normalize", func(c *Config) { c.Output.Normalize = "normalise" }},
		{"bad filter", func(c *Config) { c.Reconstruction.Filter = "shepp_logan" }},
		{"inverted clip", func(c *Config) {
			lo, hi := 2.0, 1.0
			c.Preprocess.ClipMin, c.Preprocess.ClipMax = &lo, &hi
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadConfigRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output:\n  normalise: slice\n"), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())
}
