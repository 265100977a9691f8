// Package diagnose reconstructs one slice of a projection dataset under a
// sweep of rotation centers and writes one image per candidate, so an
// operator can pick the center that gives the sharpest reconstruction.
package diagnose

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"centersweep/internal/logger"
	"centersweep/internal/models"
	"centersweep/pkg/reconstruction"
)

// DefaultOutputDir is replaced on every run
const DefaultOutputDir = "data/diagnose"

// ManifestName is the file written next to the images when requested
const ManifestName = "centers.yaml"

// ImageWriter writes every image of a volume into dir and returns the file
// names in depth order.
type ImageWriter interface {
	WriteSequence(vol *models.Volume, dir string) ([]string, error)
}

// Options configures a Driver
type Options struct {
	// OutputDir receives the images. Defaults to DefaultOutputDir.
	OutputDir string

	// Metric ranks the candidates. The zero value disables scoring.
	Metric reconstruction.Metric

	// WriteManifest adds ManifestName to the output directory
	WriteManifest bool

	// Stdout receives the index to center listing. Defaults to os.Stdout.
	Stdout io.Writer

	Logger *zap.SugaredLogger
}

// Entry describes one output image
type Entry struct {
	Index  int     `yaml:"index"`
	File   string  `yaml:"file"`
	Center float64 `yaml:"center"`
	Score  float64 `yaml:"score,omitempty"`
}

// Result summarizes a completed sweep
type Result struct {
	OutputDir  string  `yaml:"outputDir"`
	SliceIndex int     `yaml:"sliceIndex"`
	Metric     string  `yaml:"metric,omitempty"`
	Entries    []Entry `yaml:"entries"`

	// Best is the index into Entries of the best scoring center, or -1
	// when scoring is disabled
	Best int `yaml:"best"`
}

// BestCenter returns the best scoring center, if any
func (r *Result) BestCenter() (float64, bool) {
	if r.Best < 0 || r.Best >= len(r.Entries) {
		return 0, false
	}
	return r.Entries[r.Best].Center, true
}

// Driver runs center sweeps
type Driver struct {
	engine reconstruction.Engine
	writer ImageWriter
	opts   Options
	lggr   *zap.SugaredLogger
}

// NewDriver creates a driver reconstructing with engine and writing with writer
func NewDriver(engine reconstruction.Engine, writer ImageWriter, opts Options) *Driver {
	if opts.OutputDir == "" {
		opts.OutputDir = DefaultOutputDir
	}
	if opts.Metric == "" {
		opts.Metric = reconstruction.MetricNone
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	return &Driver{
		engine: engine,
		writer: writer,
		opts:   opts,
		lggr:   logger.OrNop(opts.Logger).Named("diagnose"),
	}
}

// Run reconstructs the selected slice of proj once per candidate center,
// replaces the output directory with the resulting images, and prints one
// "Center for <file>: <center>" line per candidate.
func (d *Driver) Run(ctx context.Context, proj *models.Projections, params Params) (*Result, error) {
	if proj == nil {
		return nil, ErrInvalidVolume
	}
	if err := proj.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidVolume, err)
	}

	resolved, err := params.Resolve(proj)
	if err != nil {
		return nil, err
	}
	centers, err := resolved.Centers()
	if err != nil {
		return nil, err
	}

	d.lggr.Infow("Starting center sweep",
		"slice", resolved.SliceIndex,
		"start", resolved.CenterStart,
		"end", resolved.CenterEnd,
		"step", resolved.CenterStep,
		"candidates", len(centers))

	stacked, err := StackSlice(proj, resolved.SliceIndex, len(centers))
	if err != nil {
		return nil, err
	}

	vol, err := d.engine.Reconstruct(ctx, stacked, centers)
	if err != nil {
		return nil, fmt.Errorf("reconstruction engine: %w", err)
	}
	if vol == nil || vol.Depth != len(centers) || len(vol.Data) != vol.Width*vol.Height*vol.Depth {
		depth := 0
		if vol != nil {
			depth = vol.Depth
		}
		return nil, fmt.Errorf("%w: engine returned %d images for %d centers", ErrShapeMismatch, depth, len(centers))
	}

	result := &Result{
		OutputDir:  d.opts.OutputDir,
		SliceIndex: resolved.SliceIndex,
		Entries:    make([]Entry, len(centers)),
		Best:       -1,
	}
	if d.opts.Metric != reconstruction.MetricNone {
		result.Metric = string(d.opts.Metric)
	}

	scores := make([]float64, len(centers))
	for i, c := range centers {
		result.Entries[i] = Entry{Index: i, Center: c}
		if d.opts.Metric != reconstruction.MetricNone {
			scores[i] = d.opts.Metric.Score(vol.Image(i), vol.Width, vol.Height)
			result.Entries[i].Score = scores[i]
		}
	}
	result.Best = d.opts.Metric.BestIndex(scores)

	err = replaceDir(d.opts.OutputDir, func(dir string) error {
		names, err := d.writer.WriteSequence(vol, dir)
		if err != nil {
			return fmt.Errorf("image writer: %w", err)
		}
		if len(names) != len(centers) {
			return fmt.Errorf("%w: writer produced %d files for %d centers", ErrShapeMismatch, len(names), len(centers))
		}
		for i, name := range names {
			result.Entries[i].File = name
		}
		if d.opts.WriteManifest {
			return writeManifest(filepath.Join(dir, ManifestName), result)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, e := range result.Entries {
		if _, err := fmt.Fprintf(d.opts.Stdout, "Center for %s: %s\n", d.Path(e), FormatCenter(e.Center)); err != nil {
			return nil, err
		}
	}

	if best, ok := result.BestCenter(); ok {
		d.lggr.Infow("Suggested rotation center",
			"center", best,
			"file", d.Path(result.Entries[result.Best]),
			"metric", result.Metric)
	}

	return result, nil
}

// Path returns the output path of an entry, slash separated
func (d *Driver) Path(e Entry) string {
	return filepath.ToSlash(filepath.Join(d.opts.OutputDir, e.File))
}

// FormatCenter renders a center with the fewest digits that round-trip
func FormatCenter(c float64) string {
	return strconv.FormatFloat(c, 'f', -1, 64)
}

func writeManifest(path string, result *Result) error {
	data, err := yaml.Marshal(result)
	if err != nil {
		return fmt.Errorf("error marshaling manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing manifest: %w", err)
	}
	return nil
}
