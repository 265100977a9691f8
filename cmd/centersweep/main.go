package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"centersweep/internal/logger"
	"centersweep/internal/models"
	"centersweep/pkg/config"
	"centersweep/pkg/correction"
	"centersweep/pkg/diagnose"
	"centersweep/pkg/projio"
	"centersweep/pkg/reconstruction"
	"centersweep/pkg/visualization"
)

var rootCmd = &cobra.Command{
	Use:   "centersweep",
	Short: "Rotation center diagnostics for tomographic reconstruction",
	Long: `centersweep reconstructs one slice of a projection dataset under a range
of candidate rotation centers and writes one image per candidate, so the
sharpest reconstruction can be picked by eye.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(newRunCmd(), newInitConfigCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type runFlags struct {
	configPath  string
	input       string
	shape       []int
	slice       int
	centerStart float64
	centerEnd   float64
	centerStep  float64
	output      string
	format      string
	filter      string
	cores       int
	metric      string
	manifest    bool
	verbose     bool
}

func newRunCmd() *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Reconstruct a slice under a sweep of rotation centers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(f.configPath)
			if err != nil {
				return err
			}
			applyFlags(cmd, f, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			if cfg.Input.Path == "" {
				return fmt.Errorf("no input given, use --input or input.path in the config file")
			}

			lggr, err := logger.NewCLI(cfg.Output.Verbose)
			if err != nil {
				return err
			}
			defer lggr.Sync() //nolint:errcheck

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			return run(ctx, cfg, lggr, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.configPath, "config", "c", "centersweep.yaml", "YAML configuration file")
	flags.StringVarP(&f.input, "input", "i", "", "projection image directory or raw float32 file")
	flags.IntSliceVar(&f.shape, "shape", nil, "projections,slices,pixels of a raw input file")
	flags.IntVar(&f.slice, "slice", 0, "slice index (default: middle slice)")
	flags.Float64Var(&f.centerStart, "center-start", 0, "first candidate center (default: width/2 - 20)")
	flags.Float64Var(&f.centerEnd, "center-end", 0, "exclusive end of the sweep (default: width/2 + 20)")
	flags.Float64Var(&f.centerStep, "center-step", 1, "center increment")
	flags.StringVarP(&f.output, "output", "o", diagnose.DefaultOutputDir, "output directory, replaced on every run")
	flags.StringVar(&f.format, "format", visualization.FormatTIFF, "image format: tiff, png or jpeg")
	flags.StringVar(&f.filter, "filter", reconstruction.FilterSheppLogan, "ramp filter window")
	flags.IntVar(&f.cores, "cores", 0, "number of CPU cores to use (default: all available)")
	flags.StringVar(&f.metric, "metric", string(reconstruction.MetricEntropy), "sharpness metric: entropy, gradient or none")
	flags.BoolVar(&f.manifest, "manifest", false, "write "+diagnose.ManifestName+" next to the images")
	flags.BoolVarP(&f.verbose, "verbose", "v", false, "enable debug logging")
	return cmd
}

// applyFlags copies explicitly set flags over the file configuration
func applyFlags(cmd *cobra.Command, f *runFlags, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("input") {
		cfg.Input.Path = f.input
	}
	if changed("shape") {
		cfg.Input.Shape = f.shape
	}
	if changed("slice") {
		cfg.Diagnose.SliceIndex = diagnose.IntPtr(f.slice)
	}
	if changed("center-start") {
		cfg.Diagnose.CenterStart = diagnose.FloatPtr(f.centerStart)
	}
	if changed("center-end") {
		cfg.Diagnose.CenterEnd = diagnose.FloatPtr(f.centerEnd)
	}
	if changed("center-step") {
		cfg.Diagnose.CenterStep = diagnose.FloatPtr(f.centerStep)
	}
	if changed("output") {
		cfg.Diagnose.OutputDir = f.output
	}
	if changed("format") {
		cfg.Output.Format = f.format
	}
	if changed("filter") {
		cfg.Reconstruction.Filter = f.filter
	}
	if changed("cores") && f.cores > 0 {
		cfg.Reconstruction.NumCores = f.cores
	}
	if changed("metric") {
		cfg.Output.ScoreMetric = f.metric
	}
	if changed("manifest") {
		cfg.Output.WriteManifest = f.manifest
	}
	if changed("verbose") {
		cfg.Output.Verbose = f.verbose
	}
}

// run loads, preprocesses and sweeps the configured dataset, printing the
// image listing to out
func run(ctx context.Context, cfg *config.Config, lggr *zap.SugaredLogger, out io.Writer) error {
	metric, err := reconstruction.ParseMetric(cfg.Output.ScoreMetric)
	if err != nil {
		return err
	}

	startTime := time.Now()
	proj, err := projio.Load(cfg.Input.Path, cfg.Input.Shape, lggr)
	if err != nil {
		return fmt.Errorf("failed to load projections: %w", err)
	}

	proj, err = preprocess(ctx, cfg, proj, lggr)
	if err != nil {
		return fmt.Errorf("preprocessing failed: %w", err)
	}

	engine := reconstruction.NewFBP(&reconstruction.Params{
		Filter:       cfg.Reconstruction.Filter,
		NumCores:     cfg.Reconstruction.NumCores,
		CircularMask: cfg.Reconstruction.CircularMask,
		AngleStart:   cfg.Reconstruction.AngleStart * math.Pi / 180,
		AngleEnd:     cfg.Reconstruction.AngleEnd * math.Pi / 180,
	}, lggr)

	writer := visualization.NewSequenceWriter(cfg.Diagnose.Prefix)
	writer.Format = cfg.Output.Format
	writer.Normalize = cfg.Output.Normalize

	driver := diagnose.NewDriver(engine, writer, diagnose.Options{
		OutputDir:     cfg.Diagnose.OutputDir,
		Metric:        metric,
		WriteManifest: cfg.Output.WriteManifest,
		Stdout:        out,
		Logger:        lggr,
	})

	result, err := driver.Run(ctx, proj, diagnose.Params{
		SliceIndex:  cfg.Diagnose.SliceIndex,
		CenterStart: cfg.Diagnose.CenterStart,
		CenterEnd:   cfg.Diagnose.CenterEnd,
		CenterStep:  cfg.Diagnose.CenterStep,
	})
	if err != nil {
		return err
	}

	lggr.Infow("Center sweep completed",
		"images", len(result.Entries),
		"outputDir", result.OutputDir,
		"elapsed", time.Since(startTime).Round(time.Millisecond))
	return nil
}

// preprocess applies the configured corrections in a fixed order
func preprocess(ctx context.Context, cfg *config.Config, proj *models.Projections, lggr *zap.SugaredLogger) (*models.Projections, error) {
	p := cfg.Preprocess
	var err error

	if p.RemoveNaN {
		n := correction.RemoveNaN(proj, 0)
		lggr.Debugw("Removed non-finite values", "count", n)
	}
	if p.RemoveNeg {
		n := correction.RemoveNeg(proj, 0)
		lggr.Debugw("Removed negative values", "count", n)
	}
	if p.ClipMin != nil || p.ClipMax != nil {
		lo, hi := bound(p.ClipMin), bound(p.ClipMax)
		correction.AdjustRange(proj, lo, hi)
		lggr.Debugw("Clipped projection range", "min", lo, "max", hi)
	}
	if p.OutlierDiff > 0 {
		proj, err = correction.RemoveOutlier3D(ctx, proj, p.OutlierDiff, 3, cfg.Reconstruction.NumCores)
		if err != nil {
			return nil, err
		}
		lggr.Debugw("Removed outliers", "dif", p.OutlierDiff)
	}
	if p.MedianSize > 0 {
		proj, err = correction.MedianFilter3D(ctx, proj, p.MedianSize, cfg.Reconstruction.NumCores)
		if err != nil {
			return nil, err
		}
		lggr.Debugw("Applied median filter", "size", p.MedianSize)
	}
	if p.MinusLog {
		correction.MinusLog(proj)
	}
	return proj, nil
}

// bound returns *v, or NaN for an unset bound
func bound(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

func newInitConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config <path>",
		Short: "Write the default configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.CreateDefaultConfigFile(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Default configuration written to %s\n", args[0])
			return nil
		},
	}
}
