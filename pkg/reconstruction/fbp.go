package reconstruction

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"centersweep/internal/logger"
	"centersweep/internal/models"
)

// Params holds the filtered backprojection configuration.
type Params struct {
	// Filter is the ramp filter window, see the Filter* constants.
	Filter string

	// NumCores specifies how many slices are reconstructed concurrently.
	NumCores int

	// CircularMask zeroes every pixel outside the inscribed circle, where
	// the reconstruction is not supported by all projections.
	CircularMask bool

	// AngleStart and AngleEnd bound the projection angles in radians when
	// the dataset carries no explicit angles. AngleEnd is exclusive.
	AngleStart float64
	AngleEnd   float64
}

// DefaultParams returns parallel-beam parameters covering [0, pi)
func DefaultParams() *Params {
	return &Params{
		Filter:       FilterSheppLogan,
		NumCores:     runtime.NumCPU(),
		CircularMask: true,
		AngleStart:   0,
		AngleEnd:     math.Pi,
	}
}

// FBP is a parallel-beam filtered backprojection engine. Each slice of the
// input is reconstructed independently into a square image of the detector
// width, with the rotation axis placed at the image center.
type FBP struct {
	params *Params
	lggr   *zap.SugaredLogger
}

var _ Engine = (*FBP)(nil)

// NewFBP creates a new engine with the provided parameters
func NewFBP(params *Params, lggr *zap.SugaredLogger) *FBP {
	if params == nil {
		params = DefaultParams()
	}
	return &FBP{
		params: params,
		lggr:   logger.OrNop(lggr).Named("fbp"),
	}
}

// Reconstruct implements Engine
func (f *FBP) Reconstruct(ctx context.Context, proj *models.Projections, centers []float64) (*models.Volume, error) {
	if proj == nil {
		return nil, fmt.Errorf("nil projections")
	}
	if err := proj.Validate(); err != nil {
		return nil, err
	}
	if err := checkCenters(proj, centers); err != nil {
		return nil, err
	}

	angles, err := f.angles(proj)
	if err != nil {
		return nil, err
	}

	size := paddedSize(proj.NumPixels)
	response, err := filterResponse(f.params.Filter, size)
	if err != nil {
		return nil, err
	}

	numSlices := proj.NumSlices
	numPixels := proj.NumPixels
	vol := models.NewVolume(numPixels, numPixels, numSlices)

	cosines := make([]float64, len(angles))
	sines := make([]float64, len(angles))
	for i, a := range angles {
		cosines[i] = math.Cos(a)
		sines[i] = math.Sin(a)
	}

	workers := f.params.NumCores
	if workers < 1 {
		workers = 1
	}

	f.lggr.Debugw("Starting reconstruction",
		"projections", proj.NumProjections,
		"slices", numSlices,
		"pixels", numPixels,
		"filter", f.params.Filter,
		"workers", workers)

	var completed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for s := 0; s < numSlices; s++ {
		s := s // per-iteration copy (go directive < 1.22)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			sino := sinogram(proj, s)
			filtered := make([]float64, len(sino))
			rf := newRowFilter(response, size)
			for p := 0; p < proj.NumProjections; p++ {
				row := sino[p*numPixels : (p+1)*numPixels]
				rf.apply(filtered[p*numPixels:(p+1)*numPixels], row)
			}

			f.backproject(vol.Image(s), filtered, numPixels, centerFor(centers, s), cosines, sines)

			done := completed.Add(1)
			f.lggr.Debugw("Reconstructed slice",
				"slice", s,
				"center", centerFor(centers, s),
				"progress", fmt.Sprintf("%.1f%%", float64(done)/float64(numSlices)*100))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("reconstruction failed: %w", err)
	}

	return vol, nil
}

// angles returns one angle per projection
func (f *FBP) angles(proj *models.Projections) ([]float64, error) {
	if len(proj.Angles) > 0 {
		return proj.Angles, nil
	}
	if f.params.AngleEnd == f.params.AngleStart {
		return nil, fmt.Errorf("empty projection angle range")
	}
	angles := make([]float64, proj.NumProjections)
	step := (f.params.AngleEnd - f.params.AngleStart) / float64(proj.NumProjections)
	for i := range angles {
		angles[i] = f.params.AngleStart + float64(i)*step
	}
	return angles, nil
}

// backproject smears the filtered sinogram across a size x size image.
// Pixel (x, y), measured from the image center, lands on detector
// coordinate center + x*cos(theta) - y*sin(theta).
func (f *FBP) backproject(dst, filtered []float64, size int, center float64, cosines, sines []float64) {
	half := float64(size / 2)
	radius2 := half * half
	numAngles := len(cosines)
	scale := math.Pi / (2 * float64(numAngles))
	last := float64(size - 1)

	for row := 0; row < size; row++ {
		y := float64(row) - half
		for col := 0; col < size; col++ {
			x := float64(col) - half
			if f.params.CircularMask && x*x+y*y > radius2 {
				dst[row*size+col] = 0
				continue
			}

			sum := 0.0
			for a := 0; a < numAngles; a++ {
				t := center + x*cosines[a] - y*sines[a]
				if t < 0 || t > last {
					continue
				}
				i0 := int(t)
				w := t - float64(i0)
				line := filtered[a*size : (a+1)*size]
				v := line[i0]
				if w > 0 && i0+1 < size {
					v = (1-w)*v + w*line[i0+1]
				}
				sum += v
			}
			dst[row*size+col] = sum * scale
		}
	}
}

// sinogram copies the (projection x pixel) plane of one slice
func sinogram(proj *models.Projections, slice int) []float64 {
	out := make([]float64, proj.NumProjections*proj.NumPixels)
	for p := 0; p < proj.NumProjections; p++ {
		start := proj.Index(p, slice, 0)
		copy(out[p*proj.NumPixels:(p+1)*proj.NumPixels], proj.Data[start:start+proj.NumPixels])
	}
	return out
}
