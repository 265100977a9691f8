// Package correction provides preprocessing filters for projection data:
// median filtering, dezingering, and removal of non-finite or negative values.
package correction

import (
	"context"
	"fmt"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"centersweep/internal/models"
)

// AdjustRange clips values to [dmin, dmax] in place. NaN bounds leave that
// side unclipped.
func AdjustRange(p *models.Projections, dmin, dmax float64) {
	for i, v := range p.Data {
		if !math.IsNaN(dmax) && v > dmax {
			p.Data[i] = dmax
		} else if !math.IsNaN(dmin) && v < dmin {
			p.Data[i] = dmin
		}
	}
}

// RemoveNaN replaces NaN and infinite values with val in place
func RemoveNaN(p *models.Projections, val float64) int {
	replaced := 0
	for i, v := range p.Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			p.Data[i] = val
			replaced++
		}
	}
	return replaced
}

// RemoveNeg replaces negative values with val in place
func RemoveNeg(p *models.Projections, val float64) int {
	replaced := 0
	for i, v := range p.Data {
		if v < 0 {
			p.Data[i] = val
			replaced++
		}
	}
	return replaced
}

// MinusLog converts normalized transmission to line integrals in place.
// Non-positive values are clamped to the smallest positive float32 first.
func MinusLog(p *models.Projections) {
	const floor = math.SmallestNonzeroFloat32
	for i, v := range p.Data {
		if v < floor {
			v = floor
		}
		p.Data[i] = -math.Log(v)
	}
}

// MedianFilter3D returns a copy of p filtered with a size^3 median kernel.
// Borders are handled by clamping coordinates. Sizes below 3 are raised to 3.
func MedianFilter3D(ctx context.Context, p *models.Projections, size, numCores int) (*models.Projections, error) {
	return medianFilter3D(ctx, p, size, numCores, 0, false)
}

// RemoveOutlier3D returns a copy of p where values exceeding the local
// size^3 median by dif or more are replaced with that median.
func RemoveOutlier3D(ctx context.Context, p *models.Projections, dif float64, size, numCores int) (*models.Projections, error) {
	if dif <= 0 {
		return nil, fmt.Errorf("outlier difference must be positive, got %g", dif)
	}
	return medianFilter3D(ctx, p, size, numCores, dif, true)
}

func medianFilter3D(ctx context.Context, p *models.Projections, size, numCores int, dif float64, selective bool) (*models.Projections, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if size < 3 {
		size = 3
	}
	if size%2 == 0 {
		return nil, fmt.Errorf("median kernel size must be odd, got %d", size)
	}
	if numCores < 1 {
		numCores = 1
	}

	radius := (size - 1) / 2
	out := p.Clone()
	dims := p.Shape()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(numCores)
	for z := 0; z < dims[0]; z++ {
		z := z // per-iteration copy (go directive < 1.22)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			window := make([]float64, 0, size*size*size)
			for y := 0; y < dims[1]; y++ {
				for x := 0; x < dims[2]; x++ {
					window = window[:0]
					for dz := -radius; dz <= radius; dz++ {
						zz := clamp(z+dz, dims[0])
						for dy := -radius; dy <= radius; dy++ {
							yy := clamp(y+dy, dims[1])
							for dx := -radius; dx <= radius; dx++ {
								window = append(window, p.At(zz, yy, clamp(x+dx, dims[2])))
							}
						}
					}
					med := median(window)
					idx := p.Index(z, y, x)
					if !selective || p.Data[idx]-med >= dif {
						out.Data[idx] = med
					}
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// median sorts values in place and returns the median
func median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sort.Float64s(values)
	if n%2 == 0 {
		return (values[n/2-1] + values[n/2]) / 2
	}
	return values[n/2]
}
