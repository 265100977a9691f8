package diagnose

import (
	"fmt"

	"centersweep/internal/models"
)

// ExtractSlice returns the (projection x pixel) plane at slice index
func ExtractSlice(proj *models.Projections, index int) ([]float64, error) {
	if proj == nil {
		return nil, ErrInvalidVolume
	}
	if index < 0 || index >= proj.NumSlices {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrSliceOutOfRange, index, proj.NumSlices)
	}

	out := make([]float64, proj.NumProjections*proj.NumPixels)
	for p := 0; p < proj.NumProjections; p++ {
		start := proj.Index(p, index, 0)
		copy(out[p*proj.NumPixels:(p+1)*proj.NumPixels], proj.Data[start:start+proj.NumPixels])
	}
	return out, nil
}

// StackSlice builds a new dataset of n slices, each an exact copy of slice
// index of proj. Projection count, detector width and angles are kept, so
// an engine that assigns one center per slice reconstructs the same data
// under n different centers.
func StackSlice(proj *models.Projections, index, n int) (*models.Projections, error) {
	if n <= 0 {
		return nil, ErrEmptyCenters
	}
	sino, err := ExtractSlice(proj, index)
	if err != nil {
		return nil, err
	}

	stacked := models.NewProjections(proj.NumProjections, n, proj.NumPixels)
	if len(proj.Angles) > 0 {
		stacked.Angles = append([]float64(nil), proj.Angles...)
	}
	for p := 0; p < proj.NumProjections; p++ {
		row := sino[p*proj.NumPixels : (p+1)*proj.NumPixels]
		for m := 0; m < n; m++ {
			copy(stacked.Data[stacked.Index(p, m, 0):], row)
		}
	}
	return stacked, nil
}
