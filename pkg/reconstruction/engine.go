package reconstruction

import (
	"context"
	"fmt"

	"centersweep/internal/models"
)

// Engine reconstructs every slice of a projection dataset. The k-th entry
// of centers is the rotation center used for the k-th slice; a single
// center applies to all slices. The returned volume has one image per slice.
type Engine interface {
	Reconstruct(ctx context.Context, proj *models.Projections, centers []float64) (*models.Volume, error)
}

// EngineFunc adapts a function to the Engine interface
type EngineFunc func(ctx context.Context, proj *models.Projections, centers []float64) (*models.Volume, error)

// Reconstruct calls f
func (f EngineFunc) Reconstruct(ctx context.Context, proj *models.Projections, centers []float64) (*models.Volume, error) {
	return f(ctx, proj, centers)
}

// centerFor returns the center assigned to slice i
func centerFor(centers []float64, i int) float64 {
	if len(centers) == 1 {
		return centers[0]
	}
	return centers[i]
}

func checkCenters(proj *models.Projections, centers []float64) error {
	if len(centers) == 0 {
		return fmt.Errorf("no rotation centers given")
	}
	if len(centers) != 1 && len(centers) != proj.NumSlices {
		return fmt.Errorf("got %d rotation centers for %d slices", len(centers), proj.NumSlices)
	}
	return nil
}
