package diagnose

import (
	"errors"
	"fmt"
	"math"

	"centersweep/internal/models"
)

// DefaultCenterHalfWidth is the half width, in pixels, of the default sweep
// around the detector midpoint.
const DefaultCenterHalfWidth = 20

// MaxCenters bounds the number of candidates in a single sweep.
const MaxCenters = 4096

var (
	// ErrInvalidVolume is returned for a nil or malformed projection dataset
	ErrInvalidVolume = errors.New("invalid projection volume")

	// ErrSliceOutOfRange is returned when the slice index is outside the dataset
	ErrSliceOutOfRange = errors.New("slice index out of range")

	// ErrEmptyCenters is returned when start, end and step produce no candidates
	ErrEmptyCenters = errors.New("empty candidate center sequence")

	// ErrZeroStep is returned for a zero center step
	ErrZeroStep = errors.New("center step must not be zero")

	// ErrTooManyCenters is returned when a sweep exceeds MaxCenters
	ErrTooManyCenters = errors.New("too many candidate centers")

	// ErrShapeMismatch is returned when the engine output does not have one
	// image per candidate
	ErrShapeMismatch = errors.New("reconstruction shape mismatch")
)

// Params selects the slice and the center sweep. Nil fields take the
// defaults documented on each field.
type Params struct {
	// SliceIndex is the slice to reconstruct. Default: NumSlices/2,
	// rounded down.
	SliceIndex *int `yaml:"sliceIndex,omitempty"`

	// CenterStart is the first candidate. Default: NumPixels/2 - 20,
	// with NumPixels/2 rounded down.
	CenterStart *float64 `yaml:"centerStart,omitempty"`

	// CenterEnd is the exclusive end of the sweep. Default:
	// NumPixels/2 + 20, with NumPixels/2 rounded down.
	CenterEnd *float64 `yaml:"centerEnd,omitempty"`

	// CenterStep is the increment between candidates. Default: 1.
	CenterStep *float64 `yaml:"centerStep,omitempty"`
}

// Resolved holds Params with every default applied
type Resolved struct {
	SliceIndex  int
	CenterStart float64
	CenterEnd   float64
	CenterStep  float64
}

// Resolve applies the defaults for proj and validates the slice index
func (p Params) Resolve(proj *models.Projections) (Resolved, error) {
	if proj == nil {
		return Resolved{}, ErrInvalidVolume
	}

	mid := float64(proj.NumPixels / 2)
	r := Resolved{
		SliceIndex:  proj.NumSlices / 2,
		CenterStart: mid - DefaultCenterHalfWidth,
		CenterEnd:   mid + DefaultCenterHalfWidth,
		CenterStep:  1,
	}
	if p.SliceIndex != nil {
		r.SliceIndex = *p.SliceIndex
	}
	if p.CenterStart != nil {
		r.CenterStart = *p.CenterStart
	}
	if p.CenterEnd != nil {
		r.CenterEnd = *p.CenterEnd
	}
	if p.CenterStep != nil {
		r.CenterStep = *p.CenterStep
	}

	if r.SliceIndex < 0 || r.SliceIndex >= proj.NumSlices {
		return Resolved{}, fmt.Errorf("%w: %d not in [0, %d)", ErrSliceOutOfRange, r.SliceIndex, proj.NumSlices)
	}
	if r.CenterStep == 0 {
		return Resolved{}, ErrZeroStep
	}
	return r, nil
}

// Centers returns the candidate sequence for r
func (r Resolved) Centers() ([]float64, error) {
	return CenterSequence(r.CenterStart, r.CenterEnd, r.CenterStep)
}

// CenterSequence returns start, start+step, ... up to but excluding end.
// The length is ceil((end-start)/step); an empty result is an error.
func CenterSequence(start, end, step float64) ([]float64, error) {
	if step == 0 {
		return nil, ErrZeroStep
	}
	n := math.Ceil((end - start) / step)
	if math.IsNaN(n) || n <= 0 {
		return nil, fmt.Errorf("%w: start %g, end %g, step %g", ErrEmptyCenters, start, end, step)
	}
	if n > MaxCenters {
		return nil, fmt.Errorf("%w: %.0f exceeds %d", ErrTooManyCenters, n, MaxCenters)
	}

	centers := make([]float64, int(n))
	for i := range centers {
		centers[i] = start + float64(i)*step
	}
	return centers, nil
}

// IntPtr returns a pointer to v
func IntPtr(v int) *int { return &v }

// FloatPtr returns a pointer to v
func FloatPtr(v float64) *float64 { return &v }
