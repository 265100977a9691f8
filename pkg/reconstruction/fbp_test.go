package reconstruction

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"centersweep/internal/models"
)

// pointSinogram simulates a parallel-beam scan of a Gaussian blob sitting at
// (x0, y0) from the rotation axis, which projects onto detector pixel center.
func pointSinogram(numProjections, numSlices, numPixels int, center, x0, y0 float64) *models.Projections {
	proj := models.NewProjections(numProjections, numSlices, numPixels)
	const sigma = 1.0
	for p := 0; p < numProjections; p++ {
		theta := float64(p) * math.Pi / float64(numProjections)
		t := center + x0*math.Cos(theta) - y0*math.Sin(theta)
		for s := 0; s < numSlices; s++ {
			for n := 0; n < numPixels; n++ {
				d := float64(n) - t
				proj.Set(p, s, n, math.Exp(-d*d/(2*sigma*sigma)))
			}
		}
	}
	return proj
}

func argmax(data []float64) int {
	best := 0
	for i, v := range data {
		if v > data[best] {
			best = i
		}
	}
	return best
}

func TestFBPRecoversPointAtTrueCenter(t *testing.T) {
	const (
		numProjections = 90
		numPixels      = 64
		trueCenter     = 30.0
		x0, y0         = 8.0, -5.0
	)
	proj := pointSinogram(numProjections, 1, numPixels, trueCenter, x0, y0)

	params := DefaultParams()
	params.NumCores = 2
	engine := NewFBP(params, zaptest.NewLogger(t).Sugar())

	vol, err := engine.Reconstruct(context.Background(), proj, []float64{trueCenter})
	require.NoError(t, err)
	require.Equal(t, numPixels, vol.Width)
	require.Equal(t, numPixels, vol.Height)
	require.Equal(t, 1, vol.Depth)

	peak := argmax(vol.Image(0))
	col, row := peak%numPixels, peak/numPixels
	assert.InDelta(t, numPixels/2+x0, float64(col), 1)
	assert.InDelta(t, numPixels/2+y0, float64(row), 1)
}

func TestFBPPeakIsHighestAtTrueCenter(t *testing.T) {
	const (
		numPixels  = 64
		trueCenter = 32.0
	)
	centers := []float64{trueCenter - 4, trueCenter - 2, trueCenter, trueCenter + 2, trueCenter + 4}
	proj := pointSinogram(120, len(centers), numPixels, trueCenter, 10, 6)

	vol, err := NewFBP(nil, nil).Reconstruct(context.Background(), proj, centers)
	require.NoError(t, err)
	require.Equal(t, len(centers), vol.Depth)

	peaks := make([]float64, len(centers))
	for z := range centers {
		img := vol.Image(z)
		peaks[z] = img[argmax(img)]
	}
	assert.Equal(t, 2, argmax(peaks), "peaks per center: %v", peaks)
}

func TestFBPCircularMask(t *testing.T) {
	proj := pointSinogram(36, 1, 32, 16, 0, 0)

	params := DefaultParams()
	params.CircularMask = true
	vol, err := NewFBP(params, nil).Reconstruct(context.Background(), proj, []float64{16})
	require.NoError(t, err)

	img := vol.Image(0)
	assert.Zero(t, img[0], "corner must be masked")
	assert.Zero(t, img[len(img)-1], "corner must be masked")
}

func TestFBPUsesExplicitAngles(t *testing.T) {
	proj := pointSinogram(45, 1, 32, 16, 4, 0)
	proj.Angles = make([]float64, proj.NumProjections)
	for i := range proj.Angles {
		proj.Angles[i] = float64(i) * math.Pi / float64(proj.NumProjections)
	}

	params := DefaultParams()
	// Ignored because the dataset carries its own angles.
	params.AngleEnd = 2 * math.Pi
	vol, err := NewFBP(params, nil).Reconstruct(context.Background(), proj, []float64{16})
	require.NoError(t, err)

	peak := argmax(vol.Image(0))
	assert.InDelta(t, 16+4, float64(peak%32), 1)
}

func TestFBPErrors(t *testing.T) {
	engine := NewFBP(nil, nil)
	ctx := context.Background()

	_, err := engine.Reconstruct(ctx, nil, []float64{1})
	assert.Error(t, err)

	proj := models.NewProjections(4, 3, 8)
	_, err = engine.Reconstruct(ctx, proj, nil)
	assert.Error(t, err, "no centers")

	_, err = engine.Reconstruct(ctx, proj, []float64{1, 2})
	assert.Error(t, err, "center count must match slices")

	bad := &models.Projections{Data: make([]float64, 5), NumProjections: 2, NumSlices: 2, NumPixels: 2}
	_, err = engine.Reconstruct(ctx, bad, []float64{1})
	assert.Error(t, err, "data length mismatch")

	params := DefaultParams()
	params.Filter = "triangle"
	_, err = NewFBP(params, nil).Reconstruct(ctx, proj, []float64{4})
	assert.Error(t, err, "unknown filter")
}

func TestFBPHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	proj := models.NewProjections(8, 4, 16)
	_, err := NewFBP(nil, nil).Reconstruct(ctx, proj, []float64{8})
	require.ErrorIs(t, err, context.Canceled)
}

func TestFilterResponses(t *testing.T) {
	size := paddedSize(100)
	assert.Equal(t, 256, size)

	ramp, err := filterResponse(FilterRamLak, size)
	require.NoError(t, err)
	require.Len(t, ramp, size/2+1)
	assert.Greater(t, ramp[len(ramp)-1], ramp[1], "ramp must grow with frequency")
	assert.InDelta(t, 0, ramp[0], 0.05)

	for _, name := range []string{FilterSheppLogan, FilterCosine, FilterHamming, FilterHann} {
		windowed, err := filterResponse(name, size)
		require.NoError(t, err, name)
		assert.LessOrEqual(t, windowed[size/4], ramp[size/4]+1e-12, name)
	}
}
