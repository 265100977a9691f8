package reconstruction

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Supported ramp filter windows
const (
	FilterRamLak     = "ramlak"
	FilterSheppLogan = "shepp-logan"
	FilterCosine     = "cosine"
	FilterHamming    = "hamming"
	FilterHann       = "hann"
)

// paddedSize returns the next power of two that is at least 2*n
func paddedSize(n int) int {
	size := 64
	for size < 2*n {
		size <<= 1
	}
	return size
}

// filterResponse builds the real frequency response of the ramp filter for
// an FFT of length size. The ramp is designed in the spatial domain
// (Kak & Slaney) so the DC term is not forced to zero, then
// shaped by the requested window.
func filterResponse(name string, size int) ([]float64, error) {
	kernel := make([]float64, size)
	kernel[0] = 0.25
	for i := 1; i <= size/2; i++ {
		if i%2 == 0 {
			continue
		}
		v := -1 / math.Pow(math.Pi*float64(i), 2)
		kernel[i] = v
		kernel[size-i] = v
	}

	fft := fourier.NewFFT(size)
	coeffs := fft.Coefficients(nil, kernel)

	response := make([]float64, len(coeffs))
	for k, c := range coeffs {
		response[k] = 2 * real(c)
	}

	var window func(f float64) float64
	switch name {
	case FilterRamLak, "":
		return response, nil
	case FilterSheppLogan:
		window = func(f float64) float64 {
			if f == 0 {
				return 1
			}
			return math.Sin(math.Pi*f) / (math.Pi * f)
		}
	case FilterCosine:
		window = func(f float64) float64 { return math.Cos(math.Pi * f) }
	case FilterHamming:
		window = func(f float64) float64 { return 0.54 + 0.46*math.Cos(2*math.Pi*f) }
	case FilterHann:
		window = func(f float64) float64 { return 0.5 + 0.5*math.Cos(2*math.Pi*f) }
	default:
		return nil, fmt.Errorf("unknown filter %q", name)
	}

	for k := range response {
		response[k] *= window(float64(k) / float64(size))
	}
	return response, nil
}

// rowFilter applies a precomputed response to projection rows. It owns its
// FFT work buffers and must not be shared between goroutines.
type rowFilter struct {
	fft      *fourier.FFT
	response []float64
	buf      []float64
	coeffs   []complex128
}

func newRowFilter(response []float64, size int) *rowFilter {
	return &rowFilter{
		fft:      fourier.NewFFT(size),
		response: response,
		buf:      make([]float64, size),
		coeffs:   make([]complex128, size/2+1),
	}
}

// apply filters src into dst, both of the detector width
func (f *rowFilter) apply(dst, src []float64) {
	n := len(f.buf)
	copy(f.buf, src)
	for i := len(src); i < n; i++ {
		f.buf[i] = 0
	}

	f.coeffs = f.fft.Coefficients(f.coeffs, f.buf)
	for k := range f.coeffs {
		f.coeffs[k] *= complex(f.response[k], 0)
	}
	f.buf = f.fft.Sequence(f.buf, f.coeffs)

	scale := 1 / float64(n)
	for i := range dst {
		dst[i] = f.buf[i] * scale
	}
}
