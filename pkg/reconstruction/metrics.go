package reconstruction

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Metric scores the sharpness of a reconstructed image
type Metric string

const (
	// MetricEntropy is the 256-bin Shannon entropy of the image. A wrong
	// rotation center smears structures and spreads the histogram, so
	// lower is better.
	MetricEntropy Metric = "entropy"

	// MetricGradient is the mean squared finite-difference gradient.
	// Higher is better.
	MetricGradient Metric = "gradient"

	// MetricNone disables scoring
	MetricNone Metric = "none"
)

// ParseMetric validates a metric name. The empty string means MetricNone.
func ParseMetric(name string) (Metric, error) {
	switch Metric(name) {
	case MetricEntropy, MetricGradient, MetricNone:
		return Metric(name), nil
	case "":
		return MetricNone, nil
	}
	return "", fmt.Errorf("unknown score metric %q", name)
}

// Score computes the metric for a width x height image
func (m Metric) Score(img []float64, width, height int) float64 {
	switch m {
	case MetricEntropy:
		return calculateEntropy(img)
	case MetricGradient:
		return calculateGradientEnergy(img, width, height)
	}
	return 0
}

// Better reports whether score a beats score b
func (m Metric) Better(a, b float64) bool {
	if m == MetricGradient {
		return a > b
	}
	return a < b
}

// BestIndex returns the index of the best score, or -1 for MetricNone or
// an empty list
func (m Metric) BestIndex(scores []float64) int {
	if m == MetricNone || len(scores) == 0 {
		return -1
	}
	best := 0
	for i := 1; i < len(scores); i++ {
		if m.Better(scores[i], scores[best]) {
			best = i
		}
	}
	return best
}

// calculateEntropy computes the Shannon entropy of data
func calculateEntropy(data []float64) float64 {
	n := len(data)
	if n == 0 {
		return 0
	}

	min, max := floats.Min(data), floats.Max(data)

	// If all values are the same, entropy is 0
	if max <= min {
		return 0
	}

	const numBins = 256

	// Manual binning keeps max inside the last bin
	hist := make([]float64, numBins)
	binWidth := (max - min) / float64(numBins)

	for _, v := range data {
		binIdx := int((v - min) / binWidth)
		if binIdx >= numBins {
			binIdx = numBins - 1
		} else if binIdx < 0 {
			binIdx = 0
		}
		hist[binIdx]++
	}

	floats.Scale(1/float64(n), hist)
	return stat.Entropy(hist) / math.Ln2
}

// calculateGradientEnergy returns the mean squared forward difference
func calculateGradientEnergy(data []float64, width, height int) float64 {
	if width < 2 || height < 2 || len(data) < width*height {
		return 0
	}
	grads := make([]float64, 0, (width-1)*(height-1))
	for y := 0; y < height-1; y++ {
		for x := 0; x < width-1; x++ {
			v := data[y*width+x]
			dx := data[y*width+x+1] - v
			dy := data[(y+1)*width+x] - v
			grads = append(grads, dx*dx+dy*dy)
		}
	}
	return stat.Mean(grads, nil)
}
