package models

import "fmt"

// Projections represents a tomographic projection dataset indexed as
// (projection angle, slice, detector pixel)
type Projections struct {
	// Data is the projection data as a 1D array in row-major order
	Data []float64

	// NumProjections is the number of projection angles
	NumProjections int

	// NumSlices is the number of detector rows
	NumSlices int

	// NumPixels is the number of detector columns
	NumPixels int

	// Angles holds one angle in radians per projection. When empty the
	// projections are assumed to be evenly spaced over [0, pi).
	Angles []float64
}

// NewProjections allocates a zero-filled projection dataset
func NewProjections(numProjections, numSlices, numPixels int) *Projections {
	return &Projections{
		Data:           make([]float64, numProjections*numSlices*numPixels),
		NumProjections: numProjections,
		NumSlices:      numSlices,
		NumPixels:      numPixels,
	}
}

// Index returns the offset of (projection, slice, pixel) in Data
func (p *Projections) Index(proj, slice, pixel int) int {
	return (proj*p.NumSlices+slice)*p.NumPixels + pixel
}

// At returns the value at (projection, slice, pixel)
func (p *Projections) At(proj, slice, pixel int) float64 {
	return p.Data[p.Index(proj, slice, pixel)]
}

// Set stores v at (projection, slice, pixel)
func (p *Projections) Set(proj, slice, pixel int, v float64) {
	p.Data[p.Index(proj, slice, pixel)] = v
}

// Shape returns (projections, slices, pixels)
func (p *Projections) Shape() [3]int {
	return [3]int{p.NumProjections, p.NumSlices, p.NumPixels}
}

// Validate checks that the dimensions are positive and agree with Data
func (p *Projections) Validate() error {
	if p.NumProjections <= 0 || p.NumSlices <= 0 || p.NumPixels <= 0 {
		return fmt.Errorf("projection dimensions must be positive, got %v", p.Shape())
	}
	if want := p.NumProjections * p.NumSlices * p.NumPixels; len(p.Data) != want {
		return fmt.Errorf("projection data has %d values, shape %v needs %d", len(p.Data), p.Shape(), want)
	}
	if len(p.Angles) != 0 && len(p.Angles) != p.NumProjections {
		return fmt.Errorf("got %d angles for %d projections", len(p.Angles), p.NumProjections)
	}
	return nil
}

// Clone returns a deep copy of the dataset
func (p *Projections) Clone() *Projections {
	out := &Projections{
		Data:           append([]float64(nil), p.Data...),
		NumProjections: p.NumProjections,
		NumSlices:      p.NumSlices,
		NumPixels:      p.NumPixels,
	}
	if len(p.Angles) > 0 {
		out.Angles = append([]float64(nil), p.Angles...)
	}
	return out
}

// Volume represents a stack of reconstructed images
type Volume struct {
	// Data is the 3D volume data as a 1D array in row-major order,
	// indexed z*Width*Height + y*Width + x
	Data []float64

	// Width is the width of each image in pixels
	Width int

	// Height is the height of each image in pixels
	Height int

	// Depth is the number of images in the stack
	Depth int
}

// NewVolume allocates a zero-filled volume
func NewVolume(width, height, depth int) *Volume {
	return &Volume{
		Data:   make([]float64, width*height*depth),
		Width:  width,
		Height: height,
		Depth:  depth,
	}
}

// Image returns the backing slice of the z-th image
func (v *Volume) Image(z int) []float64 {
	size := v.Width * v.Height
	return v.Data[z*size : (z+1)*size]
}
