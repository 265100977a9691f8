package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"

	"golang.org/x/image/tiff"
	"gonum.org/v1/gonum/floats"

	"centersweep/internal/models"
)

// Image formats supported by SequenceWriter
const (
	FormatTIFF = "tiff"
	FormatPNG  = "png"
	FormatJPEG = "jpeg"
)

// Intensity normalization modes
const (
	// NormalizeGlobal maps the min/max of the whole volume to the full
	// 16-bit range so images of a sweep stay comparable.
	NormalizeGlobal = "global"

	// NormalizeSlice stretches every image on its own.
	NormalizeSlice = "slice"
)

// SequenceWriter writes a volume as a numbered sequence of single-channel
// images, one per depth index.
type SequenceWriter struct {
	// Format is one of FormatTIFF, FormatPNG or FormatJPEG
	Format string

	// Prefix is prepended to the zero-padded index
	Prefix string

	// Digits is the width of the zero-padded index
	Digits int

	// Normalize is NormalizeGlobal or NormalizeSlice
	Normalize string
}

// NewSequenceWriter returns a TIFF writer producing prefix00000.tiff style names
func NewSequenceWriter(prefix string) *SequenceWriter {
	return &SequenceWriter{
		Format:    FormatTIFF,
		Prefix:    prefix,
		Digits:    5,
		Normalize: NormalizeGlobal,
	}
}

// Extension returns the file extension for the configured format
func (w *SequenceWriter) Extension() (string, error) {
	switch w.Format {
	case FormatTIFF, "":
		return "tiff", nil
	case FormatPNG:
		return "png", nil
	case FormatJPEG:
		return "jpg", nil
	}
	return "", fmt.Errorf("unsupported image format %q", w.Format)
}

// Filename returns the name of the image written for index
func (w *SequenceWriter) Filename(index int) (string, error) {
	ext, err := w.Extension()
	if err != nil {
		return "", err
	}
	digits := w.Digits
	if digits < 1 {
		digits = 1
	}
	return fmt.Sprintf("%s%0*d.%s", w.Prefix, digits, index, ext), nil
}

// WriteSequence creates outputDir and writes every image of vol into it.
// The returned file names are in depth order.
func (w *SequenceWriter) WriteSequence(vol *models.Volume, outputDir string) ([]string, error) {
	if vol == nil || vol.Depth <= 0 || vol.Width <= 0 || vol.Height <= 0 {
		return nil, fmt.Errorf("empty volume")
	}
	if len(vol.Data) != vol.Width*vol.Height*vol.Depth {
		return nil, fmt.Errorf("volume data has %d values, %dx%dx%d needs %d",
			len(vol.Data), vol.Width, vol.Height, vol.Depth, vol.Width*vol.Height*vol.Depth)
	}
	if _, err := w.Extension(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, err
	}

	lo, hi := floats.Min(vol.Data), floats.Max(vol.Data)

	names := make([]string, vol.Depth)
	for z := 0; z < vol.Depth; z++ {
		if w.Normalize == NormalizeSlice {
			lo, hi = floats.Min(vol.Image(z)), floats.Max(vol.Image(z))
		}

		img, err := ExtractSlice(vol, z, lo, hi)
		if err != nil {
			return nil, err
		}

		name, err := w.Filename(z)
		if err != nil {
			return nil, err
		}
		if err := w.SaveImage(img, filepath.Join(outputDir, name)); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", name, err)
		}
		names[z] = name
	}

	return names, nil
}

// SaveImage encodes img to filename in the configured format
func (w *SequenceWriter) SaveImage(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}

	if err := w.encode(file, img); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func (w *SequenceWriter) encode(out io.Writer, img image.Image) error {
	switch w.Format {
	case FormatTIFF, "":
		return tiff.Encode(out, img, &tiff.Options{Compression: tiff.Deflate})
	case FormatPNG:
		return png.Encode(out, img)
	case FormatJPEG:
		return jpeg.Encode(out, img, &jpeg.Options{Quality: 90})
	}
	return fmt.Errorf("unsupported image format %q", w.Format)
}

// ExtractSlice converts the z-th image of vol to 16-bit grayscale, mapping
// lo..hi onto 0..65535. Values outside the range are clamped.
func ExtractSlice(vol *models.Volume, z int, lo, hi float64) (*image.Gray16, error) {
	if z < 0 || z >= vol.Depth {
		return nil, fmt.Errorf("position %d exceeds depth %d", z, vol.Depth)
	}

	scale := 0.0
	if hi > lo {
		scale = 1 / (hi - lo)
	}

	img := image.NewGray16(image.Rect(0, 0, vol.Width, vol.Height))
	data := vol.Image(z)
	for y := 0; y < vol.Height; y++ {
		for x := 0; x < vol.Width; x++ {
			v := (data[y*vol.Width+x] - lo) * scale
			value := uint16(math.Round(math.Max(0, math.Min(1, v)) * 65535))
			img.SetGray16(x, y, color.Gray16{Y: value})
		}
	}

	return img, nil
}
