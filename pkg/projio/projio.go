// Package projio loads projection datasets from disk.
//
// Two layouts are supported: a directory of images with one image per
// projection angle (rows are slices, columns are detector pixels), and a
// headerless little-endian float32 file in (projection, slice, pixel) order.
package projio

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
	_ "golang.org/x/image/tiff"

	"centersweep/internal/logger"
	"centersweep/internal/models"
)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".tif":  true,
	".tiff": true,
}

// Load dispatches on the path: directories are read as image stacks and
// files as raw float32 data of the given shape.
func Load(path string, shape []int, lggr *zap.SugaredLogger) (*models.Projections, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return LoadImageStack(path, lggr)
	}
	if len(shape) != 3 {
		return nil, fmt.Errorf("raw input %s needs a 3-dimensional shape, got %v", path, shape)
	}
	return LoadRaw(path, shape[0], shape[1], shape[2])
}

// LoadImageStack loads every image in dir as one projection, ordered by
// the number embedded in the file name.
func LoadImageStack(dir string, lggr *zap.SugaredLogger) (*models.Projections, error) {
	lggr = logger.OrNop(lggr)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var imageFiles []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			imageFiles = append(imageFiles, entry.Name())
		}
	}

	if len(imageFiles) == 0 {
		return nil, fmt.Errorf("no projection images found in %s", dir)
	}

	sort.SliceStable(imageFiles, func(i, j int) bool {
		return extractNumber(imageFiles[i]) < extractNumber(imageFiles[j])
	})

	var proj *models.Projections
	for p, name := range imageFiles {
		img, err := loadImage(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to load image %s: %w", name, err)
		}

		bounds := img.Bounds()
		if proj == nil {
			proj = models.NewProjections(len(imageFiles), bounds.Dy(), bounds.Dx())
		} else if bounds.Dx() != proj.NumPixels || bounds.Dy() != proj.NumSlices {
			return nil, fmt.Errorf("image %s is %dx%d, expected %dx%d",
				name, bounds.Dx(), bounds.Dy(), proj.NumPixels, proj.NumSlices)
		}

		values := imageToFloat(img)
		copy(proj.Data[p*proj.NumSlices*proj.NumPixels:], values)
	}

	lggr.Infow("Loaded projection images",
		"dir", dir,
		"projections", proj.NumProjections,
		"slices", proj.NumSlices,
		"pixels", proj.NumPixels)

	return proj, nil
}

// LoadRaw reads a little-endian float32 dataset with the given shape
func LoadRaw(path string, numProjections, numSlices, numPixels int) (*models.Projections, error) {
	if numProjections <= 0 || numSlices <= 0 || numPixels <= 0 {
		return nil, fmt.Errorf("invalid shape (%d, %d, %d)", numProjections, numSlices, numPixels)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}

	proj := models.NewProjections(numProjections, numSlices, numPixels)
	if want := int64(len(proj.Data)) * 4; info.Size() != want {
		return nil, fmt.Errorf("raw file %s has %d bytes, shape (%d, %d, %d) needs %d",
			path, info.Size(), numProjections, numSlices, numPixels, want)
	}

	r := bufio.NewReader(file)
	var buf [4]byte
	for i := range proj.Data {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return nil, fmt.Errorf("failed to read value %d: %w", i, err)
		}
		proj.Data[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[:])))
	}

	return proj, nil
}

// SaveRaw writes proj as little-endian float32
func SaveRaw(path string, proj *models.Projections) error {
	if err := proj.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(file)
	var buf [4]byte
	for _, v := range proj.Data {
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(float32(v)))
		if _, err := w.Write(buf[:]); err != nil {
			file.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// extractNumber extracts the numeric part from a filename
func extractNumber(filename string) int {
	base := filepath.Base(filename)
	numStr := ""
	for _, c := range base {
		if c >= '0' && c <= '9' {
			numStr += string(c)
		}
	}

	if numStr != "" {
		num, err := strconv.Atoi(numStr)
		if err == nil {
			return num
		}
	}
	return 0
}

// loadImage decodes any registered image format
func loadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, err
	}

	return img, nil
}

// imageToFloat converts a single image to float array in the 0-1 range
func imageToFloat(img image.Image) []float64 {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	result := make([]float64, width*height)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, _, _, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			result[y*width+x] = float64(r) / 65535.0
		}
	}

	return result
}
