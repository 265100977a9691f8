package projio

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"centersweep/internal/models"
)

func writeGrayPNG(t *testing.T, path string, width, height int, value uint16) {
	t.Helper()
	img := image.NewGray16(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetGray16(x, y, color.Gray16{Y: value})
		}
	}
	file, err := os.Create(path)
	require.NoError(t, err)
	defer file.Close()
	require.NoError(t, png.Encode(file, img))
}

func TestLoadImageStackOrdersByNumber(t *testing.T) {
	dir := t.TempDir()
	// Lexical order would put proj_10 before proj_2.
	writeGrayPNG(t, filepath.Join(dir, "proj_10.png"), 5, 3, 65535)
	writeGrayPNG(t, filepath.Join(dir, "proj_2.png"), 5, 3, 0)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0644))

	proj, err := LoadImageStack(dir, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)

	assert.Equal(t, [3]int{2, 3, 5}, proj.Shape())
	assert.Equal(t, 0.0, proj.At(0, 1, 2))
	assert.Equal(t, 1.0, proj.At(1, 1, 2))
}

func TestLoadImageStackErrors(t *testing.T) {
	_, err := LoadImageStack(t.TempDir(), nil)
	assert.Error(t, err, "empty directory")

	dir := t.TempDir()
	writeGrayPNG(t, filepath.Join(dir, "a1.png"), 4, 4, 0)
	writeGrayPNG(t, filepath.Join(dir, "a2.png"), 5, 4, 0)
	_, err = LoadImageStack(dir, nil)
	assert.Error(t, err, "mismatched dimensions")
}

func TestRawRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "proj.raw")

	proj := models.NewProjections(3, 2, 4)
	for i := range proj.Data {
		proj.Data[i] = float64(i) * 0.5
	}
	require.NoError(t, SaveRaw(path, proj))

	loaded, err := LoadRaw(path, 3, 2, 4)
	require.NoError(t, err)
	assert.Equal(t, proj.Data, loaded.Data)

	_, err = LoadRaw(path, 3, 2, 5)
	assert.Error(t, err, "size mismatch")

	_, err = LoadRaw(path, 0, 2, 4)
	assert.Error(t, err, "invalid shape")
}

func TestLoadDispatch(t *testing.T) {
	dir := t.TempDir()
	raw := filepath.Join(dir, "proj.raw")
	require.NoError(t, SaveRaw(raw, models.NewProjections(2, 2, 2)))

	proj, err := Load(raw, []int{2, 2, 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, [3]int{2, 2, 2}, proj.Shape())

	_, err = Load(raw, nil, nil)
	assert.Error(t, err, "raw input without shape")

	stack := filepath.Join(dir, "stack")
	require.NoError(t, os.Mkdir(stack, 0755))
	writeGrayPNG(t, filepath.Join(stack, "p0.png"), 3, 2, 0)
	proj, err = Load(stack, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, [3]int{1, 2, 3}, proj.Shape())

	_, err = Load(filepath.Join(dir, "missing"), nil, nil)
	assert.Error(t, err)
}

func TestExtractNumber(t *testing.T) {
	assert.Equal(t, 12, extractNumber("proj_012.tiff"))
	assert.Equal(t, 0, extractNumber("flat.png"))
}
