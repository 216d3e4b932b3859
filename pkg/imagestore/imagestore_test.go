package imagestore

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"

	"github.com/dentamark/dentamark/pkg/anno"
)

func writePNG(t *testing.T, path string, width, height int) {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

func TestStoreOrderingAndFiltering(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "b.png"), 20, 20)
	writePNG(t, filepath.Join(dir, "a.png"), 20, 20)
	writePNG(t, filepath.Join(dir, "c.png"), 20, 20)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0755))

	s, err := NewStore(logs.NewTestingLog(t), dir)
	require.NoError(t, err)
	require.Equal(t, 3, s.Count())
	require.Equal(t, "a.png", s.Name(0))
	require.Equal(t, "c.png", s.Name(2))

	_, err = s.Image(3)
	require.Error(t, err)
}

func TestCanonicalResize(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "wide.png"), 800, 300)

	s, err := NewStore(logs.NewTestingLog(t), dir)
	require.NoError(t, err)

	img, err := s.Canonical(0)
	require.NoError(t, err)
	require.Equal(t, CanonicalSize, img.Bounds().Dx())
	require.Equal(t, CanonicalSize, img.Bounds().Dy())

	// Cached: same instance on a second call
	again, err := s.Canonical(0)
	require.NoError(t, err)
	require.Same(t, img, again)
}

func TestMissingDirectory(t *testing.T) {
	_, err := NewStore(logs.NewTestingLog(t), filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}

func TestCropAndDataURL(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	cropped := Crop(img, anno.Rect{X: 10, Y: 20, Width: 30, Height: 40})
	require.Equal(t, 30, cropped.Bounds().Dx())
	require.Equal(t, 40, cropped.Bounds().Dy())

	url, err := DataURL(cropped)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "data:image/png;base64,"))
	require.Greater(t, len(url), len("data:image/png;base64,"))
}
