package imagestore

import (
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/cyclopcam/logs"
	"github.com/disintegration/imaging"

	"github.com/dentamark/dentamark/pkg/anno"
)

// CanonicalSize is the fixed canvas size. Every image is resized to
// CanonicalSize x CanonicalSize before annotation, so recorded boxes are
// comparable regardless of source resolution.
const CanonicalSize = 500

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

// Store is the ordered sequence of images for one annotation session.
// Images are decoded up front; canonical resizes are computed on demand
// and cached.
type Store struct {
	log   logs.Log
	dir   string
	names []string
	full  []image.Image

	lock      sync.Mutex
	canonical map[int]image.Image
}

// NewStore lists and decodes every image in dir, in name order.
// A missing or unreadable directory is an error; an empty directory is not
// (the session just has zero images).
func NewStore(log logs.Log, dir string) (*Store, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read image directory %v: %w", dir, err)
	}
	s := &Store{
		log:       log,
		dir:       dir,
		canonical: map[int]image.Image{},
	}
	for _, entry := range entries {
		if entry.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		s.names = append(s.names, entry.Name())
	}
	sort.Strings(s.names)
	for _, name := range s.names {
		img, err := imaging.Open(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to decode image %v: %w", name, err)
		}
		s.full = append(s.full, img)
	}
	log.Infof("Loaded %v images from %v", len(s.full), dir)
	return s, nil
}

func (s *Store) Count() int {
	return len(s.full)
}

func (s *Store) Name(i int) string {
	return s.names[i]
}

// Image returns the full-resolution image at index i.
func (s *Store) Image(i int) (image.Image, error) {
	if i < 0 || i >= len(s.full) {
		return nil, fmt.Errorf("image index %v out of range (have %v)", i, len(s.full))
	}
	return s.full[i], nil
}

// Canonical returns image i resized to CanonicalSize x CanonicalSize.
// Lanczos resampling, matching how exported images are produced.
func (s *Store) Canonical(i int) (image.Image, error) {
	if i < 0 || i >= len(s.full) {
		return nil, fmt.Errorf("image index %v out of range (have %v)", i, len(s.full))
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	if img, ok := s.canonical[i]; ok {
		return img, nil
	}
	img := imaging.Resize(s.full[i], CanonicalSize, CanonicalSize, imaging.Lanczos)
	s.canonical[i] = img
	return img, nil
}

// Crop returns the sub-region of img covered by box.
func Crop(img image.Image, box anno.Rect) image.Image {
	return imaging.Crop(img, image.Rect(box.X, box.Y, box.X+box.Width, box.Y+box.Height))
}

// DataURL encodes img as an inline PNG data URL, suitable for embedding
// directly in an <img> tag.
func DataURL(img image.Image) (string, error) {
	var sb strings.Builder
	sb.WriteString("data:image/png;base64,")
	enc := base64.NewEncoder(base64.StdEncoding, &sb)
	if err := png.Encode(enc, img); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return sb.String(), nil
}
