package evidence

import (
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"strings"

	"golang.org/x/image/draw"
)

// ImageSaver writes a frame image to path.
type ImageSaver interface {
	SaveImage(path string, img image.Image) error
}

// ImageSaverFunc adapts a function to ImageSaver.
type ImageSaverFunc func(path string, img image.Image) error

// SaveImage calls f.
func (f ImageSaverFunc) SaveImage(path string, img image.Image) error {
	return f(path, img)
}

// JPEGSaver encodes snapshots as JPEG.
type JPEGSaver struct {
	Quality  int // 1-100, 0 means jpeg.DefaultQuality
	MaxWidth int // downscale wider images to this width, 0 keeps the original size
}

// SaveImage encodes img to path, overwriting any existing file.
func (s JPEGSaver) SaveImage(path string, img image.Image) error {
	if img == nil {
		return fmt.Errorf("snapshot: no image")
	}
	img = s.fit(img)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("snapshot: create %s: %w", path, err)
	}
	quality := s.Quality
	if quality <= 0 {
		quality = jpeg.DefaultQuality
	}
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: quality}); err != nil {
		f.Close()
		return fmt.Errorf("snapshot: encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("snapshot: close %s: %w", path, err)
	}
	return nil
}

func (s JPEGSaver) fit(img image.Image) image.Image {
	b := img.Bounds()
	if s.MaxWidth <= 0 || b.Dx() <= s.MaxWidth {
		return img
	}
	h := b.Dy() * s.MaxWidth / b.Dx()
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, s.MaxWidth, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// SnapshotName derives the snapshot file name from a formatted timestamp,
// replacing ':' so the name is valid on every filesystem.
func SnapshotName(timestamp string) string {
	return "anomaly_" + strings.ReplaceAll(timestamp, ":", "-") + ".jpg"
}
