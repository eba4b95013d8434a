package annotate

import (
	"image"
	"image/color"
	"testing"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/pkg/types"
)

func newImage(w, h int) *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

func TestDrawRectOutlinesOnly(t *testing.T) {
	img := newImage(50, 50)
	DrawRect(img, types.Box{Left: 10, Top: 10, Right: 30, Bottom: 30}, Highlight, 2)

	if got := img.RGBAAt(10, 10); got != Highlight {
		t.Errorf("corner pixel = %v, want highlight", got)
	}
	if got := img.RGBAAt(29, 20); got != Highlight {
		t.Errorf("right edge pixel = %v, want highlight", got)
	}
	if got := img.RGBAAt(20, 20); got != (color.RGBA{}) {
		t.Errorf("interior pixel = %v, want untouched", got)
	}
	if got := img.RGBAAt(5, 5); got != (color.RGBA{}) {
		t.Errorf("outside pixel = %v, want untouched", got)
	}
}

func TestDrawRectClipsAndSkipsDegenerate(t *testing.T) {
	img := newImage(20, 20)
	DrawRect(img, types.Box{Left: -10, Top: -10, Right: 100, Bottom: 100}, Highlight, 3)
	if got := img.RGBAAt(5, 5); got != (color.RGBA{}) {
		t.Errorf("interior of clipped box painted: %v", got)
	}

	img = newImage(20, 20)
	DrawRect(img, types.Box{Left: 5, Top: 5, Right: 5, Bottom: 15}, Highlight, 2)
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			if img.RGBAAt(x, y) != (color.RGBA{}) {
				t.Fatalf("degenerate box painted pixel (%d,%d)", x, y)
			}
		}
	}

	DrawRect(nil, types.Box{Right: 1, Bottom: 1}, Highlight, 1) // must not panic
}

func TestDrawDetectionsHonorsFlag(t *testing.T) {
	img := newImage(100, 100)
	dets := []types.Detection{
		{Label: "person", Box: types.Box{Left: 0, Top: 0, Right: 20, Bottom: 20}},
		{Label: "dog", Box: types.Box{Left: 50, Top: 50, Right: 70, Bottom: 70}},
	}
	n := DrawDetections(img, dets, func(l string) bool { return l == "person" })
	if n != 1 {
		t.Fatalf("drew %d rectangles, want 1", n)
	}
	if img.RGBAAt(50, 50) != (color.RGBA{}) {
		t.Error("unflagged detection was drawn")
	}
}

func TestDrawStatusPaintsBand(t *testing.T) {
	img := newImage(320, 60)
	for i := range img.Pix {
		img.Pix[i] = 0x80
	}
	DrawStatus(img, "Mobile phone detected")

	// The band starts just above-left of the caption origin.
	if got := img.RGBAAt(8, 8); got.R == 0x80 {
		t.Errorf("caption band not drawn, pixel = %v", got)
	}
	// Far right of the frame stays untouched.
	if got := img.RGBAAt(315, 55); got.R != 0x80 {
		t.Errorf("pixel outside band changed: %v", got)
	}
}
