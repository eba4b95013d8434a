// Package annotate draws anomaly highlights and the status caption onto frames.
package annotate

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/pkg/types"
)

// Highlight is the rectangle color used for flagged detections.
var Highlight = color.RGBA{R: 255, G: 0, B: 0, A: 255}

const (
	// DefaultThickness is the rectangle border width in pixels.
	DefaultThickness = 2

	captionPadding = 4
	captionMargin  = 10
)

// DrawRect draws the outline of box onto img, clipped to the image bounds.
// Degenerate boxes draw nothing.
func DrawRect(img *image.RGBA, box types.Box, c color.RGBA, thickness int) {
	if img == nil {
		return
	}
	if thickness < 1 {
		thickness = 1
	}
	r := box.Rect().Canon()
	if r.Empty() {
		return
	}

	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+thickness), // top
		image.Rect(r.Min.X, r.Max.Y-thickness, r.Max.X, r.Max.Y), // bottom
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+thickness, r.Max.Y), // left
		image.Rect(r.Max.X-thickness, r.Min.Y, r.Max.X, r.Max.Y), // right
	}
	src := image.NewUniform(c)
	for _, e := range edges {
		e = e.Intersect(r).Intersect(img.Bounds())
		if e.Empty() {
			continue
		}
		draw.Draw(img, e, src, image.Point{}, draw.Src)
	}
}

// DrawDetections outlines every detection for which flagged returns true and
// reports how many rectangles were drawn.
func DrawDetections(img *image.RGBA, dets []types.Detection, flagged func(label string) bool) int {
	drawn := 0
	for _, d := range dets {
		if !flagged(d.Label) {
			continue
		}
		DrawRect(img, d.Box, Highlight, DefaultThickness)
		drawn++
	}
	return drawn
}

// DrawStatus writes text in white on a black band at the top-left corner.
func DrawStatus(img *image.RGBA, text string) {
	if img == nil || text == "" {
		return
	}
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.White),
		Face: face,
	}
	width := d.MeasureString(text).Ceil()
	origin := img.Bounds().Min.Add(image.Pt(captionMargin, captionMargin))
	band := image.Rect(
		origin.X-captionPadding,
		origin.Y-captionPadding,
		origin.X+width+captionPadding,
		origin.Y+face.Height+captionPadding,
	).Intersect(img.Bounds())
	draw.Draw(img, band, image.NewUniform(color.Black), image.Point{}, draw.Src)

	d.Dot = fixed.P(origin.X, origin.Y+face.Ascent)
	d.DrawString(text)
}
