// Package video holds the frame source and sink interfaces and the adapters
// the monitor ships with.
package video

import (
	"errors"
	"image"
	"image/draw"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/pkg/types"
)

// ErrSourceExhausted is returned by a finite source with no frames left.
var ErrSourceExhausted = errors.New("video: source exhausted")

// Source yields frames. Capture blocks until a frame is available.
type Source interface {
	Capture() (*types.Frame, error)
}

// Sink consumes annotated frames.
type Sink interface {
	IsStreaming() bool
	Render(frame *types.Frame) error
	SetStatus(text string)
}

// toRGBA returns img as an *image.RGBA, converting when needed.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
