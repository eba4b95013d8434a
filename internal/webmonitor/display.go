package webmonitor

import (
	"bytes"
	"errors"
	"image"
	"image/draw"
	"image/jpeg"
	"sync"
	"time"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/internal/annotate"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/pkg/types"
)

// Display is the browser-facing video sink. Each rendered frame is captioned
// with the current status, encoded as JPEG and fanned out to MJPEG clients.
type Display struct {
	frames  *FrameBroadcaster
	quality int

	mu        sync.Mutex
	status    string
	rendered  uint64
	latest    []byte
	lastFrame time.Time
	stopped   bool
}

// NewDisplay creates a display encoding at the given JPEG quality.
func NewDisplay(quality int) *Display {
	if quality <= 0 || quality > 100 {
		quality = DefaultConfig().JPEGQuality
	}
	return &Display{
		frames:  NewFrameBroadcaster(),
		quality: quality,
		status:  "None",
	}
}

// IsStreaming reports whether the display is still open.
func (d *Display) IsStreaming() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.stopped
}

// Render captions a copy of the frame and publishes it. The frame itself is
// left untouched.
func (d *Display) Render(frame *types.Frame) error {
	if frame == nil || frame.Image == nil {
		return errors.New("webmonitor: frame has no image")
	}

	d.mu.Lock()
	status := d.status
	d.mu.Unlock()

	b := frame.Image.Bounds()
	img := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(img, img.Bounds(), frame.Image, b.Min, draw.Src)
	annotate.DrawStatus(img, status)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: d.quality}); err != nil {
		return err
	}
	data := buf.Bytes()

	d.mu.Lock()
	d.rendered++
	d.latest = data
	d.lastFrame = time.Now()
	d.mu.Unlock()

	d.frames.broadcast(data)
	return nil
}

// SetStatus sets the caption drawn on subsequent frames.
func (d *Display) SetStatus(text string) {
	d.mu.Lock()
	d.status = text
	d.mu.Unlock()
}

// Stop closes the display. The frame loop observes it at its next iteration
// and MJPEG clients are disconnected.
func (d *Display) Stop() {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()
	d.frames.Close()
}

// Status returns the current status text.
func (d *Display) Status() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

// Rendered returns the number of frames rendered.
func (d *Display) Rendered() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rendered
}

// Latest returns the last encoded frame.
func (d *Display) Latest() ([]byte, time.Time, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.latest, d.lastFrame, d.latest != nil
}

// Subscribe registers an MJPEG client.
func (d *Display) Subscribe() (int, <-chan []byte) {
	return d.frames.Subscribe()
}

// Unsubscribe removes an MJPEG client.
func (d *Display) Unsubscribe(id int) {
	d.frames.Unsubscribe(id)
}

// Clients returns the number of MJPEG clients.
func (d *Display) Clients() int {
	return d.frames.Clients()
}
