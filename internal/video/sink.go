package video

import (
	"sync"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/pkg/types"
)

// Headless is a sink without a display. It streams until Stop is called or
// until an optional frame limit is reached.
type Headless struct {
	mu       sync.Mutex
	limit    uint64
	rendered uint64
	stopped  bool
	status   string
	last     *types.Frame
}

// NewHeadless creates a headless sink. limit 0 streams until Stop.
func NewHeadless(limit uint64) *Headless {
	return &Headless{limit: limit}
}

// IsStreaming implements Sink.
func (h *Headless) IsStreaming() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return false
	}
	return h.limit == 0 || h.rendered < h.limit
}

// Render implements Sink.
func (h *Headless) Render(frame *types.Frame) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rendered++
	h.last = frame
	return nil
}

// SetStatus implements Sink.
func (h *Headless) SetStatus(text string) {
	h.mu.Lock()
	h.status = text
	h.mu.Unlock()
}

// Stop ends streaming at the next IsStreaming check.
func (h *Headless) Stop() {
	h.mu.Lock()
	h.stopped = true
	h.mu.Unlock()
}

// Status returns the last status text.
func (h *Headless) Status() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// Rendered returns the number of frames rendered.
func (h *Headless) Rendered() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rendered
}

// Last returns the most recently rendered frame.
func (h *Headless) Last() *types.Frame {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last
}

// Multi fans frames and status out to several sinks. It streams while every
// member streams.
type Multi []Sink

// IsStreaming implements Sink.
func (m Multi) IsStreaming() bool {
	for _, s := range m {
		if !s.IsStreaming() {
			return false
		}
	}
	return len(m) > 0
}

// Render implements Sink. Every member renders; the first error is returned.
func (m Multi) Render(frame *types.Frame) error {
	var first error
	for _, s := range m {
		if err := s.Render(frame); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// SetStatus implements Sink.
func (m Multi) SetStatus(text string) {
	for _, s := range m {
		s.SetStatus(text)
	}
}
