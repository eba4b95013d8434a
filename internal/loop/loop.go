// Package loop drives the per-frame pipeline: capture, detect, classify,
// record and render.
package loop

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/internal/annotate"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/internal/detect"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/internal/evidence"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/internal/labels"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/internal/logger"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/internal/metrics"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/internal/rules"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/internal/video"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/pkg/types"
)

// ErrFatal wraps the error that ended the loop early.
var ErrFatal = errors.New("loop: fatal")

// State is the controller lifecycle state.
type State int

const (
	Idle State = iota
	Streaming
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Streaming:
		return "streaming"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Recorder is the evidence side of the loop.
type Recorder interface {
	Record(reason rules.Reason, objects []string, frame *types.Frame, now time.Time) types.AnomalyRecord
	Close() error
}

var _ Recorder = (*evidence.Recorder)(nil)

// Option configures a Controller.
type Option func(*Controller)

// WithMetrics wires loop counters into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithClock replaces the wall clock used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// Controller runs the frame loop. It is used by a single goroutine; State
// and Frames may be read from others.
type Controller struct {
	source   video.Source
	detector detect.Detector
	engine   *rules.Engine
	recorder Recorder
	sink     video.Sink
	metrics  *metrics.Metrics
	now      func() time.Time

	mu     sync.Mutex
	state  State
	frames uint64
}

// New creates a controller over its collaborators.
func New(src video.Source, det detect.Detector, eng *rules.Engine, rec Recorder, sink video.Sink, opts ...Option) *Controller {
	c := &Controller{
		source:   src,
		detector: det,
		engine:   eng,
		recorder: rec,
		sink:     sink,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run processes frames while the sink is streaming, then performs the
// shutdown persist. An exhausted source ends the run normally. Any other
// capture failure stops the loop and is returned wrapped in ErrFatal, after
// the recorder has been closed.
func (c *Controller) Run() error {
	c.setState(Streaming)
	logger.Info("Loop", "Frame loop started (rules: %s)", strings.Join(c.engine.Rules(), ", "))

	for c.sink.IsStreaming() {
		err := c.step()
		if errors.Is(err, video.ErrSourceExhausted) {
			logger.Info("Loop", "Source exhausted after %d frames", c.Frames())
			break
		}
		if err != nil {
			c.setState(Stopped)
			logger.Error("Loop", "Frame acquisition failed: %v", err)
			if cerr := c.recorder.Close(); cerr != nil {
				logger.Error("Loop", "Shutdown persist failed: %v", cerr)
			}
			return fmt.Errorf("%w: %w", ErrFatal, err)
		}
	}

	c.setState(Stopped)
	logger.Info("Loop", "Frame loop stopped after %d frames", c.Frames())
	if err := c.recorder.Close(); err != nil {
		return fmt.Errorf("loop: close recorder: %w", err)
	}
	return nil
}

func (c *Controller) step() error {
	start := time.Now()

	frame, err := c.source.Capture()
	if err != nil {
		if !errors.Is(err, video.ErrSourceExhausted) {
			c.inc(func(m *metrics.Metrics) { m.CaptureErrors.Add(1) })
		}
		return err
	}
	if frame == nil {
		return errors.New("loop: source returned no frame")
	}
	c.inc(func(m *metrics.Metrics) { m.FramesCaptured.Add(1) })

	dets := c.detect(frame)
	objects := labels.Ordered(dets)
	set := labels.Extract(dets)
	reason := c.engine.Classify(set)
	logger.Info("Loop", "Detected: %v", objects)
	logger.Debug("Loop", "Frame %d: %d objects, distinct %v", frame.Number, set.Total(), set.Distinct())

	if reason.IsAnomaly() {
		now := c.now()
		logger.Warn("Loop", "[ALERT] %s -> %s", evidence.FormatTimestamp(now), reason)
		annotate.DrawDetections(frame.Image, dets, c.engine.Flagged)
		c.recorder.Record(reason, objects, frame, now)
	}

	// Status first, so a sink captioning at render time shows this frame's reason.
	c.sink.SetStatus(reason.String())
	if err := c.sink.Render(frame); err != nil {
		c.inc(func(m *metrics.Metrics) { m.RenderErrors.Add(1) })
		logger.Warn("Loop", "Render failed: %v", err)
	} else {
		c.inc(func(m *metrics.Metrics) { m.FramesRendered.Add(1) })
	}

	c.mu.Lock()
	c.frames++
	c.mu.Unlock()
	c.inc(func(m *metrics.Metrics) {
		m.FramesProcessed.Add(1)
		m.UpdateFrameLatency(start)
	})
	return nil
}

// detect runs the detector. A failing detector degrades the frame to zero
// detections.
func (c *Controller) detect(frame *types.Frame) []types.Detection {
	start := time.Now()
	dets, err := c.detector.Detect(frame)
	c.inc(func(m *metrics.Metrics) { m.UpdateDetectLatency(time.Since(start)) })
	if err != nil {
		c.inc(func(m *metrics.Metrics) { m.DetectErrors.Add(1) })
		logger.Warn("Loop", "Detection failed on frame %d: %v", frame.Number, err)
		return nil
	}
	c.inc(func(m *metrics.Metrics) { m.Detections.Add(uint64(len(dets))) })
	return dets
}

func (c *Controller) inc(f func(m *metrics.Metrics)) {
	if c.metrics != nil {
		f(c.metrics)
	}
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// State returns the lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Frames returns the number of fully processed frames.
func (c *Controller) Frames() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames
}
