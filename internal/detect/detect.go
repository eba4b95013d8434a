// Package detect adapts object detectors to the monitor. The detector itself
// is an external collaborator; this package only speaks to it.
package detect

import (
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/pkg/types"
)

// Detector returns the objects found in a frame.
type Detector interface {
	Detect(frame *types.Frame) ([]types.Detection, error)
}

// Func adapts a function to Detector.
type Func func(frame *types.Frame) ([]types.Detection, error)

// Detect calls f.
func (f Func) Detect(frame *types.Frame) ([]types.Detection, error) {
	return f(frame)
}
