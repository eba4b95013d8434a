package detect

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/pkg/types"
)

// ScriptDetection is one scripted detection. Only the label is required.
type ScriptDetection struct {
	ClassID    int       `yaml:"class_id"`
	Label      string    `yaml:"label"`
	Confidence float64   `yaml:"confidence"`
	Box        types.Box `yaml:"box"`
}

// ScriptFile is the YAML layout of a detection script:
//
//	frames:
//	  - []
//	  - [{label: banana}]
//	  - [{label: cell phone, confidence: 0.8, box: {left: 10, top: 10, right: 40, bottom: 60}}]
type ScriptFile struct {
	Frames [][]ScriptDetection `yaml:"frames"`
}

// Script replays fixed detections, one entry per frame, cycling when the
// script runs out.
type Script struct {
	mu     sync.Mutex
	frames [][]types.Detection
	next   int
}

// NewScript creates a script detector from in-memory frames.
func NewScript(frames [][]types.Detection) *Script {
	return &Script{frames: frames}
}

// LoadScript reads a YAML detection script.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("detect: read script: %w", err)
	}
	var file ScriptFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("detect: parse script %s: %w", path, err)
	}
	if len(file.Frames) == 0 {
		return nil, fmt.Errorf("detect: script %s has no frames", path)
	}

	frames := make([][]types.Detection, len(file.Frames))
	for i, dets := range file.Frames {
		for _, d := range dets {
			if d.Label == "" {
				return nil, fmt.Errorf("detect: script %s frame %d: detection without label", path, i)
			}
			conf := d.Confidence
			if conf == 0 {
				conf = 1
			}
			frames[i] = append(frames[i], types.Detection{
				ClassID:    d.ClassID,
				Label:      d.Label,
				Confidence: conf,
				Box:        d.Box,
			})
		}
	}
	return NewScript(frames), nil
}

// Detect implements Detector.
func (s *Script) Detect(*types.Frame) ([]types.Detection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.frames) == 0 {
		return nil, nil
	}
	dets := s.frames[s.next%len(s.frames)]
	s.next++
	return append([]types.Detection(nil), dets...), nil
}
