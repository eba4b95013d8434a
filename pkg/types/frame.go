package types

import (
	"image"
	"strings"
	"time"
)

// Frame is one captured video frame. Annotation draws into Image in place.
type Frame struct {
	Number    uint64      // Sequential frame number assigned by the source
	Timestamp time.Time   // Capture timestamp
	Image     *image.RGBA // Decoded pixels
}

// Width returns the frame width in pixels (0 for an empty frame)
func (f *Frame) Width() int {
	if f == nil || f.Image == nil {
		return 0
	}
	return f.Image.Bounds().Dx()
}

// Height returns the frame height in pixels (0 for an empty frame)
func (f *Frame) Height() int {
	if f == nil || f.Image == nil {
		return 0
	}
	return f.Image.Bounds().Dy()
}

// Box is a detection bounding box given by its four edges in pixel coordinates.
type Box struct {
	Left   float64 `json:"left" yaml:"left"`
	Top    float64 `json:"top" yaml:"top"`
	Right  float64 `json:"right" yaml:"right"`
	Bottom float64 `json:"bottom" yaml:"bottom"`
}

// Rect converts the box to an integer image rectangle.
func (b Box) Rect() image.Rectangle {
	return image.Rect(int(b.Left), int(b.Top), int(b.Right), int(b.Bottom))
}

// Detection is a single object instance reported by the detector for one frame.
type Detection struct {
	ClassID    int     `json:"class_id" yaml:"class_id"`
	Label      string  `json:"label" yaml:"label"`
	Confidence float64 `json:"confidence" yaml:"confidence"`
	Box        Box     `json:"box" yaml:"box"`
}

// AnomalyRecord is the evidence row persisted for one anomalous frame.
type AnomalyRecord struct {
	Timestamp       string   `json:"timestamp"`
	Reason          string   `json:"anomaly_reason"`
	DetectedObjects []string `json:"detected_objects"`
}

// Row returns the record as the three CSV columns written to disk.
func (r AnomalyRecord) Row() []string {
	return []string{r.Timestamp, r.Reason, JoinLabels(r.DetectedObjects)}
}

// JoinLabels joins labels with ", " (duplicates and order preserved)
func JoinLabels(labels []string) string {
	return strings.Join(labels, ", ")
}

// CSVHeader is the header row shared by the durable log and the table file.
var CSVHeader = []string{"timestamp", "anomaly_reason", "detected_objects"}
