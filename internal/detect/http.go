package detect

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image/jpeg"
	"io"
	"net/http"
	"time"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/pkg/types"
)

// BoundingBox is the pixel box of the detection JSON.
type BoundingBox struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// WireDetection is one detection in the inference service response.
type WireDetection struct {
	ClassID    int         `json:"class_id"`
	ClassName  string      `json:"class_name"`
	Confidence float64     `json:"confidence"`
	BBox       BoundingBox `json:"bbox"`
}

// Response is the body returned by the inference service.
type Response struct {
	Detections []WireDetection `json:"detections"`
}

// HTTP posts each frame as JPEG to an inference endpoint.
type HTTP struct {
	URL     string
	Client  *http.Client
	Quality int
}

// NewHTTP creates an HTTP detector with the given request timeout.
func NewHTTP(url string, timeout time.Duration) *HTTP {
	return &HTTP{URL: url, Client: &http.Client{Timeout: timeout}, Quality: 85}
}

// Detect implements Detector.
func (h *HTTP) Detect(frame *types.Frame) ([]types.Detection, error) {
	if frame == nil || frame.Image == nil {
		return nil, fmt.Errorf("detect: frame has no image")
	}

	var body bytes.Buffer
	if err := jpeg.Encode(&body, frame.Image, &jpeg.Options{Quality: h.quality()}); err != nil {
		return nil, fmt.Errorf("detect: encode frame: %w", err)
	}

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Post(h.URL, "image/jpeg", &body)
	if err != nil {
		return nil, fmt.Errorf("detect: post %s: %w", h.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("detect: %s: status %d: %s", h.URL, resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("detect: decode response: %w", err)
	}
	return out.toDetections(), nil
}

func (h *HTTP) quality() int {
	if h.Quality <= 0 || h.Quality > 100 {
		return 85
	}
	return h.Quality
}

func (r Response) toDetections() []types.Detection {
	dets := make([]types.Detection, 0, len(r.Detections))
	for _, d := range r.Detections {
		dets = append(dets, types.Detection{
			ClassID:    d.ClassID,
			Label:      d.ClassName,
			Confidence: d.Confidence,
			Box: types.Box{
				Left:   float64(d.BBox.X),
				Top:    float64(d.BBox.Y),
				Right:  float64(d.BBox.X + d.BBox.W),
				Bottom: float64(d.BBox.Y + d.BBox.H),
			},
		})
	}
	return dets
}
