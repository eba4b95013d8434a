package video

import (
	"fmt"
	"image"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/pkg/types"
)

// HTTPSource fetches a still image from a camera snapshot URL per capture.
type HTTPSource struct {
	URL    string
	Client *http.Client

	mu    sync.Mutex
	count uint64
}

// NewHTTPSource creates a source for url with the given request timeout.
func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{URL: url, Client: &http.Client{Timeout: timeout}}
}

// Capture downloads and decodes one snapshot. Non-2xx responses are errors.
func (s *HTTPSource) Capture() (*types.Frame, error) {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Get(s.URL)
	if err != nil {
		return nil, fmt.Errorf("video: fetch %s: %w", s.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("video: fetch %s: status %d", s.URL, resp.StatusCode)
	}

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("video: decode snapshot: %w", err)
	}

	s.mu.Lock()
	s.count++
	n := s.count
	s.mu.Unlock()

	return &types.Frame{Number: n, Timestamp: time.Now(), Image: toRGBA(img)}, nil
}
