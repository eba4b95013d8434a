package video

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/internal/logger"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/pkg/types"
)

var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
}

// DirSource replays the image files of a directory in lexical order.
type DirSource struct {
	mu    sync.Mutex
	files []string
	next  int
	count uint64
	loop  bool
	now   func() time.Time
}

// DirOption configures a DirSource.
type DirOption func(*DirSource)

// Loop makes the source wrap around instead of ending.
func Loop(loop bool) DirOption {
	return func(s *DirSource) { s.loop = loop }
}

// OpenDir lists the images in dir. A directory without images is an error.
func OpenDir(dir string, opts ...DirOption) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("video: read dir %s: %w", dir, err)
	}

	s := &DirSource{now: time.Now}
	for _, e := range entries {
		if e.IsDir() || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		s.files = append(s.files, filepath.Join(dir, e.Name()))
	}
	if len(s.files) == 0 {
		return nil, fmt.Errorf("video: no images in %s", dir)
	}
	sort.Strings(s.files)

	for _, opt := range opts {
		opt(s)
	}
	logger.Info("Source", "Replaying %d images from %s (loop=%v)", len(s.files), dir, s.loop)
	return s, nil
}

// Len returns the number of images in one pass.
func (s *DirSource) Len() int {
	return len(s.files)
}

// Capture decodes the next image.
func (s *DirSource) Capture() (*types.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.next >= len(s.files) {
		if !s.loop {
			return nil, ErrSourceExhausted
		}
		s.next = 0
	}
	path := s.files[s.next]
	s.next++

	img, err := decodeFile(path)
	if err != nil {
		return nil, err
	}
	s.count++
	return &types.Frame{Number: s.count, Timestamp: s.now(), Image: toRGBA(img)}, nil
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("video: open %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("video: decode %s: %w", path, err)
	}
	return img, nil
}
