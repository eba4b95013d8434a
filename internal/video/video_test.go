package video

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/bmp"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/pkg/types"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func writeImages(t *testing.T, dir string) {
	t.Helper()
	write := func(name string, enc func(*os.File) error) {
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			t.Fatal(err)
		}
		defer f.Close()
		if err := enc(f); err != nil {
			t.Fatalf("encode %s: %v", name, err)
		}
	}
	write("b.png", func(f *os.File) error { return png.Encode(f, solid(4, 2, color.RGBA{A: 255})) })
	write("a.jpg", func(f *os.File) error { return jpeg.Encode(f, solid(8, 6, color.RGBA{A: 255}), nil) })
	write("c.bmp", func(f *os.File) error { return bmp.Encode(f, solid(2, 2, color.RGBA{A: 255})) })
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestDirSourceLexicalOrderAndExhaustion(t *testing.T) {
	dir := t.TempDir()
	writeImages(t, dir)

	src, err := OpenDir(dir)
	if err != nil {
		t.Fatalf("OpenDir: %v", err)
	}
	if src.Len() != 3 {
		t.Fatalf("Len = %d, want 3", src.Len())
	}

	wantWidths := []int{8, 4, 2}
	for i, w := range wantWidths {
		f, err := src.Capture()
		if err != nil {
			t.Fatalf("Capture %d: %v", i, err)
		}
		if f.Width() != w || f.Number != uint64(i+1) {
			t.Errorf("frame %d: width %d number %d, want width %d", i, f.Width(), f.Number, w)
		}
	}
	if _, err := src.Capture(); !errors.Is(err, ErrSourceExhausted) {
		t.Errorf("Capture after end = %v, want ErrSourceExhausted", err)
	}
}

func TestDirSourceLoop(t *testing.T) {
	dir := t.TempDir()
	writeImages(t, dir)

	src, err := OpenDir(dir, Loop(true))
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 7; i++ {
		if _, err := src.Capture(); err != nil {
			t.Fatalf("Capture %d: %v", i, err)
		}
	}
}

func TestOpenDirWithoutImages(t *testing.T) {
	if _, err := OpenDir(t.TempDir()); err == nil {
		t.Error("expected error for empty directory")
	}
}

func TestHTTPSource(t *testing.T) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, solid(16, 9, color.RGBA{R: 200, A: 255}), nil); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/snapshot.jpg" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(buf.Bytes())
	}))
	defer srv.Close()

	src := &HTTPSource{URL: srv.URL + "/snapshot.jpg", Client: srv.Client()}
	f, err := src.Capture()
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if f.Width() != 16 || f.Height() != 9 || f.Number != 1 {
		t.Errorf("frame = %dx%d #%d", f.Width(), f.Height(), f.Number)
	}

	missing := &HTTPSource{URL: srv.URL + "/other", Client: srv.Client()}
	if _, err := missing.Capture(); err == nil {
		t.Error("expected error for 404")
	}
}

func TestHeadlessLimitAndStop(t *testing.T) {
	h := NewHeadless(2)
	for i := 0; i < 2; i++ {
		if !h.IsStreaming() {
			t.Fatalf("stopped early at %d", i)
		}
		h.Render(&types.Frame{Number: uint64(i + 1)})
	}
	if h.IsStreaming() {
		t.Error("still streaming after the frame limit")
	}

	u := NewHeadless(0)
	u.SetStatus("None")
	if !u.IsStreaming() || u.Status() != "None" {
		t.Error("unlimited sink should stream")
	}
	u.Stop()
	if u.IsStreaming() {
		t.Error("streaming after Stop")
	}
}

type failingSink struct{ Headless }

func (f *failingSink) Render(*types.Frame) error { return errors.New("display gone") }

func TestMulti(t *testing.T) {
	a, b := NewHeadless(0), &failingSink{}
	m := Multi{a, b}

	if err := m.Render(&types.Frame{}); err == nil {
		t.Error("expected render error from failing member")
	}
	if a.Rendered() != 1 {
		t.Error("healthy member did not render")
	}
	m.SetStatus("Mobile phone detected")
	if b.Status() != "Mobile phone detected" {
		t.Errorf("status = %q", b.Status())
	}

	b.Stop()
	if m.IsStreaming() {
		t.Error("Multi streams while a member stopped")
	}
	if (Multi{}).IsStreaming() {
		t.Error("empty Multi should not stream")
	}
}
