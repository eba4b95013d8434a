package detect

import (
	"encoding/json"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/pkg/types"
)

const script = `frames:
  - []
  - [{label: banana}]
  - - label: cell phone
      confidence: 0.8
      box: {left: 10, top: 10, right: 40, bottom: 60}
    - label: banana
`

func labelsOf(dets []types.Detection) []string {
	out := []string{}
	for _, d := range dets {
		out = append(out, d.Label)
	}
	return out
}

func TestLoadScriptCycles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.yaml")
	if err := os.WriteFile(path, []byte(script), 0644); err != nil {
		t.Fatal(err)
	}
	s, err := LoadScript(path)
	if err != nil {
		t.Fatalf("LoadScript: %v", err)
	}

	want := [][]string{{}, {"banana"}, {"cell phone", "banana"}, {}}
	for i, w := range want {
		dets, err := s.Detect(nil)
		if err != nil {
			t.Fatalf("Detect %d: %v", i, err)
		}
		got := labelsOf(dets)
		if len(got) != len(w) {
			t.Fatalf("frame %d labels = %v, want %v", i, got, w)
		}
		for j := range w {
			if got[j] != w[j] {
				t.Errorf("frame %d labels = %v, want %v", i, got, w)
			}
		}
		if i == 2 {
			if dets[0].Confidence != 0.8 || dets[0].Box.Right != 40 {
				t.Errorf("scripted detection = %+v", dets[0])
			}
			if dets[1].Confidence != 1 {
				t.Errorf("default confidence = %v, want 1", dets[1].Confidence)
			}
		}
	}
}

func TestLoadScriptRejectsBadInput(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"empty.yaml":   "frames: []\n",
		"nolabel.yaml": "frames:\n  - [{confidence: 0.5}]\n",
		"invalid.yaml": "frames: [\n",
		"missing.yaml": "",
	}
	for name, body := range cases {
		path := filepath.Join(dir, name)
		if name != "missing.yaml" {
			if err := os.WriteFile(path, []byte(body), 0644); err != nil {
				t.Fatal(err)
			}
		}
		if _, err := LoadScript(path); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestHTTPDetector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "image/jpeg" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if _, err := jpeg.Decode(r.Body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(Response{Detections: []WireDetection{
			{ClassID: 67, ClassName: "cell phone", Confidence: 0.9, BBox: BoundingBox{X: 5, Y: 6, W: 10, H: 20}},
		}})
	}))
	defer srv.Close()

	d := &HTTP{URL: srv.URL, Client: srv.Client()}
	dets, err := d.Detect(&types.Frame{Image: image.NewRGBA(image.Rect(0, 0, 32, 32))})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	want := types.Detection{
		ClassID:    67,
		Label:      "cell phone",
		Confidence: 0.9,
		Box:        types.Box{Left: 5, Top: 6, Right: 15, Bottom: 26},
	}
	if len(dets) != 1 || dets[0] != want {
		t.Errorf("detections = %+v, want %+v", dets, want)
	}
}

func TestHTTPDetectorErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	d := &HTTP{URL: srv.URL, Client: srv.Client()}
	if _, err := d.Detect(&types.Frame{Image: image.NewRGBA(image.Rect(0, 0, 4, 4))}); err == nil {
		t.Error("expected error for 503")
	}
	if _, err := d.Detect(&types.Frame{}); err == nil {
		t.Error("expected error for frame without image")
	}
}

func TestFunc(t *testing.T) {
	d := Func(func(*types.Frame) ([]types.Detection, error) {
		return []types.Detection{{Label: "chair"}}, nil
	})
	dets, _ := d.Detect(nil)
	if len(dets) != 1 || dets[0].Label != "chair" {
		t.Errorf("Func detections = %+v", dets)
	}
}
