package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.FramesProcessed.Add(4)
	m.Anomalies.Add(2)
	m.ObserveReason("food_detected")
	m.ObserveReason("food_detected")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	text := string(body)

	for _, want := range []string{
		"anomaly_frames_processed_total 4",
		"anomaly_frames_total 2",
		`anomaly_reasons_total{kind="food_detected"} 2`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestRegistryGathers(t *testing.T) {
	m := New()
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(families) < 18 {
		t.Errorf("gathered %d families, want at least 18", len(families))
	}
}
