package types

import (
	"image"
	"testing"
)

func TestRecordRowJoinsLabels(t *testing.T) {
	rec := AnomalyRecord{
		Timestamp:       "2026-10-14 09:30:00",
		Reason:          "Mobile phone detected",
		DetectedObjects: []string{"cell phone", "banana", "banana"},
	}
	row := rec.Row()
	if len(row) != 3 {
		t.Fatalf("row has %d columns, want 3", len(row))
	}
	if row[2] != "cell phone, banana, banana" {
		t.Errorf("detected objects = %q", row[2])
	}
}

func TestBoxRect(t *testing.T) {
	b := Box{Left: 10.7, Top: 5, Right: 40.2, Bottom: 30}
	if got, want := b.Rect(), image.Rect(10, 5, 40, 30); got != want {
		t.Errorf("Rect() = %v, want %v", got, want)
	}
}

func TestFrameDimensions(t *testing.T) {
	var empty *Frame
	if empty.Width() != 0 || empty.Height() != 0 {
		t.Errorf("nil frame should report zero size")
	}
	f := &Frame{Image: image.NewRGBA(image.Rect(0, 0, 64, 48))}
	if f.Width() != 64 || f.Height() != 48 {
		t.Errorf("size = %dx%d, want 64x48", f.Width(), f.Height())
	}
}
