// Package labels turns a frame's detections into the label counts the rule
// engine matches against.
package labels

import (
	"sort"
	"strings"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/pkg/types"
)

// Multiset counts how many detections in a frame carry each label.
type Multiset map[string]int

// Normalize lowercases and trims a detector label.
func Normalize(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

// Extract builds the multiset for one frame. Empty input yields an empty set.
func Extract(dets []types.Detection) Multiset {
	m := make(Multiset, len(dets))
	for _, d := range dets {
		m[Normalize(d.Label)]++
	}
	return m
}

// Of builds a multiset from raw label strings.
func Of(labels ...string) Multiset {
	m := make(Multiset, len(labels))
	for _, l := range labels {
		m[Normalize(l)]++
	}
	return m
}

// Ordered returns the normalized labels in detection order, duplicates kept.
func Ordered(dets []types.Detection) []string {
	out := make([]string, len(dets))
	for i, d := range dets {
		out[i] = Normalize(d.Label)
	}
	return out
}

// Count returns the number of detections with the given label.
func (m Multiset) Count(label string) int {
	return m[Normalize(label)]
}

// Has reports whether at least one detection carries label.
func (m Multiset) Has(label string) bool {
	return m.Count(label) > 0
}

// Total is the number of detections counted.
func (m Multiset) Total() int {
	n := 0
	for _, c := range m {
		n += c
	}
	return n
}

// Distinct returns the distinct labels, sorted.
func (m Multiset) Distinct() []string {
	out := make([]string, 0, len(m))
	for l := range m {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}
