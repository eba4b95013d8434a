package labels

import (
	"reflect"
	"testing"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/pkg/types"
)

func dets(names ...string) []types.Detection {
	out := make([]types.Detection, len(names))
	for i, n := range names {
		out[i] = types.Detection{Label: n}
	}
	return out
}

func TestExtractCountsCaseInsensitively(t *testing.T) {
	m := Extract(dets("Person", "person", " PERSON ", "Chair"))
	if got := m.Count("person"); got != 3 {
		t.Errorf("person count = %d, want 3", got)
	}
	if !m.Has("CHAIR") {
		t.Error("chair should be present regardless of query case")
	}
	if m.Total() != 4 {
		t.Errorf("total = %d, want 4", m.Total())
	}
}

func TestExtractEmpty(t *testing.T) {
	m := Extract(nil)
	if len(m) != 0 || m.Total() != 0 || m.Has("person") {
		t.Errorf("empty input produced %v", m)
	}
}

func TestOrderedKeepsDuplicatesAndOrder(t *testing.T) {
	got := Ordered(dets("Cell Phone", "banana", "Banana"))
	want := []string{"cell phone", "banana", "banana"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Ordered = %v, want %v", got, want)
	}
}

func TestDistinctSorted(t *testing.T) {
	got := Of("person", "chair", "person", "apple").Distinct()
	want := []string{"apple", "chair", "person"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Distinct = %v, want %v", got, want)
	}
}
