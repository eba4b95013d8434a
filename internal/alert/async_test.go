package alert

import (
	"sync"
	"testing"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/internal/rules"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/pkg/types"
)

func TestAsyncDeliversInOrderAndDrainsOnClose(t *testing.T) {
	var (
		mu  sync.Mutex
		got []int
	)
	next := NotifierFunc(func(_ types.AnomalyRecord, reason rules.Reason) {
		mu.Lock()
		got = append(got, reason.Count)
		mu.Unlock()
	})

	a := NewAsync(next, 8)
	for i := 1; i <= 5; i++ {
		a.Notify(sampleRecord(), rules.Reason{Kind: rules.MultiplePersons, Count: i})
	}
	a.Close()
	a.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 5 {
		t.Fatalf("delivered %d, want 5", len(got))
	}
	for i, n := range got {
		if n != i+1 {
			t.Errorf("delivery %d = %d, want %d", i, n, i+1)
		}
	}
	if a.Dropped() != 0 {
		t.Errorf("dropped = %d", a.Dropped())
	}
}

func TestAsyncDropsWhenQueueIsFull(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	next := NotifierFunc(func(types.AnomalyRecord, rules.Reason) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
	})

	a := NewAsync(next, 1)
	a.Notify(sampleRecord(), rules.Reason{Kind: rules.EmptyChairDetected})
	<-started

	// The worker is blocked on the first anomaly; one fits in the queue.
	a.Notify(sampleRecord(), rules.Reason{Kind: rules.EmptyChairDetected})
	a.Notify(sampleRecord(), rules.Reason{Kind: rules.EmptyChairDetected})
	if a.Dropped() != 1 {
		t.Errorf("dropped = %d, want 1", a.Dropped())
	}

	close(release)
	a.Close()
	a.Notify(sampleRecord(), rules.Reason{Kind: rules.EmptyChairDetected})
	if a.Dropped() != 1 {
		t.Errorf("notify after close counted as drop: %d", a.Dropped())
	}
}
