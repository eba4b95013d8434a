package alert

import (
	"sync"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/internal/logger"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/internal/rules"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/pkg/types"
)

type queued struct {
	rec    types.AnomalyRecord
	reason rules.Reason
}

// Async delivers to a slow notifier from its own goroutine. Notify never
// blocks: when the queue is full the anomaly is dropped for this notifier.
type Async struct {
	next  Notifier
	queue chan queued
	done  chan struct{}

	mu      sync.Mutex
	closed  bool
	dropped uint64
}

// NewAsync starts the delivery goroutine with room for size pending anomalies.
func NewAsync(next Notifier, size int) *Async {
	if size < 1 {
		size = 1
	}
	a := &Async{
		next:  next,
		queue: make(chan queued, size),
		done:  make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Async) run() {
	defer close(a.done)
	for q := range a.queue {
		a.next.Notify(q.rec, q.reason)
	}
}

// Notify implements Notifier.
func (a *Async) Notify(rec types.AnomalyRecord, reason rules.Reason) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	select {
	case a.queue <- queued{rec: rec, reason: reason}:
	default:
		a.dropped++
		logger.Warn("Alert", "Notification queue full, dropping: %s", rec.Reason)
	}
}

// Dropped returns the number of anomalies dropped on a full queue.
func (a *Async) Dropped() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dropped
}

// Close stops accepting anomalies and waits until the queue is drained.
func (a *Async) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()
	<-a.done
}
