package webmonitor

import (
	"sync"
	"time"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/internal/rules"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/pkg/types"
)

// Monitor aggregates live-view statistics and keeps a short history of the
// most recent anomalies. It implements alert.Notifier.
type Monitor struct {
	startTime   time.Time
	display     *Display
	historySize int

	mu           sync.Mutex
	history      []types.AnomalyRecord
	lastRendered uint64
	lastSample   time.Time
	currentFPS   float64
}

// NewMonitor creates a Monitor reporting on display.
func NewMonitor(display *Display, historySize int) *Monitor {
	now := time.Now()
	return &Monitor{
		startTime:   now,
		display:     display,
		historySize: historySize,
		lastSample:  now,
	}
}

// Notify records an anomaly in the history, newest first.
func (m *Monitor) Notify(rec types.AnomalyRecord, _ rules.Reason) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.history = append([]types.AnomalyRecord{rec}, m.history...)
	if len(m.history) > m.historySize {
		m.history = m.history[:m.historySize]
	}
}

// Snapshot returns the current monitor stats and anomaly history.
func (m *Monitor) Snapshot() (MonitorStats, *types.AnomalyRecord, []types.AnomalyRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	rendered := m.display.Rendered()
	if elapsed := now.Sub(m.lastSample).Seconds(); elapsed >= 1 {
		m.currentFPS = float64(rendered-m.lastRendered) / elapsed
		m.lastRendered = rendered
		m.lastSample = now
	}

	stats := MonitorStats{
		FramesRendered: rendered,
		CurrentFPS:     m.currentFPS,
		Status:         m.display.Status(),
		Streaming:      m.display.IsStreaming(),
		StreamClients:  m.display.Clients(),
		UptimeSeconds:  now.Sub(m.startTime).Seconds(),
	}

	historyCopy := make([]types.AnomalyRecord, len(m.history))
	copy(historyCopy, m.history)

	var latest *types.AnomalyRecord
	if len(historyCopy) > 0 {
		l := historyCopy[0]
		latest = &l
	}
	return stats, latest, historyCopy
}
