package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	// Frame loop counters
	FramesCaptured  atomic.Uint64
	FramesProcessed atomic.Uint64
	FramesRendered  atomic.Uint64
	Detections      atomic.Uint64

	// Evidence counters
	Anomalies      atomic.Uint64
	TableWrites    atomic.Uint64
	TableRecords   atomic.Uint64 // Current accumulating table length
	SnapshotsSaved atomic.Uint64
	AlertsSent     atomic.Uint64

	// Error counters
	CaptureErrors  atomic.Uint64
	DetectErrors   atomic.Uint64
	RenderErrors   atomic.Uint64
	LogErrors      atomic.Uint64
	TableErrors    atomic.Uint64
	SnapshotErrors atomic.Uint64
	AlertErrors    atomic.Uint64

	// Latency tracking
	DetectLatencyMs atomic.Uint64 // Last detection latency in ms
	FrameLatencyMs  atomic.Uint64 // Last full iteration latency in ms

	reasons  *prometheus.CounterVec
	registry *prometheus.Registry
}

// New creates a new Metrics instance with Prometheus collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		reasons: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "anomaly_reasons_total",
				Help: "Anomalous frames by rule that decided the reason",
			},
			[]string{"kind"},
		),
	}

	m.registerPrometheusMetrics()

	return m
}

type gaugeDef struct {
	name string
	help string
	v    *atomic.Uint64
}

// registerPrometheusMetrics registers all metrics with Prometheus
func (m *Metrics) registerPrometheusMetrics() {
	defs := []gaugeDef{
		{"anomaly_frames_captured_total", "Total frames captured from the video source", &m.FramesCaptured},
		{"anomaly_frames_processed_total", "Total frames classified", &m.FramesProcessed},
		{"anomaly_frames_rendered_total", "Total frames rendered to the sink", &m.FramesRendered},
		{"anomaly_detections_total", "Total detections returned by the detector", &m.Detections},
		{"anomaly_frames_total", "Total anomalous frames recorded", &m.Anomalies},
		{"anomaly_table_writes_total", "Total rewrites of the secondary table file", &m.TableWrites},
		{"anomaly_table_records", "Records held in the accumulating table", &m.TableRecords},
		{"anomaly_snapshots_saved_total", "Total snapshot images saved", &m.SnapshotsSaved},
		{"anomaly_alerts_sent_total", "Total alerts delivered to notifiers", &m.AlertsSent},
		{"anomaly_capture_errors_total", "Total frame acquisition failures", &m.CaptureErrors},
		{"anomaly_detect_errors_total", "Total detector failures", &m.DetectErrors},
		{"anomaly_render_errors_total", "Total render failures", &m.RenderErrors},
		{"anomaly_log_errors_total", "Total durable log append failures", &m.LogErrors},
		{"anomaly_table_errors_total", "Total secondary table write failures", &m.TableErrors},
		{"anomaly_snapshot_errors_total", "Total snapshot save failures", &m.SnapshotErrors},
		{"anomaly_alert_errors_total", "Total alert delivery failures", &m.AlertErrors},
		{"anomaly_detect_latency_ms", "Last detection latency in milliseconds", &m.DetectLatencyMs},
		{"anomaly_frame_latency_ms", "Last frame iteration latency in milliseconds", &m.FrameLatencyMs},
	}

	for _, d := range defs {
		v := d.v
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: d.name,
				Help: d.help,
			},
			func() float64 { return float64(v.Load()) },
		))
	}

	m.registry.MustRegister(m.reasons)
}

// ObserveReason counts one anomalous frame under the given rule kind
func (m *Metrics) ObserveReason(kind string) {
	m.reasons.WithLabelValues(kind).Inc()
}

// UpdateDetectLatency stores the latest detection latency
func (m *Metrics) UpdateDetectLatency(d time.Duration) {
	m.DetectLatencyMs.Store(uint64(d.Milliseconds()))
}

// UpdateFrameLatency stores the latest iteration latency
func (m *Metrics) UpdateFrameLatency(start time.Time) {
	m.FrameLatencyMs.Store(uint64(time.Since(start).Milliseconds()))
}

// Registry exposes the private registry (tests, extra collectors)
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartServer serves /metrics on addr until the listener fails
func (m *Metrics) StartServer(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return http.ListenAndServe(addr, mux)
}
