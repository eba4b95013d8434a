package webmonitor

import (
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/internal/evidence"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/pkg/types"
)

// MonitorStats describes the live view.
type MonitorStats struct {
	FramesRendered uint64  `json:"frames_rendered"`
	CurrentFPS     float64 `json:"current_fps"`
	Status         string  `json:"status"`
	Streaming      bool    `json:"streaming"`
	StreamClients  int     `json:"stream_clients"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
}

// StatusPayload is the body of /api/status and /api/status/stream.
type StatusPayload struct {
	Monitor        MonitorStats          `json:"monitor"`
	Recorder       *evidence.Status      `json:"recorder,omitempty"`
	LatestAnomaly  *types.AnomalyRecord  `json:"latest_anomaly"`
	AnomalyHistory []types.AnomalyRecord `json:"anomaly_history"`
	Timestamp      float64               `json:"timestamp"`
}

// AnomaliesPayload is the body of /api/anomalies.
type AnomaliesPayload struct {
	Count   int                   `json:"count"`
	Records []types.AnomalyRecord `json:"records"`
}
