// Package webmonitor serves the live view: an MJPEG stream of captioned
// frames, recorder status, the anomaly table and an anomaly event stream.
package webmonitor

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/internal/evidence"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/internal/logger"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/internal/rules"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/pkg/types"
)

// Recorder is the read side of the evidence recorder.
type Recorder interface {
	Status() evidence.Status
	Records() []types.AnomalyRecord
}

// OfferHandler answers WebRTC offers.
type OfferHandler interface {
	HandleOffer(offerJSON []byte) ([]byte, error)
}

// Server serves the live monitor endpoints.
type Server struct {
	cfg      Config
	display  *Display
	events   *EventBroadcaster
	monitor  *Monitor
	recorder Recorder
	webrtc   OfferHandler
}

// NewServer returns a configured monitor server. recorder and webrtc may be
// nil; their endpoints then report empty results or 503.
func NewServer(cfg Config, display *Display, events *EventBroadcaster, recorder Recorder, webrtc OfferHandler) *Server {
	cfg = cfg.withDefaults()
	if events == nil {
		events = NewEventBroadcaster(nil)
	}
	return &Server{
		cfg:      cfg,
		display:  display,
		events:   events,
		monitor:  NewMonitor(display, cfg.HistorySize),
		recorder: recorder,
		webrtc:   webrtc,
	}
}

// SetRecorder attaches the recorder reported by the status and anomaly
// endpoints. It must be called before the server starts serving.
func (s *Server) SetRecorder(r Recorder) {
	s.recorder = r
}

// Notify implements alert.Notifier: the anomaly enters the history and is
// pushed to event stream clients.
func (s *Server) Notify(rec types.AnomalyRecord, reason rules.Reason) {
	s.monitor.Notify(rec, reason)
	s.events.Notify(rec, reason)
}

// Monitor returns the history keeper.
func (s *Server) Monitor() *Monitor {
	return s.monitor
}

// Events returns the SSE broadcaster.
func (s *Server) Events() *EventBroadcaster {
	return s.events
}

// Handler exposes the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/stream", s.handleStream)
	mux.HandleFunc("/snapshot.jpg", s.handleSnapshot)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/status/stream", s.handleStatusStream)
	mux.HandleFunc("/api/anomalies", s.handleAnomalies)
	mux.HandleFunc("/api/anomalies/stream", s.handleAnomaliesStream)
	mux.HandleFunc("/api/webrtc/offer", s.handleWebRTCOffer)

	return mux
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexHTML))
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id, frameCh := s.display.Subscribe()
	defer s.display.Unsubscribe(id)

	latest, _, _ := s.display.Latest()
	streamMJPEGFromChannel(w, r, frameCh, latest, s.cfg.BlankInterval)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	data, at, ok := s.display.Latest()
	if !ok {
		http.Error(w, "No frame rendered yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Last-Modified", at.UTC().Format(http.TimeFormat))
	_, _ = w.Write(data)
}

func (s *Server) statusPayload() StatusPayload {
	stats, latest, history := s.monitor.Snapshot()
	payload := StatusPayload{
		Monitor:        stats,
		LatestAnomaly:  latest,
		AnomalyHistory: history,
		Timestamp:      float64(time.Now().Unix()),
	}
	if s.recorder != nil {
		st := s.recorder.Status()
		payload.Recorder = &st
	}
	return payload
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.statusPayload())
}

func (s *Server) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(s.cfg.StatusInterval)
	defer ticker.Stop()

	for {
		if err := writeSSE(w, s.statusPayload()); err != nil {
			return
		}
		flusher.Flush()

		select {
		case <-ticker.C:
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	records := []types.AnomalyRecord{}
	if s.recorder != nil {
		records = s.recorder.Records()
	}
	writeJSON(w, AnomaliesPayload{Count: len(records), Records: records})
}

func (s *Server) handleAnomaliesStream(w http.ResponseWriter, r *http.Request) {
	id, eventCh := s.events.Subscribe()
	defer s.events.Unsubscribe(id)

	// Content negotiation based on Accept header
	accept := r.Header.Get("Accept")
	useProtobuf := strings.Contains(accept, "application/protobuf") ||
		strings.Contains(accept, "application/x-protobuf")

	streamEventsFromChannel(w, r, eventCh, useProtobuf, s.cfg.KeepAlive)
}

func (s *Server) handleWebRTCOffer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.webrtc == nil {
		writeJSONWithStatus(w, map[string]any{"error": "WebRTC is not enabled"}, http.StatusServiceUnavailable)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeJSONWithStatus(w, map[string]any{"error": "Invalid offer data"}, http.StatusBadRequest)
		return
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		writeJSONWithStatus(w, map[string]any{"error": "Invalid offer data"}, http.StatusBadRequest)
		return
	}

	if payload["sdp"] == nil || payload["type"] == nil {
		writeJSONWithStatus(w, map[string]any{"error": "Invalid offer data"}, http.StatusBadRequest)
		return
	}

	answer, err := s.webrtc.HandleOffer(body)
	if err != nil {
		logger.Warn("Monitor", "WebRTC offer failed: %v", err)
		writeJSONWithStatus(w, map[string]any{"error": err.Error()}, http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(answer)
}

func writeJSON(w http.ResponseWriter, payload any) {
	writeJSONWithStatus(w, payload, http.StatusOK)
}

func writeJSONWithStatus(w http.ResponseWriter, payload any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		_, _ = fmt.Fprintf(w, `{"error":"%s"}`, err.Error())
	}
}

// ListenAndServe serves the handler on cfg.Addr until the listener fails.
func (s *Server) ListenAndServe() error {
	srv := &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.Handler(),
	}
	logger.Info("Monitor", "Live monitor listening on %s", s.cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
