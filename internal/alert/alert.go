// Package alert delivers recorded anomalies to outer surfaces: MQTT, the live
// monitor's event stream and WebRTC data-channel peers.
package alert

import (
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/internal/rules"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/pkg/types"
)

// Notifier receives every anomaly after its evidence has been recorded.
// Implementations must not block the frame loop.
type Notifier interface {
	Notify(rec types.AnomalyRecord, reason rules.Reason)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(rec types.AnomalyRecord, reason rules.Reason)

// Notify calls f.
func (f NotifierFunc) Notify(rec types.AnomalyRecord, reason rules.Reason) {
	f(rec, reason)
}

// Fanout delivers to each notifier in order. Nil entries are skipped.
type Fanout []Notifier

// Notify implements Notifier.
func (f Fanout) Notify(rec types.AnomalyRecord, reason rules.Reason) {
	for _, n := range f {
		if n != nil {
			n.Notify(rec, reason)
		}
	}
}

// Event is the wire form of one anomaly.
type Event struct {
	EventID         string   `json:"event_id"`
	RunID           string   `json:"run_id"`
	Sequence        uint64   `json:"sequence"`
	Timestamp       string   `json:"timestamp"`
	Kind            string   `json:"kind"`
	Reason          string   `json:"anomaly_reason"`
	DetectedObjects []string `json:"detected_objects"`
}

// Serialized holds an event already encoded in both supported formats, so a
// broadcast encodes once regardless of the number of receivers.
type Serialized struct {
	Event    Event
	JSON     []byte
	Protobuf []byte
}

// Sequencer stamps events with a process-wide run id and a sequence number.
type Sequencer struct {
	runID string
	seq   atomic.Uint64
}

// NewSequencer creates a sequencer with a fresh run id.
func NewSequencer() *Sequencer {
	return &Sequencer{runID: uuid.NewString()}
}

// RunID returns the id shared by every event of this process.
func (s *Sequencer) RunID() string {
	return s.runID
}

// Next builds the event for rec.
func (s *Sequencer) Next(rec types.AnomalyRecord, reason rules.Reason) Event {
	objects := make([]string, len(rec.DetectedObjects))
	copy(objects, rec.DetectedObjects)
	return Event{
		EventID:         uuid.NewString(),
		RunID:           s.runID,
		Sequence:        s.seq.Add(1),
		Timestamp:       rec.Timestamp,
		Kind:            reason.Kind.String(),
		Reason:          rec.Reason,
		DetectedObjects: objects,
	}
}

// Encode serializes ev as JSON and as a protobuf Struct.
func Encode(ev Event) (*Serialized, error) {
	jsonData, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("alert: json marshal: %w", err)
	}

	st, err := toStruct(ev)
	if err != nil {
		return nil, fmt.Errorf("alert: build struct: %w", err)
	}
	pbData, err := proto.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("alert: protobuf marshal: %w", err)
	}

	return &Serialized{Event: ev, JSON: jsonData, Protobuf: pbData}, nil
}

func toStruct(ev Event) (*structpb.Struct, error) {
	objects := make([]interface{}, len(ev.DetectedObjects))
	for i, o := range ev.DetectedObjects {
		objects[i] = o
	}
	return structpb.NewStruct(map[string]interface{}{
		"event_id":         ev.EventID,
		"run_id":           ev.RunID,
		"sequence":         float64(ev.Sequence),
		"timestamp":        ev.Timestamp,
		"kind":             ev.Kind,
		"anomaly_reason":   ev.Reason,
		"detected_objects": objects,
	})
}

// DecodeProtobuf parses a payload produced by Encode.
func DecodeProtobuf(data []byte) (Event, error) {
	var st structpb.Struct
	if err := proto.Unmarshal(data, &st); err != nil {
		return Event{}, fmt.Errorf("alert: protobuf unmarshal: %w", err)
	}
	f := st.GetFields()
	ev := Event{
		EventID:   f["event_id"].GetStringValue(),
		RunID:     f["run_id"].GetStringValue(),
		Sequence:  uint64(f["sequence"].GetNumberValue()),
		Timestamp: f["timestamp"].GetStringValue(),
		Kind:      f["kind"].GetStringValue(),
		Reason:    f["anomaly_reason"].GetStringValue(),
	}
	for _, v := range f["detected_objects"].GetListValue().GetValues() {
		ev.DetectedObjects = append(ev.DetectedObjects, v.GetStringValue())
	}
	return ev, nil
}
