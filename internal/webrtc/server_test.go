package webrtc

import (
	"strings"
	"testing"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/internal/rules"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/pkg/types"
)

func TestHandleOfferRejectsInvalidJSON(t *testing.T) {
	s := NewServer(nil, 4, nil)
	if _, err := s.HandleOffer([]byte("not json")); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := s.HandleOffer([]byte(`{"type":"answer","sdp":"v=0"}`)); err == nil {
		t.Fatal("expected error for non-offer description")
	}
}

func TestHandleOfferEnforcesMaxClients(t *testing.T) {
	s := NewServer(nil, 0, nil)
	_, err := s.HandleOffer([]byte(`{"type":"offer","sdp":"v=0"}`))
	if err == nil || !strings.Contains(err.Error(), "maximum clients") {
		t.Fatalf("HandleOffer = %v, want max clients error", err)
	}
}

func TestNotifyWithoutClients(t *testing.T) {
	s := NewServer(nil, 4, nil)
	s.Notify(types.AnomalyRecord{Reason: "Empty chair detected"}, rules.Reason{Kind: rules.EmptyChairDetected})
	if s.GetClientCount() != 0 || len(s.GetClientStats()) != 0 {
		t.Error("unexpected clients")
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
