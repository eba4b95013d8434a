package alert

import (
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/internal/logger"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/internal/metrics"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/internal/rules"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/pkg/types"
)

// Payload formats accepted by MQTTConfig.Format.
const (
	FormatJSON     = "json"
	FormatProtobuf = "protobuf"
)

// MQTTConfig configures the MQTT publisher.
type MQTTConfig struct {
	Broker         string // host:port or full URL
	ClientID       string
	Topic          string // events go to <Topic>/<kind>
	QoS            byte
	Format         string
	PublishTimeout time.Duration
}

// publisher is the part of mqtt.Client used here.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTT publishes anomaly events to a broker. Delivery is best-effort: a failed
// or timed-out publish is logged and counted, never returned to the caller.
type MQTT struct {
	cfg    MQTTConfig
	seq    *Sequencer
	client mqtt.Client
	pub    publisher

	mu        sync.Mutex
	published uint64
	failed    uint64
	metrics   *metrics.Metrics
}

// MQTTStats reports delivery counters.
type MQTTStats struct {
	Published uint64 `json:"published"`
	Failed    uint64 `json:"failed"`
}

// DialMQTT connects to the broker. Auto-reconnect stays on for the life of
// the process.
func DialMQTT(cfg MQTTConfig, seq *Sequencer) (*MQTT, error) {
	cfg = withMQTTDefaults(cfg)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL(cfg.Broker))
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(mqtt.Client) {
		logger.Info("MQTT", "Connected to %s as %s", cfg.Broker, cfg.ClientID)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn("MQTT", "Connection to %s lost, reconnecting: %v", cfg.Broker, err)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		client.Disconnect(0)
		return nil, fmt.Errorf("mqtt: connect to %s: timeout", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		client.Disconnect(0)
		return nil, fmt.Errorf("mqtt: connect to %s: %w", cfg.Broker, err)
	}

	m := newMQTT(cfg, seq, client)
	m.client = client
	return m, nil
}

func newMQTT(cfg MQTTConfig, seq *Sequencer, pub publisher) *MQTT {
	if seq == nil {
		seq = NewSequencer()
	}
	return &MQTT{cfg: withMQTTDefaults(cfg), seq: seq, pub: pub}
}

func withMQTTDefaults(cfg MQTTConfig) MQTTConfig {
	if cfg.Topic == "" {
		cfg.Topic = "anomaly-monitor/anomalies"
	}
	if cfg.Format == "" {
		cfg.Format = FormatJSON
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 2 * time.Second
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "anomaly-monitor"
	}
	return cfg
}

func brokerURL(broker string) string {
	if strings.Contains(broker, "://") {
		return broker
	}
	return "tcp://" + broker
}

// SetMetrics counts deliveries in mm as alerts sent and alert errors.
func (m *MQTT) SetMetrics(mm *metrics.Metrics) {
	m.mu.Lock()
	m.metrics = mm
	m.mu.Unlock()
}

// Notify implements Notifier. It blocks for at most the publish timeout;
// wrap it in an Async to keep it off the frame loop.
func (m *MQTT) Notify(rec types.AnomalyRecord, reason rules.Reason) {
	err := m.publish(m.seq.Next(rec, reason))

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.failed++
		if m.metrics != nil {
			m.metrics.AlertErrors.Add(1)
		}
		logger.Warn("MQTT", "Publish failed: %v", err)
		return
	}
	m.published++
	if m.metrics != nil {
		m.metrics.AlertsSent.Add(1)
	}
}

func (m *MQTT) publish(ev Event) error {
	s, err := Encode(ev)
	if err != nil {
		return err
	}
	payload := s.JSON
	if m.cfg.Format == FormatProtobuf {
		payload = s.Protobuf
	}

	topic := m.cfg.Topic + "/" + ev.Kind
	token := m.pub.Publish(topic, m.cfg.QoS, false, payload)
	if !token.WaitTimeout(m.cfg.PublishTimeout) {
		return fmt.Errorf("mqtt: publish to %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: publish to %s: %w", topic, err)
	}
	return nil
}

// Stats returns delivery counters.
func (m *MQTT) Stats() MQTTStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MQTTStats{Published: m.published, Failed: m.failed}
}

// Close disconnects from the broker, waiting briefly for in-flight messages.
func (m *MQTT) Close() {
	if m.client != nil {
		m.client.Disconnect(250)
	}
}
