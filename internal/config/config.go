// Package config loads the monitor configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/internal/alert"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/internal/evidence"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/internal/logger"
)

// Source kinds.
const (
	SourceDir  = "dir"
	SourceHTTP = "http"
)

// Detector kinds.
const (
	DetectorScript = "script"
	DetectorHTTP   = "http"
)

// Config is the full monitor configuration.
type Config struct {
	LogLevel logger.LogLevel `yaml:"log_level"`
	LogColor bool            `yaml:"log_color"`
	Source   SourceConfig    `yaml:"source"`
	Detector DetectorConfig  `yaml:"detector"`
	Evidence EvidenceConfig  `yaml:"evidence"`
	Monitor  MonitorConfig   `yaml:"monitor"`
	MQTT     MQTTConfig      `yaml:"mqtt"`
}

// SourceConfig selects where frames come from.
type SourceConfig struct {
	Kind    string        `yaml:"kind"`
	Path    string        `yaml:"path"`
	URL     string        `yaml:"url"`
	Loop    bool          `yaml:"loop"`
	Timeout time.Duration `yaml:"timeout"`
	// MaxFrames stops a headless run after this many frames (0 = run until signalled).
	MaxFrames uint64 `yaml:"max_frames"`
}

// DetectorConfig selects the detection adapter.
type DetectorConfig struct {
	Kind    string        `yaml:"kind"`
	Path    string        `yaml:"path"`
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// EvidenceConfig controls where and how often evidence is written.
type EvidenceConfig struct {
	LogPath          string `yaml:"log_path"`
	TablePath        string `yaml:"table_path"`
	SnapshotDir      string `yaml:"snapshot_dir"`
	SaveInterval     int    `yaml:"save_interval"`
	TableLimit       int    `yaml:"table_limit"`
	JPEGQuality      int    `yaml:"jpeg_quality"`
	SnapshotMaxWidth int    `yaml:"snapshot_max_width"`
}

// MonitorConfig enables the live view and metrics endpoints. Empty addresses
// disable them.
type MonitorConfig struct {
	Addr        string   `yaml:"addr"`
	MetricsAddr string   `yaml:"metrics_addr"`
	MaxClients  int      `yaml:"max_clients"`
	STUN        []string `yaml:"stun"`
	JPEGQuality int      `yaml:"jpeg_quality"`
}

// MQTTConfig enables alert publishing when Broker is set.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
	QoS      int    `yaml:"qos"`
	Format   string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		LogLevel: logger.INFO,
		LogColor: true,
		Source: SourceConfig{
			Kind:    SourceDir,
			Path:    "frames",
			Timeout: 5 * time.Second,
		},
		Detector: DetectorConfig{
			Kind:    DetectorScript,
			Path:    "detections.yaml",
			Timeout: 5 * time.Second,
		},
		Evidence: EvidenceConfig{
			LogPath:      "anomaly_log.csv",
			TablePath:    "anomaly_log_table.csv",
			SnapshotDir:  ".",
			SaveInterval: evidence.DefaultSaveInterval,
			JPEGQuality:  90,
		},
		Monitor: MonitorConfig{
			MaxClients:  10,
			STUN:        []string{"stun:stun.l.google.com:19302"},
			JPEGQuality: 75,
		},
		MQTT: MQTTConfig{
			ClientID: "anomaly-monitor",
			Topic:    "anomaly-monitor/anomalies",
			QoS:      1,
			Format:   alert.FormatJSON,
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Warn("Config", "Config file %s not found, using defaults", path)
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.Source.Kind {
	case SourceDir:
		if c.Source.Path == "" {
			return errors.New("config: source.path is required for dir sources")
		}
	case SourceHTTP:
		if c.Source.URL == "" {
			return errors.New("config: source.url is required for http sources")
		}
	default:
		return fmt.Errorf("config: unknown source.kind %q", c.Source.Kind)
	}

	switch c.Detector.Kind {
	case DetectorScript:
		if c.Detector.Path == "" {
			return errors.New("config: detector.path is required for script detectors")
		}
	case DetectorHTTP:
		if c.Detector.URL == "" {
			return errors.New("config: detector.url is required for http detectors")
		}
	default:
		return fmt.Errorf("config: unknown detector.kind %q", c.Detector.Kind)
	}

	e := c.Evidence
	if e.LogPath == "" || e.TablePath == "" {
		return errors.New("config: evidence.log_path and evidence.table_path are required")
	}
	if e.SaveInterval < 1 {
		return fmt.Errorf("config: evidence.save_interval must be >= 1, got %d", e.SaveInterval)
	}
	if e.TableLimit < 0 {
		return fmt.Errorf("config: evidence.table_limit must be >= 0, got %d", e.TableLimit)
	}
	if e.JPEGQuality < 1 || e.JPEGQuality > 100 {
		return fmt.Errorf("config: evidence.jpeg_quality must be in 1..100, got %d", e.JPEGQuality)
	}
	if c.Monitor.MaxClients < 1 {
		return fmt.Errorf("config: monitor.max_clients must be >= 1, got %d", c.Monitor.MaxClients)
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return fmt.Errorf("config: mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}
	if c.MQTT.Format != alert.FormatJSON && c.MQTT.Format != alert.FormatProtobuf {
		return fmt.Errorf("config: unknown mqtt.format %q", c.MQTT.Format)
	}
	return nil
}
