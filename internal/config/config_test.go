package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/internal/logger"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Evidence.SaveInterval != 10 || cfg.Evidence.TablePath != "anomaly_log_table.csv" {
		t.Errorf("defaults not applied: %+v", cfg.Evidence)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
log_level: warn
source:
  kind: http
  url: http://camera.local/snapshot.jpg
  timeout: 2s
detector:
  kind: http
  url: http://localhost:8000/detect
evidence:
  save_interval: 3
  table_limit: 500
  snapshot_dir: /var/lib/anomaly
monitor:
  addr: ":8080"
mqtt:
  broker: localhost:1883
  format: protobuf
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != logger.WARN {
		t.Errorf("LogLevel = %v", cfg.LogLevel)
	}
	if cfg.Source.Kind != SourceHTTP || cfg.Source.Timeout != 2*time.Second {
		t.Errorf("Source = %+v", cfg.Source)
	}
	if cfg.Evidence.SaveInterval != 3 || cfg.Evidence.TableLimit != 500 || cfg.Evidence.SnapshotDir != "/var/lib/anomaly" {
		t.Errorf("Evidence = %+v", cfg.Evidence)
	}
	// Untouched keys keep their defaults.
	if cfg.Evidence.LogPath != "anomaly_log.csv" || cfg.MQTT.QoS != 1 || cfg.Monitor.MaxClients != 10 {
		t.Errorf("defaults lost: %+v %+v", cfg.Evidence, cfg.MQTT)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"save interval", func(c *Config) { c.Evidence.SaveInterval = 0 }, "save_interval"},
		{"source kind", func(c *Config) { c.Source.Kind = "v4l2" }, "source.kind"},
		{"detector kind", func(c *Config) { c.Detector.Kind = "onnx" }, "detector.kind"},
		{"http source url", func(c *Config) { c.Source.Kind = SourceHTTP }, "source.url"},
		{"jpeg quality", func(c *Config) { c.Evidence.JPEGQuality = 101 }, "jpeg_quality"},
		{"table limit", func(c *Config) { c.Evidence.TableLimit = -1 }, "table_limit"},
		{"qos", func(c *Config) { c.MQTT.QoS = 3 }, "qos"},
		{"format", func(c *Config) { c.MQTT.Format = "xml" }, "mqtt.format"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("Validate() = %v, want error mentioning %q", err, tc.want)
			}
		})
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "evidence: [\n")); err == nil {
		t.Error("expected parse error")
	}
	if _, err := Load(writeConfig(t, "log_level: loud\n")); err == nil {
		t.Error("expected error for unknown log level")
	}
}
