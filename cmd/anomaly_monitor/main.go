package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // Enable pprof
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/internal/alert"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/internal/config"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/internal/detect"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/internal/evidence"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/internal/logger"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/internal/loop"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/internal/metrics"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/internal/rules"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/internal/video"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/internal/webmonitor"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/internal/webrtc"
)

var (
	// Command-line flags. Flags given explicitly override the config file.
	configPath   = flag.String("config", "", "YAML config file")
	logLevel     = flag.String("log-level", "info", "Log level (debug, info, warn, error, silent)")
	logColor     = flag.Bool("log-color", true, "Enable colored log output")
	sourceDir    = flag.String("source-dir", "", "Replay images from this directory")
	sourceURL    = flag.String("source-url", "", "Fetch frames from this snapshot URL")
	loopSource   = flag.Bool("loop", false, "Restart the image directory when it is exhausted")
	maxFrames    = flag.Uint64("max-frames", 0, "Stop after this many frames (0 = until signalled)")
	detectScript = flag.String("detect-script", "", "Scripted detections YAML file")
	detectURL    = flag.String("detect-url", "", "HTTP detector endpoint")
	logPath      = flag.String("log", "", "Durable anomaly log CSV")
	tablePath    = flag.String("table", "", "Anomaly table CSV")
	snapshotDir  = flag.String("snapshots", "", "Snapshot output directory")
	saveInterval = flag.Int("save-interval", 0, "Anomalous frames between table rewrites")
	httpAddr     = flag.String("http", "", "Live monitor address (empty disables)")
	metricsAddr  = flag.String("metrics", "", "Metrics server address (empty disables)")
	pprofAddr    = flag.String("pprof", "", "pprof server address (empty disables)")
	stunServers  = flag.String("stun", "", "STUN server URLs (comma-separated)")
	mqttBroker   = flag.String("mqtt", "", "MQTT broker for alerts (empty disables)")
)

// App wires the frame loop to its outputs.
type App struct {
	cfg     config.Config
	metrics *metrics.Metrics

	source   video.Source
	detector detect.Detector
	recorder *evidence.Recorder
	headless *video.Headless
	sink     video.Sink

	display *webmonitor.Display
	monitor *webmonitor.Server
	webrtc  *webrtc.Server
	mqtt    *alert.MQTT
	alerts  *alert.Async
}

func main() {
	flag.Parse()

	// Log at INFO until the config has been read
	logger.Init(logger.INFO, os.Stderr, *logColor)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := applyFlags(&cfg); err != nil {
		log.Fatalf("Invalid flags: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	logger.Init(cfg.LogLevel, os.Stderr, cfg.LogColor)

	logger.Info("Main", "Anomaly monitor starting...")
	logger.Info("Main", "Log level: %s", cfg.LogLevel)

	app, err := NewApp(cfg)
	if err != nil {
		log.Fatalf("Failed to create monitor: %v", err)
	}
	app.Start()

	// Stop the loop on SIGINT/SIGTERM; the loop then flushes the evidence
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("Main", "Received %s, shutting down...", sig)
		app.headless.Stop()
	}()

	runErr := app.Run()
	app.Shutdown()
	if runErr != nil {
		logger.Error("Main", "Monitor stopped: %v", runErr)
		os.Exit(1)
	}
	logger.Info("Main", "Monitor stopped")
}

// applyFlags copies the flags set on the command line over cfg.
func applyFlags(cfg *config.Config) error {
	var err error
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "log-level":
			cfg.LogLevel, err = logger.ParseLevel(*logLevel)
		case "log-color":
			cfg.LogColor = *logColor
		case "source-dir":
			cfg.Source.Kind, cfg.Source.Path = config.SourceDir, *sourceDir
		case "source-url":
			cfg.Source.Kind, cfg.Source.URL = config.SourceHTTP, *sourceURL
		case "loop":
			cfg.Source.Loop = *loopSource
		case "max-frames":
			cfg.Source.MaxFrames = *maxFrames
		case "detect-script":
			cfg.Detector.Kind, cfg.Detector.Path = config.DetectorScript, *detectScript
		case "detect-url":
			cfg.Detector.Kind, cfg.Detector.URL = config.DetectorHTTP, *detectURL
		case "log":
			cfg.Evidence.LogPath = *logPath
		case "table":
			cfg.Evidence.TablePath = *tablePath
		case "snapshots":
			cfg.Evidence.SnapshotDir = *snapshotDir
		case "save-interval":
			cfg.Evidence.SaveInterval = *saveInterval
		case "http":
			cfg.Monitor.Addr = *httpAddr
		case "metrics":
			cfg.Monitor.MetricsAddr = *metricsAddr
		case "stun":
			cfg.Monitor.STUN = splitList(*stunServers)
		case "mqtt":
			cfg.MQTT.Broker = *mqttBroker
		}
	})
	return err
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// NewApp opens the source, detector and evidence files and builds the
// enabled outputs.
func NewApp(cfg config.Config) (*App, error) {
	app := &App{cfg: cfg, metrics: metrics.New()}

	src, err := openSource(cfg.Source)
	if err != nil {
		return nil, err
	}
	app.source = src

	det, err := openDetector(cfg.Detector)
	if err != nil {
		return nil, err
	}
	app.detector = det

	if err := os.MkdirAll(cfg.Evidence.SnapshotDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	evLog, err := evidence.OpenLog(cfg.Evidence.LogPath)
	if err != nil {
		return nil, err
	}

	seq := alert.NewSequencer()
	logger.Info("Main", "Run ID: %s", seq.RunID())

	opts := []evidence.Option{
		evidence.WithSaveInterval(cfg.Evidence.SaveInterval),
		evidence.WithTableLimit(cfg.Evidence.TableLimit),
		evidence.WithSnapshotDir(cfg.Evidence.SnapshotDir),
		evidence.WithImageSaver(evidence.JPEGSaver{
			Quality:  cfg.Evidence.JPEGQuality,
			MaxWidth: cfg.Evidence.SnapshotMaxWidth,
		}),
		evidence.WithMetrics(app.metrics),
	}

	if cfg.MQTT.Broker != "" {
		m, err := alert.DialMQTT(alert.MQTTConfig{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Topic:    cfg.MQTT.Topic,
			QoS:      byte(cfg.MQTT.QoS),
			Format:   cfg.MQTT.Format,
		}, seq)
		if err != nil {
			logger.Warn("Main", "MQTT alerts disabled: %v", err)
		} else {
			m.SetMetrics(app.metrics)
			app.mqtt = m
			app.alerts = alert.NewAsync(m, 64)
			opts = append(opts, evidence.WithNotifier(app.alerts))
		}
	}

	app.headless = video.NewHeadless(cfg.Source.MaxFrames)
	app.sink = app.headless

	if cfg.Monitor.Addr != "" {
		var offers webmonitor.OfferHandler
		if cfg.Monitor.MaxClients > 0 {
			app.webrtc = webrtc.NewServer(cfg.Monitor.STUN, cfg.Monitor.MaxClients, seq)
			offers = app.webrtc
			opts = append(opts, evidence.WithNotifier(app.webrtc))
		}

		app.display = webmonitor.NewDisplay(cfg.Monitor.JPEGQuality)
		monCfg := webmonitor.DefaultConfig()
		monCfg.Addr = cfg.Monitor.Addr
		monCfg.JPEGQuality = cfg.Monitor.JPEGQuality
		app.monitor = webmonitor.NewServer(monCfg, app.display, webmonitor.NewEventBroadcaster(seq), nil, offers)
		opts = append(opts, evidence.WithNotifier(app.monitor))

		app.sink = video.Multi{app.headless, app.display}
	}

	app.recorder = evidence.NewRecorder(evLog, cfg.Evidence.TablePath, opts...)
	if app.monitor != nil {
		app.monitor.SetRecorder(app.recorder)
	}
	return app, nil
}

func openSource(cfg config.SourceConfig) (video.Source, error) {
	switch cfg.Kind {
	case config.SourceHTTP:
		logger.Info("Main", "Source: %s", cfg.URL)
		return video.NewHTTPSource(cfg.URL, cfg.Timeout), nil
	default:
		logger.Info("Main", "Source: %s (loop=%v)", cfg.Path, cfg.Loop)
		return video.OpenDir(cfg.Path, video.Loop(cfg.Loop))
	}
}

func openDetector(cfg config.DetectorConfig) (detect.Detector, error) {
	switch cfg.Kind {
	case config.DetectorHTTP:
		logger.Info("Main", "Detector: %s", cfg.URL)
		return detect.NewHTTP(cfg.URL, cfg.Timeout), nil
	default:
		logger.Info("Main", "Detector: script %s", cfg.Path)
		return detect.LoadScript(cfg.Path)
	}
}

// Start launches the side servers. Their failures are logged; the loop keeps
// running without them.
func (a *App) Start() {
	if *pprofAddr != "" {
		go func() {
			logger.Info("Main", "Starting pprof server on %s", *pprofAddr)
			if err := http.ListenAndServe(*pprofAddr, nil); err != nil {
				logger.Warn("Main", "pprof server error: %v", err)
			}
		}()
	}

	if addr := a.cfg.Monitor.MetricsAddr; addr != "" {
		go func() {
			logger.Info("Main", "Starting metrics server on %s", addr)
			if err := a.metrics.StartServer(addr); err != nil {
				logger.Warn("Main", "Metrics server error: %v", err)
			}
		}()
	}

	if a.monitor != nil {
		go func() {
			if err := a.monitor.ListenAndServe(); err != nil {
				logger.Warn("Main", "Live monitor error: %v", err)
			}
		}()
	}
}

// Run drives the frame loop until the sink stops or the source fails.
func (a *App) Run() error {
	ctrl := loop.New(a.source, a.detector, rules.New(), a.recorder, a.sink,
		loop.WithMetrics(a.metrics))
	return ctrl.Run()
}

// Shutdown releases the outputs after the loop has closed the recorder.
func (a *App) Shutdown() {
	if a.display != nil {
		a.display.Stop()
	}
	if a.webrtc != nil {
		if err := a.webrtc.Close(); err != nil {
			logger.Warn("Main", "WebRTC close: %v", err)
		}
	}
	if a.alerts != nil {
		a.alerts.Close()
	}
	if a.mqtt != nil {
		a.mqtt.Close()
	}

	s := a.recorder.Status()
	logger.Info("Main", "Anomalous frames: %d, table writes: %d, snapshots: %d",
		s.AnomalyCount, s.TableWrites, s.SnapshotsSaved)
}
