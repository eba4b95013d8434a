// Package evidence persists what the monitor saw on anomalous frames: a
// durable CSV log row, the accumulating table and its periodic full rewrite,
// and a JPEG snapshot.
package evidence

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/internal/alert"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/internal/logger"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/internal/metrics"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/internal/rules"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/pkg/types"
)

// TimestampLayout is the local-time format of record timestamps.
const TimestampLayout = "2006-01-02 15:04:05"

// DefaultSaveInterval is how many anomalous frames pass between table rewrites.
const DefaultSaveInterval = 10

// FormatTimestamp renders t the way records store it.
func FormatTimestamp(t time.Time) string {
	return t.Local().Format(TimestampLayout)
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithSaveInterval sets the table rewrite cadence. Values below 1 are ignored.
func WithSaveInterval(n int) Option {
	return func(r *Recorder) {
		if n >= 1 {
			r.saveInterval = n
		}
	}
}

// WithSnapshotDir sets the directory snapshots are written to.
func WithSnapshotDir(dir string) Option {
	return func(r *Recorder) { r.snapshotDir = dir }
}

// WithImageSaver replaces the JPEG encoder used for snapshots.
func WithImageSaver(s ImageSaver) Option {
	return func(r *Recorder) { r.saver = s }
}

// WithNotifier registers a receiver for every recorded anomaly.
func WithNotifier(n alert.Notifier) Option {
	return func(r *Recorder) {
		if n != nil {
			r.notifiers = append(r.notifiers, n)
		}
	}
}

// WithMetrics wires evidence counters into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Recorder) { r.metrics = m }
}

// WithTableLimit caps the in-memory table. When the table reaches n records
// it is persisted, the table file is archived as <path>.<k> and a new table
// starts. 0 (default) keeps every record for the life of the process.
func WithTableLimit(n int) Option {
	return func(r *Recorder) {
		if n > 0 {
			r.tableLimit = n
		}
	}
}

// Recorder owns the durable log, the accumulating table and the anomaly
// counter. Record and Close are serialized, so one anomalous frame's evidence
// is never interleaved with another's.
type Recorder struct {
	mu sync.Mutex

	log          *Log
	table        Table
	tablePath    string
	saveInterval int
	tableLimit   int
	snapshotDir  string
	saver        ImageSaver
	notifiers    alert.Fanout
	metrics      *metrics.Metrics

	frameAnomalyCount uint64
	closed            bool
	status            Status
}

// Status reports recorder progress and per-step failures.
type Status struct {
	AnomalyCount   uint64    `json:"anomaly_count"`
	TableRecords   int       `json:"table_records"`
	TableWrites    uint64    `json:"table_writes"`
	TableArchives  uint64    `json:"table_archives"`
	LastTableWrite time.Time `json:"last_table_write"`
	SnapshotsSaved uint64    `json:"snapshots_saved"`
	LastSnapshot   string    `json:"last_snapshot"`
	LogErrors      uint64    `json:"log_errors"`
	TableErrors    uint64    `json:"table_errors"`
	SnapshotErrors uint64    `json:"snapshot_errors"`
	LogPath        string    `json:"log_path"`
	TablePath      string    `json:"table_path"`
	Closed         bool      `json:"closed"`
}

// NewRecorder creates a recorder writing rows to log and the table to
// tablePath.
func NewRecorder(log *Log, tablePath string, opts ...Option) *Recorder {
	r := &Recorder{
		log:          log,
		tablePath:    tablePath,
		saveInterval: DefaultSaveInterval,
		snapshotDir:  ".",
		saver:        JPEGSaver{Quality: 90},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record persists the evidence for one anomalous frame. Every step is
// best-effort: failures are logged and counted, and the remaining steps still
// run. The returned record is what was written.
func (r *Recorder) Record(reason rules.Reason, objects []string, frame *types.Frame, now time.Time) types.AnomalyRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := FormatTimestamp(now)
	rec := types.AnomalyRecord{
		Timestamp:       ts,
		Reason:          reason.String(),
		DetectedObjects: append([]string(nil), objects...),
	}

	if r.closed {
		logger.Warn("Recorder", "Dropping anomaly after close: %s", rec.Reason)
		return rec
	}

	if err := r.log.Append(rec); err != nil {
		r.status.LogErrors++
		r.inc(func(m *metrics.Metrics) { m.LogErrors.Add(1) })
		logger.Error("Recorder", "Durable log append failed: %v", err)
	}

	r.table.Append(rec)

	r.frameAnomalyCount++
	r.inc(func(m *metrics.Metrics) {
		m.Anomalies.Add(1)
		m.ObserveReason(reason.Kind.String())
	})
	if r.frameAnomalyCount%uint64(r.saveInterval) == 0 {
		r.persistLocked()
	}
	if r.tableLimit > 0 && r.table.Len() >= r.tableLimit {
		r.rotateLocked()
	}
	r.inc(func(m *metrics.Metrics) { m.TableRecords.Store(uint64(r.table.Len())) })

	r.snapshotLocked(ts, frame)

	r.notifiers.Notify(rec, reason)
	return rec
}

func (r *Recorder) inc(f func(m *metrics.Metrics)) {
	if r.metrics != nil {
		f(r.metrics)
	}
}

// persistLocked rewrites the table file with the whole table.
func (r *Recorder) persistLocked() bool {
	if err := r.table.WriteFile(r.tablePath); err != nil {
		r.status.TableErrors++
		r.inc(func(m *metrics.Metrics) { m.TableErrors.Add(1) })
		logger.Warn("Recorder", "Table save failed: %v", err)
		return false
	}
	r.status.TableWrites++
	r.status.LastTableWrite = time.Now()
	r.inc(func(m *metrics.Metrics) { m.TableWrites.Add(1) })
	logger.Info("Recorder", "Saved %d anomaly records to %s", r.table.Len(), r.tablePath)
	return true
}

// rotateLocked archives a full table and starts a new one. The table is kept
// when it could not be persisted, so no record is lost.
func (r *Recorder) rotateLocked() {
	if !r.persistLocked() {
		return
	}
	archive := fmt.Sprintf("%s.%d", r.tablePath, r.status.TableArchives+1)
	if err := os.Rename(r.tablePath, archive); err != nil {
		r.status.TableErrors++
		r.inc(func(m *metrics.Metrics) { m.TableErrors.Add(1) })
		logger.Warn("Recorder", "Table archive failed: %v", err)
		return
	}
	r.status.TableArchives++
	logger.Info("Recorder", "Archived %d anomaly records to %s", r.table.Len(), archive)
	r.table.Reset()
}

func (r *Recorder) snapshotLocked(ts string, frame *types.Frame) {
	path := filepath.Join(r.snapshotDir, SnapshotName(ts))

	var err error
	switch {
	case r.saver == nil:
		return
	case frame == nil || frame.Image == nil:
		err = fmt.Errorf("snapshot: frame has no image")
	default:
		err = r.saver.SaveImage(path, frame.Image)
	}
	if err != nil {
		r.status.SnapshotErrors++
		r.inc(func(m *metrics.Metrics) { m.SnapshotErrors.Add(1) })
		logger.Warn("Recorder", "Snapshot save failed: %v", err)
		return
	}
	r.status.SnapshotsSaved++
	r.status.LastSnapshot = path
	r.inc(func(m *metrics.Metrics) { m.SnapshotsSaved.Add(1) })
	logger.Info("Recorder", "Saved anomaly screenshot: %s", path)
}

// Close performs the shutdown persist and closes the durable log. The table
// is written once more, regardless of the save cadence, when it holds any
// record. Calling Close again is a no-op.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	if r.table.Len() > 0 {
		if r.persistLocked() {
			logger.Info("Recorder", "Final anomaly records saved: %d", r.table.Len())
		}
	} else if r.status.TableArchives == 0 {
		logger.Info("Recorder", "No anomalies detected.")
	}

	if r.log == nil {
		return nil
	}
	return r.log.Close()
}

// Status returns a snapshot of the recorder state.
func (r *Recorder) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.status
	s.AnomalyCount = r.frameAnomalyCount
	s.TableRecords = r.table.Len()
	s.TablePath = r.tablePath
	s.Closed = r.closed
	if r.log != nil {
		s.LogPath = r.log.Path()
	}
	return s
}

// Records returns a copy of the accumulating table.
func (r *Recorder) Records() []types.AnomalyRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.table.Records()
}
