package evidence

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/pkg/types"
)

// ErrClosed is returned when writing to a closed log or recorder.
var ErrClosed = errors.New("evidence: closed")

// Log is the durable append-only CSV log. Every row is flushed and synced
// before Append returns, so a crash loses at most the row being written.
type Log struct {
	mu   sync.Mutex
	f    *os.File
	out  io.Writer // f, unless replaced in tests
	buf  bytes.Buffer
	path string
	rows int
	sync bool
}

// LogOption configures a Log.
type LogOption func(*Log)

// WithoutSync skips the fsync after each row. Rows are still written to the
// file before Append returns.
func WithoutSync() LogOption {
	return func(l *Log) { l.sync = false }
}

// OpenLog truncates or creates path and writes the header row.
func OpenLog(path string, opts ...LogOption) (*Log, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("evidence: open log %s: %w", path, err)
	}
	l := &Log{f: f, out: f, path: path, sync: true}
	for _, opt := range opts {
		opt(l)
	}
	if err := l.writeRow(types.CSVHeader); err != nil {
		f.Close()
		return nil, fmt.Errorf("evidence: write log header: %w", err)
	}
	return l, nil
}

// Append writes one record and forces it to disk.
func (l *Log) Append(rec types.AnomalyRecord) error {
	if l == nil {
		return ErrClosed
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.f == nil {
		return ErrClosed
	}
	if err := l.writeRow(rec.Row()); err != nil {
		return fmt.Errorf("evidence: append log: %w", err)
	}
	l.rows++
	return nil
}

// writeRow encodes row on its own, so a failed write never poisons the rows
// after it.
func (l *Log) writeRow(row []string) error {
	l.buf.Reset()
	w := csv.NewWriter(&l.buf)
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	if _, err := l.out.Write(l.buf.Bytes()); err != nil {
		return err
	}
	if l.sync {
		return l.f.Sync()
	}
	return nil
}

// Rows returns the number of data rows appended (header excluded).
func (l *Log) Rows() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rows
}

// Path returns the log file path.
func (l *Log) Path() string {
	return l.path
}

// Close closes the file. Closing twice is a no-op.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	if err != nil {
		return fmt.Errorf("evidence: close log: %w", err)
	}
	return nil
}
