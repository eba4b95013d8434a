package evidence

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/anomaly-monitor/pkg/types"
)

// Table accumulates every anomaly record of the run in arrival order.
// It is not safe for concurrent use; the Recorder serializes access.
type Table struct {
	records []types.AnomalyRecord
}

// Append adds rec at the end of the table.
func (t *Table) Append(rec types.AnomalyRecord) {
	t.records = append(t.records, rec)
}

// Len returns the number of records.
func (t *Table) Len() int {
	return len(t.records)
}

// Records returns a copy of the table.
func (t *Table) Records() []types.AnomalyRecord {
	out := make([]types.AnomalyRecord, len(t.records))
	copy(out, t.records)
	return out
}

// Reset drops all records.
func (t *Table) Reset() {
	t.records = nil
}

// WriteCSV serializes the header and all records to w.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(types.CSVHeader); err != nil {
		return err
	}
	for _, rec := range t.records {
		if err := cw.Write(rec.Row()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile replaces path with the full table. The data goes to a temporary
// file in the same directory first, so readers never see a partial table.
func (t *Table) WriteFile(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("evidence: create table temp file: %w", err)
	}
	tmpName := tmp.Name()

	if err := t.WriteCSV(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("evidence: write table: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("evidence: close table temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("evidence: replace table %s: %w", path, err)
	}
	return nil
}
