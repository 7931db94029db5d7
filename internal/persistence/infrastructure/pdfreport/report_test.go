package pdfreport

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	datalog "plc-datalogger/internal/datalog/domain"
)

func sampleSnapshot(t *testing.T) datalog.Snapshot {
	t.Helper()
	day := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	table := datalog.NewTable(day)
	rows := []datalog.Row{datalog.NewRow(day), datalog.NewRow(day.Add(5 * time.Second))}
	rows[0].Set("Temp", 20.0)
	rows[0].Set("Mode", "auto")
	rows[1].Set("Temp", 24.0)
	rows = append(rows, datalog.ErrorRow(day.Add(10*time.Second), errors.New("timeout")))
	for _, row := range rows {
		if _, err := table.Append(row); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	return table.Snapshot()
}

func TestSummarize(t *testing.T) {
	summaries := Summarize(sampleSnapshot(t))
	if len(summaries) != 1 {
		t.Fatalf("expected only Temp summarized, got %+v", summaries)
	}
	s := summaries[0]
	if s.Column != "Temp" || s.Count != 2 || s.Min != 20 || s.Max != 24 || s.Avg != 22 {
		t.Fatalf("unexpected summary: %+v", s)
	}
}

func TestWriteReport(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	if err != nil {
		t.Fatalf("writer: %v", err)
	}
	path, err := w.WriteReport(context.Background(), sampleSnapshot(t))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if path != filepath.Join(dir, "report_2024-05-01.pdf") {
		t.Fatalf("unexpected path %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatalf("expected a PDF document")
	}
}
