package pdfreport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/jung-kurt/gofpdf"

	datalog "plc-datalogger/internal/datalog/domain"
)

// ColumnSummary aggregates the numeric cells of one column.
type ColumnSummary struct {
	Column string
	Count  int
	Min    float64
	Max    float64
	Avg    float64
}

// Summarize computes per-column statistics over numeric cells.
// Reserved columns and columns without numeric cells are skipped.
func Summarize(snap datalog.Snapshot) []ColumnSummary {
	var out []ColumnSummary
	for _, col := range snap.Columns {
		if datalog.IsReserved(col) {
			continue
		}
		s := ColumnSummary{Column: col, Min: math.Inf(1), Max: math.Inf(-1)}
		sum := 0.0
		for _, row := range snap.Rows {
			v, ok := row.Get(col)
			if !ok {
				continue
			}
			f, ok := datalog.Numeric(v)
			if !ok {
				continue
			}
			s.Count++
			sum += f
			s.Min = math.Min(s.Min, f)
			s.Max = math.Max(s.Max, f)
		}
		if s.Count == 0 {
			continue
		}
		s.Avg = sum / float64(s.Count)
		out = append(out, s)
	}
	return out
}

// BuildDailyPDF renders the summary page for one day.
func BuildDailyPDF(snap datalog.Snapshot, generated time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "PLC Daily Log Summary")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Date: %s", snap.Label()))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Samples: %d", snap.Len()))
	pdf.Ln(5)
	errorsSeen := 0
	for _, row := range snap.Rows {
		if _, ok := row.Error(); ok {
			errorsSeen++
		}
	}
	pdf.Cell(0, 6, fmt.Sprintf("Failed reads: %d", errorsSeen))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", generated.Format(time.RFC3339)))
	pdf.Ln(9)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(60, 6, "Column", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Count", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Min", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Max", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Avg", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, s := range Summarize(snap) {
		pdf.CellFormat(60, 6, s.Column, "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 6, fmt.Sprintf("%d", s.Count), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%.3f", s.Min), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%.3f", s.Max), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%.3f", s.Avg), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Writer stores daily summaries as report_<date>.pdf in a directory.
type Writer struct {
	dir string
	now func() time.Time
}

func NewWriter(dir string) (*Writer, error) {
	if dir == "" {
		return nil, errors.New("pdfreport: empty directory")
	}
	return &Writer{dir: dir, now: time.Now}, nil
}

// WriteReport renders snap and returns the written path.
func (w *Writer) WriteReport(ctx context.Context, snap datalog.Snapshot) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := BuildDailyPDF(snap, w.now())
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(w.dir, "report_"+snap.Label()+".pdf")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
