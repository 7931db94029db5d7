package excel

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	datalog "plc-datalogger/internal/datalog/domain"
	settings "plc-datalogger/internal/settings/domain"
)

// SheetName is the worksheet holding the log.
const SheetName = "Log"

// Writer saves tables as .xlsx workbooks.
type Writer struct {
	target settings.ExcelTarget
}

func NewWriter(target settings.ExcelTarget) (*Writer, error) {
	if strings.TrimSpace(target.Path) == "" {
		return nil, errors.New("excel: empty path")
	}
	return &Writer{target: target}, nil
}

func (w *Writer) Kind() string { return string(settings.StorageExcel) }

// Path returns the workbook written for label.
func (w *Writer) Path(label string) string {
	if label == datalog.LiveLabel {
		return w.target.Path
	}
	dir := w.target.RolloverDir
	if dir == "" {
		dir = filepath.Dir(w.target.Path)
	}
	return filepath.Join(dir, "log_"+label+".xlsx")
}

func (w *Writer) Describe(label string) string {
	return w.Path(label)
}

// Ping checks that the target directory is writable.
func (w *Writer) Ping(_ context.Context) error {
	dir := filepath.Dir(w.target.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	probe, err := os.CreateTemp(dir, ".plc-log-probe-*")
	if err != nil {
		return err
	}
	name := probe.Name()
	_ = probe.Close()
	return os.Remove(name)
}

// Write replaces the workbook for label with snap.
func (w *Writer) Write(ctx context.Context, snap datalog.Snapshot, label string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return err
	}
	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return err
	}
	header := make([]any, len(snap.Columns))
	for i, col := range snap.Columns {
		header[i] = col
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}
	for i, cells := range snap.Cells() {
		values := make([]any, len(cells))
		for j, v := range cells {
			values[j] = cellValue(v)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, values); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}

	path := w.Path(label)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".plc-log-*.xlsx")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := f.WriteTo(tmp); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

// cellValue keeps native numbers and text; anything else is rendered as text.
func cellValue(v any) any {
	switch v.(type) {
	case nil, string, bool, float32, float64,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return v
	default:
		return datalog.FormatValue(v)
	}
}
