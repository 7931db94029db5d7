package datalog

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Reserved column names.
const (
	ColumnTimestamp = "Timestamp"
	ColumnError     = "Error"
	ColumnInfo      = "Info"
)

// TimestampLayout renders sample timestamps at second precision.
const TimestampLayout = "2006-01-02 15:04:05"

// NoTagsInfo is recorded when a tick runs without configured tags.
const NoTagsInfo = "No tags selected"

// IsReserved reports whether a column is never plotted.
func IsReserved(column string) bool {
	switch column {
	case ColumnTimestamp, ColumnError, ColumnInfo:
		return true
	default:
		return false
	}
}

// Field is one column value of a row.
type Field struct {
	Column string
	Value  any
}

// Row is one sample: a timestamp plus values keyed by column.
// Columns keep insertion order.
type Row struct {
	Timestamp time.Time
	fields    []Field
}

// NewRow starts a row sampled at ts, truncated to whole seconds.
func NewRow(ts time.Time) Row {
	return Row{Timestamp: ts.Truncate(time.Second)}
}

// ErrorRow records a failed read.
func ErrorRow(ts time.Time, err error) Row {
	row := NewRow(ts)
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	row.Set(ColumnError, msg)
	return row
}

// InfoRow records an informational message instead of values.
func InfoRow(ts time.Time, msg string) Row {
	row := NewRow(ts)
	row.Set(ColumnInfo, msg)
	return row
}

// Set stores a value, replacing any previous one for the column.
func (r *Row) Set(column string, value any) {
	if column == "" || column == ColumnTimestamp {
		return
	}
	for i := range r.fields {
		if r.fields[i].Column == column {
			r.fields[i].Value = value
			return
		}
	}
	r.fields = append(r.fields, Field{Column: column, Value: value})
}

// Get returns the value stored for column.
func (r Row) Get(column string) (any, bool) {
	if column == ColumnTimestamp {
		return r.TimestampText(), true
	}
	for _, f := range r.fields {
		if f.Column == column {
			return f.Value, true
		}
	}
	return nil, false
}

// Fields returns the value columns in insertion order.
func (r Row) Fields() []Field {
	return append([]Field(nil), r.fields...)
}

// Columns returns Timestamp followed by the value columns.
func (r Row) Columns() []string {
	cols := make([]string, 0, len(r.fields)+1)
	cols = append(cols, ColumnTimestamp)
	for _, f := range r.fields {
		cols = append(cols, f.Column)
	}
	return cols
}

// Len returns the number of value columns.
func (r Row) Len() int {
	return len(r.fields)
}

// Error returns the recorded error message, if any.
func (r Row) Error() (string, bool) {
	v, ok := r.Get(ColumnError)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, true
}

// TimestampText formats the timestamp for display and export.
func (r Row) TimestampText() string {
	return r.Timestamp.Format(TimestampLayout)
}

// Clone returns a row that shares no field storage with r.
func (r Row) Clone() Row {
	r.fields = append([]Field(nil), r.fields...)
	return r
}

// MarshalJSON encodes the row as a flat object keyed by column.
func (r Row) MarshalJSON() ([]byte, error) {
	obj := make(map[string]any, len(r.fields)+1)
	obj[ColumnTimestamp] = r.TimestampText()
	for _, f := range r.fields {
		obj[f.Column] = f.Value
	}
	return json.Marshal(obj)
}

// FormatValue renders a cell for tabular display. Missing cells render empty.
func FormatValue(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case float32:
		return strconv.FormatFloat(float64(value), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(value, 'g', -1, 64)
	case time.Time:
		return value.Format(TimestampLayout)
	default:
		return fmt.Sprint(value)
	}
}
