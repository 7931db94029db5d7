package datalog

import (
	"sync"
	"time"
)

// LiveLabel marks a flush of the current day to the live save target.
const LiveLabel = "live"

// DateLayout labels a calendar day.
const DateLayout = "2006-01-02"

// Day truncates t to local midnight of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SameDay reports whether a and b fall on the same calendar date.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// View is read-only access to a table.
type View interface {
	Date() time.Time
	Len() int
	Row(i int) Row
	Columns() []string
	ColumnsVersion() uint64
}

// Table accumulates the sample rows of one calendar day.
// Rows may introduce new columns; the column list is their union in first-seen order.
type Table struct {
	mu        sync.RWMutex
	date      time.Time
	rows      []Row
	columns   []string
	columnSet map[string]struct{}
	version   uint64
}

// NewTable creates an empty table for the day of date.
func NewTable(date time.Time) *Table {
	t := &Table{}
	t.resetLocked(date)
	return t
}

// Date returns the calendar day the table belongs to.
func (t *Table) Date() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.date
}

// Label returns the table's day as YYYY-MM-DD.
func (t *Table) Label() string {
	return t.Date().Format(DateLayout)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// Row returns row i.
func (t *Table) Row(i int) Row {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rows[i].Clone()
}

// Columns returns the column union.
func (t *Table) Columns() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]string(nil), t.columns...)
}

// ColumnsVersion changes whenever the column set changes.
func (t *Table) ColumnsVersion() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.version
}

// Append adds a row dated on the table's day. It reports whether new columns appeared.
func (t *Table) Append(row Row) (bool, error) {
	if row.Timestamp.IsZero() {
		return false, ErrZeroTimestamp
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !SameDay(row.Timestamp, t.date) {
		return false, ErrDateMismatch
	}
	changed := false
	for _, col := range row.Columns() {
		if _, ok := t.columnSet[col]; ok {
			continue
		}
		t.columnSet[col] = struct{}{}
		t.columns = append(t.columns, col)
		changed = true
	}
	if changed {
		t.version++
	}
	t.rows = append(t.rows, row.Clone())
	return changed, nil
}

// Reset empties the table and moves it to the day of date.
func (t *Table) Reset(date time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetLocked(date)
}

func (t *Table) resetLocked(date time.Time) {
	t.date = Day(date)
	t.rows = nil
	t.columns = nil
	t.columnSet = make(map[string]struct{})
	t.version++
}

// Snapshot copies the table for persistence.
func (t *Table) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rows := make([]Row, len(t.rows))
	for i, row := range t.rows {
		rows[i] = row.Clone()
	}
	return Snapshot{
		Date:    t.date,
		Columns: append([]string(nil), t.columns...),
		Rows:    rows,
	}
}

// Snapshot is a consistent copy of a table.
type Snapshot struct {
	Date    time.Time
	Columns []string
	Rows    []Row
}

// Label returns the snapshot's day as YYYY-MM-DD.
func (s Snapshot) Label() string {
	return s.Date.Format(DateLayout)
}

// Len returns the number of rows.
func (s Snapshot) Len() int {
	return len(s.Rows)
}

// Cells aligns every row to Columns. Missing cells are nil.
func (s Snapshot) Cells() [][]any {
	out := make([][]any, len(s.Rows))
	for i, row := range s.Rows {
		cells := make([]any, len(s.Columns))
		for j, col := range s.Columns {
			if v, ok := row.Get(col); ok {
				cells[j] = v
			}
		}
		out[i] = cells
	}
	return out
}
