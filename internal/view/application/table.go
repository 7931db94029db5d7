package application

import (
	"context"
	"sync"
	"time"

	datalog "plc-datalogger/internal/datalog/domain"
)

// TableState is the rendered grid.
type TableState struct {
	Date     string     `json:"date" msgpack:"date"`
	Columns  []string   `json:"columns" msgpack:"columns"`
	Rows     [][]string `json:"rows" msgpack:"rows"`
	Scroll   int        `json:"scroll" msgpack:"scroll"`
	Rebuilds int        `json:"rebuilds" msgpack:"rebuilds"`
}

// TableProjection mirrors the log table as text cells.
// It appends new rows incrementally and rebuilds only when the shape changes.
type TableProjection struct {
	mu       sync.RWMutex
	date     time.Time
	version  uint64
	columns  []string
	rows     [][]string
	rebuilds int
	built    bool
}

func NewTableProjection() *TableProjection {
	return &TableProjection{}
}

// Render brings the projection up to date with view.
func (p *TableProjection) Render(_ context.Context, view datalog.View) error {
	date := view.Date()
	version := view.ColumnsVersion()
	n := view.Len()

	p.mu.Lock()
	defer p.mu.Unlock()
	if !date.Equal(p.date) || version != p.version || n < len(p.rows) || !p.built {
		p.built = true
		p.date = date
		p.version = version
		p.columns = view.Columns()
		p.rows = p.rows[:0]
		p.rebuilds++
	}
	for i := len(p.rows); i < n; i++ {
		row := view.Row(i)
		cells := make([]string, len(p.columns))
		for j, col := range p.columns {
			if v, ok := row.Get(col); ok {
				cells[j] = datalog.FormatValue(v)
			}
		}
		p.rows = append(p.rows, cells)
	}
	return nil
}

// State copies the rendered grid. Scroll points at the last row, or -1 when empty.
func (p *TableProjection) State() TableState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	rows := make([][]string, len(p.rows))
	for i, r := range p.rows {
		rows[i] = append([]string(nil), r...)
	}
	st := TableState{
		Columns:  append([]string{}, p.columns...),
		Rows:     rows,
		Scroll:   len(p.rows) - 1,
		Rebuilds: p.rebuilds,
	}
	if !p.date.IsZero() {
		st.Date = p.date.Format(datalog.DateLayout)
	}
	return st
}
