package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	datalog "plc-datalogger/internal/datalog/domain"
)

// Placeholder is shown when the table has no rows.
const Placeholder = "No data yet"

var (
	ErrReservedColumn = errors.New("chart: reserved column cannot be plotted")
	ErrUnknownColumn  = errors.New("chart: unknown column")
)

// Series is one plotted column. Nil values are gaps.
type Series struct {
	Column string     `json:"column"`
	Values []*float64 `json:"values"`
}

// Chart is the plot data for the selected columns.
type Chart struct {
	Placeholder string   `json:"placeholder,omitempty"`
	Timestamps  []string `json:"timestamps"`
	Series      []Series `json:"series"`
}

// ColumnChoice is a plottable column and whether it is selected.
type ColumnChoice struct {
	Column   string `json:"column"`
	Selected bool   `json:"selected"`
}

// ChartProjection keeps per-column numeric series for plotting.
type ChartProjection struct {
	mu       sync.RWMutex
	date     time.Time
	ingested int
	times    []time.Time
	order    []string
	values   map[string][]*float64
	selected map[string]bool
}

func NewChartProjection() *ChartProjection {
	return &ChartProjection{
		values:   make(map[string][]*float64),
		selected: make(map[string]bool),
	}
}

// Render ingests rows added since the previous call.
func (p *ChartProjection) Render(_ context.Context, view datalog.View) error {
	date := view.Date()
	n := view.Len()
	columns := view.Columns()

	p.mu.Lock()
	defer p.mu.Unlock()
	if !date.Equal(p.date) || n < p.ingested {
		p.date = date
		p.ingested = 0
		p.times = nil
		for col := range p.values {
			p.values[col] = nil
		}
	}
	p.syncColumns(columns)
	for i := p.ingested; i < n; i++ {
		row := view.Row(i)
		p.times = append(p.times, row.Timestamp)
		for _, col := range p.order {
			v, _ := row.Get(col)
			p.values[col] = append(p.values[col], Coerce(v))
		}
	}
	p.ingested = n
	return nil
}

// syncColumns adds new plottable columns (selected by default) and drops vanished ones.
func (p *ChartProjection) syncColumns(columns []string) {
	present := make(map[string]struct{}, len(columns))
	for _, col := range columns {
		if datalog.IsReserved(col) {
			continue
		}
		present[col] = struct{}{}
		if _, ok := p.values[col]; ok {
			continue
		}
		p.order = append(p.order, col)
		p.values[col] = make([]*float64, len(p.times))
		p.selected[col] = true
	}
	kept := p.order[:0]
	for _, col := range p.order {
		if _, ok := present[col]; ok {
			kept = append(kept, col)
			continue
		}
		delete(p.values, col)
		delete(p.selected, col)
	}
	p.order = kept
}

// Columns lists plottable columns in first-seen order.
func (p *ChartProjection) Columns() []ColumnChoice {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]ColumnChoice, len(p.order))
	for i, col := range p.order {
		out[i] = ColumnChoice{Column: col, Selected: p.selected[col]}
	}
	return out
}

// SetSelected replaces the plotted column set.
func (p *ChartProjection) SetSelected(columns []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	next := make(map[string]bool, len(p.order))
	for _, col := range columns {
		if datalog.IsReserved(col) {
			return fmt.Errorf("%w: %s", ErrReservedColumn, col)
		}
		if _, ok := p.values[col]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownColumn, col)
		}
		next[col] = true
	}
	for _, col := range p.order {
		p.selected[col] = next[col]
	}
	return nil
}

// Chart returns the series of every selected column.
func (p *ChartProjection) Chart() Chart {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.times) == 0 {
		return Chart{Placeholder: Placeholder, Timestamps: []string{}, Series: []Series{}}
	}
	chart := Chart{
		Timestamps: make([]string, len(p.times)),
		Series:     []Series{},
	}
	for i, ts := range p.times {
		chart.Timestamps[i] = ts.Format(datalog.TimestampLayout)
	}
	for _, col := range p.order {
		if !p.selected[col] {
			continue
		}
		chart.Series = append(chart.Series, Series{
			Column: col,
			Values: append([]*float64(nil), p.values[col]...),
		})
	}
	return chart
}

// Coerce converts a cell to a plottable number. Anything else is a gap.
func Coerce(v any) *float64 {
	f, ok := datalog.Numeric(v)
	if !ok {
		return nil
	}
	return &f
}
