package application

import (
	"time"

	datalog "plc-datalogger/internal/datalog/domain"
)

// LoggingStarted is published when the scheduler enters the running state.
type LoggingStarted struct {
	IP              string   `json:"ip"`
	IntervalSeconds float64  `json:"interval_seconds"`
	Tags            []string `json:"tags"`
}

// LoggingStopped is published when a running scheduler stops.
type LoggingStopped struct {
	Rows int `json:"rows"`
}

// LoggingWarning reports a start request that could not be honored.
type LoggingWarning struct {
	Message string `json:"message"`
}

// RowAppended is published after each tick's row lands in the table.
type RowAppended struct {
	Row            datalog.Row `json:"row"`
	ColumnsChanged bool        `json:"columns_changed"`
	Date           string      `json:"date"`
	Count          int         `json:"count"`
}

// TableRolledOver is published when the table moves to a new day.
type TableRolledOver struct {
	Previous string `json:"previous"`
	Date     string `json:"date"`
	Flushed  bool   `json:"flushed"`
}

// TableFlushed reports the outcome of a persistence attempt.
type TableFlushed struct {
	Label       string    `json:"label"`
	Rows        int       `json:"rows"`
	OK          bool      `json:"ok"`
	Destination string    `json:"destination"`
	At          time.Time `json:"at"`
}

// TableCleared is published when the operator discards the current table.
type TableCleared struct {
	Date string `json:"date"`
}
