package application

import (
	"context"
	"errors"
	"fmt"
	"log"

	datalog "plc-datalogger/internal/datalog/domain"
)

// ErrNotSaved is reported when the final flush did not persist anything.
var ErrNotSaved = errors.New("shutdown: table not saved")

// ShutdownReport is shown to the operator once the process exits.
type ShutdownReport struct {
	Saved       bool   `json:"saved"`
	Rows        int    `json:"rows"`
	Destination string `json:"destination"`
	Err         error  `json:"-"`
}

// Message renders the report the way the operator sees it.
func (r ShutdownReport) Message() string {
	switch {
	case r.Saved:
		return "Data saved to: " + r.Destination
	case r.Rows == 0:
		return "No data to save."
	case r.Err != nil:
		return fmt.Sprintf("Failed to save data to %s: %v", r.Destination, r.Err)
	default:
		return "Failed to save data to " + r.Destination
	}
}

// Releaser frees a resource at shutdown.
type Releaser func(ctx context.Context) error

// Shutdown stops polling, saves the live table exactly once and releases resources.
// Every step runs even when an earlier one fails.
func Shutdown(ctx context.Context, logger *log.Logger, sched *Scheduler, persister Persister, release ...Releaser) ShutdownReport {
	if logger == nil {
		logger = log.Default()
	}
	var report ShutdownReport

	var snap datalog.Snapshot
	step(logger, "drain", func() error {
		if sched == nil {
			return errors.New("nil scheduler")
		}
		snap = sched.Drain(ctx)
		return nil
	})

	report.Rows = snap.Len()
	step(logger, "save", func() error {
		if persister == nil {
			report.Err = errors.New("no persister")
			return report.Err
		}
		report.Destination = persister.Describe(datalog.LiveLabel)
		if snap.Len() == 0 {
			return nil
		}
		report.Saved = persister.Flush(ctx, snap, datalog.LiveLabel)
		if !report.Saved {
			report.Err = ErrNotSaved
		}
		return report.Err
	})

	for i, r := range release {
		if r == nil {
			continue
		}
		step(logger, fmt.Sprintf("release[%d]", i), func() error { return r(ctx) })
	}

	logger.Printf("shutdown: %s", report.Message())
	return report
}

func step(logger *log.Logger, name string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Printf("shutdown %s panic: %v", name, r)
		}
	}()
	if err := fn(); err != nil {
		logger.Printf("shutdown %s error: %v", name, err)
	}
}
