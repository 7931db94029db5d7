package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	datalog "plc-datalogger/internal/datalog/domain"
	"plc-datalogger/internal/observability/metrics"
	settings "plc-datalogger/internal/settings/domain"
)

// Strategy writes snapshots to one kind of storage.
type Strategy interface {
	Kind() string
	Write(ctx context.Context, snap datalog.Snapshot, label string) error
	Ping(ctx context.Context) error
	Describe(label string) string
}

// Factory builds the strategy for a storage target.
type Factory func(target settings.StorageTarget) (Strategy, error)

// Reporter renders a summary of a completed day.
type Reporter interface {
	WriteReport(ctx context.Context, snap datalog.Snapshot) (string, error)
}

// ConfigSource returns the current configuration.
type ConfigSource interface {
	Get() settings.Configuration
}

// Router sends flushes to the strategy chosen by the current storage target.
type Router struct {
	cfg      ConfigSource
	factory  Factory
	reporter Reporter
	logger   *log.Logger
}

// NewRouter constructs a Router. reporter may be nil.
func NewRouter(cfg ConfigSource, factory Factory, reporter Reporter, logger *log.Logger) (*Router, error) {
	if cfg == nil {
		return nil, errors.New("persistence: nil config source")
	}
	if factory == nil {
		return nil, errors.New("persistence: nil factory")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Router{cfg: cfg, factory: factory, reporter: reporter, logger: logger}, nil
}

// Flush writes snap under label and reports success. It never panics.
// LiveLabel targets the live destination; a YYYY-MM-DD label targets that day's artifact.
func (r *Router) Flush(ctx context.Context, snap datalog.Snapshot, label string) (ok bool) {
	start := time.Now()
	kind := string(r.cfg.Get().Storage.Kind)
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Printf("persistence flush panic: label=%s err=%v", label, rec)
			metrics.ObserveFlush(kind, metrics.ResultError, time.Since(start))
			ok = false
		}
	}()

	if snap.Len() == 0 {
		r.logger.Printf("persistence: no data to save yet")
		metrics.ObserveFlush(kind, metrics.ResultSkipped, time.Since(start))
		return false
	}
	strategy, err := r.strategy()
	if err != nil {
		r.logger.Printf("persistence flush error: label=%s err=%v", label, err)
		metrics.ObserveFlush(kind, metrics.ResultError, time.Since(start))
		return false
	}
	if err := strategy.Write(ctx, snap, label); err != nil {
		r.logger.Printf("persistence flush error: label=%s destination=%s err=%v", label, strategy.Describe(label), err)
		metrics.ObserveFlush(strategy.Kind(), metrics.ResultError, time.Since(start))
		return false
	}
	metrics.ObserveFlush(strategy.Kind(), metrics.ResultSuccess, time.Since(start))
	r.logger.Printf("table saved: label=%s rows=%d destination=%s", label, snap.Len(), strategy.Describe(label))

	if label != datalog.LiveLabel && r.reporter != nil {
		if path, err := r.reporter.WriteReport(ctx, snap); err != nil {
			r.logger.Printf("daily report error: label=%s err=%v", label, err)
		} else {
			r.logger.Printf("daily report written: %s", path)
		}
	}
	return true
}

// TestConnection checks the configured storage without writing.
func (r *Router) TestConnection(ctx context.Context) error {
	strategy, err := r.strategy()
	if err != nil {
		return err
	}
	return strategy.Ping(ctx)
}

// Describe names where label would be written.
func (r *Router) Describe(label string) string {
	strategy, err := r.strategy()
	if err != nil {
		return fmt.Sprintf("%s (unavailable: %v)", r.cfg.Get().Storage.Kind, err)
	}
	return strategy.Describe(label)
}

func (r *Router) strategy() (Strategy, error) {
	target := r.cfg.Get().Storage
	if err := target.Validate(); err != nil {
		return nil, err
	}
	strategy, err := r.factory(target)
	if err != nil {
		return nil, err
	}
	if strategy == nil {
		return nil, fmt.Errorf("persistence: no strategy for %q", target.Kind)
	}
	return strategy, nil
}
