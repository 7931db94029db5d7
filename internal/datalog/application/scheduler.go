package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	datalog "plc-datalogger/internal/datalog/domain"
	"plc-datalogger/internal/eventbus"
	"plc-datalogger/internal/observability/metrics"
	settings "plc-datalogger/internal/settings/domain"
)

// ErrClosed is returned by Start once the scheduler has been drained for shutdown.
var ErrClosed = errors.New("scheduler: closed")

// State is the scheduler lifecycle state.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
)

// ConfigSource returns the current configuration.
type ConfigSource interface {
	Get() settings.Configuration
}

// Sampler reads one row from the controller.
type Sampler interface {
	Poll(ctx context.Context, at time.Time, address string, specs []settings.TagSpec) datalog.Row
}

// Persister writes table snapshots. Flush never panics and reports success.
type Persister interface {
	Flush(ctx context.Context, snap datalog.Snapshot, label string) bool
	Describe(label string) string
}

// Renderer redraws a view from the table.
type Renderer interface {
	Render(ctx context.Context, view datalog.View) error
}

type namedRenderer struct {
	name     string
	renderer Renderer
}

// Status describes the scheduler for operators.
type Status struct {
	State           State     `json:"state"`
	IntervalSeconds float64   `json:"interval_seconds"`
	Rows            int       `json:"rows"`
	Date            string    `json:"date"`
	LastTick        time.Time `json:"last_tick,omitempty"`
	LastError       string    `json:"last_error,omitempty"`
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the wall clock.
func WithClock(clock Clock) Option {
	return func(s *Scheduler) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithAutosave flushes the live table every d while running. Zero disables it.
func WithAutosave(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.autosave = d
		}
	}
}

// Scheduler polls the controller on a fixed interval and feeds the table.
//
// Lock order is tickMu then mu. Timer callbacks never hold mu while ticking.
type Scheduler struct {
	cfg       ConfigSource
	poller    Sampler
	table     *datalog.Table
	persister Persister
	bus       *eventbus.InMemoryBus
	clock     Clock
	logger    *log.Logger
	autosave  time.Duration

	// tickMu serializes ticks, clears and the shutdown drain.
	tickMu       sync.Mutex
	renderers    []namedRenderer
	lastAutosave time.Time

	mu        sync.Mutex
	state     State
	closed    bool
	gen       uint64
	timer     Timer
	interval  time.Duration
	runCtx    context.Context
	lastTick  time.Time
	lastError string
	configSub eventbus.Subscription
}

// NewScheduler constructs a Scheduler around table.
func NewScheduler(cfg ConfigSource, poller Sampler, table *datalog.Table, persister Persister, bus *eventbus.InMemoryBus, logger *log.Logger, opts ...Option) (*Scheduler, error) {
	if cfg == nil {
		return nil, errors.New("scheduler: nil config source")
	}
	if poller == nil {
		return nil, errors.New("scheduler: nil poller")
	}
	if table == nil {
		return nil, errors.New("scheduler: nil table")
	}
	if persister == nil {
		return nil, errors.New("scheduler: nil persister")
	}
	if bus == nil {
		return nil, errors.New("scheduler: nil bus")
	}
	if logger == nil {
		logger = log.Default()
	}
	s := &Scheduler{
		cfg:       cfg,
		poller:    poller,
		table:     table,
		persister: persister,
		bus:       bus,
		clock:     SystemClock{},
		logger:    logger,
		state:     StateIdle,
		runCtx:    context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.configSub = eventbus.SubscribeTo(bus, "scheduler", func(ctx context.Context, _ settings.ConfigChanged) error {
		if s.State() != StateRunning {
			return nil
		}
		// A config that no longer validates leaves the scheduler idle; the warning event covers it.
		_ = s.Reconfigure(ctx)
		return nil
	})
	return s, nil
}

// AddRenderer registers a view redrawn after every tick.
func (s *Scheduler) AddRenderer(name string, r Renderer) {
	if r == nil {
		return
	}
	s.tickMu.Lock()
	defer s.tickMu.Unlock()
	s.renderers = append(s.renderers, namedRenderer{name: name, renderer: r})
}

// Table exposes the table read-only.
func (s *Scheduler) Table() datalog.View {
	return s.table
}

// State returns the lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Running reports whether ticks are scheduled.
func (s *Scheduler) Running() bool {
	return s.State() == StateRunning
}

// Start validates the configuration and schedules an immediate first tick.
// An invalid configuration publishes LoggingWarning and leaves the state unchanged.
// After Drain it returns ErrClosed.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.isClosed() {
		return ErrClosed
	}
	cfg := s.cfg.Get()
	if err := cfg.ValidateForLogging(); err != nil {
		s.logger.Printf("scheduler start rejected: %v", err)
		s.publish(ctx, LoggingWarning{Message: err.Error()})
		return err
	}
	interval, _ := cfg.Interval()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.cancelLocked()
	s.gen++
	gen := s.gen
	s.state = StateRunning
	s.interval = interval
	s.runCtx = context.WithoutCancel(ctx)
	s.timer = s.clock.AfterFunc(0, func() { s.fire(gen) })
	s.mu.Unlock()

	metrics.SetSchedulerRunning(true)
	tags := make([]string, len(cfg.Tags))
	for i, spec := range cfg.Tags {
		tags[i] = spec.String()
	}
	s.logger.Printf("logging started: ip=%s interval=%s tags=%d", cfg.IP, interval, len(tags))
	s.publish(ctx, LoggingStarted{IP: cfg.IP, IntervalSeconds: cfg.IntervalSeconds, Tags: tags})
	return nil
}

// Stop cancels the pending tick. A tick already running completes. Stop is idempotent.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	wasRunning := s.state == StateRunning
	s.cancelLocked()
	s.gen++
	s.state = StateIdle
	s.mu.Unlock()

	if !wasRunning {
		return
	}
	metrics.SetSchedulerRunning(false)
	s.logger.Printf("logging stopped")
	s.publish(ctx, LoggingStopped{Rows: s.table.Len()})
}

// Reconfigure restarts the loop with the current configuration.
func (s *Scheduler) Reconfigure(ctx context.Context) error {
	s.Stop(ctx)
	return s.Start(ctx)
}

func (s *Scheduler) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Scheduler) cancelLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Scheduler) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateRunning && s.gen == gen
}

func (s *Scheduler) fire(gen uint64) {
	s.tickMu.Lock()
	if !s.current(gen) {
		s.tickMu.Unlock()
		return
	}
	s.mu.Lock()
	ctx := s.runCtx
	s.mu.Unlock()
	s.tick(ctx)
	s.tickMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRunning || s.gen != gen {
		return
	}
	s.timer = s.clock.AfterFunc(s.interval, func() { s.fire(gen) })
}

// tick runs with tickMu held.
func (s *Scheduler) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Printf("scheduler tick panic: %v", r)
		}
	}()

	now := s.clock.Now()
	if !datalog.SameDay(now, s.table.Date()) {
		s.rollover(ctx, now)
	}

	cfg := s.cfg.Get()
	row := s.poller.Poll(ctx, now, cfg.IP, cfg.Tags)
	changed, err := s.table.Append(row)
	if err != nil {
		s.logger.Printf("scheduler append error: %v", err)
		return
	}
	count := s.table.Len()
	metrics.SetTableRows(count)

	msg, failed := row.Error()
	s.mu.Lock()
	s.lastTick = now
	if failed {
		s.lastError = msg
	} else {
		s.lastError = ""
	}
	s.mu.Unlock()

	s.renderLocked(ctx)
	s.publish(ctx, RowAppended{Row: row, ColumnsChanged: changed, Date: s.table.Label(), Count: count})
	s.autosaveLocked(ctx, now)
}

func (s *Scheduler) rollover(ctx context.Context, now time.Time) {
	snap := s.table.Snapshot()
	previous := snap.Label()
	flushed := false
	if snap.Len() > 0 {
		flushed = s.flushLocked(ctx, snap, previous)
	}
	s.table.Reset(now)
	metrics.IncRollover()
	metrics.SetTableRows(0)
	s.logger.Printf("table rolled over: previous=%s date=%s flushed=%t", previous, s.table.Label(), flushed)
	s.publish(ctx, TableRolledOver{Previous: previous, Date: s.table.Label(), Flushed: flushed})
}

func (s *Scheduler) autosaveLocked(ctx context.Context, now time.Time) {
	if s.autosave <= 0 {
		return
	}
	if s.lastAutosave.IsZero() {
		s.lastAutosave = now
		return
	}
	if now.Sub(s.lastAutosave) < s.autosave {
		return
	}
	s.lastAutosave = now
	s.flushLocked(ctx, s.table.Snapshot(), datalog.LiveLabel)
}

func (s *Scheduler) flushLocked(ctx context.Context, snap datalog.Snapshot, label string) bool {
	ok := s.persister.Flush(ctx, snap, label)
	s.publish(ctx, TableFlushed{
		Label:       label,
		Rows:        snap.Len(),
		OK:          ok,
		Destination: s.persister.Describe(label),
		At:          s.clock.Now(),
	})
	return ok
}

func (s *Scheduler) renderLocked(ctx context.Context) {
	for _, nr := range s.renderers {
		if err := safeRender(ctx, nr.renderer, s.table); err != nil {
			metrics.IncRenderError(nr.name)
			s.logger.Printf("render error: view=%s err=%v", nr.name, err)
		}
	}
}

func safeRender(ctx context.Context, r Renderer, view datalog.View) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("render panic: %v", rec)
		}
	}()
	return r.Render(ctx, view)
}

// Clear discards the table contents without saving and moves it to today.
func (s *Scheduler) Clear(ctx context.Context) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()
	s.table.Reset(s.clock.Now())
	metrics.SetTableRows(0)
	s.logger.Printf("table cleared")
	s.publish(ctx, TableCleared{Date: s.table.Label()})
	s.renderLocked(ctx)
}

// Snapshot copies the table between ticks.
func (s *Scheduler) Snapshot() datalog.Snapshot {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()
	return s.table.Snapshot()
}

// Drain closes the scheduler, waits for an in-flight tick and returns the final table.
// No tick runs afterwards, so the snapshot is the last state of the table.
func (s *Scheduler) Drain(ctx context.Context) datalog.Snapshot {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.Stop(ctx)
	s.bus.Unsubscribe(s.configSub)
	return s.Snapshot()
}

// Status reports the lifecycle state and table size.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	st := Status{
		State:           s.state,
		IntervalSeconds: s.interval.Seconds(),
		LastTick:        s.lastTick,
		LastError:       s.lastError,
	}
	s.mu.Unlock()
	st.Rows = s.table.Len()
	st.Date = s.table.Label()
	if st.State != StateRunning {
		st.IntervalSeconds = 0
		if interval, ok := s.cfg.Get().Interval(); ok {
			st.IntervalSeconds = interval.Seconds()
		}
	}
	return st
}

func (s *Scheduler) publish(ctx context.Context, event any) {
	if err := s.bus.Publish(ctx, event); err != nil {
		s.logger.Printf("scheduler publish error: %v", err)
	}
}
