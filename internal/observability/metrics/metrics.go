package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "plclogger_"

	resultSuccess = "success"
	resultError   = "error"
	resultInfo    = "info"
	resultSkipped = "skipped"
)

var (
	registerOnce sync.Once

	pollTotal   *prometheus.CounterVec
	pollLatency *prometheus.HistogramVec

	flushTotal   *prometheus.CounterVec
	flushLatency *prometheus.HistogramVec

	tableRows       prometheus.Gauge
	schedulerActive prometheus.Gauge
	rolloverTotal   prometheus.Counter

	listenerErrors *prometheus.CounterVec
	renderErrors   *prometheus.CounterVec
)

// Init registers logger metrics. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		pollTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "poll_total",
				Help: "Total PLC poll ticks by result",
			},
			[]string{"result"},
		)
		pollLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "poll_latency_seconds",
				Help:    "PLC poll latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		flushTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "flush_total",
				Help: "Total log table flushes by storage kind and result",
			},
			[]string{"storage", "result"},
		)
		flushLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "flush_latency_seconds",
				Help:    "Log table flush latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"storage", "result"},
		)
		tableRows = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "table_rows",
			Help: "Rows currently held in the in-memory log table",
		})
		schedulerActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "scheduler_running",
			Help: "1 when the polling scheduler is running",
		})
		rolloverTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "rollover_total",
			Help: "Total day rollovers",
		})
		listenerErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "listener_errors_total",
				Help: "Total change listener failures by listener",
			},
			[]string{"listener"},
		)
		renderErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "render_errors_total",
				Help: "Total view render failures by view",
			},
			[]string{"view"},
		)

		prometheus.MustRegister(
			pollTotal,
			pollLatency,
			flushTotal,
			flushLatency,
			tableRows,
			schedulerActive,
			rolloverTotal,
			listenerErrors,
			renderErrors,
		)
	})
}

// ObservePoll records a poll tick.
func ObservePoll(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if pollTotal != nil {
		pollTotal.WithLabelValues(result).Inc()
	}
	if pollLatency != nil {
		pollLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObserveFlush records a flush attempt.
func ObserveFlush(storage, result string, duration time.Duration) {
	if storage == "" {
		storage = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if flushTotal != nil {
		flushTotal.WithLabelValues(storage, result).Inc()
	}
	if flushLatency != nil {
		flushLatency.WithLabelValues(storage, result).Observe(duration.Seconds())
	}
}

// SetTableRows sets the current log table size.
func SetTableRows(rows int) {
	if tableRows != nil {
		tableRows.Set(float64(rows))
	}
}

// SetSchedulerRunning flags the scheduler state.
func SetSchedulerRunning(running bool) {
	if schedulerActive == nil {
		return
	}
	if running {
		schedulerActive.Set(1)
		return
	}
	schedulerActive.Set(0)
}

// IncRollover counts a day rollover.
func IncRollover() {
	if rolloverTotal != nil {
		rolloverTotal.Inc()
	}
}

// IncListenerError counts a failed change listener.
func IncListenerError(listener string) {
	if listener == "" {
		listener = "unknown"
	}
	if listenerErrors != nil {
		listenerErrors.WithLabelValues(listener).Inc()
	}
}

// IncRenderError counts a failed view render.
func IncRenderError(view string) {
	if view == "" {
		view = "unknown"
	}
	if renderErrors != nil {
		renderErrors.WithLabelValues(view).Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
	ResultInfo    = resultInfo
	ResultSkipped = resultSkipped
)
