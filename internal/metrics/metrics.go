package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine's operational counters.
type Metrics struct {
	registry *prometheus.Registry

	completionsTotal  prometheus.Counter
	undosTotal        prometheus.Counter
	debouncedTotal    prometheus.Counter
	staleWritesTotal  prometheus.Counter
	windowFallbacks   prometheus.Counter
	redFlagsTotal     *prometheus.CounterVec
	reportsBuilt      prometheus.Counter
	reportCacheHits   prometheus.Counter
	reportCacheMisses prometheus.Counter
	requestDuration   *prometheus.HistogramVec
	activeSockets     prometheus.Gauge
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Default returns the process-wide metrics instance.
func Default() *Metrics {
	once.Do(func() {
		defaultMetrics = New()
	})
	return defaultMetrics
}

// New builds a Metrics backed by its own registry, so tests never collide on
// the global one.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "caretide", Name: name, Help: help,
		})
		reg.MustRegister(c)
		return c
	}

	m := &Metrics{
		registry:          reg,
		completionsTotal:  factory("completions_total", "Care items marked complete"),
		undosTotal:        factory("undos_total", "Completions reversed"),
		debouncedTotal:    factory("completions_debounced_total", "Duplicate completion taps dropped"),
		staleWritesTotal:  factory("completions_stale_total", "Completion writes rejected as stale"),
		windowFallbacks:   factory("window_fallbacks_total", "Items with unreadable schedules grouped under morning"),
		reportsBuilt:      factory("reports_built_total", "Reports assembled"),
		reportCacheHits:   factory("report_cache_hits_total", "Reports served from cache"),
		reportCacheMisses: factory("report_cache_misses_total", "Reports rebuilt on cache miss"),
	}

	m.redFlagsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "caretide", Name: "red_flags_total", Help: "Red flags raised by trend scans",
	}, []string{"severity"})
	reg.MustRegister(m.redFlagsTotal)

	m.requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "caretide", Name: "request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "status"})
	reg.MustRegister(m.requestDuration)

	m.activeSockets = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "caretide", Name: "active_sockets", Help: "Connected dashboard subscribers",
	})
	reg.MustRegister(m.activeSockets)

	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordCompletion() { m.completionsTotal.Inc() }
func (m *Metrics) RecordUndo()       { m.undosTotal.Inc() }
func (m *Metrics) RecordDebounced()  { m.debouncedTotal.Inc() }
func (m *Metrics) RecordStaleWrite() { m.staleWritesTotal.Inc() }

func (m *Metrics) RecordWindowFallbacks(n int) {
	m.windowFallbacks.Add(float64(n))
}

func (m *Metrics) RecordRedFlag(severity string) {
	m.redFlagsTotal.WithLabelValues(severity).Inc()
}

func (m *Metrics) RecordReportBuilt(cached bool) {
	m.reportsBuilt.Inc()
	if cached {
		m.reportCacheHits.Inc()
	} else {
		m.reportCacheMisses.Inc()
	}
}

func (m *Metrics) RecordRequestDuration(route, status string, d time.Duration) {
	m.requestDuration.WithLabelValues(route, status).Observe(d.Seconds())
}

func (m *Metrics) IncrementActiveSockets() { m.activeSockets.Inc() }
func (m *Metrics) DecrementActiveSockets() { m.activeSockets.Dec() }

func RecordCompletion() { Default().RecordCompletion() }
func RecordUndo()       { Default().RecordUndo() }
func RecordDebounced()  { Default().RecordDebounced() }
func RecordStaleWrite() { Default().RecordStaleWrite() }

func RecordWindowFallbacks(n int) { Default().RecordWindowFallbacks(n) }

func RecordRedFlag(severity string) {
	Default().RecordRedFlag(severity)
}

func RecordReportBuilt(cached bool) {
	Default().RecordReportBuilt(cached)
}

func RecordRequestDuration(route, status string, d time.Duration) {
	Default().RecordRequestDuration(route, status, d)
}

func Handler() http.Handler {
	return Default().Handler()
}
