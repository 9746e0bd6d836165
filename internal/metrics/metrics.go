package metrics

import (
	"net/http"
	"time"

	"github.com/nholik/uptime-sentinel/internal/history"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics wraps Prometheus collectors for uptime-sentinel.
type Metrics struct {
	registry                 *prometheus.Registry
	cycleDurationSeconds     prometheus.Histogram
	probesTotal              *prometheus.CounterVec
	transitionsTotal         *prometheus.CounterVec
	targetUp                 prometheus.Gauge
	eventsRetained           prometheus.Gauge
	saveErrorsTotal          prometheus.Counter
	lastSuccessfulCycleGauge prometheus.Gauge
}

// New initializes a Metrics registry with all collectors registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		cycleDurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "uptime_sentinel_cycle_duration_seconds",
			Help:    "Duration of monitor cycles in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		probesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uptime_sentinel_probes_total",
			Help: "Total probes by observed state.",
		}, []string{"state"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uptime_sentinel_transitions_total",
			Help: "Total recorded state transitions by new state.",
		}, []string{"state"}),
		targetUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "uptime_sentinel_target_up",
			Help: "Current target state: 1 reachable, 0 unreachable, -1 unknown.",
		}),
		eventsRetained: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "uptime_sentinel_events_retained",
			Help: "Number of state events currently retained in history.",
		}),
		saveErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "uptime_sentinel_save_errors_total",
			Help: "Total failed history saves.",
		}),
		lastSuccessfulCycleGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "uptime_sentinel_last_successful_cycle_timestamp",
			Help: "Unix timestamp of the last cycle that saved successfully.",
		}),
	}
	m.targetUp.Set(-1)

	registry.MustRegister(
		m.cycleDurationSeconds,
		m.probesTotal,
		m.transitionsTotal,
		m.targetUp,
		m.eventsRetained,
		m.saveErrorsTotal,
		m.lastSuccessfulCycleGauge,
	)

	return m
}

// Handler returns a Prometheus HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveCycleDuration records the duration of a completed cycle.
func (m *Metrics) ObserveCycleDuration(duration time.Duration) {
	if m == nil {
		return
	}
	m.cycleDurationSeconds.Observe(duration.Seconds())
}

// ObserveProbe counts a probe result and updates the target gauge.
func (m *Metrics) ObserveProbe(s history.State) {
	if m == nil {
		return
	}
	m.probesTotal.WithLabelValues(string(s)).Inc()
	switch s {
	case history.StateReachable:
		m.targetUp.Set(1)
	case history.StateUnreachable:
		m.targetUp.Set(0)
	default:
		m.targetUp.Set(-1)
	}
}

// IncTransitions increments the transition counter for the new state.
func (m *Metrics) IncTransitions(s history.State) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(string(s)).Inc()
}

// SetEventsRetained sets the retained event gauge.
func (m *Metrics) SetEventsRetained(n int) {
	if m == nil {
		return
	}
	m.eventsRetained.Set(float64(n))
}

// IncSaveErrors increments the save error counter.
func (m *Metrics) IncSaveErrors() {
	if m == nil {
		return
	}
	m.saveErrorsTotal.Inc()
}

// SetLastSuccessfulCycleTimestamp sets the last successful cycle time.
func (m *Metrics) SetLastSuccessfulCycleTimestamp(t time.Time) {
	if m == nil {
		return
	}
	m.lastSuccessfulCycleGauge.Set(float64(t.Unix()))
}
