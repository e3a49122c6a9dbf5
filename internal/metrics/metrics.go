// Package metrics exposes Prometheus collectors for the controller plus
// a liveness endpoint on the same listener.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// The controller touches progress at least every wait-phase poll tick
// (30s), so two minutes of silence means the loop is stuck.
const healthWindow = 2 * time.Minute

type Metrics struct {
	registry *prometheus.Registry

	CyclesTotal     prometheus.Counter
	CycleFailures   prometheus.Counter
	OverridesTotal  prometheus.Counter
	CurrentOffTime  prometheus.Gauge
	LastWorkingTime prometheus.Gauge
	PumpOn          prometheus.Gauge

	mux *http.ServeMux

	mu       sync.Mutex
	lastPass time.Time
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sump",
			Name:      "cycles_total",
			Help:      "Completed pump cycles since process start",
		}),
		CycleFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sump",
			Name:      "cycle_failures_total",
			Help:      "Cycles aborted because the relay would not confirm",
		}),
		OverridesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sump",
			Name:      "overrides_total",
			Help:      "Operator override commands applied",
		}),
		CurrentOffTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sump",
			Name:      "current_off_time_seconds",
			Help:      "Adaptive wait between cycles",
		}),
		LastWorkingTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sump",
			Name:      "last_working_time_seconds",
			Help:      "Working time measured during the last ON phase",
		}),
		PumpOn: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sump",
			Name:      "pump_on_binary",
			Help:      "Last commanded relay state",
		}),
		lastPass: time.Now(),
	}

	m.registry.MustRegister(
		m.CyclesTotal, m.CycleFailures, m.OverridesTotal,
		m.CurrentOffTime, m.LastWorkingTime, m.PumpOn,
	)

	m.mux = http.NewServeMux()
	m.mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	m.mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if m.healthy() {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusInternalServerError)
		}
	})
	return m
}

// MarkProgress records that the controller loop is alive. Called at
// cycle boundaries and every wait-phase poll tick.
func (m *Metrics) MarkProgress() {
	m.mu.Lock()
	m.lastPass = time.Now()
	m.mu.Unlock()
}

func (m *Metrics) healthy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return time.Since(m.lastPass) < healthWindow
}

// Handler returns the HTTP mux with /metrics and /health.
func (m *Metrics) Handler() http.Handler {
	return m.mux
}

// Attach registers an additional handler on the exposition mux, for
// endpoints that belong on the same operational listener.
func (m *Metrics) Attach(pattern string, handler http.Handler) {
	m.mux.Handle(pattern, handler)
}

// Serve blocks on the exposition listener.
func (m *Metrics) Serve(addr string) error {
	return http.ListenAndServe(addr, m.Handler())
}
