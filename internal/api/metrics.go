package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/relay-gateway/internal/dispatch"
)

// Metrics holds the gateway's Prometheus collectors and implements
// dispatch.Observer. It owns a private registry so tests can build as many
// as they like.
type Metrics struct {
	registry *prometheus.Registry

	commands        *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec
	refreshes       *prometheus.CounterVec
	devices         prometheus.Gauge
	httpRequests    *prometheus.CounterVec
}

// QueueReporter exposes the worker's queue depth.
type QueueReporter interface {
	QueueDepth() int
}

// NewMetrics registers the gateway collectors plus the Go and process
// collectors. queue may be nil.
func NewMetrics(queue QueueReporter) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relaygw_commands_total",
				Help: "Commands processed by the dispatch worker, by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		commandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "relaygw_command_duration_seconds",
				Help:    "Time spent processing a command, by kind.",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"kind"},
		),
		refreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relaygw_registry_refresh_total",
				Help: "Registry refresh attempts, by result.",
			},
			[]string{"result"},
		),
		devices: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relaygw_registry_devices",
			Help: "Relays currently in the registry.",
		}),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relaygw_http_requests_total",
				Help: "HTTP requests, by method, route and status.",
			},
			[]string{"method", "route", "status"},
		),
	}

	m.registry.MustRegister(
		m.commands,
		m.commandDuration,
		m.refreshes,
		m.devices,
		m.httpRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if queue != nil {
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "relaygw_worker_queue_depth",
				Help: "Commands waiting in the dispatch queue.",
			},
			func() float64 { return float64(queue.QueueDepth()) },
		))
	}

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// SetDevices records the registry size. Used at startup before the first event.
func (m *Metrics) SetDevices(n int) {
	m.devices.Set(float64(n))
}

// ObserveHTTP counts one HTTP request.
func (m *Metrics) ObserveHTTP(method, route string, status int) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// CommandCompleted implements dispatch.Observer.
func (m *Metrics) CommandCompleted(kind dispatch.Kind, outcome string, elapsed time.Duration) {
	m.commands.WithLabelValues(string(kind), outcome).Inc()
	m.commandDuration.WithLabelValues(string(kind)).Observe(elapsed.Seconds())

	if kind == dispatch.KindRefresh || kind == dispatch.KindAutoRefresh {
		result := "ok"
		if outcome == dispatch.OutcomeError {
			result = "error"
		}
		m.refreshes.WithLabelValues(result).Inc()
	}
}

// StateChanged implements dispatch.Observer.
func (m *Metrics) StateChanged(event dispatch.Event) {
	m.devices.Set(float64(len(event.Status.Relays)))
}

// CommandFailed implements dispatch.Observer. Failures are already counted
// by CommandCompleted.
func (m *Metrics) CommandFailed(dispatch.Kind, error) {}
