package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the terminal server. They
// register against a private registry so multiple instances (tests) never
// collide.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Terminal metrics
	TerminalsActive  prometheus.Gauge
	TerminalsCreated prometheus.Counter
	TerminalsCulled  prometheus.Counter

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec
}

// NewMetrics creates a metrics collector.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	f := factory{registry: registry}

	return &Metrics{
		registry: registry,
		RequestsTotal: f.counterVec(prometheus.CounterOpts{
			Name: "terminals_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		RequestDuration: f.histogramVec(prometheus.HistogramOpts{
			Name:    "terminals_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"method", "path"}),
		TerminalsActive: f.gauge(prometheus.GaugeOpts{
			Name: "terminals_active",
			Help: "Number of live terminal sessions",
		}),
		TerminalsCreated: f.counter(prometheus.CounterOpts{
			Name: "terminals_created_total",
			Help: "Total number of terminal sessions created",
		}),
		TerminalsCulled: f.counter(prometheus.CounterOpts{
			Name: "terminals_culled_total",
			Help: "Total number of terminal sessions reaped for inactivity",
		}),
		WSConnections: f.gauge(prometheus.GaugeOpts{
			Name: "terminals_ws_connections",
			Help: "Number of open terminal websocket connections",
		}),
		WSMessages: f.counterVec(prometheus.CounterOpts{
			Name: "terminals_ws_messages_total",
			Help: "Total websocket messages relayed, by direction",
		}, []string{"direction"}),
	}
}

// Handler serves the Prometheus exposition endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// factory mirrors promauto against a private registry.
type factory struct {
	registry *prometheus.Registry
}

func (f factory) counter(opts prometheus.CounterOpts) prometheus.Counter {
	c := prometheus.NewCounter(opts)
	f.registry.MustRegister(c)
	return c
}

func (f factory) counterVec(opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	c := prometheus.NewCounterVec(opts, labels)
	f.registry.MustRegister(c)
	return c
}

func (f factory) gauge(opts prometheus.GaugeOpts) prometheus.Gauge {
	g := prometheus.NewGauge(opts)
	f.registry.MustRegister(g)
	return g
}

func (f factory) histogramVec(opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	h := prometheus.NewHistogramVec(opts, labels)
	f.registry.MustRegister(h)
	return h
}
