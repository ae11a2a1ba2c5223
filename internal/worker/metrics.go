package worker

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the worker layer. Each Metrics
// value has its own registry, so several can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	Requests  *prometheus.CounterVec
	Duration  *prometheus.HistogramVec
	PointsIn  *prometheus.CounterVec
	PointsOut *prometheus.CounterVec
	Dropped   prometheus.Counter
	Sessions  prometheus.Gauge
}

// NewMetrics creates and registers the collectors under namespace.
func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Requests handled, by operation and outcome.",
			},
			[]string{"operation", "status"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Time spent computing a result.",
				Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05, .1},
			},
			[]string{"operation"},
		),
		PointsIn: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "points_in_total",
				Help:      "Points received by path operations.",
			},
			[]string{"operation"},
		),
		PointsOut: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "points_out_total",
				Help:      "Points returned by path operations.",
			},
			[]string{"operation"},
		),
		Dropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dropped_total",
				Help:      "Requests answered with no reply.",
			},
		),
		Sessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sessions",
				Help:      "Open remote worker sessions.",
			},
		),
	}

	m.registry.MustRegister(
		m.Requests,
		m.Duration,
		m.PointsIn,
		m.PointsOut,
		m.Dropped,
		m.Sessions,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) observe(op Operation, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(string(op), status).Inc()
	m.Duration.WithLabelValues(string(op)).Observe(elapsed.Seconds())
}

func (m *Metrics) points(op Operation, in, out int) {
	if m == nil {
		return
	}
	m.PointsIn.WithLabelValues(string(op)).Add(float64(in))
	m.PointsOut.WithLabelValues(string(op)).Add(float64(out))
}

func (m *Metrics) dropped() {
	if m == nil {
		return
	}
	m.Dropped.Inc()
}
