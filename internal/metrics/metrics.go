// Package metrics exposes Prometheus instrumentation for the trading core.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors. A nil *Metrics is valid and turns
// every record call into a no-op, so instrumentation stays optional.
type Metrics struct {
	OrdersPlaced     *prometheus.CounterVec
	OrderFailures    prometheus.Counter
	OrdersCancelled  prometheus.Counter
	FillsDetected    *prometheus.CounterVec
	ActiveStrategies prometheus.Gauge

	gatherer prometheus.Gatherer
}

// NewDefault registers metrics with the default Prometheus registry.
func NewDefault() *Metrics {
	return newMetrics(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

// New registers metrics with the provided registry. If registry is nil, a new
// isolated registry is created.
func New(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	return newMetrics(registry, registry)
}

func newMetrics(registerer prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	m := &Metrics{
		OrdersPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orders_placed_total",
			Help: "Total orders accepted by the exchange, by order type.",
		}, []string{"type"}),
		OrderFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "order_failures_total",
			Help: "Total order submissions rejected or failed.",
		}),
		OrdersCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orders_cancelled_total",
			Help: "Total orders cancelled.",
		}),
		FillsDetected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "strategy_fills_detected_total",
			Help: "Total fills detected by strategy monitors, by strategy kind.",
		}, []string{"kind"}),
		ActiveStrategies: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "active_strategies",
			Help: "Number of strategies currently running.",
		}),
		gatherer: gatherer,
	}

	registerer.MustRegister(
		m.OrdersPlaced,
		m.OrderFailures,
		m.OrdersCancelled,
		m.FillsDetected,
		m.ActiveStrategies,
	)

	return m
}

// Handler returns an HTTP handler that exposes metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// IncOrderPlaced increments the placed counter for an order type.
func (m *Metrics) IncOrderPlaced(orderType string) {
	if m == nil {
		return
	}
	m.OrdersPlaced.WithLabelValues(orderType).Inc()
}

// IncOrderFailure increments the failure counter.
func (m *Metrics) IncOrderFailure() {
	if m == nil {
		return
	}
	m.OrderFailures.Inc()
}

// IncOrderCancelled increments the cancellation counter.
func (m *Metrics) IncOrderCancelled() {
	if m == nil {
		return
	}
	m.OrdersCancelled.Inc()
}

// IncFillDetected increments the fill counter for a strategy kind.
func (m *Metrics) IncFillDetected(kind string) {
	if m == nil {
		return
	}
	m.FillsDetected.WithLabelValues(kind).Inc()
}

// AddActiveStrategies moves the active strategy gauge by delta.
func (m *Metrics) AddActiveStrategies(delta float64) {
	if m == nil {
		return
	}
	m.ActiveStrategies.Add(delta)
}
