package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"parts-engine/internal/core"
)

const namespace = "parts"

// Metrics holds the engine's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	LedgerOperations *prometheus.CounterVec
	BatchRuns        *prometheus.CounterVec
	BatchFailures    *prometheus.CounterVec
	AlertsByUrgency  *prometheus.GaugeVec
}

var _ core.Observer = (*Metrics)(nil)

// New creates a Metrics instance and registers every collector.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{registry: registry}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	m.LedgerOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_operations_total",
			Help:      "Ledger mutations by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	m.BatchRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_runs_total",
			Help:      "Completed batch recalculation runs",
		},
		[]string{"job"},
	)

	m.BatchFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_part_failures_total",
			Help:      "Per-part failures isolated during batch runs",
		},
		[]string{"job"},
	)

	m.AlertsByUrgency = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "replenishment_alerts",
			Help:      "Alerts produced by the most recent replenishment scan",
		},
		[]string{"urgency"},
	)

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.LedgerOperations,
		m.BatchRuns,
		m.BatchFailures,
		m.AlertsByUrgency,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// LedgerOperation implements core.Observer.
func (m *Metrics) LedgerOperation(op string, err error) {
	m.LedgerOperations.WithLabelValues(op, outcome(err)).Inc()
}

// BatchCompleted implements core.Observer.
func (m *Metrics) BatchCompleted(job string, result core.BatchResult) {
	m.BatchRuns.WithLabelValues(job).Inc()
	if n := len(result.Failures); n > 0 {
		m.BatchFailures.WithLabelValues(job).Add(float64(n))
	}
}

// AlertsEmitted implements core.Observer.
func (m *Metrics) AlertsEmitted(alerts []core.Alert) {
	counts := map[core.Urgency]int{
		core.UrgencyCritical: 0,
		core.UrgencyHigh:     0,
		core.UrgencyMedium:   0,
		core.UrgencyLow:      0,
	}
	for _, a := range alerts {
		counts[a.Urgency]++
	}
	for u, n := range counts {
		m.AlertsByUrgency.WithLabelValues(string(u)).Set(float64(n))
	}
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var insufficient *core.InsufficientStockError
	var negative *core.NegativeQuantityError
	switch {
	case errors.As(err, &insufficient):
		return "insufficient_stock"
	case errors.As(err, &negative):
		return "invalid_quantity"
	case errors.Is(err, core.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
