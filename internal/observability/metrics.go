package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Selection outcome label values.
const (
	// SelectionSelected marks a normal round-robin selection.
	SelectionSelected = "selected"
	// SelectionResetFallback marks a selection satisfied by the
	// exhaustion reset fallback.
	SelectionResetFallback = "reset_fallback"
	// SelectionEmptyPool marks a selection against an empty pool.
	SelectionEmptyPool = "empty_pool"
)

// Report result label values.
const (
	// ReportFailure marks a reported request failure.
	ReportFailure = "failure"
	// ReportSuccess marks a reported request success.
	ReportSuccess = "success"
	// ReportUnmatched marks a report whose URI or handle matched no
	// pool entry.
	ReportUnmatched = "unmatched"
)

// Metrics holds all Prometheus metrics for the rotation service.
type Metrics struct {
	selectionsTotal *prometheus.CounterVec
	reportsTotal    *prometheus.CounterVec
	resetsTotal     prometheus.Counter
	poolSize        prometheus.Gauge
	healthyProxies  prometheus.Gauge
	proxyFailures   *prometheus.GaugeVec
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	registry        *prometheus.Registry
}

// NewMetrics creates a new Metrics instance with its own registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "proxypool"
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.selectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selections_total",
			Help:      "Total number of proxy selections by outcome",
		},
		[]string{"outcome"},
	)

	m.reportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_total",
			Help:      "Total number of outcome reports by result",
		},
		[]string{"result"},
	)

	m.resetsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resets_total",
			Help:      "Total number of pool-wide failure counter resets",
		},
	)

	m.poolSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_size",
			Help:      "Number of configured proxies",
		},
	)

	m.healthyProxies = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "healthy_proxies",
			Help:      "Number of proxies below their failure threshold",
		},
	)

	m.proxyFailures = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "proxy_failures",
			Help:      "Current failure count per pool index",
		},
		[]string{"proxy"},
	)

	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of admin API requests",
		},
		[]string{"method", "path", "status"},
	)

	m.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Admin API request duration in seconds",
			Buckets: []float64{
				.001, .005, .01, .025, .05,
				.1, .25, .5, 1, 2.5,
			},
		},
		[]string{"method", "path", "status"},
	)

	m.registry.MustRegister(
		m.selectionsTotal,
		m.reportsTotal,
		m.resetsTotal,
		m.poolSize,
		m.healthyProxies,
		m.proxyFailures,
		m.requestsTotal,
		m.requestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// RecordSelection increments the selection counter for an outcome.
func (m *Metrics) RecordSelection(outcome string) {
	m.selectionsTotal.WithLabelValues(outcome).Inc()
}

// RecordReport increments the report counter for a result.
func (m *Metrics) RecordReport(result string) {
	m.reportsTotal.WithLabelValues(result).Inc()
}

// RecordReset increments the pool reset counter.
func (m *Metrics) RecordReset() {
	m.resetsTotal.Inc()
}

// SetPoolSize sets the configured pool size gauge.
func (m *Metrics) SetPoolSize(size int) {
	m.poolSize.Set(float64(size))
}

// SetHealthyProxies sets the healthy proxy gauge.
func (m *Metrics) SetHealthyProxies(count int) {
	m.healthyProxies.Set(float64(count))
}

// SetProxyFailures sets the failure count gauge for a pool index.
func (m *Metrics) SetProxyFailures(index, count int) {
	m.proxyFailures.WithLabelValues(strconv.Itoa(index)).Set(float64(count))
}

// RecordRequest records an admin API request.
func (m *Metrics) RecordRequest(method, path string, status int, duration time.Duration) {
	statusStr := strconv.Itoa(status)
	m.requestsTotal.WithLabelValues(method, path, statusStr).Inc()
	m.requestDuration.WithLabelValues(method, path, statusStr).Observe(duration.Seconds())
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
