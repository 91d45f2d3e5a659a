// Package metrics provides Prometheus metrics for open-lovable
// Exports HTTP, AI routing, sandbox, scrape, cache and database metrics
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "openlovable"

var (
	once     sync.Once
	instance *Metrics
)

// Metrics holds all Prometheus metric collectors
type Metrics struct {
	// HTTP Metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	HTTPResponseSize     *prometheus.HistogramVec

	// AI Metrics
	AIRequestsTotal   *prometheus.CounterVec
	AIRequestDuration *prometheus.HistogramVec
	AITokensUsed      *prometheus.CounterVec
	AIFallbacksTotal  *prometheus.CounterVec
	AIModelHealth     *prometheus.GaugeVec

	// Sandbox Metrics
	SandboxOperationsTotal   *prometheus.CounterVec
	SandboxOperationDuration *prometheus.HistogramVec
	ActiveSandboxes          prometheus.Gauge
	PackageInstallsTotal     *prometheus.CounterVec
	PackagesRequested        prometheus.Counter
	PackageInstallDuration   prometheus.Histogram

	// Scrape Metrics
	ScrapeRequestsTotal *prometheus.CounterVec
	ScrapeDuration      *prometheus.HistogramVec

	// Database Metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
	DBQueryDuration     *prometheus.HistogramVec
	DBErrorsTotal       *prometheus.CounterVec

	// Cache Metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// System Metrics
	BuildInfo    *prometheus.GaugeVec
	StartupTime  prometheus.Gauge
	GoroutineNum prometheus.Gauge
}

// Get returns the singleton Metrics instance
func Get() *Metrics {
	once.Do(func() {
		instance = newMetrics()
	})
	return instance
}

// newMetrics creates and registers all Prometheus metrics
func newMetrics() *Metrics {
	m := &Metrics{}

	// HTTP Metrics
	m.HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by endpoint, method, and status code",
		},
		[]string{"endpoint", "method", "status"},
	)

	m.HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"endpoint", "method"},
	)

	m.HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Current number of HTTP requests being processed",
		},
	)

	m.HTTPResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"endpoint"},
	)

	// AI Metrics
	m.AIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ai",
			Name:      "requests_total",
			Help:      "Total number of AI requests by provider, model, and status",
		},
		[]string{"provider", "model", "status"},
	)

	m.AIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ai",
			Name:      "request_duration_seconds",
			Help:      "AI request duration in seconds",
			Buckets:   []float64{.5, 1, 2, 3, 5, 10, 20, 30, 60, 120},
		},
		[]string{"provider", "model"},
	)

	m.AITokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ai",
			Name:      "tokens_total",
			Help:      "Total tokens used by provider and model",
		},
		[]string{"provider", "model"},
	)

	m.AIFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ai",
			Name:      "fallbacks_total",
			Help:      "Total number of model fallbacks by source and target model",
		},
		[]string{"from_model", "to_model", "reason"},
	)

	m.AIModelHealth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ai",
			Name:      "model_healthy",
			Help:      "Whether the last request to a model succeeded (1) or failed (0)",
		},
		[]string{"model"},
	)

	// Sandbox Metrics
	m.SandboxOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sandbox",
			Name:      "operations_total",
			Help:      "Total sandbox operations by operation and status",
		},
		[]string{"operation", "status"},
	)

	m.SandboxOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sandbox",
			Name:      "operation_duration_seconds",
			Help:      "Sandbox operation duration in seconds",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 20, 30, 60},
		},
		[]string{"operation"},
	)

	m.ActiveSandboxes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sandbox",
			Name:      "active",
			Help:      "Number of sandboxes currently held by the server",
		},
	)

	m.PackageInstallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sandbox",
			Name:      "package_installs_total",
			Help:      "Total package install runs by status",
		},
		[]string{"status"},
	)

	m.PackagesRequested = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sandbox",
			Name:      "packages_requested_total",
			Help:      "Total number of npm packages requested for install",
		},
	)

	m.PackageInstallDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sandbox",
			Name:      "package_install_duration_seconds",
			Help:      "Package install duration in seconds",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 60, 120},
		},
	)

	// Scrape Metrics
	m.ScrapeRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scrape",
			Name:      "requests_total",
			Help:      "Total Firecrawl requests by kind and status",
		},
		[]string{"kind", "status"},
	)

	m.ScrapeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scrape",
			Name:      "duration_seconds",
			Help:      "Firecrawl request duration in seconds",
			Buckets:   []float64{.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"kind"},
	)

	// Database Metrics
	m.DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "connections_active",
			Help:      "Number of active database connections",
		},
	)

	m.DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "connections_idle",
			Help:      "Number of idle database connections",
		},
	)

	m.DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation", "table"},
	)

	m.DBErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "errors_total",
			Help:      "Total database errors by operation",
		},
		[]string{"operation", "type"},
	)

	// Cache Metrics
	m.CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total cache hits by cache name",
		},
		[]string{"cache"},
	)

	m.CacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total cache misses by cache name",
		},
		[]string{"cache"},
	)

	// System Metrics
	m.BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "build",
			Name:      "info",
			Help:      "Build information",
		},
		[]string{"version", "environment"},
	)

	m.StartupTime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "startup_timestamp",
			Help:      "Server startup timestamp",
		},
	)

	m.GoroutineNum = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "goroutines",
			Help:      "Current number of goroutines",
		},
	)

	m.StartupTime.Set(float64(time.Now().Unix()))

	return m
}

// RecordHTTPRequest records an HTTP request metric
func (m *Metrics) RecordHTTPRequest(endpoint, method string, statusCode int, duration time.Duration, responseSize int) {
	status := statusCodeToLabel(statusCode)
	m.HTTPRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(endpoint, method).Observe(duration.Seconds())
	m.HTTPResponseSize.WithLabelValues(endpoint).Observe(float64(responseSize))
}

// RecordAIRequest records an AI request metric
func (m *Metrics) RecordAIRequest(provider, model, status string, duration time.Duration, tokens int) {
	m.AIRequestsTotal.WithLabelValues(provider, model, status).Inc()
	m.AIRequestDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
	if tokens > 0 {
		m.AITokensUsed.WithLabelValues(provider, model).Add(float64(tokens))
	}
}

// RecordAIFallback records a model fallback
func (m *Metrics) RecordAIFallback(fromModel, toModel, reason string) {
	m.AIFallbacksTotal.WithLabelValues(fromModel, toModel, reason).Inc()
}

// SetAIModelHealth sets the health of a routed model
func (m *Metrics) SetAIModelHealth(model string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	m.AIModelHealth.WithLabelValues(model).Set(value)
}

// RecordSandboxOperation records a create/connect/kill call against E2B
func (m *Metrics) RecordSandboxOperation(operation, status string, duration time.Duration) {
	m.SandboxOperationsTotal.WithLabelValues(operation, status).Inc()
	m.SandboxOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetActiveSandboxes sets the number of held sandboxes
func (m *Metrics) SetActiveSandboxes(count int) {
	m.ActiveSandboxes.Set(float64(count))
}

// RecordPackageInstall records one install run
func (m *Metrics) RecordPackageInstall(status string, packages int, duration time.Duration) {
	m.PackageInstallsTotal.WithLabelValues(status).Inc()
	m.PackagesRequested.Add(float64(packages))
	m.PackageInstallDuration.Observe(duration.Seconds())
}

// RecordScrape records a Firecrawl request
func (m *Metrics) RecordScrape(kind, status string, duration time.Duration) {
	m.ScrapeRequestsTotal.WithLabelValues(kind, status).Inc()
	m.ScrapeDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordCacheOperation records a cache hit or miss
func (m *Metrics) RecordCacheOperation(cacheName string, hit bool) {
	if hit {
		m.CacheHitsTotal.WithLabelValues(cacheName).Inc()
	} else {
		m.CacheMissesTotal.WithLabelValues(cacheName).Inc()
	}
}

// RecordDBQuery records a database query
func (m *Metrics) RecordDBQuery(operation, table string, duration time.Duration, err error) {
	m.DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		m.DBErrorsTotal.WithLabelValues(operation, "query_error").Inc()
	}
}

// SetBuildInfo sets build information
func (m *Metrics) SetBuildInfo(version, environment string) {
	m.BuildInfo.WithLabelValues(version, environment).Set(1)
}

// Helper function to convert status code to label
func statusCodeToLabel(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
