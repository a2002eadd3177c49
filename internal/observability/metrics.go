package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/springmesh/apigw/internal/util"
)

// unmatchedService is the label value used for requests that never resolved
// to a logical service, ensuring bounded cardinality.
const unmatchedService = "unmatched"

// Metrics holds all Prometheus metrics for the gateway.
type Metrics struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	authCacheHits    prometheus.Counter
	authCacheMisses  prometheus.Counter
	validationCalls  *prometheus.CounterVec
	upstreamErrors   *prometheus.CounterVec
	buildInfo        *prometheus.GaugeVec
	startTime        prometheus.Gauge
	registry         *prometheus.Registry
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "gateway"
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "service", "status"},
	)

	m.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets: []float64{
				.001, .005, .01, .025, .05,
				.1, .25, .5, 1, 2.5, 5, 10,
			},
		},
		[]string{"method", "service", "status"},
	)

	m.authCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_cache_hits_total",
			Help:      "Total number of token validations served from the cache",
		},
	)

	m.authCacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_cache_misses_total",
			Help:      "Total number of token validations that missed the cache",
		},
	)

	m.validationCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_validation_calls_total",
			Help:      "Total number of remote token validation calls",
		},
		[]string{"result"},
	)

	m.upstreamErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_errors_total",
			Help:      "Total number of transport-level upstream failures",
		},
		[]string{"service"},
	)

	m.buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information for the gateway",
		},
		[]string{"version", "commit", "build_time"},
	)

	m.startTime = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "start_time_seconds",
			Help:      "Start time of the gateway in unix seconds",
		},
	)

	m.registerCollectors()

	m.startTime.SetToCurrentTime()

	return m
}

// registerCollectors registers all metric collectors with the
// Prometheus registry.
func (m *Metrics) registerCollectors() {
	m.registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.authCacheHits,
		m.authCacheMisses,
		m.validationCalls,
		m.upstreamErrors,
		m.buildInfo,
		m.startTime,
	)

	m.registry.MustRegister(collectors.NewGoCollector())
	m.registry.MustRegister(
		collectors.NewProcessCollector(
			collectors.ProcessCollectorOpts{},
		),
	)
}

// RecordRequest records a completed HTTP request. The service parameter
// should be the resolved logical service identifier, not the raw request
// path, to prevent cardinality explosion.
func (m *Metrics) RecordRequest(method, service string, status int, duration time.Duration) {
	statusStr := strconv.Itoa(status)

	m.requestsTotal.WithLabelValues(method, service, statusStr).Inc()
	m.requestDuration.WithLabelValues(method, service, statusStr).Observe(duration.Seconds())
}

// RecordAuthCacheHit records a token validation served from the cache.
func (m *Metrics) RecordAuthCacheHit() {
	m.authCacheHits.Inc()
}

// RecordAuthCacheMiss records a token validation that missed the cache.
func (m *Metrics) RecordAuthCacheMiss() {
	m.authCacheMisses.Inc()
}

// RecordValidationCall records a remote token validation call outcome
// ("valid", "invalid", "error").
func (m *Metrics) RecordValidationCall(result string) {
	m.validationCalls.WithLabelValues(result).Inc()
}

// RecordUpstreamError records a transport-level failure for a service.
func (m *Metrics) RecordUpstreamError(service string) {
	m.upstreamErrors.WithLabelValues(service).Inc()
}

// SetBuildInfo sets the build information metric.
func (m *Metrics) SetBuildInfo(version, commit, buildTime string) {
	m.buildInfo.WithLabelValues(version, commit, buildTime).Set(1)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(
		m.registry,
		promhttp.HandlerOpts{EnableOpenMetrics: true},
	)
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// MetricsMiddleware returns a middleware that records request metrics.
// It extracts the resolved service from context (set by the gateway)
// instead of using the raw request path.
func MetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ctx, rec := util.ContextWithServiceRecorder(r.Context())
			r = r.WithContext(ctx)

			rw := util.NewStatusCapturingResponseWriter(w)

			next.ServeHTTP(rw, r)

			service := rec.Service()
			if service == "" {
				service = unmatchedService
			}

			metrics.RecordRequest(r.Method, service, rw.StatusCode, time.Since(start))
		})
	}
}
