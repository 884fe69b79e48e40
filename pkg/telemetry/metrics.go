package telemetry

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// Module registers the Prometheus instruments on the default registry.
var Module = fx.Module("telemetry",
	fx.Provide(func() *Metrics { return NewMetrics(prometheus.DefaultRegisterer) }),
)

// Metrics exposes Prometheus instruments for the HTTP surface and the external systems.
type Metrics struct {
	apiRequests      *prometheus.CounterVec
	apiDuration      *prometheus.HistogramVec
	externalCalls    *prometheus.CounterVec
	externalDuration *prometheus.HistogramVec
}

// NewMetrics registers and returns the instruments. A nil registerer skips registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	apiRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "counseling_api_requests_total",
		Help: "Counts API requests by route, method and status.",
	}, []string{"route", "method", "status"})

	apiDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "counseling_api_duration_seconds",
		Help:    "API request latency per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})

	externalCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "counseling_external_calls_total",
		Help: "Calls to the identity provider and chat backend by operation and outcome.",
	}, []string{"system", "operation", "outcome"})

	externalDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "counseling_external_call_duration_seconds",
		Help:    "Latency of calls to external systems.",
		Buckets: prometheus.DefBuckets,
	}, []string{"system", "operation"})

	if reg != nil {
		reg.MustRegister(apiRequests, apiDuration, externalCalls, externalDuration)
	}

	return &Metrics{
		apiRequests:      apiRequests,
		apiDuration:      apiDuration,
		externalCalls:    externalCalls,
		externalDuration: externalDuration,
	}
}

// ObserveAPIRequest records an API request and latency.
func (m *Metrics) ObserveAPIRequest(route, method, status string, duration time.Duration) {
	if m == nil {
		return
	}
	route = sanitizeLabel(route)
	method = sanitizeLabel(method)
	m.apiRequests.WithLabelValues(route, method, status).Inc()
	m.apiDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// ObserveExternalCall records one call to the identity provider or chat backend.
func (m *Metrics) ObserveExternalCall(system, operation string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	system = sanitizeLabel(system)
	operation = sanitizeLabel(operation)
	m.externalCalls.WithLabelValues(system, operation, outcome).Inc()
	m.externalDuration.WithLabelValues(system, operation).Observe(duration.Seconds())
}

// GinMiddleware records request counts and latency per matched route.
func GinMiddleware(m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveAPIRequest(route, c.Request.Method, statusClass(c.Writer.Status()), time.Since(start))
	}
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

func sanitizeLabel(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return value
}
