// Package metrics exposes gateway counters and histograms in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is what the gateway reports
type Metrics interface {
	ObserveGatewayCall(feature, status string, duration time.Duration)
	ObserveRiskScore(score float64)
	ObserveAnomalyScore(score float64)
	IncSkippedFrames(provider string, n int)
	ObserveHTTPRequest(route string, code int, duration time.Duration)
	HTTPHandler() http.Handler
}

// Prometheus implements Metrics on a private registry
type Prometheus struct {
	registry      *prometheus.Registry
	gatewayCalls  *prometheus.CounterVec
	gatewayTime   *prometheus.HistogramVec
	riskScores    prometheus.Histogram
	anomalyScores prometheus.Histogram
	skippedFrames *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpTime      *prometheus.HistogramVec
}

var scoreBuckets = []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0}

// NewPrometheus registers the gateway collectors plus the Go and process collectors
func NewPrometheus(namespace string) *Prometheus {
	if namespace == "" {
		namespace = "jaterm_gateway"
	}
	reg := prometheus.NewRegistry()

	m := &Prometheus{
		registry: reg,
		gatewayCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_calls_total",
			Help:      "Gateway calls by feature and audit status.",
		}, []string{"feature", "status"}),
		gatewayTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ai_call_duration_seconds",
			Help:      "End-to-end gateway call latency.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"feature"}),
		riskScores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "risk_score",
			Help:      "Local command risk scores.",
			Buckets:   scoreBuckets,
		}),
		anomalyScores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "anomaly_score",
			Help:      "Session anomaly scores.",
			Buckets:   scoreBuckets,
		}),
		skippedFrames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_skipped_frames_total",
			Help:      "Streamed frames that could not be decoded.",
		}, []string{"provider"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status class.",
		}, []string{"route", "code"}),
		httpTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	reg.MustRegister(
		m.gatewayCalls, m.gatewayTime, m.riskScores, m.anomalyScores,
		m.skippedFrames, m.httpRequests, m.httpTime,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Prometheus) ObserveGatewayCall(feature, status string, duration time.Duration) {
	m.gatewayCalls.WithLabelValues(feature, status).Inc()
	m.gatewayTime.WithLabelValues(feature).Observe(duration.Seconds())
}

func (m *Prometheus) ObserveRiskScore(score float64) {
	m.riskScores.Observe(score)
}

func (m *Prometheus) ObserveAnomalyScore(score float64) {
	m.anomalyScores.Observe(score)
}

func (m *Prometheus) IncSkippedFrames(provider string, n int) {
	if n > 0 {
		m.skippedFrames.WithLabelValues(provider).Add(float64(n))
	}
}

func (m *Prometheus) ObserveHTTPRequest(route string, code int, duration time.Duration) {
	m.httpRequests.WithLabelValues(route, statusLabel(code)).Inc()
	m.httpTime.WithLabelValues(route).Observe(duration.Seconds())
}

// Registry exposes the underlying registry
func (m *Prometheus) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Prometheus) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

// NoopMetrics discards everything
type NoopMetrics struct{}

func (NoopMetrics) ObserveGatewayCall(string, string, time.Duration) {}
func (NoopMetrics) ObserveRiskScore(float64) {}
func (NoopMetrics) ObserveAnomalyScore(float64) {}
func (NoopMetrics) IncSkippedFrames(string, int) {}
func (NoopMetrics) ObserveHTTPRequest(string, int, time.Duration) {}
func (NoopMetrics) HTTPHandler() http.Handler { return http.NotFoundHandler() }
