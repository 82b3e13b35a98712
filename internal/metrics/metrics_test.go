package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheus(t *testing.T) {
	m := NewPrometheus("test")

	m.ObserveGatewayCall("explain", "success", 300*time.Millisecond)
	m.ObserveGatewayCall("explain", "success", time.Second)
	m.ObserveGatewayCall("generate", "blocked", 0)
	m.IncSkippedFrames("Local LLM", 2)
	m.IncSkippedFrames("Local LLM", 0)
	m.ObserveRiskScore(0.7)
	m.ObserveHTTPRequest("POST /v1/terminal/explain", 403, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.gatewayCalls.WithLabelValues("explain", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.gatewayCalls.WithLabelValues("generate", "blocked")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.skippedFrames.WithLabelValues("Local LLM")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("POST /v1/terminal/explain", "4xx")))

	rec := httptest.NewRecorder()
	m.HTTPHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "test_ai_calls_total")
	assert.Contains(t, string(body), "test_risk_score_bucket")
	assert.Contains(t, string(body), "go_goroutines")
	assert.Contains(t, string(body), `test_http_requests_total{code="4xx",route="POST /v1/terminal/explain"} 1`)
}

func TestStatusLabel(t *testing.T) {
	tests := map[int]string{200: "2xx", 204: "2xx", 302: "3xx", 401: "4xx", 429: "4xx", 502: "5xx"}
	for code, want := range tests {
		assert.Equal(t, want, statusLabel(code), code)
	}
}

func TestNoopMetrics(t *testing.T) {
	var m Metrics = NoopMetrics{}
	m.ObserveGatewayCall("explain", "success", time.Second)
	m.IncSkippedFrames("x", 3)

	rec := httptest.NewRecorder()
	m.HTTPHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 404, rec.Code)
}
