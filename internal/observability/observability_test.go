package observability

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easybody/auth-gateway/internal/config"
)

func TestMetricsRecordAndExpose(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/api/auth/login", "POST", 200, 15*time.Millisecond)
	m.RecordRequest("/api/auth/login", "POST", 200, 5*time.Millisecond)
	m.RecordError("/api/auth/login", "POST", "UNAUTHORIZED")
	m.RecordFlow("login", "ok")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requestCount.WithLabelValues("POST", "/api/auth/login", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.flowCount.WithLabelValues("login", "ok")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "auth_flow_total"))
	assert.True(t, strings.Contains(body, `http_errors_total{code="UNAUTHORIZED"`))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRequest("/", "GET", 200, time.Millisecond)
		m.RecordError("/", "GET", "X")
		m.RecordFlow("login", "ok")
	})
}

func TestReporterWithoutDSNIsNoop(t *testing.T) {
	r, err := NewErrorReporter(config.SentryConfig{}, "dev")
	require.NoError(t, err)
	assert.False(t, r.Enabled())
	assert.NotPanics(t, func() {
		r.CaptureException(context.Background(), errors.New("boom"), nil)
		r.Recover("panic")
	})
	assert.True(t, r.Flush(time.Millisecond))
}

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	logger, err := NewLogger(config.LoggerConfig{Level: "verbose", Service: "test"}, "production")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(-1))
	assert.True(t, logger.Core().Enabled(0))
}
