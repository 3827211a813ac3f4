package obs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()
	m.BookingConflict("listing-1")
	m.BookingConflict("listing-1")
	m.StatusChanged("pending", "confirmed")
	m.ObserveCommand("booking.create", "ok", 20*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.conflicts.WithLabelValues("listing-1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.statusChanges.WithLabelValues("pending", "confirmed")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.commands))
}

func TestMetricsHandlerServesRegistry(t *testing.T) {
	m := NewMetrics()
	m.SetOutboxPending(3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "staybook_outbox_pending 3")
}

func TestJSONLoggerTagsService(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, "prod").Info("hello", "booking_id", "b-1")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "staybook", line["service"])
	assert.Equal(t, "b-1", line["booking_id"])
}

func TestRequestIDAndReadiness(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	mw := Middleware{Metrics: NewMetrics()}
	r.Use(mw.RequestID(), mw.LoggerMiddleware())
	ready := errors.New("mongo down")
	health := HealthHandlers{Ready: func(context.Context) error { return ready }}
	r.GET("/livez", health.Livez)
	r.GET("/readyz", health.Readyz)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	req.Header.Set("X-Request-ID", "req-42")
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "not ready"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	ready = nil
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
