package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveLogin("success")
	m.ObserveTokenRejected("expired")
	m.ObserveRevoked()
	m.ObservePasswordReset("requested")
	m.ObservePurged(3)
}

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveLogin("success")
	m.ObserveLogin("invalid_credentials")
	m.ObserveLogin("invalid_credentials")
	m.ObserveTokenRejected("revoked")
	m.ObserveRevoked()
	m.ObservePurged(4)
	m.ObservePurged(0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.LoginsTotal.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.LoginsTotal.WithLabelValues("invalid_credentials")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TokenRejectionsTotal.WithLabelValues("revoked")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TokensRevokedTotal))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.RevocationsPurged))
}

func TestMiddlewareAndHandler(t *testing.T) {
	m := New(prometheus.NewRegistry())

	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/ok", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/denied", func(c echo.Context) error { return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized") })
	e.GET("/boom", func(c echo.Context) error { return errors.New("boom") })
	e.GET("/metrics", m.Handler())

	for _, p := range []string{"/ok", "/denied", "/boom"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, p, nil))
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/ok", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/denied", "401")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/boom", "500")))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "storefront_http_requests_total")
}
