package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	LoginsTotal          *prometheus.CounterVec
	TokenRejectionsTotal *prometheus.CounterVec
	TokensRevokedTotal   prometheus.Counter
	PasswordResetsTotal  *prometheus.CounterVec
	RevocationsPurged    prometheus.Counter

	registry *prometheus.Registry
}

func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storefront_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "storefront_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storefront_logins_total",
				Help: "Login attempts by result",
			},
			[]string{"result"},
		),
		TokenRejectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storefront_token_rejections_total",
				Help: "Rejected bearer tokens by reason",
			},
			[]string{"reason"},
		),
		TokensRevokedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_tokens_revoked_total",
			Help: "Tokens added to the revocation ledger",
		}),
		PasswordResetsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storefront_password_resets_total",
				Help: "Password reset flow events by stage",
			},
			[]string{"stage"},
		),
		RevocationsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_revocations_purged_total",
			Help: "Expired revocation rows removed by housekeeping",
		}),
		registry: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.LoginsTotal,
		m.TokenRejectionsTotal,
		m.TokensRevokedTotal,
		m.PasswordResetsTotal,
		m.RevocationsPurged,
	)
	return m
}

func (m *Metrics) ObserveLogin(result string) {
	if m == nil {
		return
	}
	m.LoginsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveTokenRejected(reason string) {
	if m == nil {
		return
	}
	m.TokenRejectionsTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveRevoked() {
	if m == nil {
		return
	}
	m.TokensRevokedTotal.Inc()
}

func (m *Metrics) ObservePasswordReset(stage string) {
	if m == nil {
		return
	}
	m.PasswordResetsTotal.WithLabelValues(stage).Inc()
}

func (m *Metrics) ObservePurged(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.RevocationsPurged.Add(float64(n))
}

// Middleware records request count and latency by route template.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			} else if err != nil && status < 400 {
				status = 500
			}
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			m.HTTPRequestsTotal.WithLabelValues(c.Request().Method, path, strconv.Itoa(status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(c.Request().Method, path).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

func (m *Metrics) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
