package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Quota metrics
	QuotaDecisionsTotal *prometheus.CounterVec
	UsageEventsTotal    *prometheus.CounterVec

	// Billing metrics
	WebhookEventsTotal  *prometheus.CounterVec
	CheckoutTotal       *prometheus.CounterVec
	NotificationsTotal  *prometheus.CounterVec
	RetentionSweepTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "specmint_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "specmint_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		QuotaDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "specmint_quota_decisions_total",
				Help: "Quota checks by dimension and outcome",
			},
			[]string{"dimension", "outcome"},
		),
		UsageEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "specmint_usage_events_total",
				Help: "Usage events recorded by action kind and status",
			},
			[]string{"action_kind", "status"},
		),
		WebhookEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "specmint_webhook_events_total",
				Help: "Processor webhook events by type and outcome",
			},
			[]string{"event_type", "outcome"},
		),
		CheckoutTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "specmint_checkout_sessions_total",
				Help: "Checkout sessions created by tier and interval",
			},
			[]string{"tier", "interval"},
		),
		NotificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "specmint_notifications_total",
				Help: "Lifecycle notifications by template and status",
			},
			[]string{"template", "status"},
		),
		RetentionSweepTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "specmint_retention_sweep_total",
				Help: "Retention sweep runs by status",
			},
			[]string{"status"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.QuotaDecisionsTotal,
		m.UsageEventsTotal,
		m.WebhookEventsTotal,
		m.CheckoutTotal,
		m.NotificationsTotal,
		m.RetentionSweepTotal,
	)

	return m
}

// Handler exposes the registry for the /metrics route.
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// Middleware instruments HTTP requests. The route template is used as
// the path label so parameterized routes do not explode cardinality.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
