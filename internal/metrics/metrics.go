package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPResponseSize      *prometheus.HistogramVec
	HTTPActiveConnections *prometheus.GaugeVec

	// Rate limiting metrics
	RateLimitExceededTotal *prometheus.CounterVec
	RateLimitBackendErrors *prometheus.CounterVec

	// Engagement metrics
	EngagementTogglesTotal *prometheus.CounterVec
	RatingsTotal           prometheus.Counter
	ViewsTotal             *prometheus.CounterVec
	CommentsTotal          *prometheus.CounterVec

	// Chat metrics
	ChatMessagesTotal    *prometheus.CounterVec
	ChatAttachmentBytes  prometheus.Histogram
	WebsocketConnections prometheus.Gauge

	// Contact form / mail metrics
	MailSentTotal     *prometheus.CounterVec
	MailFailuresTotal *prometheus.CounterVec

	// Search metrics
	SearchRequestsTotal *prometheus.CounterVec
	SearchDuration      *prometheus.HistogramVec

	// Error metrics
	ErrorsTotal *prometheus.CounterVec
}

var (
	instance *Metrics
	once     sync.Once
)

// Initialize creates and registers all Prometheus metrics
func Initialize() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			HTTPRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_request_duration_seconds",
					Help:    "HTTP request latency in seconds",
					Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
				},
				[]string{"method", "path", "status"},
			),
			HTTPResponseSize: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_response_size_bytes",
					Help:    "HTTP response size in bytes",
					Buckets: prometheus.ExponentialBuckets(100, 10, 7),
				},
				[]string{"method", "path", "status"},
			),
			HTTPActiveConnections: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "http_active_connections",
					Help: "Number of currently active HTTP connections",
				},
				[]string{"method", "path"},
			),

			RateLimitExceededTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "rate_limit_exceeded_total",
					Help: "Total number of rate limit violations",
				},
				[]string{"scope", "backend"},
			),
			RateLimitBackendErrors: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "rate_limit_backend_errors_total",
					Help: "Rate limit checks that failed because the backend errored",
				},
				[]string{"scope"},
			),

			EngagementTogglesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "engagement_toggles_total",
					Help: "Like and favorite toggles by resulting state",
				},
				[]string{"kind", "target_type", "state"},
			),
			RatingsTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "ratings_total",
					Help: "Total number of rating writes",
				},
			),
			ViewsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "views_total",
					Help: "View tracking calls by outcome (counted, suppressed)",
				},
				[]string{"target_type", "outcome"},
			),
			CommentsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "comments_total",
					Help: "Comment writes by action",
				},
				[]string{"action"},
			),

			ChatMessagesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "chat_messages_total",
					Help: "Chat messages sent by sender role",
				},
				[]string{"sender_role", "has_attachment"},
			),
			ChatAttachmentBytes: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "chat_attachment_bytes",
					Help:    "Size of stored chat attachments",
					Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
				},
			),
			WebsocketConnections: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "websocket_connections",
					Help: "Currently connected websocket clients",
				},
			),

			MailSentTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "mail_sent_total",
					Help: "Outbound mail messages by template",
				},
				[]string{"template"},
			),
			MailFailuresTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "mail_failures_total",
					Help: "Outbound mail delivery failures by template",
				},
				[]string{"template"},
			),

			SearchRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "search_requests_total",
					Help: "Search requests by backend and status",
				},
				[]string{"backend", "status"},
			),
			SearchDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "search_duration_seconds",
					Help:    "Search latency in seconds",
					Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1},
				},
				[]string{"backend"},
			),

			ErrorsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "errors_total",
					Help: "Total number of errors by type",
				},
				[]string{"error_type", "endpoint"},
			),
		}
	})
	return instance
}

// Get returns the global metrics instance
func Get() *Metrics {
	return Initialize()
}
