package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/seiixin/gunwadex/internal/metrics"
)

// MetricsMiddleware collects HTTP metrics for Prometheus.
// Paths are labelled by route template so ids don't explode cardinality.
func MetricsMiddleware() gin.HandlerFunc {
	m := metrics.Get()

	return func(c *gin.Context) {
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		m.HTTPActiveConnections.WithLabelValues(method, path).Inc()
		defer m.HTTPActiveConnections.WithLabelValues(method, path).Dec()

		startTime := time.Now()
		c.Next()

		// numeric status ("200", "500") so status=~"5.." works in queries
		statusStr := strconv.Itoa(c.Writer.Status())
		m.HTTPRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
		m.HTTPRequestDuration.WithLabelValues(method, path, statusStr).Observe(time.Since(startTime).Seconds())

		if size := c.Writer.Size(); size > 0 {
			m.HTTPResponseSize.WithLabelValues(method, path, statusStr).Observe(float64(size))
		}
		if c.Writer.Status() >= 500 {
			RecordError("http_5xx", path)
		}
	}
}

// RecordRateLimitExceeded counts a rejected request
func RecordRateLimitExceeded(scope, backend string) {
	metrics.Get().RateLimitExceededTotal.WithLabelValues(scope, backend).Inc()
}

// RecordError counts an error by type and endpoint
func RecordError(errorType, endpoint string) {
	metrics.Get().ErrorsTotal.WithLabelValues(errorType, endpoint).Inc()
}

func recordRateLimitBackendError(scope string) {
	metrics.Get().RateLimitBackendErrors.WithLabelValues(scope).Inc()
}
