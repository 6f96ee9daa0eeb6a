package middleware

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracingMiddleware starts a server span per request using the official otelgin middleware
func TracingMiddleware(serviceName string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName)
}

// SpanAttributesMiddleware must run after TracingMiddleware. It waits for the
// handler chain so route-level auth has set user_id, then annotates the span.
func SpanAttributesMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}

		if userID, exists := c.Get("user_id"); exists {
			if userIDStr, ok := userID.(string); ok {
				span.SetAttributes(attribute.String("user.id", userIDStr))
			}
		}
		if targetType := c.Query("target_type"); targetType != "" {
			span.SetAttributes(attribute.String("target.type", targetType))
		}
		if requestID, exists := c.Get("request_id"); exists {
			if s, ok := requestID.(string); ok {
				span.SetAttributes(attribute.String("request.id", s))
			}
		}

		for _, ginErr := range c.Errors {
			if ginErr.Err != nil {
				span.RecordError(ginErr.Err, trace.WithStackTrace(true))
				span.SetStatus(codes.Error, ginErr.Error())
			}
		}
	}
}
