package util

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/seiixin/gunwadex/internal/errors"
	"github.com/seiixin/gunwadex/internal/logger"
	"github.com/seiixin/gunwadex/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
	Field   string `json:"field,omitempty"`
	Details string `json:"details,omitempty"`
}

// RespondWithAPIError sends a structured API error response
func RespondWithAPIError(c *gin.Context, apiErr *errors.APIError) {
	fields := []zap.Field{
		zap.String("code", string(apiErr.Code)),
		zap.String("message", apiErr.Message),
		zap.String("path", c.FullPath()),
		logger.WithStatus(apiErr.Status),
	}
	if apiErr.Field != "" {
		fields = append(fields, zap.String("field", apiErr.Field))
	}
	if requestID, ok := c.Get("request_id"); ok {
		if s, ok := requestID.(string); ok {
			fields = append(fields, logger.WithRequestID(s))
		}
	}

	if apiErr.Status >= http.StatusInternalServerError {
		if apiErr.Details != "" {
			fields = append(fields, zap.String("details", apiErr.Details))
		}
		logger.Log.Error("API error", fields...)
	} else if apiErr.Status >= http.StatusBadRequest {
		logger.Log.Warn("API error", fields...)
	}

	response := ErrorResponse{
		Code:    string(apiErr.Code),
		Message: apiErr.Message,
		Field:   apiErr.Field,
	}
	if apiErr.Status < http.StatusInternalServerError || gin.IsDebugging() {
		response.Details = apiErr.Details
	}
	c.AbortWithStatusJSON(apiErr.Status, response)
}

// RespondWithError maps a service error to its HTTP response.
// Unrecognised errors become a 500 whose cause is only logged.
func RespondWithError(c *gin.Context, err error) {
	if apiErr, ok := errors.AsAPIError(err); ok {
		RespondWithAPIError(c, apiErr)
		return
	}

	switch {
	case stderrors.Is(err, gorm.ErrRecordNotFound):
		RespondWithAPIError(c, errors.NotFound("resource"))
	case stderrors.Is(err, models.ErrUnknownTargetKind):
		RespondWithAPIError(c, errors.ValidationError("target_type", "unknown target type"))
	default:
		RespondWithAPIError(c, errors.InternalError("internal server error").WithDetails(err.Error()))
	}
}

// RespondUnauthorized sends a 401 Unauthorized response
func RespondUnauthorized(c *gin.Context, message ...string) {
	msg := "user not authenticated"
	if len(message) > 0 && message[0] != "" {
		msg = message[0]
	}
	RespondWithAPIError(c, errors.Unauthorized(msg))
}

// RespondBadRequest sends a 400 Bad Request response
func RespondBadRequest(c *gin.Context, message string) {
	if message == "" {
		message = "bad request"
	}
	RespondWithAPIError(c, errors.BadRequest(message))
}

// RespondForbidden sends a 403 Forbidden response
func RespondForbidden(c *gin.Context, message ...string) {
	msg := "forbidden"
	if len(message) > 0 && message[0] != "" {
		msg = message[0]
	}
	RespondWithAPIError(c, errors.Forbidden(msg))
}

// RespondValidationError sends a 422 Unprocessable Entity response
func RespondValidationError(c *gin.Context, field, message string) {
	RespondWithAPIError(c, errors.ValidationError(field, message))
}
