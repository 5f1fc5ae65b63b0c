package middleware

import (
	"encoding/json"
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"aqstn/internal/errors"
	"aqstn/internal/logger"
)

const retryAfterSeconds = "1"

// ErrorHandler recovers panics and answers them with an INTERNAL_ERROR body.
func ErrorHandler(log logger.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log.Error("Panic recovered",
			"error", fmt.Sprint(recovered),
			"stack", string(debug.Stack()),
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
		)

		appErr := errors.NewAppError(errors.ErrCodeInternal, "Internal server error", nil).
			WithRequestID(GetRequestID(c))
		writeError(c, log, appErr)
	})
}

// HandleError renders the last error a handler attached with c.Error.
func HandleError(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		appErr := errors.WrapError(c.Errors.Last().Err, errors.ErrCodeInternal, "Internal server error")
		if appErr.RequestID == "" {
			appErr = appErr.WithRequestID(GetRequestID(c))
		}
		writeError(c, log, appErr)
	}
}

// AbortWithError writes err as an error response and stops the chain.
func AbortWithError(c *gin.Context, log logger.Logger, err *errors.AppError) {
	if err.RequestID == "" {
		err = err.WithRequestID(GetRequestID(c))
	}
	writeError(c, log, err)
}

func writeError(c *gin.Context, log logger.Logger, appErr *errors.AppError) {
	logError(c, log, appErr)
	if appErr.IsRetryable() {
		c.Header("Retry-After", retryAfterSeconds)
	}
	c.AbortWithStatusJSON(appErr.HTTPStatus(), errors.NewErrorResponse(appErr, c.Request.URL.Path))
}

func logError(c *gin.Context, log logger.Logger, err *errors.AppError) {
	fields := []interface{}{
		"error_code", err.Code,
		"message", err.Message,
		"severity", err.Severity,
		"retryable", err.IsRetryable(),
		"request_id", err.RequestID,
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"ip", c.ClientIP(),
	}
	if err.Details != "" {
		fields = append(fields, "details", err.Details)
	}
	if len(err.Context) > 0 {
		contextJSON, _ := json.Marshal(err.Context)
		fields = append(fields, "context", string(contextJSON))
	}
	if err.Cause != nil {
		fields = append(fields, "cause", err.Cause.Error())
	}

	switch err.Severity {
	case errors.SeverityCritical, errors.SeverityHigh:
		log.Error("Request failed", fields...)
	case errors.SeverityMedium:
		log.Warn("Request failed", fields...)
	default:
		log.Info("Request failed", fields...)
	}
}
