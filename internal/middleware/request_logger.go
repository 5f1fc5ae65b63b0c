package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"aqstn/internal/logger"
)

const (
	// RequestIDHeader carries the request id in both directions.
	RequestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// RequestID reuses the client's X-Request-ID or assigns a new uuid, and
// stores it in both the gin and the request context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), logger.RequestIDKey, requestID))
		c.Header(RequestIDHeader, requestID)
		c.Next()
	}
}

// GetRequestID returns the id assigned by RequestID, or the raw header when
// that middleware did not run.
func GetRequestID(c *gin.Context) string {
	if requestID := c.GetString(requestIDKey); requestID != "" {
		return requestID
	}
	return c.GetHeader(RequestIDHeader)
}

// RequestLogger logs every request after it was served.
func RequestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		logger.LogHTTPRequest(log, logger.HTTPRequestInfo{
			Method:     c.Request.Method,
			Path:       path,
			StatusCode: c.Writer.Status(),
			Latency:    time.Since(start),
			ClientIP:   c.ClientIP(),
			UserAgent:  c.Request.UserAgent(),
			BodySize:   int64(c.Writer.Size()),
			RequestID:  GetRequestID(c),
		})
	}
}
