package middleware

import (
	"github.com/gin-gonic/gin"

	"aqstn/internal/errors"
	"aqstn/internal/logger"
	"aqstn/internal/stability"
)

// RateLimit rejects clients that exhausted their token bucket with 429.
func RateLimit(limiter *stability.RateLimiter, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter.Allow(c.ClientIP()) {
			c.Next()
			return
		}
		AbortWithError(c, log, errors.NewAppError(errors.ErrCodeRateLimit, "Rate limit exceeded", nil).
			WithContext("client_ip", c.ClientIP()))
	}
}
