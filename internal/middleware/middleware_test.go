package middleware

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aqstn/internal/errors"
	"aqstn/internal/stability"
	"aqstn/internal/testutils"
)

func newRouter(t *testing.T) (*gin.Engine, *testutils.TestSuite) {
	gin.SetMode(gin.TestMode)
	suite := testutils.NewTestSuite(t)
	router := gin.New()
	router.Use(RequestID(), ErrorHandler(suite.Logger), HandleError(suite.Logger))
	return router, suite
}

func TestErrorHandlerRecoversPanic(t *testing.T) {
	router, suite := newRouter(t)
	router.GET("/panic", func(c *gin.Context) { panic("kaboom") })

	resp := testutils.NewHTTPTestHelper(t, router).GET("/panic", map[string]string{RequestIDHeader: "rid-1"})
	resp.AssertStatus(http.StatusInternalServerError)

	var body errors.ErrorResponse
	require.NoError(t, resp.GetJSON(&body))
	assert.False(t, body.Success)
	assert.Equal(t, errors.ErrCodeInternal, body.Error.Code)
	assert.Equal(t, "rid-1", body.Error.RequestID)
	assert.Equal(t, "/panic", body.Path)
	assert.Contains(t, suite.LogBuf.String(), "kaboom")
}

func TestHandleErrorRendersAppError(t *testing.T) {
	router, _ := newRouter(t)
	router.GET("/missing", func(c *gin.Context) {
		_ = c.Error(fmt.Errorf("lookup: %w", errors.NewAppError(errors.ErrCodeNotFound, "Node not found", nil)))
	})
	router.GET("/plain", func(c *gin.Context) {
		_ = c.Error(fmt.Errorf("disk on fire"))
	})

	helper := testutils.NewHTTPTestHelper(t, router)

	resp := helper.GET("/missing", nil).AssertStatus(http.StatusNotFound)
	assert.NotEmpty(t, resp.Headers.Get(RequestIDHeader))
	resp.AssertContains(`"NOT_FOUND"`)

	resp = helper.GET("/plain", nil).AssertStatus(http.StatusInternalServerError).AssertContains(`"INTERNAL_ERROR"`)
	assert.Empty(t, resp.Headers.Get("Retry-After"), "internal errors are not retryable")
}

func TestRequestLogger(t *testing.T) {
	router, suite := newRouter(t)
	router.Use(RequestLogger(suite.Logger))
	router.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	testutils.NewHTTPTestHelper(t, router).GET("/ok?x=1", map[string]string{RequestIDHeader: "rid-2"}).AssertStatus(http.StatusOK)

	logs := suite.LogBuf.String()
	assert.Contains(t, logs, "GET /ok?x=1 - 200")
	assert.Contains(t, logs, `"request_id":"rid-2"`)
}

func TestRateLimit(t *testing.T) {
	router, suite := newRouter(t)
	limiter := stability.NewRateLimiter(stability.RateLimiterConfig{RequestsPerSec: 0.001, Burst: 2})
	router.Use(RateLimit(limiter, suite.Logger))
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })

	helper := testutils.NewHTTPTestHelper(t, router)
	helper.GET("/ok", nil).AssertStatus(http.StatusOK)
	helper.GET("/ok", nil).AssertStatus(http.StatusOK)
	resp := helper.GET("/ok", nil).AssertStatus(http.StatusTooManyRequests).AssertContains(`"RATE_LIMIT"`)
	assert.Equal(t, "1", resp.Headers.Get("Retry-After"))

	assert.Equal(t, int64(1), limiter.Stats().Limited)
}
