package monitoring

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aqstn/internal/version"
)

func newTestMetrics(t *testing.T) (*Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewMetrics(reg, version.FromBuild()), reg
}

func TestBuildInfo(t *testing.T) {
	m, _ := newTestMetrics(t)
	info := version.FromBuild()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.buildInfo.WithLabelValues(info.Version, info.Author, info.GoVersion)))
}

func TestMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m, _ := newTestMetrics(t)

	router := gin.New()
	router.Use(m.MetricsMiddleware())
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, path := range []string{"/ok", "/ok", "/boom", "/missing"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/ok", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.apiErrorsTotal.WithLabelValues("/boom", "server_error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.apiErrorsTotal.WithLabelValues("unmatched", "client_error")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.httpRequestsInFlight))
}

func TestRegistryMetrics(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordHeartbeat(nil)
	m.RecordHeartbeat(nil)
	m.RecordHeartbeat(errors.New("redis down"))
	m.SetRegistryNodes(3)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.registryHeartbeats.WithLabelValues("success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.registryHeartbeats.WithLabelValues("failure")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.registryNodes))
}

func TestPrometheusHandler(t *testing.T) {
	_, reg := newTestMetrics(t)

	rec := httptest.NewRecorder()
	PrometheusHandler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `aqstn_build_info{author="Evolution Ecosystem"`)
}
