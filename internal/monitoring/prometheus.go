package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"aqstn/internal/version"
)

// Metrics holds the node's Prometheus collectors.
type Metrics struct {
	buildInfo            *prometheus.GaugeVec
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge
	apiErrorsTotal       *prometheus.CounterVec
	registryHeartbeats   *prometheus.CounterVec
	registryNodes        prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer, info version.Info) *Metrics {
	m := &Metrics{
		buildInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "aqstn_build_info",
				Help: "Build metadata of the running node, always 1",
			},
			[]string{"version", "author", "go_version"},
		),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Current number of HTTP requests being processed",
			},
		),
		apiErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "api_errors_total",
				Help: "Total number of API errors",
			},
			[]string{"endpoint", "error_type"},
		),
		registryHeartbeats: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "registry_heartbeats_total",
				Help: "Node announcements sent to the registry",
			},
			[]string{"result"},
		),
		registryNodes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "registry_nodes",
				Help: "Live nodes seen in the registry at the last listing",
			},
		),
	}

	reg.MustRegister(
		m.buildInfo,
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.httpRequestsInFlight,
		m.apiErrorsTotal,
		m.registryHeartbeats,
		m.registryNodes,
	)

	m.buildInfo.WithLabelValues(info.Version, info.Author, info.GoVersion).Set(1)
	return m
}

// MetricsMiddleware records request counts, latency and errors.
func (m *Metrics) MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		m.httpRequestsInFlight.Inc()
		defer m.httpRequestsInFlight.Dec()

		c.Next()

		// unmatched routes share one label to keep cardinality bounded
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		status := c.Writer.Status()
		m.httpRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(status)).Inc()
		m.httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())

		if status >= 400 {
			errorType := "client_error"
			if status >= 500 {
				errorType = "server_error"
			}
			m.apiErrorsTotal.WithLabelValues(path, errorType).Inc()
		}
	}
}

// RecordHeartbeat counts one registry announcement.
func (m *Metrics) RecordHeartbeat(err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.registryHeartbeats.WithLabelValues(result).Inc()
}

// SetRegistryNodes records the number of live nodes seen on the last listing.
func (m *Metrics) SetRegistryNodes(count int) {
	m.registryNodes.Set(float64(count))
}

// PrometheusHandler serves the metrics in g.
func PrometheusHandler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
