package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aqstn"
	"aqstn/internal/config"
	apperrors "aqstn/internal/errors"
	"aqstn/internal/monitoring"
	"aqstn/internal/registry"
	"aqstn/internal/testutils"
	"aqstn/internal/version"
)

type failingStore struct{ registry.Store }

func (failingStore) List(context.Context) ([]registry.Node, error) {
	return nil, errors.New("connection refused")
}

func (failingStore) Get(context.Context, string) (registry.Node, error) {
	return registry.Node{}, errors.New("connection refused")
}

func (failingStore) HealthCheck(context.Context) error {
	return errors.New("connection refused")
}

type testServer struct {
	helper *testutils.HTTPTestHelper
	reg    *prometheus.Registry
	suite  *testutils.TestSuite
}

func newTestServer(t *testing.T, store registry.Store) (*testutils.HTTPTestHelper, *prometheus.Registry) {
	ts := newTestServerWithConfig(t, store, func(*config.Config) {})
	return ts.helper, ts.reg
}

func newTestServerWithConfig(t *testing.T, store registry.Store, mutate func(*config.Config)) *testServer {
	t.Helper()
	suite := testutils.NewTestSuite(t)

	cfg := config.Default()
	cfg.App.Env = "test"
	cfg.RateLimit.Enabled = false
	mutate(cfg)

	reg := prometheus.NewRegistry()
	srv, err := NewServer(cfg, Options{
		Logger:   suite.Logger,
		Store:    store,
		Metrics:  monitoring.NewMetrics(reg, version.FromBuild()),
		Gatherer: reg,
	})
	require.NoError(t, err)
	return &testServer{
		helper: testutils.NewHTTPTestHelper(t, srv.Handler()),
		reg:    reg,
		suite:  suite,
	}
}

type healthBody struct {
	Status   string            `json:"status"`
	Version  string            `json:"version"`
	Services map[string]string `json:"services"`
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name     string
		store    registry.Store
		registry string
	}{
		{name: "registry disabled", store: nil, registry: ServiceUnavailable},
		{name: "memory store", store: registry.NewMemoryStore(), registry: ServiceOK},
		{name: "store down", store: failingStore{}, registry: ServiceError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			helper, _ := newTestServer(t, tt.store)

			var body healthBody
			require.NoError(t, helper.GET("/health", nil).AssertStatus(http.StatusOK).GetJSON(&body))
			assert.Equal(t, "ok", body.Status)
			assert.Equal(t, "1.0.0", body.Version)
			assert.Equal(t, tt.registry, body.Services["registry"])
		})
	}
}

func TestVersionAndAbout(t *testing.T) {
	helper, _ := newTestServer(t, nil)

	var info version.Info
	require.NoError(t, helper.GET("/api/v1/version", nil).AssertStatus(http.StatusOK).GetJSON(&info))
	assert.Equal(t, aqstn.Version, info.Version)
	assert.Equal(t, aqstn.Author, info.Author)

	var about About
	require.NoError(t, helper.GET("/api/v1/about", nil).AssertStatus(http.StatusOK).GetJSON(&about))
	assert.Equal(t, "AQSTN", about.ShortName)
	assert.Equal(t, "Evolution Ecosystem", about.Author)
	assert.Contains(t, about.Description, "AQSTN")
}

func TestNodesWithoutRegistry(t *testing.T) {
	helper, _ := newTestServer(t, nil)

	var body apperrors.ErrorResponse
	require.NoError(t, helper.GET("/api/v1/nodes", nil).AssertStatus(http.StatusServiceUnavailable).GetJSON(&body))
	assert.Equal(t, apperrors.ErrCodeRegistryUnavailable, body.Error.Code)

	helper.GET("/api/v1/nodes/abc", nil).AssertStatus(http.StatusServiceUnavailable)
}

func TestNodes(t *testing.T) {
	store := registry.NewMemoryStore()
	node := registry.NewLocalNode("alpha", "10.0.0.1:8080")
	require.NoError(t, store.Put(context.Background(), node, time.Minute))

	helper, reg := newTestServer(t, store)

	var list struct {
		Success bool            `json:"success"`
		Data    []registry.Node `json:"data"`
	}
	require.NoError(t, helper.GET("/api/v1/nodes", nil).AssertStatus(http.StatusOK).GetJSON(&list))
	assert.True(t, list.Success)
	require.Len(t, list.Data, 1)
	assert.Equal(t, node.ID, list.Data[0].ID)

	var one struct {
		Data registry.Node `json:"data"`
	}
	require.NoError(t, helper.GET("/api/v1/nodes/"+node.ID, nil).AssertStatus(http.StatusOK).GetJSON(&one))
	assert.Equal(t, "alpha", one.Data.Name)

	var missing apperrors.ErrorResponse
	require.NoError(t, helper.GET("/api/v1/nodes/nope", nil).AssertStatus(http.StatusNotFound).GetJSON(&missing))
	assert.Equal(t, apperrors.ErrCodeNotFound, missing.Error.Code)

	families, err := reg.Gather()
	require.NoError(t, err)
	found := false
	for _, mf := range families {
		if mf.GetName() == "registry_nodes" {
			found = true
			require.Len(t, mf.GetMetric(), 1)
			assert.Equal(t, float64(1), mf.GetMetric()[0].GetGauge().GetValue())
		}
	}
	assert.True(t, found, "registry_nodes gauge is exported")
}

func TestNodesStoreFailure(t *testing.T) {
	ts := newTestServerWithConfig(t, failingStore{}, func(*config.Config) {})

	ts.helper.GET("/api/v1/nodes", map[string]string{"X-Request-ID": "rid-list"}).
		AssertStatus(http.StatusServiceUnavailable).
		AssertContains("REGISTRY_UNAVAILABLE")
	ts.helper.GET("/api/v1/nodes/x", nil).AssertStatus(http.StatusServiceUnavailable)

	logs := ts.suite.LogBuf.String()
	assert.Contains(t, logs, "Failed to list nodes")
	assert.Contains(t, logs, `"request_id":"rid-list"`)
}

func TestMetricsEndpoint(t *testing.T) {
	helper, _ := newTestServer(t, nil)
	helper.GET("/health", nil)

	resp := helper.GET("/metrics", nil).AssertStatus(http.StatusOK)
	assert.True(t, strings.Contains(string(resp.Body), "aqstn_build_info"))
	assert.Contains(t, string(resp.Body), `http_requests_total{endpoint="/health",method="GET",status="200"} 1`)
}

func TestRateLimitedServer(t *testing.T) {
	ts := newTestServerWithConfig(t, nil, func(cfg *config.Config) {
		cfg.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerSecond: 0.001, Burst: 1}
	})
	ts.helper.GET("/health", nil).AssertStatus(http.StatusOK)

	resp := ts.helper.GET("/health", nil).AssertStatus(http.StatusTooManyRequests)
	var body map[string]json.RawMessage
	require.NoError(t, resp.GetJSON(&body))
	assert.Contains(t, string(body["error"]), "RATE_LIMIT")
}

func TestRateLimitIgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	ts := newTestServerWithConfig(t, nil, func(cfg *config.Config) {
		cfg.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerSecond: 0.001, Burst: 1}
	})

	allowed := 0
	for i := 0; i < 50; i++ {
		resp := ts.helper.GET("/health", map[string]string{
			"X-Forwarded-For": fmt.Sprintf("203.0.113.%d", i),
			"X-Real-IP":       fmt.Sprintf("198.51.100.%d", i),
		})
		if resp.StatusCode == http.StatusOK {
			allowed++
		}
	}
	assert.Equal(t, 1, allowed, "spoofed headers must not mint new buckets")
}

func TestRateLimitHonoursTrustedProxy(t *testing.T) {
	ts := newTestServerWithConfig(t, nil, func(cfg *config.Config) {
		cfg.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerSecond: 0.001, Burst: 1}
		// httptest requests come from 192.0.2.1
		cfg.Server.TrustedProxies = []string{"192.0.2.0/24"}
	})

	ts.helper.GET("/health", map[string]string{"X-Forwarded-For": "203.0.113.1"}).AssertStatus(http.StatusOK)
	ts.helper.GET("/health", map[string]string{"X-Forwarded-For": "203.0.113.2"}).AssertStatus(http.StatusOK)
	ts.helper.GET("/health", map[string]string{"X-Forwarded-For": "203.0.113.1"}).AssertStatus(http.StatusTooManyRequests)
}

func TestInvalidTrustedProxies(t *testing.T) {
	cfg := config.Default()
	cfg.Server.TrustedProxies = []string{"not-an-ip"}

	_, err := NewServer(cfg, Options{Logger: testutils.NewTestSuite(t).Logger})
	assert.Error(t, err)
}

func TestSwaggerRoute(t *testing.T) {
	dev := newTestServerWithConfig(t, nil, func(cfg *config.Config) { cfg.App.Env = "development" })
	dev.helper.GET("/swagger/index.html", nil).AssertStatus(http.StatusOK)

	helper, _ := newTestServer(t, nil)
	helper.GET("/swagger/index.html", nil).AssertStatus(http.StatusNotFound)
}

func TestShutdownWithoutStart(t *testing.T) {
	srv, err := NewServer(config.Default(), Options{Logger: testutils.NewTestSuite(t).Logger})
	require.NoError(t, err)
	assert.NoError(t, srv.Shutdown(context.Background()))
	assert.NoError(t, srv.Start(), "start after shutdown returns at once")
}

func TestStartAndShutdown(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = freePort(t)

	srv, err := NewServer(cfg, Options{Logger: testutils.NewTestSuite(t).Logger})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.Start() }()

	url := fmt.Sprintf("http://%s/health", cfg.Server.Addr())
	testutils.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, "server answers /health")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	assert.NoError(t, <-done)
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}
