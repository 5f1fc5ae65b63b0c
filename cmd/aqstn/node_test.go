package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aqstn/internal/config"
	"aqstn/internal/registry"
	"aqstn/internal/stability"
	"aqstn/internal/testutils"
)

func TestOpenStoreFallsBackToMemory(t *testing.T) {
	suite := testutils.NewTestSuite(t)
	cfg := config.Default()
	cfg.Registry.Backend = config.BackendRedis
	cfg.Redis.Addr = "127.0.0.1:1"

	shutdown := stability.NewShutdownManager(time.Second, suite.Logger)
	store := openStore(context.Background(), cfg, suite.Logger, shutdown)

	assert.IsType(t, &registry.MemoryStore{}, store)
	assert.Contains(t, suite.LogBuf.String(), "Failed to connect to Redis, using in-memory registry")

	result := shutdown.Shutdown(context.Background())
	assert.Empty(t, result.Components, "no redis client to close")
}

func TestOpenStoreMemoryBackend(t *testing.T) {
	suite := testutils.NewTestSuite(t)
	shutdown := stability.NewShutdownManager(time.Second, suite.Logger)

	store := openStore(context.Background(), config.Default(), suite.Logger, shutdown)
	assert.IsType(t, &registry.MemoryStore{}, store)
	assert.Empty(t, suite.LogBuf.String())
}

func TestShutdownPriorities(t *testing.T) {
	assert.Greater(t, priorityAnnouncer, priorityServer, "deregister before the API goes away")
	assert.Greater(t, priorityServer, priorityStore, "the store outlives in-flight requests")
}

func TestServeStopsOnCancelledContext(t *testing.T) {
	suite := testutils.NewTestSuite(t)
	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Server.ShutdownTimeout = 5 * time.Second
	cfg.Registry.Backend = config.BackendRedis
	cfg.Redis.Addr = "127.0.0.1:1"

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := serve(ctx, cfg, suite.Logger)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.Success, result.Errors)

	names := make([]string, 0, len(result.Components))
	for _, component := range result.Components {
		names = append(names, component.Name)
		assert.Equal(t, stability.ShutdownStatusCompleted, component.Status, component.Name)
	}
	assert.Equal(t, []string{"announcer", "http_server"}, names)

	logs := suite.LogBuf.String()
	assert.Contains(t, logs, "Starting AQSTN 1.0.0")
	assert.Contains(t, logs, "Node announcer stopped")
	assert.Contains(t, logs, "Shutdown complete")
}

func TestServeRejectsBadSchedule(t *testing.T) {
	suite := testutils.NewTestSuite(t)
	cfg := config.Default()
	cfg.Registry.Schedule = "every now and then"

	_, err := serve(context.Background(), cfg, suite.Logger)
	assert.Error(t, err)
}
