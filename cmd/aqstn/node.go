package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"aqstn/internal/api"
	"aqstn/internal/config"
	"aqstn/internal/logger"
	"aqstn/internal/monitoring"
	"aqstn/internal/registry"
	"aqstn/internal/stability"
	"aqstn/internal/version"
)

// Shutdown priorities, highest first.
const (
	priorityAnnouncer = 30
	priorityServer    = 20
	priorityStore     = 10
)

func runNode(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger.Init(cfg.Logging)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_, err = serve(ctx, cfg, logger.GetGlobalLogger())
	return err
}

// serve runs the node until ctx is done or the API server fails, then shuts
// every component down and reports how that went.
func serve(ctx context.Context, cfg *config.Config, log logger.Logger) (*stability.ShutdownResult, error) {
	info := version.FromBuild()
	log.Info("Starting "+info.String(), "env", cfg.App.Env, "commit", info.GitCommit)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewMetrics(reg, info)
	shutdown := stability.NewShutdownManager(cfg.Server.ShutdownTimeout, log)

	var store registry.Store
	if cfg.Registry.Enabled {
		store = openStore(ctx, cfg, log, shutdown)

		node := registry.NewLocalNode(cfg.Registry.NodeName, nodeAddress(cfg))
		announcer, err := registry.NewAnnouncer(store, node, registry.AnnouncerConfig{
			Schedule: cfg.Registry.Schedule,
			TTL:      cfg.Registry.TTL,
		}, metrics, log)
		if err != nil {
			shutdown.Shutdown(context.Background())
			return nil, err
		}
		announcer.Start(ctx)
		shutdown.RegisterComponent("announcer", priorityAnnouncer, 0, announcer.Stop)
		log = log.WithField(string(logger.NodeIDKey), node.ID)
	}

	server, err := api.NewServer(cfg, api.Options{
		Logger:   log,
		Store:    store,
		Metrics:  metrics,
		Gatherer: reg,
	})
	if err != nil {
		shutdown.Shutdown(context.Background())
		return nil, err
	}
	shutdown.RegisterComponent("http_server", priorityServer, cfg.Server.ShutdownTimeout, server.Shutdown)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("Received shutdown signal")
	case runErr = <-serverErr:
		if runErr != nil {
			log.Error("API server stopped", "error", runErr)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*cfg.Server.ShutdownTimeout)
	defer cancel()
	result := shutdown.Shutdown(shutdownCtx)
	if !result.Success {
		log.Warn("Shutdown finished with errors", "errors", result.Errors, "duration", result.Duration.String())
		if runErr == nil {
			runErr = errors.New("shutdown finished with errors")
		}
	} else {
		log.Info("Shutdown complete", "duration", result.Duration.String())
	}
	return result, runErr
}

// openStore returns the configured registry store. An unreachable redis
// falls back to the in-process store so the node keeps serving.
func openStore(ctx context.Context, cfg *config.Config, log logger.Logger, shutdown *stability.ShutdownManager) registry.Store {
	if cfg.Registry.Backend != config.BackendRedis {
		return registry.NewMemoryStore()
	}

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	store, err := registry.NewRedisStore(connectCtx, registry.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err != nil {
		log.Warn("Failed to connect to Redis, using in-memory registry", "addr", cfg.Redis.Addr, "error", err)
		return registry.NewMemoryStore()
	}

	shutdown.RegisterComponent("redis", priorityStore, 0, func(context.Context) error {
		return store.Close()
	})
	return store
}

func nodeAddress(cfg *config.Config) string {
	if cfg.Registry.Address != "" {
		return cfg.Registry.Address
	}
	return cfg.Server.Addr()
}
