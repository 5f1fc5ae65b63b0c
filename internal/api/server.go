package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"aqstn/internal/config"
	"aqstn/internal/logger"
	"aqstn/internal/middleware"
	"aqstn/internal/monitoring"
	"aqstn/internal/registry"
	"aqstn/internal/stability"
)

const limiterCleanupInterval = time.Minute

// Options carries the optional collaborators of a Server. A nil Store makes
// the node endpoints answer 503; a nil Metrics disables instrumentation.
type Options struct {
	Logger   logger.Logger
	Store    registry.Store
	Metrics  *monitoring.Metrics
	Gatherer prometheus.Gatherer
}

// Server represents the API server
type Server struct {
	config   *config.Config
	router   *gin.Engine
	handlers *Handlers
	limiter  *stability.RateLimiter

	log      logger.Logger
	metrics  *monitoring.Metrics
	gatherer prometheus.Gatherer

	mu         sync.Mutex
	httpServer *http.Server
	closed     bool
	stopBg     context.CancelFunc
}

// NewServer creates a new API server
func NewServer(cfg *config.Config, opts Options) (*Server, error) {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	log := opts.Logger
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	log = log.WithField("component", "api")

	router := gin.New()
	// X-Forwarded-For is only honoured from configured proxies
	if err := router.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid server.trusted_proxies: %w", err)
	}

	s := &Server{
		config:   cfg,
		router:   router,
		log:      log,
		metrics:  opts.Metrics,
		gatherer: opts.Gatherer,
		handlers: &Handlers{
			Health: NewHealthHandler(opts.Store),
			Node:   NewNodeHandler(opts.Store, opts.Metrics, log),
		},
	}
	if cfg.RateLimit.Enabled {
		s.limiter = stability.NewRateLimiter(stability.RateLimiterConfig{
			RequestsPerSec: cfg.RateLimit.RequestsPerSecond,
			Burst:          cfg.RateLimit.Burst,
		})
	}

	s.setupRoutes()
	return s, nil
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.RequestLogger(s.log))
	if s.metrics != nil {
		s.router.Use(s.metrics.MetricsMiddleware())
	}
	s.router.Use(middleware.ErrorHandler(s.log))
	s.router.Use(middleware.HandleError(s.log))
	if s.limiter != nil {
		s.router.Use(middleware.RateLimit(s.limiter, s.log))
	}

	// Swagger documentation
	if s.config.App.Env == "development" {
		s.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	if s.config.Monitoring.PrometheusEnabled && s.gatherer != nil {
		s.router.GET(s.config.Monitoring.PrometheusPath, gin.WrapH(monitoring.PrometheusHandler(s.gatherer)))
	}

	s.router.GET("/health", s.handlers.Health.Health)

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/version", getVersion)
		v1.GET("/about", getAbout)

		nodes := v1.Group("/nodes")
		{
			nodes.GET("", s.handlers.Node.ListNodes)
			nodes.GET("/:id", s.handlers.Node.GetNode)
		}
	}
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called. It returns nil after a clean
// shutdown, including when Shutdown ran first.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.httpServer = &http.Server{
		Addr:           s.config.Server.Addr(),
		Handler:        s.router,
		ReadTimeout:    s.config.Server.ReadTimeout,
		WriteTimeout:   s.config.Server.WriteTimeout,
		MaxHeaderBytes: s.config.Server.MaxHeaderBytes,
	}
	httpServer := s.httpServer
	if s.limiter != nil {
		ctx, cancel := context.WithCancel(context.Background())
		s.stopBg = cancel
		go s.limiter.RunCleanup(ctx, limiterCleanupInterval)
	}
	s.mu.Unlock()

	s.log.Info("Starting API server", "addr", httpServer.Addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server and the limiter cleanup loop.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	httpServer := s.httpServer
	if s.stopBg != nil {
		s.stopBg()
		s.stopBg = nil
	}
	s.mu.Unlock()

	if httpServer == nil {
		return nil
	}
	s.log.Info("Shutting down API server")
	return httpServer.Shutdown(ctx)
}
