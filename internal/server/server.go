package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/enginebridge/backend/internal/api/middleware"
	"github.com/enginebridge/backend/internal/bridge"
	"github.com/enginebridge/backend/internal/cli"
	"github.com/enginebridge/backend/internal/config"
	apihttp "github.com/enginebridge/backend/internal/http"
	"github.com/enginebridge/backend/internal/logging"
	"github.com/enginebridge/backend/internal/monitoring"
	"github.com/enginebridge/backend/internal/providers/editor"
	"github.com/enginebridge/backend/internal/resilience"
	"github.com/enginebridge/backend/internal/service"
	"github.com/enginebridge/backend/internal/ws"
)

// Server wraps the HTTP server and its dependencies
type Server struct {
	cfg      *config.Config
	logger   *logging.Logger
	router   *gin.Engine
	httpSrv  *http.Server
	client   *bridge.Client
	executor *bridge.Executor
	registry *service.Registry
	metrics  *monitoring.Metrics
	watchers []func()
}

// New assembles the server from configuration
func New(cfg *config.Config, logger *logging.Logger) *Server {
	breaker := resilience.New("bridge", resilience.Settings{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		SuccessThreshold: cfg.Breaker.SuccessThreshold,
		ResetTimeout:     cfg.Breaker.ResetTimeout,
		FailureWindow:    cfg.Breaker.FailureWindow,
	})

	client := bridge.NewClient(bridge.Config{
		Host:                 cfg.Bridge.Host,
		Port:                 cfg.Bridge.Port,
		ConnectTimeout:       cfg.Bridge.ConnectTimeout,
		RequestTimeout:       cfg.Bridge.RequestTimeout,
		ReconnectInterval:    cfg.Bridge.ReconnectInterval,
		MaxReconnectAttempts: cfg.Bridge.MaxReconnectAttempts,
	}, bridge.NewWebSocketTransport(), breaker, logger)

	executor := bridge.NewExecutor(client, logger)

	metrics := monitoring.NewMetrics()
	executor.SetObserver(metrics)
	watchers := []func(){
		metrics.WatchBridge(client),
		metrics.WatchBreaker(breaker),
	}

	runner := cli.NewRunner(cfg.Engine.Binary, cfg.Engine.ProjectDir, cfg.Engine.RunTimeout, logger)

	registry := service.NewRegistry()
	registerProviders(registry, executor, runner, logger)

	router := buildRouter(cfg, logger, registry, executor, metrics)

	return &Server{
		cfg:      cfg,
		logger:   logger.Named("server"),
		router:   router,
		client:   client,
		executor: executor,
		registry: registry,
		metrics:  metrics,
		watchers: watchers,
	}
}

func registerProviders(registry *service.Registry, executor *bridge.Executor, runner *cli.Runner, logger *logging.Logger) {
	editorProvider := editor.NewProvider(executor, runner)
	if err := registry.Register(editorProvider); err != nil {
		logger.Warn("failed to register editor provider", zap.Error(err))
	}

	stats := registry.Stats()
	logger.Info("registered service providers",
		zap.Any("total_services", stats["total_services"]),
		zap.Any("total_tools", stats["total_tools"]))
}

func buildRouter(cfg *config.Config, logger *logging.Logger, registry *service.Registry, executor *bridge.Executor, metrics *monitoring.Metrics) *gin.Engine {
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := apihttp.NewHandlers(registry, executor, metrics)
	wsHandler := ws.NewHandler(executor, logger)

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.GET("/status", handlers.Status)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Service management
	router.GET("/services", handlers.ListServices)
	router.POST("/services/discover", handlers.DiscoverServices)
	router.POST("/services/execute", handlers.ExecuteService)

	// Bridge control
	router.POST("/bridge/connect", handlers.ConnectBridge)
	router.POST("/bridge/disconnect", handlers.DisconnectBridge)
	router.POST("/bridge/reset", handlers.ResetBreaker)

	// Event stream
	router.GET("/stream", wsHandler.HandleConnection)

	return router
}

// Start connects the bridge and begins serving. Blocks until the listener
// fails or Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	// The editor may not be up yet; the reconnect loop takes over after
	// the first successful connection, so a failed initial dial is fine.
	if err := s.client.Connect(ctx); err != nil {
		s.logger.Warn("editor not reachable at startup", zap.Error(err))
	}

	addr := s.cfg.Server.Host + ":" + s.cfg.Server.Port
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("starting server", zap.String("addr", addr))
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the HTTP listener and tears down the bridge.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")

	var err error
	if s.httpSrv != nil {
		err = s.httpSrv.Shutdown(ctx)
	}

	for _, stop := range s.watchers {
		stop()
	}
	if derr := s.client.Disconnect(); derr != nil && err == nil {
		err = derr
	}
	return err
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}
