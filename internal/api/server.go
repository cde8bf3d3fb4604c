package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/MycelicMemory/irm/internal/logging"
	"github.com/MycelicMemory/irm/internal/ratelimit"
	"github.com/MycelicMemory/irm/internal/sampler"
	"github.com/MycelicMemory/irm/internal/snapshot"
	"github.com/MycelicMemory/irm/pkg/config"
)

// Server represents the REST API server exposing inspection and sweep
// endpoints over a set of loaded IRM models.
type Server struct {
	router     *gin.Engine
	config     *config.Config
	store      *snapshot.Store
	sampler    *sampler.Service
	registry   *ModelRegistry
	httpServer *http.Server
	log        *logging.Logger
}

// NewServer creates a new REST API server backed by store and an empty
// model registry. Callers load models into the registry (via Registry())
// before or after Start.
func NewServer(store *snapshot.Store, cfg *config.Config) *Server {
	log := logging.GetLogger("api")
	log.Info("initializing REST API server")

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLoggingMiddleware(log))

	if cfg.RestAPI.CORS {
		log.Debug("enabling CORS")
		corsConfig := cors.Config{
			AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "X-API-Key"},
			ExposeHeaders: []string{"Content-Length", "Retry-After"},
			MaxAge:        12 * time.Hour,
		}

		if len(cfg.RestAPI.AllowOrigins) > 0 {
			corsConfig.AllowOrigins = cfg.RestAPI.AllowOrigins
		} else if cfg.RestAPI.APIKey != "" {
			corsConfig.AllowOrigins = []string{
				"http://localhost:*",
				"http://127.0.0.1:*",
				"https://localhost:*",
				"https://127.0.0.1:*",
			}
			corsConfig.AllowWildcard = true
		} else {
			corsConfig.AllowAllOrigins = true
		}

		router.Use(cors.New(corsConfig))
	}

	if cfg.RestAPI.APIKey != "" {
		log.Info("API key authentication enabled")
		router.Use(APIKeyAuthMiddleware(cfg.RestAPI.APIKey))
	}

	if cfg.RateLimit.Enabled {
		log.Info("rate limiting enabled")
		rlCfg := &ratelimit.Config{
			Enabled: cfg.RateLimit.Enabled,
			Global: ratelimit.LimitConfig{
				RequestsPerSecond: cfg.RateLimit.Global.RequestsPerSecond,
				BurstSize:         cfg.RateLimit.Global.BurstSize,
			},
		}
		for _, tool := range cfg.RateLimit.Tools {
			rlCfg.Tools = append(rlCfg.Tools, ratelimit.ToolLimit{
				Name:              tool.Name,
				RequestsPerSecond: tool.RequestsPerSecond,
				BurstSize:         tool.BurstSize,
			})
		}
		limiter := ratelimit.NewLimiter(rlCfg)
		router.Use(RateLimitMiddleware(limiter))
	}

	router.Use(MaxBodySizeMiddleware(DefaultBodyLimit))

	server := &Server{
		router:   router,
		config:   cfg,
		store:    store,
		sampler:  sampler.NewService(store),
		registry: NewModelRegistry(),
		log:      log,
	}

	server.setupRoutes()
	return server
}

// Registry returns the server's model registry, for callers to load models
// into before serving traffic.
func (s *Server) Registry() *ModelRegistry {
	return s.registry
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	api := s.router.Group("/api/v1")
	{
		api.GET("/health", s.healthHandler)

		api.GET("/models", s.listModels)
		api.GET("/models/:id", s.getModel)
		api.POST("/models/:id/snapshot", s.saveModelSnapshot)

		api.GET("/models/:id/domains/:domain", s.getDomain)

		api.POST("/models/:id/sweep", MaxBodySizeMiddleware(IngestBodyLimit), s.runSweep)
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	port := s.config.RestAPI.Port
	if s.config.RestAPI.AutoPort {
		availablePort, err := findAvailablePort(port)
		if err != nil {
			s.log.Error("failed to find available port", "error", err, "start_port", port)
			return fmt.Errorf("failed to find available port: %w", err)
		}
		port = availablePort
		s.log.Debug("found available port", "port", port)
	}

	addr := fmt.Sprintf("%s:%d", s.config.RestAPI.Host, port)
	s.httpServer = &http.Server{Addr: addr, Handler: s.router}

	s.log.Info("starting REST API server", "address", addr)
	return s.httpServer.ListenAndServe()
}

// StartWithContext starts the HTTP server with graceful shutdown support. It
// blocks until the context is cancelled or the server encounters an error.
func (s *Server) StartWithContext(ctx context.Context, shutdownTimeout time.Duration) error {
	port := s.config.RestAPI.Port
	if s.config.RestAPI.AutoPort {
		availablePort, err := findAvailablePort(port)
		if err != nil {
			s.log.Error("failed to find available port", "error", err, "start_port", port)
			return fmt.Errorf("failed to find available port: %w", err)
		}
		port = availablePort
		s.log.Debug("found available port", "port", port)
	}

	addr := fmt.Sprintf("%s:%d", s.config.RestAPI.Host, port)
	s.httpServer = &http.Server{Addr: addr, Handler: s.router}

	errChan := make(chan error, 1)
	go func() {
		s.log.Info("starting REST API server", "address", addr)
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.log.Info("shutdown signal received")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("stopping REST API server")
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.log.Error("server shutdown error", "error", err)
			return err
		}
		s.log.Info("REST API server stopped")
	}
	return nil
}

// Router returns the underlying Gin router for testing.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// findAvailablePort finds an available port starting from the given port.
func findAvailablePort(startPort int) (int, error) {
	for port := startPort; port < startPort+100; port++ {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err == nil {
			ln.Close()
			return port, nil
		}
	}
	return 0, fmt.Errorf("no available port found in range %d-%d", startPort, startPort+100)
}
