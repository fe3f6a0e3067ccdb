package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/spendtrack/reconcile-backend/internal/application/reconcile"
	"github.com/spendtrack/reconcile-backend/internal/infrastructure/config"
	"github.com/spendtrack/reconcile-backend/internal/infrastructure/storage"
)

// Server exposes the reconciliation engine over HTTP. It owns the gin
// engine and the underlying http.Server so the caller can shut it down
// gracefully.
type Server struct {
	repo    storage.Repository
	service *reconcile.Service
	logger  *slog.Logger
	engine  *gin.Engine
	http    *http.Server
}

// NewServer builds the HTTP server with all routes registered.
func NewServer(repo storage.Repository, service *reconcile.Service, cfg config.APIConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(logger))

	engine.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	s := &Server{
		repo:    repo,
		service: service,
		logger:  logger,
		engine:  engine,
		http: &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Port),
			Handler: engine,
		},
	}

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.engine.GET("/health", s.health)

	api := s.engine.Group("/api")
	{
		api.POST("/import", s.importOrders)
		api.POST("/match", s.autoMatch)
		api.POST("/undo", s.undo)

		api.GET("/orders", s.listOrders)
		api.GET("/orders/:id", s.getOrder)
		api.POST("/orders/:id/unlink", s.unlinkOrder)
		api.POST("/orders/:id/relink", s.relinkOrder)

		api.GET("/transactions", s.listTransactions)
		api.POST("/transactions", s.saveTransactions)
		api.POST("/transactions/:id/verify", s.verifyTransaction)
		api.POST("/transactions/:id/unverify", s.unverifyTransaction)

		api.GET("/runs", s.listRuns)
		api.GET("/stats", s.getStats)
	}
}

// Handler returns the underlying http.Handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start begins serving and blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info("api server listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
}
