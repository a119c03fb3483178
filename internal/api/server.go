package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/myrag/myrag/internal/agent"
	"github.com/myrag/myrag/internal/config"
)

// Service is what the HTTP handlers need from the RAG agent
type Service interface {
	Query(ctx context.Context, req agent.QueryRequest) (*agent.QueryResponse, error)
	Ingest(ctx context.Context, urls []string, progress agent.ProgressFunc) (*agent.IngestResult, error)
	Backend() string
}

// Server represents the HTTP API server
type Server struct {
	config  *config.Config
	router  *gin.Engine
	service Service
	logger  *slog.Logger
}

// NewServer creates a new API server
func NewServer(cfg *config.Config, service Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		config:  cfg,
		router:  gin.New(),
		service: service,
		logger:  logger,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.Use(gin.Recovery())
	s.router.Use(requestLogger(s.logger))
	s.router.Use(corsMiddleware(s.config.Server.CORSAllowOrigins))
	s.router.Use(rateLimit(s.config.Server.RateLimit, s.config.Server.RateBurst))

	s.router.GET("/health", s.handleHealth)
	s.router.POST("/ingest", s.handleIngest)
	s.router.POST("/query", s.handleQuery)
}

// Handler returns the instrumented HTTP handler
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, "myrag-api")
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api server starting", "addr", addr, "backend", s.service.Backend())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}
