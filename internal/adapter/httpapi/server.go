// Package httpapi exposes routing, direct chat and catalog management over
// a JSON HTTP API built on gin.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"agenthub/internal/domain"
	"agenthub/internal/infra/config"
	"agenthub/internal/infra/middleware"
	"agenthub/internal/usecase"
)

// Router routes a query through the master agent.
type Router interface {
	Route(ctx context.Context, query string) (*domain.RouteResult, error)
}

// Chatter answers a message as a single agent.
type Chatter interface {
	Chat(ctx context.Context, req usecase.ChatRequest) (*domain.ChatResult, error)
}

// Deps are the services the API delegates to.
type Deps struct {
	Router Router
	Chat   Chatter
	Agents domain.AgentStore
	Authz  domain.Authorizer
	Audit  domain.AuditLogger // optional
	Logger *slog.Logger
}

// Server is the HTTP front end.
type Server struct {
	cfg    config.ServerConfig
	access config.AccessConfig
	deps   Deps
	logger *slog.Logger
	engine *gin.Engine

	classifier *usecase.ErrorClassifier

	boundAddr atomic.Value // string
}

// NewServer builds the gin engine and registers all routes. ctx bounds the
// lifetime of background middleware state such as rate limiter cleanup.
func NewServer(ctx context.Context, cfg config.ServerConfig, access config.AccessConfig, deps Deps) (*Server, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	s := &Server{
		cfg:        cfg,
		access:     access,
		deps:       deps,
		logger:     deps.Logger,
		engine:     engine,
		classifier: usecase.NewErrorClassifier(),
	}

	engine.Use(
		gin.CustomRecoveryWithWriter(io.Discard, s.handlePanic),
		middleware.RequestID(),
		s.accessLog(),
		middleware.SecurityHeaders(),
	)
	if cfg.RateLimit.Enabled {
		engine.Use(middleware.RateLimit(ctx, middleware.RateLimitConfig{
			RequestsPerMin: cfg.RateLimit.RequestsPerMin,
			BurstSize:      cfg.RateLimit.Burst,
		}))
	}
	engine.Use(middleware.MaxBodyBytes(cfg.MaxBodyBytes), s.principal(), s.timeout())

	s.routes()
	return s, nil
}

func (s *Server) routes() {
	api := s.engine.Group("/api")
	{
		api.GET("/health", s.handleHealth)
		api.POST("/master-agent", s.handleMasterAgent)
		api.POST("/agent-chat", s.handleAgentChat)

		api.GET("/agents", s.handleListAgents)
		api.GET("/agents/search", s.handleSearchAgents)
		api.GET("/agents/:id", s.handleGetAgent)

		admin := api.Group("", s.requireAdmin())
		admin.POST("/agents", s.handleCreateAgent)
		admin.PUT("/agents/:id", s.handleUpdateAgent)
		admin.DELETE("/agents/:id", s.handleDeleteAgent)
		admin.GET("/admin/stats", s.handleStats)
	}
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Addr returns the bound listen address once Run has started.
func (s *Server) Addr() string {
	addr, _ := s.boundAddr.Load().(string)
	return addr
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}
	s.boundAddr.Store(listener.Addr().String())

	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	if s.cfg.RequestTimeout > 0 {
		srv.WriteTimeout = s.cfg.RequestTimeout + 10*time.Second
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()
	s.logger.Info("http server started", "addr", s.Addr())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	s.logger.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func (s *Server) handlePanic(c *gin.Context, rec any) {
	s.logger.ErrorContext(c.Request.Context(), "panic in handler", "panic", rec, "path", c.FullPath())
	c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{Error: genericMessage, Code: domain.CodeUnknown})
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.InfoContext(c.Request.Context(), "http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}

// timeout bounds each request's context by the configured request timeout.
func (s *Server) timeout() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.RequestTimeout <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.RequestTimeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
