// Package httpapi serves the Agent Facade's chat HTTP surface (spec.md
// §6.1): POST /chat, GET /memory/stats, GET /memory/{level}, POST
// /memory/consolidate, POST /memory/remember, GET /health, plus a
// GET /metrics Prometheus endpoint (internal/metrics) mirroring the
// teacher's cmd/contextd/main.go echo.WrapHandler(promhttp.Handler())
// wiring. Echo-based, grounded on the teacher's internal/http middleware
// chain (Recover, RequestID, structured request log) and pkg/server's
// context-aware Start/Shutdown lifecycle, served by cmd/agentmemd.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fractalcore/agentmem/internal/agent"
	"github.com/fractalcore/agentmem/internal/logging"
)

// Config holds the HTTP surface's own settings, independent of the memory
// core's internal/config.Config, matching the teacher's separation between
// internal/http.Config and the app-wide config.
type Config struct {
	Host           string
	Port           int
	AllowedOrigins []string // empty refuses cross-origin, per spec.md §6.1
}

// Server is the chat HTTP surface.
type Server struct {
	echo   *echo.Echo
	agent  *agent.Agent
	log    *logging.Logger
	config Config
}

// NewServer constructs a Server delegating every endpoint to agent.
func NewServer(a *agent.Agent, log *logging.Logger, cfg Config) (*Server, error) {
	if a == nil {
		return nil, fmt.Errorf("httpapi: an agent is required")
	}
	if log == nil {
		log = logging.FromContext(context.Background())
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	if len(cfg.AllowedOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: cfg.AllowedOrigins,
		}))
	}
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			log.Info(c.Request().Context(), "http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})

	s := &Server{echo: e, agent: a, log: log, config: cfg}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.POST("/chat", s.handleChat)
	s.echo.GET("/memory/stats", s.handleMemoryStats)
	s.echo.GET("/memory/:level", s.handleMemoryLevel)
	s.echo.POST("/memory/consolidate", s.handleConsolidate)
	s.echo.POST("/memory/remember", s.handleRemember)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// Start starts the HTTP server and blocks until ctx is cancelled, then
// performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	errCh := make(chan error, 1)
	go func() {
		s.log.Info(ctx, "starting http server", zap.String("addr", addr))
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
