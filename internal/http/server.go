// Package http serves the questd JSON API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/questd/internal/config"
	"github.com/fyrsmithlabs/questd/internal/events"
	"github.com/fyrsmithlabs/questd/internal/logging"
	"github.com/fyrsmithlabs/questd/internal/planner"
	"github.com/fyrsmithlabs/questd/internal/store"
	"github.com/fyrsmithlabs/questd/pkg/auth"
)

// Deps are the collaborators the handlers call.
type Deps struct {
	Store   *store.Store
	Planner *planner.Planner
	Tokens  *auth.TokenIssuer

	// Optional.
	Events   events.Publisher
	Metrics  *HTTPMetrics
	Gatherer prometheus.Gatherer
}

// Server provides the questd HTTP endpoints.
type Server struct {
	echo   *echo.Echo
	deps   Deps
	logger *zap.Logger
	config config.ServerConfig

	service     string
	requireAuth echo.MiddlewareFunc
}

// NewServer creates a new HTTP server.
func NewServer(cfg *config.Config, deps Deps, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		return nil, errors.New("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if deps.Store == nil || deps.Planner == nil || deps.Tokens == nil {
		return nil, errors.New("store, planner and token issuer are required")
	}
	if deps.Events == nil {
		deps.Events = events.Nop{}
	}
	if deps.Metrics == nil {
		deps.Metrics = NewHTTPMetrics(logger)
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:        e,
		deps:        deps,
		logger:      logger,
		config:      cfg.Server,
		service:     cfg.Observability.ServiceName,
		requireAuth: auth.BearerAuth(deps.Tokens, deps.Store),
	}
	e.HTTPErrorHandler = s.handleError

	// Clients call collection routes with and without a trailing slash.
	e.Pre(middleware.RemoveTrailingSlash())

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		RequestIDHandler: func(c echo.Context, id string) {
			req := c.Request()
			c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), id)))
		},
	}))
	e.Use(s.requestLogger())
	if len(cfg.Server.CORSOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     cfg.Server.CORSOrigins,
			AllowCredentials: true,
			AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		}))
	}
	e.Use(deps.Metrics.MetricsMiddleware())

	s.registerRoutes()
	return s, nil
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			s.logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	}
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	e := s.echo
	authed := s.requireAuth

	e.GET("/health", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})))

	e.POST("/auth/login", s.handleLogin)
	e.GET("/auth/me", s.handleMe, authed)

	e.POST("/users", s.handleCreateUser)
	e.GET("/users", s.handleListUsers)
	e.GET("/users/:id", s.handleGetUser)
	e.GET("/users/:id/missions", s.handleUserMissions)

	e.POST("/missions", s.handleCreateMission, authed)
	e.GET("/missions", s.handleListMissions)
	e.POST("/missions/with-tasks", s.handleCreateMissionWithTasks, authed)
	e.POST("/missions/plan-with-ai", s.handlePlanMission, authed)
	e.GET("/missions/:id", s.handleGetMission)
	e.POST("/missions/:id/participants", s.handleAddParticipant, authed)
	e.GET("/missions/:id/leaderboard", s.handleLeaderboard)
	e.POST("/missions/:id/tasks", s.handleCreateTask, authed)
	e.GET("/missions/:id/tasks", s.handleListTasks)
	e.PATCH("/missions/:id/tasks/:taskId", s.handleUpdateTask, authed)

	e.POST("/ai/plan-mission", s.handlePlanMission, authed)
}

// handleHealth reports service and database status.
func (s *Server) handleHealth(c echo.Context) error {
	resp := HealthResponse{Status: "ok", Service: s.service, Database: "ok"}
	if err := s.deps.Store.Ping(c.Request().Context()); err != nil {
		s.logger.Warn("health check: database unreachable", zap.Error(err))
		resp.Status = "degraded"
		resp.Database = "unavailable"
	}
	return c.JSON(http.StatusOK, resp)
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
}

// Start serves until ctx is cancelled, then shuts down within the
// configured timeout. It returns nil after a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	addr := s.Addr()
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("starting http server", zap.String("addr", addr))
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server start: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return <-errCh
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
