package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"ignition/internal/config"
	"ignition/internal/runner"
	"ignition/pkg/runtime"
)

// ContainerRunner is what the HTTP layer needs from the reconciliation
// core: one call, typed failures.
type ContainerRunner interface {
	RunContainer(ctx context.Context, conf runtime.ContainerConfig) error
}

// Server is the HTTP boundary: it deserializes run requests, hands them to
// the runner, and renders typed failures as JSON.
type Server struct {
	echo   *echo.Echo
	cfg    *config.Config
	runner ContainerRunner
	engine runtime.Engine
}

// RunResponse is the JSON body for both success and failure responses.
type RunResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
}

// New wires routes and middleware. Each Server carries its own metrics
// registry so instances stay independent.
func New(cfg *config.Config, r ContainerRunner, engine runtime.Engine) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	registry := prometheus.NewRegistry()

	e.Use(middleware.Recover())
	e.Use(RequestLogger())
	e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(20))))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "ignition",
		Registerer: registry,
	}))

	s := &Server{
		echo:   e,
		cfg:    cfg,
		runner: r,
		engine: engine,
	}

	e.POST("/run", s.handleRun)
	e.GET("/healthz", s.handleHealth)
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{
		Gatherer: registry,
	}))

	return s
}

// Start blocks serving on the configured listen address.
func (s *Server) Start() error {
	log.Info().Str("addr", s.cfg.Server.ListenAddr).Msg("HTTP server listening")
	return s.echo.Start(s.cfg.Server.ListenAddr)
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// handleRun is POST /run: bind the desired state, reconcile, respond.
func (s *Server) handleRun(c echo.Context) error {
	var conf runtime.ContainerConfig
	if err := c.Bind(&conf); err != nil {
		return c.JSON(http.StatusBadRequest, RunResponse{
			Success: false,
			Message: "invalid request body",
		})
	}

	if conf.Image == "" || conf.Name == "" {
		return c.JSON(http.StatusBadRequest, RunResponse{
			Success: false,
			Message: "image and name are required",
		})
	}

	if err := s.runner.RunContainer(c.Request().Context(), conf); err != nil {
		var runErr *runner.RunError
		if errors.As(err, &runErr) {
			log.Error().
				Str("name", conf.Name).
				Str("reason", string(runErr.Reason)).
				Str("message", runErr.Message).
				Msg("Container run failed")
			return c.JSON(statusForReason(runErr.Reason), RunResponse{
				Success: false,
				Message: runErr.Message,
				Reason:  string(runErr.Reason),
			})
		}
		log.Error().Err(err).Str("name", conf.Name).Msg("Container run failed")
		return c.JSON(http.StatusInternalServerError, RunResponse{
			Success: false,
			Message: err.Error(),
		})
	}

	return c.JSON(http.StatusOK, RunResponse{
		Success: true,
		Message: "Started successfully",
	})
}

// handleHealth is GET /healthz: a daemon ping behind a fixed-shape body.
func (s *Server) handleHealth(c echo.Context) error {
	if err := s.engine.Ping(c.Request().Context()); err != nil {
		log.Warn().Err(err).Msg("Engine ping failed")
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// statusForReason maps the failure taxonomy onto HTTP status codes.
func statusForReason(reason runner.StartFailureReason) int {
	switch reason {
	case runner.ImageDoesNotExist:
		return http.StatusNotFound
	case runner.StoragePathDoesNotExist:
		return http.StatusUnprocessableEntity
	case runner.PortBindFailure:
		return http.StatusConflict
	case runner.PermissionDenied:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
