// Package http provides the HTTP API for blockmated.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/blockmatelabs/blockmated/internal/user"
	"github.com/blockmatelabs/blockmated/internal/validation"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server provides HTTP endpoints for blockmated.
type Server struct {
	echo    *echo.Echo
	service *validation.Service
	logger  *zap.Logger
	config  *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// NewServer creates a new HTTP server.
func NewServer(service *validation.Service, logger *zap.Logger, cfg *Config) (*Server, error) {
	if service == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "0.0.0.0",
			Port: 8000,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})
	e.Use(metricsMiddleware())

	s := &Server{
		echo:    e,
		service: service,
		logger:  logger,
		config:  cfg,
	}

	// Register routes
	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	s.echo.POST("/register_user", s.handleRegister)
	s.echo.POST("/set_goals", s.handleSetGoals)
	s.echo.POST("/validate", s.handleValidate)
	s.echo.GET("/user/:telegram_id", s.handleGetUser)
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleRegister registers a user. Idempotent: an existing user gets a
// success response without mutation.
func (s *Server) handleRegister(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid register request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	created, err := s.service.Register(c.Request().Context(), req.TelegramID, req.Username)
	if err != nil {
		return s.mapError(err)
	}

	message := "User already exists"
	if created {
		message = "User registered successfully"
	}
	return c.JSON(http.StatusOK, RegisterResponse{
		Message: message,
		UserID:  req.TelegramID,
	})
}

// handleSetGoals replaces the user's goals and usage rules.
func (s *Server) handleSetGoals(c echo.Context) error {
	var req SetGoalsRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid set_goals request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	err := s.service.SetGoals(c.Request().Context(), req.TelegramID,
		req.Goals, req.AllowedUsecases, req.ForbiddenUsecases)
	if err != nil {
		return s.mapError(err)
	}

	return c.JSON(http.StatusOK, MessageResponse{Message: "Goals updated successfully"})
}

// handleValidate runs the decision flow for one usage request.
func (s *Server) handleValidate(c echo.Context) error {
	var req ValidateRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid validate request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	result, err := s.service.Validate(c.Request().Context(), validation.Request{
		TelegramID:      req.TelegramID,
		ChatID:          req.ChatID,
		Text:            req.RequestText,
		DurationMinutes: req.DurationMinutes,
	})
	if err != nil {
		return s.mapError(err)
	}

	resp := ValidateResponse{
		Decision:     string(result.Decision),
		Message:      result.Message,
		ReminderTime: result.ReminderMinutes,
	}
	if result.Alternative != "" {
		resp.Alternative = result.Alternative
	}
	return c.JSON(http.StatusOK, resp)
}

// handleGetUser returns the full stored user document.
func (s *Server) handleGetUser(c echo.Context) error {
	telegramID, err := strconv.ParseInt(c.Param("telegram_id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid telegram id")
	}

	doc, err := s.service.User(c.Request().Context(), telegramID)
	if err != nil {
		return s.mapError(err)
	}

	return c.JSON(http.StatusOK, doc)
}

// mapError translates service errors to HTTP errors.
func (s *Server) mapError(err error) error {
	switch {
	case errors.Is(err, user.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "User not found. Please register first.")
	case errors.Is(err, validation.ErrInvalidRequest):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("request failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
