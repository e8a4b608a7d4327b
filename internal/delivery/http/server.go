package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/siting-service/internal/delivery/http/middleware"
	"github.com/siting-service/internal/pkg/errors"
	"github.com/siting-service/internal/pkg/utils"
)

const checkTimeout = 2 * time.Second

// HealthChecker - зависимость, готовность которой проверяет /ready
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthCheckFunc позволяет передать функцию как HealthChecker
type HealthCheckFunc func(ctx context.Context) error

func (f HealthCheckFunc) Health(ctx context.Context) error {
	return f(ctx)
}

// Server - внутренний probe-сервер воркера (liveness/readiness)
type Server struct {
	app    *fiber.App
	addr   string
	logger *zap.Logger

	names  []string
	checks map[string]HealthChecker
}

// NewServer - создание probe-сервера
func NewServer(addr string, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "Siting Worker Probe",
		ReadTimeout:           5 * time.Second,
		WriteTimeout:          5 * time.Second,
		IdleTimeout:           30 * time.Second,
		DisableStartupMessage: true,
		ErrorHandler:          customErrorHandler(logger),
	})

	s := &Server{
		app:    app,
		addr:   addr,
		logger: logger,
		checks: make(map[string]HealthChecker),
	}

	s.app.Use(middleware.Recovery(logger))
	s.app.Use(middleware.Logger(logger))

	s.app.Get("/health", s.health)
	s.app.Get("/ready", s.ready)

	return s
}

// AddCheck регистрирует проверку готовности. Вызывать до Start.
func (s *Server) AddCheck(name string, check HealthChecker) {
	if _, ok := s.checks[name]; !ok {
		s.names = append(s.names, name)
	}
	s.checks[name] = check
}

// App - fiber-приложение, нужно тестам
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "healthy",
		"time":   time.Now(),
	})
}

// ready опрашивает все зависимости; хотя бы одна недоступна - 503
func (s *Server) ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), checkTimeout)
	defer cancel()

	statuses := make(map[string]string, len(s.names))
	var failed []string
	for _, name := range s.names {
		if err := s.checks[name].Health(ctx); err != nil {
			s.logger.Warn("Readiness check failed", zap.String("check", name), zap.Error(err))
			statuses[name] = err.Error()
			failed = append(failed, name)
			continue
		}
		statuses[name] = "ok"
	}

	if len(failed) > 0 {
		return utils.SendError(c, errors.ErrNotReady.WithDetails(map[string]interface{}{
			"checks": statuses,
			"failed": failed,
		}))
	}

	return utils.SendSuccess(c, fiber.Map{
		"status": "ready",
		"checks": statuses,
	}, nil)
}

// Start - запуск probe-сервера, блокирует до Shutdown
func (s *Server) Start() error {
	s.logger.Info("Starting probe server", zap.String("address", s.addr))
	return s.app.Listen(s.addr)
}

// Shutdown - graceful shutdown
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down probe server")
	return s.app.ShutdownWithContext(ctx)
}

// customErrorHandler - ошибки fiber (404, 405) в общем формате ответа
func customErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
		}

		if code >= fiber.StatusInternalServerError {
			logger.Error("HTTP Error",
				zap.String("path", c.Path()),
				zap.Int("status", code),
				zap.Error(err))
		}

		return c.Status(code).JSON(fiber.Map{
			"error": fiber.Map{
				"code":    "HTTP_ERROR",
				"message": err.Error(),
			},
		})
	}
}
