package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/tech-arch1tect/sessiongate/config"
	"github.com/tech-arch1tect/sessiongate/services/logging"
	"go.uber.org/zap"
)

type Server struct {
	echo   *echo.Echo
	cfg    *config.Config
	logger *logging.Service
}

// New builds the echo instance with trace ids, request logging and panic recovery installed,
// plus a /healthz probe.
func New(cfg *config.Config, logger *logging.Service) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	configureTrustedProxies(e, cfg.Server.TrustedProxies, logger)

	e.Use(logging.TraceID())
	e.Use(logging.RequestLogger(logger, "/healthz", "/metrics"))
	e.Use(middleware.Recover())

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	return &Server{
		echo:   e,
		cfg:    cfg,
		logger: logger,
	}
}

func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%s", s.cfg.Server.Host, s.cfg.Server.Port)
}

// Start blocks until the server stops. A graceful shutdown is not an error.
func (s *Server) Start() error {
	addr := s.Addr()
	s.logger.Info("starting server", zap.String("addr", addr))

	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("server stopped unexpectedly", zap.Error(err))
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	return s.echo.Shutdown(ctx)
}

func (s *Server) Use(mw ...echo.MiddlewareFunc) {
	s.echo.Use(mw...)
}

func (s *Server) Get(path string, handler echo.HandlerFunc, mw ...echo.MiddlewareFunc) {
	s.echo.GET(path, handler, mw...)
}

func (s *Server) Post(path string, handler echo.HandlerFunc, mw ...echo.MiddlewareFunc) {
	s.echo.POST(path, handler, mw...)
}

func (s *Server) Group(prefix string, mw ...echo.MiddlewareFunc) *echo.Group {
	return s.echo.Group(prefix, mw...)
}

func (s *Server) Echo() *echo.Echo {
	return s.echo
}
