// Package app assembles every module into one fx application.
package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/sessiongate/config"
	"github.com/tech-arch1tect/sessiongate/database"
	authhandlers "github.com/tech-arch1tect/sessiongate/handlers/auth"
	"github.com/tech-arch1tect/sessiongate/internal/options"
	"github.com/tech-arch1tect/sessiongate/middleware/authgate"
	"github.com/tech-arch1tect/sessiongate/middleware/ratelimit"
	"github.com/tech-arch1tect/sessiongate/openapi"
	"github.com/tech-arch1tect/sessiongate/server"
	"github.com/tech-arch1tect/sessiongate/services/hasher"
	"github.com/tech-arch1tect/sessiongate/services/identity"
	"github.com/tech-arch1tect/sessiongate/services/jwt"
	"github.com/tech-arch1tect/sessiongate/services/logging"
	"github.com/tech-arch1tect/sessiongate/services/metrics"
	"github.com/tech-arch1tect/sessiongate/services/password"
	"github.com/tech-arch1tect/sessiongate/services/session"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	fx       *fx.App
	config   *config.Config
	logger   *logging.Service
	db       *gorm.DB
	server   *server.Server
	sessions *session.Manager
}

func New(opts ...options.Option) (*App, error) {
	o := options.Apply(opts...)
	a := &App{}

	models := append([]any{&session.Session{}}, identity.Models()...)
	models = append(models, o.DatabaseModels...)

	fxOptions := []fx.Option{
		config.NewProvider(o.Config),
		logging.Module,
		metrics.Module,
		fx.Supply(database.WithModels(models...)),
		database.Module,
		hasher.Module,
		password.Module,
		identity.Module,
		jwt.Options,
		session.Options,
		authgate.Options,
		ratelimit.Options,
		server.NewProvider(),
		openapi.Module,
		authhandlers.Module,
		fx.Invoke(installGate, registerMetrics),
		fx.Populate(&a.config, &a.logger, &a.db, &a.server, &a.sessions),
	}

	if o.QuietFx {
		fxOptions = append(fxOptions, fx.NopLogger)
	} else {
		fxOptions = append(fxOptions, fx.WithLogger(func(l *logging.Service) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: l.Logger()}
		}))
	}
	fxOptions = append(fxOptions, o.ExtraFxOptions...)

	a.fx = fx.New(fxOptions...)
	if err := a.fx.Err(); err != nil {
		return nil, err
	}

	return a, nil
}

type gateParams struct {
	fx.In

	Server *server.Server
	Gate   echo.MiddlewareFunc `name:"authgate"`
}

// installGate puts the authentication gate in front of every route.
func installGate(p gateParams) {
	p.Server.Use(p.Gate)
}

func registerMetrics(srv *server.Server, m *metrics.Service) {
	srv.Get("/metrics", echo.WrapHandler(m.Handler()))
}

func (a *App) Start(ctx context.Context) error {
	return a.fx.Start(ctx)
}

func (a *App) Stop(ctx context.Context) error {
	return a.fx.Stop(ctx)
}

// Run starts the application and blocks until SIGINT, SIGTERM or an fx shutdown.
func (a *App) Run() error {
	startCtx, cancel := context.WithTimeout(context.Background(), fx.DefaultTimeout)
	defer cancel()
	if err := a.Start(startCtx); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		a.logger.Info("received shutdown signal, stopping gracefully", zap.String("signal", sig.String()))
	case sig := <-a.fx.Wait():
		a.logger.Info("application requested shutdown", zap.Int("exit_code", sig.ExitCode))
	}

	stopCtx, cancelStop := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStop()
	if err := a.Stop(stopCtx); err != nil {
		a.logger.Error("failed to stop application gracefully", zap.Error(err))
		return err
	}
	return nil
}

func (a *App) Server() *server.Server {
	return a.server
}

func (a *App) Echo() *echo.Echo {
	return a.server.Echo()
}

func (a *App) DB() *gorm.DB {
	return a.db
}

func (a *App) Logger() *logging.Service {
	return a.logger
}

func (a *App) Config() *config.Config {
	return a.config
}

func (a *App) Sessions() *session.Manager {
	return a.sessions
}
