package authgate

import (
	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/sessiongate/config"
	"github.com/tech-arch1tect/sessiongate/services/identity"
	"github.com/tech-arch1tect/sessiongate/services/jwt"
	"github.com/tech-arch1tect/sessiongate/services/logging"
	"github.com/tech-arch1tect/sessiongate/services/metrics"
	"go.uber.org/fx"
)

type gateParams struct {
	fx.In

	Config     *config.Config
	JWT        *jwt.Service
	Identities identity.Provider
	Logger     *logging.Service
	Metrics    *metrics.Service `optional:"true"`
}

func ProvideGate(p gateParams) echo.MiddlewareFunc {
	return New(Config{
		Verifier:    p.JWT,
		Identities:  p.Identities,
		PublicPaths: p.Config.Auth.PublicPaths,
		Logger:      p.Logger.Named("authgate"),
		Metrics:     p.Metrics,
	})
}

var Options = fx.Options(
	fx.Provide(
		fx.Annotate(ProvideGate, fx.ResultTags(`name:"authgate"`)),
	),
)
