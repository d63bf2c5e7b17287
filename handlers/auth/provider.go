package auth

import (
	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/sessiongate/config"
	"github.com/tech-arch1tect/sessiongate/openapi"
	"github.com/tech-arch1tect/sessiongate/server"
	"github.com/tech-arch1tect/sessiongate/services/identity"
	"github.com/tech-arch1tect/sessiongate/services/jwt"
	"github.com/tech-arch1tect/sessiongate/services/logging"
	"github.com/tech-arch1tect/sessiongate/services/metrics"
	"github.com/tech-arch1tect/sessiongate/services/session"
	"go.uber.org/fx"
)

const routePrefix = "/auth"

func ProvideHandler(cfg *config.Config, accounts *identity.Service, sessions *session.Manager, tokens *jwt.Service, logger *logging.Service, m *metrics.Service) *Handler {
	return NewHandler(accounts, sessions, tokens, Config{
		SessionTTL:    cfg.Session.TTL,
		RememberMeTTL: cfg.Session.RememberMeTTL,
		Cookie: CookieConfig{
			Name:     cfg.Session.CookieName,
			Path:     cfg.Session.CookiePath,
			Secure:   cfg.Session.CookieSecure,
			SameSite: SameSiteMode(cfg.Session.CookieSameSite),
		},
	}, logger, m)
}

type routeParams struct {
	fx.In

	Server       *server.Server
	Handler      *Handler
	LoginLimiter echo.MiddlewareFunc `name:"login_limiter"`
	Docs         *openapi.OpenAPI    `optional:"true"`
}

func registerRoutes(p routeParams) {
	p.Handler.Routes(p.Server.Group(routePrefix), p.LoginLimiter)
	if p.Docs != nil {
		p.Handler.Describe(p.Docs, routePrefix)
	}
}

var Module = fx.Options(
	fx.Provide(ProvideHandler),
	fx.Invoke(registerRoutes),
)
