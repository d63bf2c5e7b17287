package openapi

import (
	"github.com/tech-arch1tect/sessiongate/config"
	"github.com/tech-arch1tect/sessiongate/server"
	"go.uber.org/fx"
)

const (
	BearerScheme = "bearerAuth"
	CookieScheme = "sessionCookie"
)

func NewDocument(cfg *config.Config) *OpenAPI {
	return New(cfg.App.Name, cfg.App.Version).
		Description("Session and access token lifecycle API").
		BearerAuth(BearerScheme, "Short-lived access token from /auth/login or /auth/refresh").
		CookieAuth(CookieScheme, cfg.Session.CookieName, "Opaque refresh session")
}

func registerRoutes(srv *server.Server, doc *OpenAPI) {
	srv.Get("/openapi.json", doc.JSONHandler())
	srv.Get("/openapi.yaml", doc.YAMLHandler())
}

var Module = fx.Options(
	fx.Provide(NewDocument),
	fx.Invoke(registerRoutes),
)
