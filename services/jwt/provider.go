package jwt

import (
	"github.com/tech-arch1tect/sessiongate/config"
	"github.com/tech-arch1tect/sessiongate/services/logging"
	"go.uber.org/fx"
)

func NewJWTService(keys KeyStore, cfg *config.Config, logger *logging.Service) *Service {
	return NewService(keys, Config{
		AccessTTL: cfg.JWT.AccessTTL,
		Issuer:    cfg.JWT.Issuer,
	}, logger)
}

var Options = fx.Options(
	fx.Provide(
		fx.Annotate(KeyStoreFromConfig, fx.As(new(KeyStore))),
		NewJWTService,
	),
)
