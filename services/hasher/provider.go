package hasher

import (
	"github.com/tech-arch1tect/sessiongate/config"
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(
		ProvideHasher,
		func(h *Hasher) SecretHasher { return h },
	),
)

func ProvideHasher(cfg *config.Config) (*Hasher, error) {
	return New([]byte(cfg.Session.Pepper), WithTokenBytes(cfg.Session.TokenBytes))
}
