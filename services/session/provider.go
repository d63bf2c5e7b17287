package session

import (
	"context"

	"github.com/tech-arch1tect/sessiongate/config"
	"github.com/tech-arch1tect/sessiongate/services/hasher"
	"github.com/tech-arch1tect/sessiongate/services/logging"
	"github.com/tech-arch1tect/sessiongate/services/metrics"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type managerParams struct {
	fx.In

	Store   Store
	Hasher  hasher.SecretHasher
	Config  *config.Config
	Logger  *logging.Service
	Metrics *metrics.Service `optional:"true"`
}

func ProvideManager(p managerParams) *Manager {
	return NewManager(p.Store, p.Hasher, Config{
		TTL:             p.Config.Session.TTL,
		RotationMode:    p.Config.Session.RotationMode,
		CleanupInterval: p.Config.Session.CleanupInterval,
	}, p.Logger, WithMetrics(p.Metrics))
}

func ProvideGormStore(db *gorm.DB) Store {
	return NewGormStore(db)
}

func registerCleanupWorker(lc fx.Lifecycle, m *Manager) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			m.StartCleanupWorker(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

var Options = fx.Options(
	fx.Provide(ProvideGormStore, ProvideManager),
	fx.Invoke(registerCleanupWorker),
)
