package identity

import (
	"github.com/tech-arch1tect/sessiongate/services/logging"
	"github.com/tech-arch1tect/sessiongate/services/password"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideService(db *gorm.DB, passwords *password.Service, logger *logging.Service) *Service {
	return NewService(db, passwords, logger)
}

var Module = fx.Options(
	fx.Provide(
		ProvideService,
		func(s *Service) Provider { return s },
	),
)
