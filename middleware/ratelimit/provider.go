package ratelimit

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/tech-arch1tect/sessiongate/config"
	"github.com/tech-arch1tect/sessiongate/services/logging"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewRedisClient(cfg *config.RedisConfig) redis.UniversalClient {
	return redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{cfg.Addr},
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func ProvideRateLimitStore(lc fx.Lifecycle, cfg *config.Config, logger *logging.Service) Store {
	switch cfg.RateLimit.Store {
	case "redis":
		client := NewRedisClient(&cfg.Redis)
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				if err := client.Ping(ctx).Err(); err != nil {
					logger.Warn("redis unreachable, rate limiting will fail open", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
				}
				return nil
			},
			OnStop: func(context.Context) error {
				return client.Close()
			},
		})
		return NewRedisStore(client, "sessiongate:")
	default:
		store := NewMemoryStore()
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				store.Close()
				return nil
			},
		})
		return store
	}
}

// ProvideLoginLimiter throttles login attempts per client IP. It is a pass-through when
// rate limiting is disabled.
func ProvideLoginLimiter(cfg *config.Config, store Store, logger *logging.Service) echo.MiddlewareFunc {
	if !cfg.RateLimit.Enabled {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	return Middleware(&Config{
		Store:     store,
		Rate:      cfg.RateLimit.Rate,
		Period:    cfg.RateLimit.Period,
		CountMode: cfg.RateLimit.CountMode,
		KeyGenerator: func(c echo.Context) string {
			return "login:" + DefaultKeyGenerator(c)
		},
		Logger: logger,
	})
}

var Options = fx.Options(
	fx.Provide(
		ProvideRateLimitStore,
		fx.Annotate(ProvideLoginLimiter, fx.ResultTags(`name:"login_limiter"`)),
	),
)
