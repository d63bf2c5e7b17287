package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/sessiongate/config"
	"github.com/tech-arch1tect/sessiongate/server"
	"github.com/tech-arch1tect/sessiongate/services/logging"
	"go.uber.org/zap"
)

type Config struct {
	Store          Store
	Rate           int
	Period         time.Duration
	CountMode      config.CountingMode
	KeyGenerator   func(c echo.Context) string
	OnLimitReached func(c echo.Context) error
	Logger         *logging.Service
}

// Middleware limits requests per key. In CountFailures and CountSuccess modes only matching
// responses consume budget; a request is rejected once the budget is spent.
// Store errors fail open.
func Middleware(cfg *Config) echo.MiddlewareFunc {
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}
	if cfg.Rate <= 0 {
		cfg.Rate = 10
	}
	if cfg.Period <= 0 {
		cfg.Period = time.Minute
	}
	if cfg.KeyGenerator == nil {
		cfg.KeyGenerator = DefaultKeyGenerator
	}
	if cfg.OnLimitReached == nil {
		cfg.OnLimitReached = DefaultOnLimitReached
	}
	if cfg.CountMode == "" {
		cfg.CountMode = config.CountAll
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			key := cfg.KeyGenerator(c)

			if cfg.CountMode == config.CountAll {
				count, resetAt, err := cfg.Store.Increment(ctx, key, cfg.Period)
				if err != nil {
					cfg.Logger.Warn("rate limit store failed", zap.Error(err))
					return next(c)
				}
				setHeaders(c, cfg.Rate, cfg.Rate-count, resetAt)
				if count > cfg.Rate {
					return cfg.OnLimitReached(c)
				}
				return next(c)
			}

			count, resetAt, err := cfg.Store.Get(ctx, key)
			if err != nil {
				cfg.Logger.Warn("rate limit store failed", zap.Error(err))
				return next(c)
			}
			if count >= cfg.Rate {
				setHeaders(c, cfg.Rate, 0, resetAt)
				return cfg.OnLimitReached(c)
			}

			err = next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok && !c.Response().Committed {
				status = he.Code
			}

			counted := (cfg.CountMode == config.CountFailures && status >= http.StatusBadRequest) ||
				(cfg.CountMode == config.CountSuccess && status < http.StatusBadRequest)
			if counted {
				if _, _, incErr := cfg.Store.Increment(ctx, key, cfg.Period); incErr != nil {
					cfg.Logger.Warn("rate limit store failed", zap.Error(incErr))
				}
			}

			return err
		}
	}
}

func setHeaders(c echo.Context, rate, remaining int, resetAt time.Time) {
	h := c.Response().Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(rate))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(max(remaining, 0)))
	if !resetAt.IsZero() {
		h.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
	}
}

// DefaultKeyGenerator keys on the client IP. X-Forwarded-For only counts when the echo
// instance has an IPExtractor trusting the forwarding proxy.
func DefaultKeyGenerator(c echo.Context) string {
	realIP := server.ClientIP(c)
	if realIP == "" || realIP == "unknown" {
		realIP = "fallback"
	}
	return "rate_limit:" + realIP
}

func DefaultOnLimitReached(c echo.Context) error {
	return echo.NewHTTPError(http.StatusTooManyRequests, "Too Many Requests")
}
