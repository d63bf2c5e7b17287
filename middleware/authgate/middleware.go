// Package authgate authenticates every non-public request from its bearer access token and
// attaches the resolved identity to the request.
package authgate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/sessiongate/services/autherror"
	"github.com/tech-arch1tect/sessiongate/services/identity"
	"github.com/tech-arch1tect/sessiongate/services/jwt"
	"github.com/tech-arch1tect/sessiongate/services/logging"
	"github.com/tech-arch1tect/sessiongate/services/metrics"
	"github.com/tech-arch1tect/sessiongate/services/permission"
	"go.uber.org/zap"
)

const IdentityKey = "_auth_identity"

type TokenVerifier interface {
	VerifyAccessToken(token string) (*jwt.Claims, error)
}

type Config struct {
	Verifier    TokenVerifier
	Identities  identity.Provider
	PublicPaths []string
	Logger      *logging.Service
	Metrics     *metrics.Service
}

func New(cfg Config) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if isPublic(c.Request().URL.Path, cfg.PublicPaths) {
				return next(c)
			}

			id, err := authenticate(c, cfg)
			if err != nil {
				c.Set(IdentityKey, nil)
				kind := autherror.KindOf(err)
				cfg.Metrics.GateRejected(kind.String())
				cfg.Logger.Warn("request authentication failed",
					zap.String("kind", kind.String()),
					zap.String("trace_id", logging.TraceIDFrom(c)),
					zap.String("method", c.Request().Method),
					zap.String("path", c.Request().URL.Path),
					zap.Error(err))
				return RespondError(c, autherror.New(autherror.KindInvalidCredential, "unauthorized"))
			}

			c.Set(IdentityKey, id)
			c.SetRequest(c.Request().WithContext(permission.WithIdentity(c.Request().Context(), id)))

			return next(c)
		}
	}
}

// authenticate runs the gate checks. Panics in any collaborator become a processing error.
func authenticate(c echo.Context, cfg Config) (id *permission.Identity, err error) {
	defer func() {
		if r := recover(); r != nil {
			id = nil
			err = autherror.Wrap(autherror.KindProcessing, "authentication panicked", fmt.Errorf("%v", r))
		}
	}()

	token, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
	if !ok {
		return nil, autherror.New(autherror.KindMissingCredential, "bearer token missing")
	}

	claims, err := cfg.Verifier.VerifyAccessToken(token)
	if err != nil {
		return nil, autherror.Wrap(autherror.KindInvalidCredential, "access token rejected", err)
	}

	record, err := cfg.Identities.FindBySubject(c.Request().Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return nil, autherror.New(autherror.KindIdentityUnavailable, "identity not found")
		}
		return nil, autherror.Wrap(autherror.KindProcessing, "identity lookup failed", err)
	}
	if !record.Enabled {
		return nil, autherror.New(autherror.KindIdentityUnavailable, "identity disabled")
	}

	return permission.FromRecord(record), nil
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

// isPublic matches whole path segments, so /auth/logout does not cover /auth/logout-all.
func isPublic(path string, prefixes []string) bool {
	for _, p := range prefixes {
		p = strings.TrimSuffix(p, "/")
		if p == "" {
			continue
		}
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

func Current(c echo.Context) *permission.Identity {
	if id, ok := c.Get(IdentityKey).(*permission.Identity); ok {
		return id
	}
	return nil
}

// RequirePermission rejects requests whose identity lacks key. It must run after New.
func RequirePermission(key string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := Current(c)
			if id == nil {
				return RespondError(c, autherror.ErrMissingCredential)
			}
			if !id.Can(key) {
				return respondForbidden(c)
			}
			return next(c)
		}
	}
}
