// Package auth exposes the session lifecycle over HTTP: login, refresh, logout and the
// authenticated self-service endpoints.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/sessiongate/middleware/authgate"
	"github.com/tech-arch1tect/sessiongate/server"
	"github.com/tech-arch1tect/sessiongate/services/autherror"
	"github.com/tech-arch1tect/sessiongate/services/identity"
	"github.com/tech-arch1tect/sessiongate/services/jwt"
	"github.com/tech-arch1tect/sessiongate/services/logging"
	"github.com/tech-arch1tect/sessiongate/services/metrics"
	"github.com/tech-arch1tect/sessiongate/services/session"
	"go.uber.org/zap"
)

const (
	tokenTypeBearer = "Bearer"
	// ClientMACHeader is recorded with the session for audit. It is client supplied and never trusted.
	ClientMACHeader = "X-Client-MAC"
)

type Accounts interface {
	Authenticate(ctx context.Context, username, password string) (*identity.Record, error)
	FindBySubject(ctx context.Context, subject string) (*identity.Record, error)
	Register(ctx context.Context, in identity.RegisterInput) (*identity.User, error)
}

type AccessTokens interface {
	IssueAccessToken(subject string) (*jwt.AccessToken, error)
	AccessTTLSeconds() int64
}

type Config struct {
	SessionTTL    time.Duration
	RememberMeTTL time.Duration
	Cookie        CookieConfig
}

type Handler struct {
	accounts Accounts
	sessions *session.Manager
	tokens   AccessTokens
	config   Config
	logger   *logging.Service
	metrics  *metrics.Service
}

func NewHandler(accounts Accounts, sessions *session.Manager, tokens AccessTokens, cfg Config, logger *logging.Service, m *metrics.Service) *Handler {
	if cfg.Cookie.Name == "" {
		cfg.Cookie.Name = "refreshToken"
	}
	if cfg.Cookie.Path == "" {
		cfg.Cookie.Path = "/"
	}

	return &Handler{
		accounts: accounts,
		sessions: sessions,
		tokens:   tokens,
		config:   cfg,
		logger:   logger.Named("auth"),
		metrics:  m,
	}
}

// Routes mounts the endpoints on g. loginLimiter wraps the login route only.
func (h *Handler) Routes(g *echo.Group, loginLimiter echo.MiddlewareFunc) {
	if loginLimiter != nil {
		g.POST("/login", h.Login, loginLimiter)
	} else {
		g.POST("/login", h.Login)
	}
	g.POST("/register", h.Register)
	g.POST("/refresh", h.Refresh)
	g.POST("/logout", h.Logout)
	g.POST("/logout-all", h.LogoutAll)
	g.GET("/me", h.Me)
	g.GET("/sessions", h.Sessions)
}

func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	ctx := c.Request().Context()
	record, err := h.accounts.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		h.metrics.Login("failure")
		h.logger.Info("login failed",
			zap.String("kind", autherror.KindOf(err).String()),
			zap.String("ip", server.ClientIP(c)),
			zap.String("trace_id", logging.TraceIDFrom(c)))
		return authgate.RespondError(c, err)
	}

	ttl := h.config.SessionTTL
	if req.RememberMe {
		ttl = h.config.RememberMeTTL
	}

	issued, err := h.sessions.Issue(ctx, record.Subject, ttl, clientMetadata(c))
	if err != nil {
		h.metrics.Login("error")
		return authgate.RespondError(c, err)
	}

	access, err := h.issueAccessToken(record.Subject)
	if err != nil {
		h.metrics.Login("error")
		return authgate.RespondError(c, err)
	}

	h.metrics.Login("success")
	h.setSessionCookie(c, issued.RawToken, issued.TTL())

	return c.JSON(http.StatusOK, TokenResponse{
		AccessToken:      access.Token,
		TokenType:        tokenTypeBearer,
		ExpiresIn:        h.tokens.AccessTTLSeconds(),
		SessionExpiresIn: int64(issued.TTL() / time.Second),
		User:             userFromRecord(record),
	})
}

// Refresh exchanges the session cookie for a new access token, rotating the session when the
// rotation policy asks for it.
func (h *Handler) Refresh(c echo.Context) error {
	raw := h.sessionCookie(c)
	if raw == "" {
		return authgate.RespondError(c, autherror.New(autherror.KindMissingCredential, "session cookie missing"))
	}

	ctx := c.Request().Context()
	result, err := h.sessions.Refresh(ctx, raw, clientMetadata(c))
	if err != nil {
		if autherror.IsKind(err, autherror.KindInvalidSession) {
			h.clearSessionCookie(c)
		}
		h.logger.Info("refresh rejected",
			zap.String("kind", autherror.KindOf(err).String()),
			zap.String("trace_id", logging.TraceIDFrom(c)))
		return authgate.RespondError(c, err)
	}

	subject := result.Session.Subject
	record, err := h.accounts.FindBySubject(ctx, subject)
	if err != nil || !record.Enabled {
		if err != nil && !errors.Is(err, identity.ErrNotFound) {
			return authgate.RespondError(c, autherror.Wrap(autherror.KindProcessing, "identity lookup failed", err))
		}
		h.logger.Warn("refresh for unavailable identity", zap.String("subject", subject))
		live := raw
		if result.Rotated != nil {
			live = result.Rotated.RawToken
		}
		if rerr := h.sessions.Revoke(ctx, live); rerr != nil {
			h.logger.Error("failed to revoke session of unavailable identity", zap.Error(rerr))
		}
		h.clearSessionCookie(c)
		return authgate.RespondError(c, autherror.New(autherror.KindIdentityUnavailable, "identity unavailable"))
	}

	access, err := h.issueAccessToken(subject)
	if err != nil {
		return authgate.RespondError(c, err)
	}

	if result.Rotated != nil {
		h.setSessionCookie(c, result.Rotated.RawToken, result.Rotated.TTL())
	}

	return c.JSON(http.StatusOK, TokenResponse{
		AccessToken:      access.Token,
		TokenType:        tokenTypeBearer,
		ExpiresIn:        h.tokens.AccessTTLSeconds(),
		SessionExpiresIn: max(h.sessions.RemainingSeconds(result.Session), 0),
		User:             userFromRecord(record),
	})
}

// Logout always clears the cookie. Unknown or already revoked sessions are not an error.
func (h *Handler) Logout(c echo.Context) error {
	err := h.sessions.Revoke(c.Request().Context(), h.sessionCookie(c))
	h.clearSessionCookie(c)
	if err != nil {
		return authgate.RespondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) LogoutAll(c echo.Context) error {
	id := authgate.Current(c)
	if id == nil {
		return authgate.RespondError(c, autherror.ErrMissingCredential)
	}

	n, err := h.sessions.RevokeAll(c.Request().Context(), id.Subject)
	if err != nil {
		return authgate.RespondError(c, err)
	}

	h.clearSessionCookie(c)
	return c.JSON(http.StatusOK, LogoutAllResponse{Revoked: n})
}

func (h *Handler) Me(c echo.Context) error {
	id := authgate.Current(c)
	if id == nil {
		return authgate.RespondError(c, autherror.ErrMissingCredential)
	}
	return c.JSON(http.StatusOK, userFromIdentity(id))
}

func (h *Handler) Sessions(c echo.Context) error {
	id := authgate.Current(c)
	if id == nil {
		return authgate.RespondError(c, autherror.ErrMissingCredential)
	}

	sessions, err := h.sessions.ListActive(c.Request().Context(), id.Subject)
	if err != nil {
		return authgate.RespondError(c, err)
	}

	resp := SessionListResponse{Sessions: make([]SessionResponse, 0, len(sessions))}
	for i := range sessions {
		resp.Sessions = append(resp.Sessions, sessionResponse(&sessions[i], h.sessions.RemainingSeconds(&sessions[i])))
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) Register(c echo.Context) error {
	var req identity.RegisterInput
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	user, err := h.accounts.Register(c.Request().Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrInvalidInput):
			return echo.NewHTTPError(http.StatusBadRequest, strings.TrimPrefix(err.Error(), identity.ErrInvalidInput.Error()+": "))
		case errors.Is(err, identity.ErrUsernameTaken):
			return echo.NewHTTPError(http.StatusConflict, "Username already exists")
		default:
			h.logger.Error("registration failed", zap.Error(err))
			return echo.NewHTTPError(http.StatusInternalServerError, "Registration failed")
		}
	}

	return c.JSON(http.StatusCreated, RegisterResponse{
		ID:       user.ID,
		Username: user.Username,
		Name:     user.Name,
		Email:    user.Email,
	})
}

func (h *Handler) issueAccessToken(subject string) (*jwt.AccessToken, error) {
	access, err := h.tokens.IssueAccessToken(subject)
	if err != nil {
		h.logger.Error("failed to issue access token", zap.Error(err), zap.String("subject", subject))
		return nil, autherror.Wrap(autherror.KindProcessing, "failed to issue access token", err)
	}
	h.metrics.AccessTokenIssued()
	return access, nil
}

// clientMetadata records the first X-Forwarded-For hop (else the remote address), the
// client MAC header and the user agent.
func clientMetadata(c echo.Context) session.Metadata {
	return session.Metadata{
		IPAddress:  server.ClientIP(c),
		MACAddress: strings.TrimSpace(c.Request().Header.Get(ClientMACHeader)),
		UserAgent:  c.Request().UserAgent(),
	}
}
