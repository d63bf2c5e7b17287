package auth

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type CookieConfig struct {
	Name     string
	Path     string
	Secure   bool
	SameSite http.SameSite
}

func SameSiteMode(setting string) http.SameSite {
	switch setting {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

func (h *Handler) setSessionCookie(c echo.Context, raw string, ttl time.Duration) {
	c.SetCookie(&http.Cookie{
		Name:     h.config.Cookie.Name,
		Value:    raw,
		Path:     h.config.Cookie.Path,
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   h.config.Cookie.Secure,
		SameSite: h.config.Cookie.SameSite,
	})
}

// clearSessionCookie emits Max-Age=0.
func (h *Handler) clearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     h.config.Cookie.Name,
		Value:    "",
		Path:     h.config.Cookie.Path,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.Cookie.Secure,
		SameSite: h.config.Cookie.SameSite,
	})
}

func (h *Handler) sessionCookie(c echo.Context) string {
	cookie, err := c.Cookie(h.config.Cookie.Name)
	if err != nil {
		return ""
	}
	return cookie.Value
}
