package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/sessiongate/config"
	"github.com/tech-arch1tect/sessiongate/middleware/authgate"
	"github.com/tech-arch1tect/sessiongate/openapi"
	"github.com/tech-arch1tect/sessiongate/server"
	"github.com/tech-arch1tect/sessiongate/services/hasher"
	"github.com/tech-arch1tect/sessiongate/services/identity"
	"github.com/tech-arch1tect/sessiongate/services/jwt"
	"github.com/tech-arch1tect/sessiongate/services/logging"
	"github.com/tech-arch1tect/sessiongate/services/metrics"
	"github.com/tech-arch1tect/sessiongate/services/password"
	"github.com/tech-arch1tect/sessiongate/services/session"
	"github.com/tech-arch1tect/sessiongate/testutils"
	"gorm.io/gorm"
)

const testUser = "jdoe"

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	e        *echo.Echo
	db       *gorm.DB
	accounts *identity.Service
	sessions *session.Manager
	handler  *Handler
	clock    *clock
}

func newFixture(t *testing.T, mode config.RotationMode) *fixture {
	t.Helper()

	models := append([]any{&session.Session{}}, identity.Models()...)
	db := testutils.SetupTestDB(t, models...)
	logger := logging.NewNop()

	passwords := password.NewService(password.Params{MemoryKiB: 8 * 1024, Iterations: 1, Parallelism: 1})
	accounts := identity.NewService(db, passwords, logger)

	h, err := hasher.New([]byte(testutils.TestPepper))
	require.NoError(t, err)

	clk := &clock{now: time.Now().UTC().Truncate(time.Second)}
	sessions := session.NewManager(session.NewGormStore(db), h, session.Config{
		TTL:          12 * time.Hour,
		RotationMode: mode,
	}, logger, session.WithClock(clk.Now))

	keys, err := jwt.NewStaticKeyStore([]byte(testutils.TestSigningKey))
	require.NoError(t, err)
	tokens := jwt.NewService(keys, jwt.Config{AccessTTL: 15 * time.Minute, Issuer: "sessiongate-test"}, logger)

	handler := NewHandler(accounts, sessions, tokens, Config{
		SessionTTL:    12 * time.Hour,
		RememberMeTTL: 360 * time.Hour,
		Cookie: CookieConfig{
			Name:     "refreshToken",
			Path:     "/auth",
			Secure:   true,
			SameSite: http.SameSiteStrictMode,
		},
	}, logger, metrics.NewService())

	e := echo.New()
	e.IPExtractor = server.IPExtractor([]string{"192.0.2.0/24", "10.0.0.0/8"}, nil)
	e.Use(logging.TraceID())
	e.Use(authgate.New(authgate.Config{
		Verifier:    tokens,
		Identities:  accounts,
		PublicPaths: []string{"/auth/login", "/auth/register", "/auth/refresh", "/auth/logout"},
		Logger:      logger,
	}))
	handler.Routes(e.Group("/auth"), nil)

	_, err = accounts.Register(context.Background(), identity.RegisterInput{
		Username: testUser,
		Password: testutils.TestPasswords.Valid,
		Name:     "John Doe",
		Email:    "jdoe@example.com",
	})
	require.NoError(t, err)

	return &fixture{e: e, db: db, accounts: accounts, sessions: sessions, handler: handler, clock: clk}
}

type request struct {
	method  string
	path    string
	body    string
	cookie  string
	bearer  string
	headers map[string]string
}

func (f *fixture) do(t *testing.T, r request) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(r.method, r.path, strings.NewReader(r.body))
	if r.body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if r.cookie != "" {
		req.AddCookie(&http.Cookie{Name: "refreshToken", Value: r.cookie})
	}
	if r.bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+r.bearer)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) login(t *testing.T, rememberMe bool) (TokenResponse, *http.Cookie) {
	t.Helper()

	body := `{"username":"` + testUser + `","password":"` + testutils.TestPasswords.Valid + `"`
	if rememberMe {
		body += `,"rememberMe":true`
	}
	body += `}`

	rec := f.do(t, request{method: http.MethodPost, path: "/auth/login", body: body})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp, sessionCookieFrom(t, rec)
}

func sessionCookieFrom(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()

	for _, c := range rec.Result().Cookies() {
		if c.Name == "refreshToken" {
			return c
		}
	}
	t.Fatalf("no session cookie in response")
	return nil
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) authgate.ErrorBody {
	t.Helper()

	var body authgate.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestLogin(t *testing.T) {
	t.Run("issues access token and session cookie", func(t *testing.T) {
		f := newFixture(t, config.RotateAlways)

		resp, cookie := f.login(t, false)

		assert.NotEmpty(t, resp.AccessToken)
		assert.Equal(t, "Bearer", resp.TokenType)
		assert.Equal(t, int64(900), resp.ExpiresIn)
		assert.Equal(t, int64(12*3600), resp.SessionExpiresIn)
		assert.Equal(t, testUser, resp.User.Subject)

		assert.NotEmpty(t, cookie.Value)
		assert.True(t, cookie.HttpOnly)
		assert.True(t, cookie.Secure)
		assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
		assert.Equal(t, "/auth", cookie.Path)
		assert.Equal(t, 12*3600, cookie.MaxAge)
	})

	t.Run("remember me uses the long ttl", func(t *testing.T) {
		f := newFixture(t, config.RotateAlways)

		resp, cookie := f.login(t, true)

		assert.Equal(t, 360*3600, cookie.MaxAge)
		assert.Equal(t, int64(360*3600), resp.SessionExpiresIn)
	})

	t.Run("records client metadata", func(t *testing.T) {
		f := newFixture(t, config.RotateAlways)

		body := `{"username":"` + testUser + `","password":"` + testutils.TestPasswords.Valid + `"}`
		rec := f.do(t, request{
			method: http.MethodPost,
			path:   "/auth/login",
			body:   body,
			headers: map[string]string{
				echo.HeaderXForwardedFor: "203.0.113.7, 10.0.0.1",
				ClientMACHeader:          "00:1A:2B:3C:4D:5E",
				"User-Agent":             "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			},
		})
		require.Equal(t, http.StatusOK, rec.Code)

		active, err := f.sessions.ListActive(context.Background(), testUser)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, "203.0.113.7", active[0].IPAddress)
		assert.Equal(t, "00:1A:2B:3C:4D:5E", active[0].MACAddress)
		assert.Contains(t, active[0].Device, "Chrome")
	})

	t.Run("failures are indistinguishable", func(t *testing.T) {
		f := newFixture(t, config.RotateAlways)
		ctx := context.Background()
		_, err := f.accounts.Register(ctx, identity.RegisterInput{
			Username: "disabled", Password: testutils.TestPasswords.Valid, Name: "Dee", Email: "d@example.com",
		})
		require.NoError(t, err)
		require.NoError(t, f.accounts.SetEnabled(ctx, "disabled", false))

		bodies := []string{
			`{"username":"` + testUser + `","password":"` + testutils.TestPasswords.Wrong + `"}`,
			`{"username":"nobody","password":"` + testutils.TestPasswords.Valid + `"}`,
			`{"username":"disabled","password":"` + testutils.TestPasswords.Valid + `"}`,
			`{"username":"","password":""}`,
		}

		var messages []string
		for _, body := range bodies {
			rec := f.do(t, request{method: http.MethodPost, path: "/auth/login", body: body})
			require.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Empty(t, rec.Result().Cookies())
			messages = append(messages, decodeError(t, rec).Message)
		}
		for _, m := range messages[1:] {
			assert.Equal(t, messages[0], m)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		f := newFixture(t, config.RotateAlways)

		rec := f.do(t, request{method: http.MethodPost, path: "/auth/login", body: `{"username":`})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRefresh(t *testing.T) {
	t.Run("rotates the session when rotation is always", func(t *testing.T) {
		f := newFixture(t, config.RotateAlways)
		_, cookie := f.login(t, true)

		rec := f.do(t, request{method: http.MethodPost, path: "/auth/refresh", cookie: cookie.Value})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp TokenResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.AccessToken)
		assert.Equal(t, testUser, resp.User.Subject)

		rotated := sessionCookieFrom(t, rec)
		assert.NotEqual(t, cookie.Value, rotated.Value)
		assert.Equal(t, 360*3600, rotated.MaxAge, "rotation keeps the original ttl span")

		replay := f.do(t, request{method: http.MethodPost, path: "/auth/refresh", cookie: cookie.Value})
		assert.Equal(t, http.StatusUnauthorized, replay.Code)

		again := f.do(t, request{method: http.MethodPost, path: "/auth/refresh", cookie: rotated.Value})
		assert.Equal(t, http.StatusOK, again.Code)
	})

	t.Run("keeps the session when rotation is never", func(t *testing.T) {
		f := newFixture(t, config.RotateNever)
		_, cookie := f.login(t, false)
		f.clock.Advance(time.Hour)

		rec := f.do(t, request{method: http.MethodPost, path: "/auth/refresh", cookie: cookie.Value})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Result().Cookies())

		var resp TokenResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, int64(11*3600), resp.SessionExpiresIn)

		again := f.do(t, request{method: http.MethodPost, path: "/auth/refresh", cookie: cookie.Value})
		assert.Equal(t, http.StatusOK, again.Code)
	})

	t.Run("missing cookie", func(t *testing.T) {
		f := newFixture(t, config.RotateAlways)

		rec := f.do(t, request{method: http.MethodPost, path: "/auth/refresh"})

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, http.StatusUnauthorized, decodeError(t, rec).Status)
	})

	t.Run("expired session clears the cookie", func(t *testing.T) {
		f := newFixture(t, config.RotateAlways)
		_, cookie := f.login(t, false)
		f.clock.Advance(12*time.Hour + time.Second)

		rec := f.do(t, request{method: http.MethodPost, path: "/auth/refresh", cookie: cookie.Value})

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		cleared := sessionCookieFrom(t, rec)
		assert.Empty(t, cleared.Value)
		assert.Equal(t, -1, cleared.MaxAge)
	})

	t.Run("disabled identity is rejected", func(t *testing.T) {
		f := newFixture(t, config.RotateNever)
		_, cookie := f.login(t, false)
		require.NoError(t, f.accounts.SetEnabled(context.Background(), testUser, false))

		rec := f.do(t, request{method: http.MethodPost, path: "/auth/refresh", cookie: cookie.Value})

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, -1, sessionCookieFrom(t, rec).MaxAge)

		require.NoError(t, f.accounts.SetEnabled(context.Background(), testUser, true))
		again := f.do(t, request{method: http.MethodPost, path: "/auth/refresh", cookie: cookie.Value})
		assert.Equal(t, http.StatusUnauthorized, again.Code)
	})
}

func TestLogout(t *testing.T) {
	t.Run("revokes the session and clears the cookie", func(t *testing.T) {
		f := newFixture(t, config.RotateAlways)
		_, cookie := f.login(t, false)

		rec := f.do(t, request{method: http.MethodPost, path: "/auth/logout", cookie: cookie.Value})

		assert.Equal(t, http.StatusNoContent, rec.Code)
		cleared := sessionCookieFrom(t, rec)
		assert.Equal(t, -1, cleared.MaxAge)
		assert.True(t, cleared.HttpOnly)
		assert.Contains(t, rec.Header().Get(echo.HeaderSetCookie), "Max-Age=0")

		refresh := f.do(t, request{method: http.MethodPost, path: "/auth/refresh", cookie: cookie.Value})
		assert.Equal(t, http.StatusUnauthorized, refresh.Code)
	})

	t.Run("is idempotent", func(t *testing.T) {
		f := newFixture(t, config.RotateAlways)
		_, cookie := f.login(t, false)

		for i := 0; i < 2; i++ {
			rec := f.do(t, request{method: http.MethodPost, path: "/auth/logout", cookie: cookie.Value})
			assert.Equal(t, http.StatusNoContent, rec.Code)
		}

		rec := f.do(t, request{method: http.MethodPost, path: "/auth/logout", cookie: "never-issued"})
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = f.do(t, request{method: http.MethodPost, path: "/auth/logout"})
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func TestLogoutAll(t *testing.T) {
	f := newFixture(t, config.RotateAlways)
	first, firstCookie := f.login(t, false)
	_, secondCookie := f.login(t, true)

	unauthenticated := f.do(t, request{method: http.MethodPost, path: "/auth/logout-all"})
	require.Equal(t, http.StatusUnauthorized, unauthenticated.Code)

	rec := f.do(t, request{method: http.MethodPost, path: "/auth/logout-all", bearer: first.AccessToken})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp LogoutAllResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(2), resp.Revoked)

	for _, c := range []*http.Cookie{firstCookie, secondCookie} {
		refresh := f.do(t, request{method: http.MethodPost, path: "/auth/refresh", cookie: c.Value})
		assert.Equal(t, http.StatusUnauthorized, refresh.Code)
	}
}

func TestMe(t *testing.T) {
	f := newFixture(t, config.RotateAlways)
	ctx := context.Background()

	require.NoError(t, f.db.Create(&identity.Permission{Key: "medications.read", Name: "Read medications"}).Error)
	require.NoError(t, f.db.Create(&identity.Permission{Key: "labs.write", Name: "Write laboratories"}).Error)
	var labs identity.Permission
	require.NoError(t, f.db.Where("name = ?", "Write laboratories").First(&labs).Error)
	require.NoError(t, f.db.Create(&identity.Group{Name: "lab-staff", Permissions: []identity.Permission{labs}}).Error)
	require.NoError(t, f.accounts.Grant(ctx, testUser, "medications.read"))
	require.NoError(t, f.accounts.AddToGroup(ctx, testUser, "lab-staff"))

	login, _ := f.login(t, false)

	rec := f.do(t, request{method: http.MethodGet, path: "/auth/me", bearer: login.AccessToken})
	require.Equal(t, http.StatusOK, rec.Code)

	var me UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, testUser, me.Subject)
	assert.Equal(t, "jdoe@example.com", me.Email)
	assert.Equal(t, []string{"labs.write", "medications.read"}, me.Permissions)
	assert.False(t, me.IsAdmin)

	missing := f.do(t, request{method: http.MethodGet, path: "/auth/me"})
	assert.Equal(t, http.StatusUnauthorized, missing.Code)

	garbage := f.do(t, request{method: http.MethodGet, path: "/auth/me", bearer: "not-a-token"})
	assert.Equal(t, http.StatusUnauthorized, garbage.Code)
	assert.Equal(t, decodeError(t, missing).Message, decodeError(t, garbage).Message)
}

func TestSessions(t *testing.T) {
	f := newFixture(t, config.RotateAlways)
	login, _ := f.login(t, false)
	f.clock.Advance(time.Minute)
	f.login(t, true)

	rec := f.do(t, request{method: http.MethodGet, path: "/auth/sessions", bearer: login.AccessToken})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SessionListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Sessions, 2)
	assert.Equal(t, int64(360*3600), resp.Sessions[0].RemainingSeconds, "most recently used first")
	assert.Equal(t, int64(12*3600-60), resp.Sessions[1].RemainingSeconds)
	assert.NotContains(t, rec.Body.String(), "token")
}

func TestRegister(t *testing.T) {
	f := newFixture(t, config.RotateAlways)

	t.Run("creates an account", func(t *testing.T) {
		rec := f.do(t, request{
			method: http.MethodPost,
			path:   "/auth/register",
			body:   `{"username":"asmith","password":"Password123!","name":"Ann Smith","email":"ann@example.com"}`,
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var resp RegisterResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "asmith", resp.Username)
		assert.NotZero(t, resp.ID)
		assert.NotContains(t, rec.Body.String(), "Password123!")
	})

	t.Run("duplicate username", func(t *testing.T) {
		rec := f.do(t, request{
			method: http.MethodPost,
			path:   "/auth/register",
			body:   `{"username":"` + testUser + `","password":"Password123!","name":"X","email":"x@example.com"}`,
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("invalid input", func(t *testing.T) {
		rec := f.do(t, request{
			method: http.MethodPost,
			path:   "/auth/register",
			body:   `{"username":"bob","password":"Password123!","name":"Bob","email":"not-an-email"}`,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestDescribe(t *testing.T) {
	f := newFixture(t, config.RotateAlways)
	doc := openapi.New("sessiongate", "test")

	f.handler.Describe(doc, "/auth")

	spec := doc.Spec()
	for _, path := range []string{"/auth/login", "/auth/refresh", "/auth/logout", "/auth/logout-all", "/auth/register"} {
		item := spec.Paths.Find(path)
		require.NotNil(t, item, path)
		assert.NotNil(t, item.Post, path)
	}
	for _, path := range []string{"/auth/me", "/auth/sessions"} {
		item := spec.Paths.Find(path)
		require.NotNil(t, item, path)
		assert.NotNil(t, item.Get, path)
	}
	assert.Contains(t, spec.Components.Schemas, "TokenResponse")
}

func TestSameSiteMode(t *testing.T) {
	assert.Equal(t, http.SameSiteStrictMode, SameSiteMode("strict"))
	assert.Equal(t, http.SameSiteNoneMode, SameSiteMode("none"))
	assert.Equal(t, http.SameSiteLaxMode, SameSiteMode("lax"))
	assert.Equal(t, http.SameSiteLaxMode, SameSiteMode(""))
}
