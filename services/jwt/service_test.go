package jwt

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/sessiongate/services/autherror"
	"github.com/tech-arch1tect/sessiongate/testutils"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	keys, err := NewStaticKeyStore(testKey)
	require.NoError(t, err)
	return NewService(keys, Config{AccessTTL: 15 * time.Minute, Issuer: "sessiongate"}, nil, opts...)
}

func signWith(t *testing.T, method jwt.SigningMethod, key any, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func validClaims(now time.Time) Claims {
	return Claims{
		TokenType: TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			Issuer:    "sessiongate",
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		},
	}
}

func TestNewStaticKeyStore(t *testing.T) {
	t.Run("short key", func(t *testing.T) {
		_, err := NewStaticKeyStore([]byte("short"))
		assert.ErrorIs(t, err, autherror.ErrConfiguration)
	})

	t.Run("from config", func(t *testing.T) {
		keys, err := KeyStoreFromConfig(testutils.GetTestConfig())
		require.NoError(t, err)

		key, err := keys.SigningKey()
		require.NoError(t, err)
		assert.Len(t, key, 32)
	})
}

func TestService_IssueAccessToken(t *testing.T) {
	service := newTestService(t)

	t.Run("claims", func(t *testing.T) {
		issued, err := service.IssueAccessToken("alice")
		require.NoError(t, err)
		assert.NotEmpty(t, issued.Token)
		assert.NotEmpty(t, issued.JTI)
		assert.Equal(t, 15*time.Minute, issued.ExpiresAt.Sub(issued.IssuedAt))

		token, err := jwt.ParseWithClaims(issued.Token, &Claims{}, func(*jwt.Token) (any, error) {
			return testKey, nil
		})
		require.NoError(t, err)

		claims := token.Claims.(*Claims)
		assert.Equal(t, "HS256", token.Method.Alg())
		assert.Equal(t, "alice", claims.Subject)
		assert.Equal(t, TokenTypeAccess, claims.TokenType)
		assert.Equal(t, "sessiongate", claims.Issuer)
		assert.Equal(t, issued.JTI, claims.ID)
		assert.NotNil(t, claims.NotBefore)
	})

	t.Run("unique jti", func(t *testing.T) {
		a, err := service.IssueAccessToken("alice")
		require.NoError(t, err)
		b, err := service.IssueAccessToken("alice")
		require.NoError(t, err)
		assert.NotEqual(t, a.JTI, b.JTI)
	})

	t.Run("empty subject", func(t *testing.T) {
		_, err := service.IssueAccessToken("")
		assert.Error(t, err)
	})

	t.Run("ttl seconds", func(t *testing.T) {
		assert.Equal(t, int64(900), service.AccessTTLSeconds())
	})
}

func TestService_VerifyAccessToken(t *testing.T) {
	service := newTestService(t)
	now := time.Now()

	t.Run("round trip", func(t *testing.T) {
		issued, err := service.IssueAccessToken("alice")
		require.NoError(t, err)

		claims, err := service.VerifyAccessToken(issued.Token)
		require.NoError(t, err)
		assert.Equal(t, "alice", claims.Subject)
	})

	otherKey := []byte(strings.Repeat("x", 32))
	wrongType := validClaims(now)
	wrongType.TokenType = "refresh"
	wrongIssuer := validClaims(now)
	wrongIssuer.Issuer = "someone-else"
	expired := validClaims(now.Add(-time.Hour))
	noSubject := validClaims(now)
	noSubject.Subject = ""

	issued, err := service.IssueAccessToken("alice")
	require.NoError(t, err)
	parts := strings.Split(issued.Token, ".")
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	cases := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"malformed", "not-a-jwt"},
		{"tampered signature", tampered},
		{"wrong key", signWith(t, jwt.SigningMethodHS256, otherKey, validClaims(now))},
		{"none algorithm", signWith(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, validClaims(now))},
		{"HS512", signWith(t, jwt.SigningMethodHS512, testKey, validClaims(now))},
		{"wrong token type", signWith(t, jwt.SigningMethodHS256, testKey, wrongType)},
		{"wrong issuer", signWith(t, jwt.SigningMethodHS256, testKey, wrongIssuer)},
		{"expired", signWith(t, jwt.SigningMethodHS256, testKey, expired)},
		{"missing subject", signWith(t, jwt.SigningMethodHS256, testKey, noSubject)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			claims, err := service.VerifyAccessToken(tc.token)

			assert.Nil(t, claims)
			assert.Equal(t, ErrInvalidToken, err)
		})
	}
}

func TestService_VerifyAccessToken_Clock(t *testing.T) {
	current := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	service := newTestService(t, WithClock(func() time.Time { return current }))

	issued, err := service.IssueAccessToken("alice")
	require.NoError(t, err)

	current = current.Add(14 * time.Minute)
	_, err = service.VerifyAccessToken(issued.Token)
	assert.NoError(t, err)

	current = current.Add(2 * time.Minute)
	_, err = service.VerifyAccessToken(issued.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
