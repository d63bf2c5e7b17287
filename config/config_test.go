package config

import (
	"encoding/base64"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/sessiongate/services/autherror"
)

var (
	testSigningKey = base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))
	testPepper     = strings.Repeat("p", 48)
)

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnvVars(t)

	os.Setenv("JWT_SIGNING_KEY", testSigningKey)
	os.Setenv("SESSION_PEPPER", testPepper)

	var cfg Config
	err := LoadConfig(&cfg)

	require.NoError(t, err)

	assert.Equal(t, "sessiongate", cfg.App.Name)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessTTL)
	assert.Equal(t, "sessiongate", cfg.JWT.Issuer)
	assert.Equal(t, 12*time.Hour, cfg.Session.TTL)
	assert.Equal(t, 15*24*time.Hour, cfg.Session.RememberMeTTL)
	assert.Equal(t, 64, cfg.Session.TokenBytes)
	assert.Equal(t, RotateAlways, cfg.Session.RotationMode)
	assert.Equal(t, "refreshToken", cfg.Session.CookieName)
	assert.True(t, cfg.Session.CookieSecure)
	assert.Contains(t, cfg.Auth.PublicPaths, "/auth/login")
	assert.Contains(t, cfg.Auth.PublicPaths, "/auth/refresh")
	assert.Equal(t, CountFailures, cfg.RateLimit.CountMode)
}

func TestLoadConfig_EnvironmentVariables(t *testing.T) {
	clearEnvVars(t)

	os.Setenv("JWT_SIGNING_KEY", testSigningKey)
	os.Setenv("SESSION_PEPPER", testPepper)
	os.Setenv("SERVER_PORT", "9000")
	os.Setenv("DATABASE_DRIVER", "postgres")
	os.Setenv("JWT_ACCESS_TTL", "5m")
	os.Setenv("SESSION_TTL", "1h")
	os.Setenv("SESSION_REMEMBER_ME_TTL", "48h")
	os.Setenv("SESSION_ROTATION_MODE", "never")
	os.Setenv("AUTH_PUBLIC_PATHS", "/login,/public")
	os.Setenv("RATE_LIMIT_STORE", "redis")
	os.Setenv("SERVER_TRUSTED_PROXIES", "10.0.0.0/8,192.168.1.1")

	var cfg Config
	err := LoadConfig(&cfg)

	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 5*time.Minute, cfg.JWT.AccessTTL)
	assert.Equal(t, time.Hour, cfg.Session.TTL)
	assert.Equal(t, 48*time.Hour, cfg.Session.RememberMeTTL)
	assert.Equal(t, RotateNever, cfg.Session.RotationMode)
	assert.Equal(t, []string{"/login", "/public"}, cfg.Auth.PublicPaths)
	assert.Equal(t, "redis", cfg.RateLimit.Store)
	assert.Equal(t, []string{"10.0.0.0/8", "192.168.1.1"}, cfg.Server.TrustedProxies)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			JWT: JWTConfig{SigningKey: testSigningKey, AccessTTL: 15 * time.Minute},
			Session: SessionConfig{
				Pepper:        testPepper,
				TTL:           12 * time.Hour,
				RememberMeTTL: 360 * time.Hour,
				RotationMode:  RotateAlways,
			},
		}
	}

	t.Run("valid configuration", func(t *testing.T) {
		cfg := valid()
		assert.NoError(t, cfg.Validate())
	})

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing signing key", func(c *Config) { c.JWT.SigningKey = "" }},
		{"undecodable signing key", func(c *Config) { c.JWT.SigningKey = "not base64!!" }},
		{"short signing key", func(c *Config) { c.JWT.SigningKey = base64.StdEncoding.EncodeToString([]byte("short")) }},
		{"missing pepper", func(c *Config) { c.Session.Pepper = "  " }},
		{"short pepper", func(c *Config) { c.Session.Pepper = "short" }},
		{"non-positive access ttl", func(c *Config) { c.JWT.AccessTTL = 0 }},
		{"non-positive session ttl", func(c *Config) { c.Session.TTL = 0 }},
		{"remember me not longer than session", func(c *Config) { c.Session.RememberMeTTL = c.Session.TTL }},
		{"unknown rotation mode", func(c *Config) { c.Session.RotationMode = "sometimes" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)

			err := cfg.Validate()

			require.Error(t, err)
			assert.ErrorIs(t, err, autherror.ErrConfiguration)
		})
	}
}

func TestJWTConfig_DecodedSigningKey(t *testing.T) {
	key, err := JWTConfig{SigningKey: testSigningKey}.DecodedSigningKey()

	require.NoError(t, err)
	assert.Equal(t, []byte("0123456789abcdef0123456789abcdef"), key)
}

func TestLoadConfig_MissingKeyMaterial(t *testing.T) {
	clearEnvVars(t)

	var cfg Config
	err := LoadConfig(&cfg)

	require.Error(t, err)
	assert.True(t, autherror.IsKind(err, autherror.KindConfiguration))
}

func clearEnvVars(t *testing.T) {
	t.Helper()

	envVars := []string{
		"APP_NAME", "APP_VERSION",
		"SERVER_PORT", "SERVER_HOST", "SERVER_SHUTDOWN_TIMEOUT", "SERVER_TRUSTED_PROXIES",
		"LOG_LEVEL", "LOG_FORMAT", "LOG_OUTPUT",
		"DATABASE_DRIVER", "DATABASE_DSN", "DATABASE_AUTO_MIGRATE",
		"JWT_SIGNING_KEY", "JWT_ACCESS_TTL", "JWT_ISSUER",
		"SESSION_PEPPER", "SESSION_TTL", "SESSION_REMEMBER_ME_TTL", "SESSION_TOKEN_BYTES",
		"SESSION_ROTATION_MODE", "SESSION_CLEANUP_INTERVAL", "SESSION_COOKIE_NAME",
		"SESSION_COOKIE_PATH", "SESSION_COOKIE_SECURE", "SESSION_COOKIE_SAME_SITE",
		"AUTH_PUBLIC_PATHS",
		"RATE_LIMIT_ENABLED", "RATE_LIMIT_STORE", "RATE_LIMIT_RATE", "RATE_LIMIT_PERIOD",
		"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
	}

	for _, envVar := range envVars {
		os.Unsetenv(envVar)
	}

	t.Cleanup(func() {
		for _, envVar := range envVars {
			os.Unsetenv(envVar)
		}
	})
}
