package testutils

import (
	"encoding/base64"
	"time"

	"github.com/tech-arch1tect/sessiongate/config"
)

const (
	TestSigningKey = "test-signing-key-32-bytes-long!!"
	TestPepper     = "test-pepper-for-session-digests-0123456789"
)

func GetTestConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name:    "sessiongate-test",
			Version: "test",
		},
		Server: config.ServerConfig{
			Host:            "localhost",
			Port:            "0",
			ShutdownTimeout: time.Second,
		},
		Log: config.LogConfig{
			Level:  "error",
			Format: "json",
			Output: "stdout",
		},
		Database: config.DatabaseConfig{
			Driver: "sqlite",
			DSN:    ":memory:",
		},
		JWT: config.JWTConfig{
			SigningKey: base64.StdEncoding.EncodeToString([]byte(TestSigningKey)),
			AccessTTL:  15 * time.Minute,
			Issuer:     "sessiongate-test",
		},
		Session: config.SessionConfig{
			Pepper:         TestPepper,
			TTL:            12 * time.Hour,
			RememberMeTTL:  15 * 24 * time.Hour,
			TokenBytes:     64,
			RotationMode:   config.RotateAlways,
			CookieName:     "refreshToken",
			CookiePath:     "/auth",
			CookieSecure:   false,
			CookieSameSite: "lax",
		},
		Auth: config.AuthConfig{
			PublicPaths:       []string{"/auth/login", "/auth/register", "/auth/refresh", "/auth/logout", "/public"},
			Argon2Memory:      8 * 1024,
			Argon2Iterations:  1,
			Argon2Parallelism: 1,
		},
		RateLimit: config.RateLimitConfig{
			Enabled:   false,
			Store:     "memory",
			Rate:      5,
			Period:    time.Minute,
			CountMode: config.CountFailures,
		},
	}
}

var TestPasswords = struct {
	Valid string
	Wrong string
}{
	Valid: "Password123!",
	Wrong: "NotThePassword1",
}
