package config

import (
	"encoding/base64"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/tech-arch1tect/sessiongate/services/autherror"
)

type Config struct {
	App       AppConfig       `envPrefix:"APP_"`
	Server    ServerConfig    `envPrefix:"SERVER_"`
	Log       LogConfig       `envPrefix:"LOG_"`
	Database  DatabaseConfig  `envPrefix:"DATABASE_"`
	JWT       JWTConfig       `envPrefix:"JWT_"`
	Session   SessionConfig   `envPrefix:"SESSION_"`
	Auth      AuthConfig      `envPrefix:"AUTH_"`
	RateLimit RateLimitConfig `envPrefix:"RATE_LIMIT_"`
	Redis     RedisConfig     `envPrefix:"REDIS_"`
}

type AppConfig struct {
	Name    string `env:"NAME" envDefault:"sessiongate"`
	Version string `env:"VERSION" envDefault:"1.0.0"`
}

type ServerConfig struct {
	Port            string        `env:"PORT" envDefault:"8080"`
	Host            string        `env:"HOST" envDefault:"localhost"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	TrustedProxies  []string      `env:"TRUSTED_PROXIES" envSeparator:","`
}

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
	Output string `env:"OUTPUT" envDefault:"stdout"`
}

type DatabaseConfig struct {
	Driver      string `env:"DRIVER" envDefault:"sqlite"`
	DSN         string `env:"DSN" envDefault:"sessiongate.db"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"true"`
}

// JWTConfig configures access token signing. SigningKey is base64 encoded.
type JWTConfig struct {
	SigningKey string        `env:"SIGNING_KEY"`
	AccessTTL  time.Duration `env:"ACCESS_TTL" envDefault:"15m"`
	Issuer     string        `env:"ISSUER" envDefault:"sessiongate"`
}

type RotationMode string

const (
	RotateAlways RotationMode = "always"
	RotateNever  RotationMode = "never"
)

// SessionConfig configures the opaque refresh sessions carried in the session cookie.
type SessionConfig struct {
	Pepper          string        `env:"PEPPER"`
	TTL             time.Duration `env:"TTL" envDefault:"12h"`
	RememberMeTTL   time.Duration `env:"REMEMBER_ME_TTL" envDefault:"360h"`
	TokenBytes      int           `env:"TOKEN_BYTES" envDefault:"64"`
	RotationMode    RotationMode  `env:"ROTATION_MODE" envDefault:"always"`
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" envDefault:"1h"`
	CookieName      string        `env:"COOKIE_NAME" envDefault:"refreshToken"`
	CookiePath      string        `env:"COOKIE_PATH" envDefault:"/auth"`
	CookieSecure    bool          `env:"COOKIE_SECURE" envDefault:"true"`
	CookieSameSite  string        `env:"COOKIE_SAME_SITE" envDefault:"strict"`
}

type AuthConfig struct {
	PublicPaths       []string `env:"PUBLIC_PATHS" envSeparator:"," envDefault:"/auth/login,/auth/register,/auth/refresh,/auth/logout,/public,/metrics,/openapi.json,/openapi.yaml,/healthz"`
	Argon2Memory      uint32   `env:"ARGON2_MEMORY" envDefault:"65536"`
	Argon2Iterations  uint32   `env:"ARGON2_ITERATIONS" envDefault:"3"`
	Argon2Parallelism uint8    `env:"ARGON2_PARALLELISM" envDefault:"2"`
}

type CountingMode string

const (
	CountAll      CountingMode = "all"
	CountFailures CountingMode = "failures"
	CountSuccess  CountingMode = "success"
)

type RateLimitConfig struct {
	Enabled   bool          `env:"ENABLED" envDefault:"true"`
	Store     string        `env:"STORE" envDefault:"memory"`
	Rate      int           `env:"RATE" envDefault:"10"`
	Period    time.Duration `env:"PERIOD" envDefault:"1m"`
	CountMode CountingMode  `env:"COUNT_MODE" envDefault:"failures"`
}

type RedisConfig struct {
	Addr     string `env:"ADDR" envDefault:"localhost:6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

const (
	minSigningKeyBytes = 32
	minPepperBytes     = 32
)

func LoadConfig(cfg *Config) error {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	if err := env.Parse(cfg); err != nil {
		return err
	}

	return cfg.Validate()
}

// Validate reports missing or unusable key material as a configuration error.
// Startup must abort when it fails.
func (c *Config) Validate() error {
	if _, err := c.JWT.DecodedSigningKey(); err != nil {
		return err
	}

	if strings.TrimSpace(c.Session.Pepper) == "" {
		return autherror.New(autherror.KindConfiguration, "SESSION_PEPPER is required")
	}
	if len(c.Session.Pepper) < minPepperBytes {
		return autherror.New(autherror.KindConfiguration,
			fmt.Sprintf("SESSION_PEPPER must be at least %d bytes", minPepperBytes))
	}

	if c.JWT.AccessTTL <= 0 {
		return autherror.New(autherror.KindConfiguration, "JWT_ACCESS_TTL must be positive")
	}
	if c.Session.TTL <= 0 {
		return autherror.New(autherror.KindConfiguration, "SESSION_TTL must be positive")
	}
	if c.Session.RememberMeTTL <= c.Session.TTL {
		return autherror.New(autherror.KindConfiguration, "SESSION_REMEMBER_ME_TTL must exceed SESSION_TTL")
	}

	switch c.Session.RotationMode {
	case RotateAlways, RotateNever:
	default:
		return autherror.New(autherror.KindConfiguration,
			fmt.Sprintf("unsupported SESSION_ROTATION_MODE: %s", c.Session.RotationMode))
	}

	return nil
}

func (j JWTConfig) DecodedSigningKey() ([]byte, error) {
	raw := strings.TrimSpace(j.SigningKey)
	if raw == "" {
		return nil, autherror.New(autherror.KindConfiguration, "JWT_SIGNING_KEY is required")
	}

	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, autherror.Wrap(autherror.KindConfiguration, "JWT_SIGNING_KEY is not valid base64", err)
	}
	if len(key) < minSigningKeyBytes {
		return nil, autherror.New(autherror.KindConfiguration,
			fmt.Sprintf("JWT_SIGNING_KEY must decode to at least %d bytes", minSigningKeyBytes))
	}

	return key, nil
}
