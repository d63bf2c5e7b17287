package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/tech-arch1tect/sessiongate/services/logging"
	"go.uber.org/zap"
)

// ErrInvalidToken is the only error VerifyAccessToken returns. The concrete reason is logged.
var ErrInvalidToken = errors.New("invalid access token")

const TokenTypeAccess = "access"

type Claims struct {
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

type AccessToken struct {
	Token     string
	JTI       string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type Config struct {
	AccessTTL time.Duration
	Issuer    string
}

type Service struct {
	keys   KeyStore
	config Config
	logger *logging.Service
	now    func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(keys KeyStore, cfg Config, logger *logging.Service, opts ...Option) *Service {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}

	s := &Service{
		keys:   keys,
		config: cfg,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) AccessTTLSeconds() int64 {
	return int64(s.config.AccessTTL / time.Second)
}

func (s *Service) IssueAccessToken(subject string) (*AccessToken, error) {
	if subject == "" {
		return nil, errors.New("subject is required")
	}

	key, err := s.keys.SigningKey()
	if err != nil {
		return nil, fmt.Errorf("failed to load signing key: %w", err)
	}

	now := s.now().Truncate(time.Second)
	expiresAt := now.Add(s.config.AccessTTL)
	jti := uuid.NewString()

	claims := Claims{
		TokenType: TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    s.config.Issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		s.logger.Error("failed to sign access token", zap.Error(err))
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	return &AccessToken{
		Token:     signed,
		JTI:       jti,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *Service) VerifyAccessToken(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	key, err := s.keys.SigningKey()
	if err != nil {
		s.logger.Error("failed to load signing key", zap.Error(err))
		return nil, ErrInvalidToken
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	}
	if s.config.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(s.config.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return key, nil
	}, parserOpts...)
	if err != nil {
		s.logger.Debug("access token rejected", zap.String("reason", rejectionReason(err)), zap.Error(err))
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != TokenTypeAccess {
		s.logger.Debug("access token rejected", zap.String("reason", "wrong_token_type"))
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		s.logger.Debug("access token rejected", zap.String("reason", "missing_subject"))
		return nil, ErrInvalidToken
	}

	return claims, nil
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "expired"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "malformed"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "bad_signature"
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return "unverifiable"
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return "wrong_issuer"
	case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return "not_yet_valid"
	default:
		return "invalid"
	}
}
