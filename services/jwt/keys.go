package jwt

import (
	"github.com/tech-arch1tect/sessiongate/config"
	"github.com/tech-arch1tect/sessiongate/services/autherror"
)

// KeyStore supplies the HMAC key used to sign and verify access tokens.
type KeyStore interface {
	SigningKey() ([]byte, error)
}

type StaticKeyStore struct {
	key []byte
}

func NewStaticKeyStore(key []byte) (*StaticKeyStore, error) {
	if len(key) < 32 {
		return nil, autherror.New(autherror.KindConfiguration, "access token signing key must be at least 32 bytes")
	}
	return &StaticKeyStore{key: append([]byte(nil), key...)}, nil
}

// KeyStoreFromConfig decodes JWT_SIGNING_KEY.
func KeyStoreFromConfig(cfg *config.Config) (*StaticKeyStore, error) {
	key, err := cfg.JWT.DecodedSigningKey()
	if err != nil {
		return nil, err
	}
	return NewStaticKeyStore(key)
}

func (s *StaticKeyStore) SigningKey() ([]byte, error) {
	return s.key, nil
}
