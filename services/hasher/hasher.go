// Package hasher generates opaque session tokens and derives the keyed digest that is the only
// form in which a token is ever persisted.
package hasher

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/tech-arch1tect/sessiongate/services/autherror"
)

const (
	DefaultTokenBytes = 64
	MinPepperBytes    = 32
)

type SecretHasher interface {
	GenerateRawToken() (string, error)
	Digest(raw string) string
}

type Hasher struct {
	pepper     []byte
	tokenBytes int
	random     io.Reader
}

type Option func(*Hasher)

func WithTokenBytes(n int) Option {
	return func(h *Hasher) {
		if n > 0 {
			h.tokenBytes = n
		}
	}
}

// WithRandom replaces crypto/rand as the entropy source.
func WithRandom(r io.Reader) Option {
	return func(h *Hasher) {
		h.random = r
	}
}

func New(pepper []byte, opts ...Option) (*Hasher, error) {
	if len(pepper) == 0 {
		return nil, autherror.New(autherror.KindConfiguration, "session pepper is not configured")
	}
	if len(pepper) < MinPepperBytes {
		return nil, autherror.New(autherror.KindConfiguration,
			fmt.Sprintf("session pepper must be at least %d bytes", MinPepperBytes))
	}

	h := &Hasher{
		pepper:     append([]byte(nil), pepper...),
		tokenBytes: DefaultTokenBytes,
		random:     rand.Reader,
	}
	for _, opt := range opts {
		opt(h)
	}

	return h, nil
}

func (h *Hasher) GenerateRawToken() (string, error) {
	buf := make([]byte, h.tokenBytes)
	if _, err := io.ReadFull(h.random, buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func (h *Hasher) Digest(raw string) string {
	mac := hmac.New(sha512.New, h.pepper)
	mac.Write([]byte(raw))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
