package session

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound       = errors.New("session not found")
	ErrDigestConflict = errors.New("session token digest already exists")
)

// Store persists sessions. Implementations must enforce uniqueness of TokenDigest and apply
// MarkRevoked and Touch as conditional single-row updates.
type Store interface {
	Create(ctx context.Context, s *Session) error
	FindByDigestAndNotRevoked(ctx context.Context, digest string) (*Session, error)
	FindByDigest(ctx context.Context, digest string) (*Session, error)
	ListActiveBySubject(ctx context.Context, subject string, now time.Time) ([]Session, error)
	// MarkRevoked reports whether this call flipped the session to revoked.
	MarkRevoked(ctx context.Context, id string, at time.Time) (bool, error)
	// Touch moves LastUsedAt forward only.
	Touch(ctx context.Context, id string, at time.Time) error
	DeleteBySubject(ctx context.Context, subject string) (int64, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
