package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Create(ctx context.Context, sess *Session) error {
	if err := s.db.WithContext(ctx).Create(sess).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDigestConflict
		}
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (s *GormStore) FindByDigestAndNotRevoked(ctx context.Context, digest string) (*Session, error) {
	return s.first(ctx, "token_digest = ? AND revoked = ?", digest, false)
}

func (s *GormStore) FindByDigest(ctx context.Context, digest string) (*Session, error) {
	return s.first(ctx, "token_digest = ?", digest)
}

func (s *GormStore) first(ctx context.Context, query string, args ...any) (*Session, error) {
	var sess Session
	err := s.db.WithContext(ctx).Where(query, args...).First(&sess).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &sess, nil
}

func (s *GormStore) ListActiveBySubject(ctx context.Context, subject string, now time.Time) ([]Session, error) {
	var sessions []Session
	err := s.db.WithContext(ctx).
		Where("subject = ? AND revoked = ? AND expires_at >= ?", subject, false, now.UTC()).
		Order("last_used_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

func (s *GormStore) MarkRevoked(ctx context.Context, id string, at time.Time) (bool, error) {
	at = at.UTC()
	result := s.db.WithContext(ctx).Model(&Session{}).
		Where("id = ? AND revoked = ?", id, false).
		Updates(map[string]any{"revoked": true, "revoked_at": at})
	if result.Error != nil {
		return false, fmt.Errorf("failed to revoke session: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (s *GormStore) Touch(ctx context.Context, id string, at time.Time) error {
	at = at.UTC()
	err := s.db.WithContext(ctx).Model(&Session{}).
		Where("id = ? AND last_used_at < ?", id, at).
		Update("last_used_at", at).Error
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return nil
}

func (s *GormStore) DeleteBySubject(ctx context.Context, subject string) (int64, error) {
	result := s.db.WithContext(ctx).Where("subject = ?", subject).Delete(&Session{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete sessions: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *GormStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Where("expires_at < ?", before.UTC()).Delete(&Session{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// isUniqueViolation falls back to driver messages when TranslateError is not enabled.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "duplicate entry")
}
