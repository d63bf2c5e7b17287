package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/tech-arch1tect/sessiongate/config"
	"github.com/tech-arch1tect/sessiongate/services/autherror"
	"github.com/tech-arch1tect/sessiongate/services/hasher"
	"github.com/tech-arch1tect/sessiongate/services/logging"
	"github.com/tech-arch1tect/sessiongate/services/metrics"
	"go.uber.org/zap"
)

// maxIssueAttempts bounds digest collision retries: one regeneration, then fail.
const maxIssueAttempts = 2

type Config struct {
	TTL             time.Duration
	RotationMode    config.RotationMode
	CleanupInterval time.Duration
}

type Manager struct {
	store   Store
	hasher  hasher.SecretHasher
	config  Config
	logger  *logging.Service
	metrics *metrics.Service
	now     func() time.Time
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

func WithMetrics(svc *metrics.Service) Option {
	return func(m *Manager) {
		m.metrics = svc
	}
}

func NewManager(store Store, h hasher.SecretHasher, cfg Config, logger *logging.Service, opts ...Option) *Manager {
	if cfg.TTL <= 0 {
		cfg.TTL = 12 * time.Hour
	}
	if cfg.RotationMode == "" {
		cfg.RotationMode = config.RotateAlways
	}

	m := &Manager{
		store:  store,
		hasher: h,
		config: cfg,
		logger: logger.Named("session"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	m.logger.Info("initializing session manager",
		zap.Duration("ttl", cfg.TTL),
		zap.String("rotation_mode", string(cfg.RotationMode)),
		zap.Duration("cleanup_interval", cfg.CleanupInterval))

	return m
}

func (m *Manager) clock() time.Time {
	return m.now().UTC()
}

// Issue creates a session for subject lasting ttl (the configured TTL when ttl <= 0).
func (m *Manager) Issue(ctx context.Context, subject string, ttl time.Duration, meta Metadata) (*Issued, error) {
	if strings.TrimSpace(subject) == "" {
		return nil, autherror.New(autherror.KindProcessing, "session subject is required")
	}
	if ttl <= 0 {
		ttl = m.config.TTL
	}

	for attempt := 1; attempt <= maxIssueAttempts; attempt++ {
		raw, err := m.hasher.GenerateRawToken()
		if err != nil {
			m.logger.Error("failed to generate session token", zap.Error(err))
			return nil, autherror.Wrap(autherror.KindProcessing, "failed to generate session token", err)
		}

		now := m.clock()
		sess := &Session{
			TokenDigest: m.hasher.Digest(raw),
			Subject:     subject,
			CreatedAt:   now,
			LastUsedAt:  now,
			ExpiresAt:   now.Add(ttl),
			IPAddress:   meta.IPAddress,
			MACAddress:  meta.MACAddress,
			UserAgent:   meta.UserAgent,
			Device:      DescribeDevice(meta.UserAgent),
		}

		err = m.store.Create(ctx, sess)
		if err == nil {
			m.metrics.SessionIssued()
			m.logger.Info("session issued",
				zap.String("session_id", sess.ID),
				zap.String("subject", subject),
				zap.Time("expires_at", sess.ExpiresAt))

			return &Issued{
				RawToken:  raw,
				SessionID: sess.ID,
				Subject:   subject,
				CreatedAt: sess.CreatedAt,
				ExpiresAt: sess.ExpiresAt,
			}, nil
		}

		if !errors.Is(err, ErrDigestConflict) {
			m.logger.Error("failed to store session", zap.Error(err), zap.String("subject", subject))
			return nil, autherror.Wrap(autherror.KindProcessing, "failed to store session", err)
		}

		m.metrics.IssueCollision()
		m.logger.Warn("session digest collision", zap.Int("attempt", attempt), zap.String("subject", subject))
	}

	return nil, autherror.New(autherror.KindCollision, "session token collided on every attempt")
}

// Validate resolves an active session from its raw token and records the use. A session is
// usable up to and including ExpiresAt; past it the session is revoked on the way out and
// reported as SessionExpired.
func (m *Manager) Validate(ctx context.Context, raw string) (*Session, error) {
	if strings.TrimSpace(raw) == "" {
		m.metrics.SessionValidation("empty")
		return nil, autherror.New(autherror.KindInvalidSession, "session token is empty")
	}

	sess, err := m.store.FindByDigestAndNotRevoked(ctx, m.hasher.Digest(raw))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			m.metrics.SessionValidation("unknown")
			m.logger.Debug("session validation failed - not found or revoked")
			return nil, autherror.New(autherror.KindInvalidSession, "session not found or revoked")
		}
		m.logger.Error("session lookup failed", zap.Error(err))
		return nil, autherror.Wrap(autherror.KindProcessing, "session lookup failed", err)
	}

	now := m.clock()
	if now.After(sess.ExpiresAt) {
		if _, err := m.store.MarkRevoked(ctx, sess.ID, now); err != nil {
			m.logger.Error("failed to revoke expired session", zap.Error(err), zap.String("session_id", sess.ID))
			return nil, autherror.Wrap(autherror.KindProcessing, "failed to revoke expired session", err)
		}
		m.metrics.SessionValidation("expired")
		m.logger.Info("session expired",
			zap.String("session_id", sess.ID),
			zap.String("subject", sess.Subject),
			zap.Time("expired_at", sess.ExpiresAt))
		return nil, autherror.New(autherror.KindSessionExpired, "session expired")
	}

	if err := m.store.Touch(ctx, sess.ID, now); err != nil {
		m.logger.Error("failed to record session use", zap.Error(err), zap.String("session_id", sess.ID))
		return nil, autherror.Wrap(autherror.KindProcessing, "failed to record session use", err)
	}
	if sess.LastUsedAt.Before(now) {
		sess.LastUsedAt = now
	}

	m.metrics.SessionValidation("ok")
	return sess, nil
}

// Rotate exchanges a valid raw token for a new session with the same TTL span. The old
// session is claimed first, so of two concurrent rotations of one token only one succeeds.
// If issuing the replacement then fails, the old session stays revoked and the caller has
// to log in again; a replayable old token is never left behind.
func (m *Manager) Rotate(ctx context.Context, raw string, meta Metadata) (*Issued, error) {
	old, err := m.Validate(ctx, raw)
	if err != nil {
		return nil, err
	}

	claimed, err := m.store.MarkRevoked(ctx, old.ID, m.clock())
	if err != nil {
		m.logger.Error("failed to revoke rotated session", zap.Error(err), zap.String("session_id", old.ID))
		return nil, autherror.Wrap(autherror.KindProcessing, "failed to revoke rotated session", err)
	}
	if !claimed {
		m.logger.Warn("session already rotated or revoked", zap.String("session_id", old.ID))
		return nil, autherror.New(autherror.KindInvalidSession, "session already rotated or revoked")
	}

	if meta.IsZero() {
		meta = Metadata{IPAddress: old.IPAddress, MACAddress: old.MACAddress, UserAgent: old.UserAgent}
	}

	issued, err := m.Issue(ctx, old.Subject, old.TTL(), meta)
	if err != nil {
		return nil, err
	}

	m.metrics.SessionRotated()
	m.logger.Info("session rotated",
		zap.String("old_session_id", old.ID),
		zap.String("new_session_id", issued.SessionID),
		zap.String("subject", old.Subject))

	return issued, nil
}

// Refresh validates the raw token and rotates it when the rotation policy asks for it.
func (m *Manager) Refresh(ctx context.Context, raw string, meta Metadata) (*RefreshResult, error) {
	if m.config.RotationMode != config.RotateAlways {
		sess, err := m.Validate(ctx, raw)
		if err != nil {
			return nil, err
		}
		return &RefreshResult{Session: sess}, nil
	}

	issued, err := m.Rotate(ctx, raw, meta)
	if err != nil {
		return nil, err
	}
	sess, err := m.store.FindByDigestAndNotRevoked(ctx, m.hasher.Digest(issued.RawToken))
	if err != nil {
		return nil, autherror.Wrap(autherror.KindProcessing, "rotated session not readable", err)
	}
	return &RefreshResult{Session: sess, Rotated: issued}, nil
}

// Revoke is idempotent. Unknown and already revoked tokens succeed silently.
func (m *Manager) Revoke(ctx context.Context, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	sess, err := m.store.FindByDigest(ctx, m.hasher.Digest(raw))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		m.logger.Error("session lookup failed during revoke", zap.Error(err))
		return autherror.Wrap(autherror.KindProcessing, "session lookup failed", err)
	}
	if sess.Revoked {
		return nil
	}

	revoked, err := m.store.MarkRevoked(ctx, sess.ID, m.clock())
	if err != nil {
		m.logger.Error("failed to revoke session", zap.Error(err), zap.String("session_id", sess.ID))
		return autherror.Wrap(autherror.KindProcessing, "failed to revoke session", err)
	}
	if revoked {
		m.metrics.SessionsRevoked(1)
		m.logger.Info("session revoked", zap.String("session_id", sess.ID), zap.String("subject", sess.Subject))
	}

	return nil
}

// RevokeAll deletes every session belonging to subject.
func (m *Manager) RevokeAll(ctx context.Context, subject string) (int64, error) {
	n, err := m.store.DeleteBySubject(ctx, subject)
	if err != nil {
		m.logger.Error("failed to revoke all sessions", zap.Error(err), zap.String("subject", subject))
		return 0, autherror.Wrap(autherror.KindProcessing, "failed to revoke all sessions", err)
	}

	m.metrics.SessionsRevoked(n)
	m.logger.Info("all sessions revoked", zap.String("subject", subject), zap.Int64("count", n))
	return n, nil
}

func (m *Manager) ListActive(ctx context.Context, subject string) ([]Session, error) {
	sessions, err := m.store.ListActiveBySubject(ctx, subject, m.clock())
	if err != nil {
		return nil, autherror.Wrap(autherror.KindProcessing, "failed to list sessions", err)
	}
	return sessions, nil
}

// RemainingSeconds is negative once the session has expired.
func (m *Manager) RemainingSeconds(sess *Session) int64 {
	d := sess.ExpiresAt.Sub(m.clock())
	secs := int64(d / time.Second)
	if d < 0 && d%time.Second != 0 {
		secs--
	}
	return secs
}

// RemainingSecondsFor looks up an unrevoked session by raw token without recording a use.
func (m *Manager) RemainingSecondsFor(ctx context.Context, raw string) (int64, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, autherror.New(autherror.KindInvalidSession, "session token is empty")
	}

	sess, err := m.store.FindByDigestAndNotRevoked(ctx, m.hasher.Digest(raw))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, autherror.New(autherror.KindInvalidSession, "session not found or revoked")
		}
		return 0, autherror.Wrap(autherror.KindProcessing, "session lookup failed", err)
	}
	return m.RemainingSeconds(sess), nil
}

func (m *Manager) Cleanup(ctx context.Context) (int64, error) {
	n, err := m.store.DeleteExpired(ctx, m.clock())
	if err != nil {
		m.logger.Error("failed to clean up expired sessions", zap.Error(err))
		return 0, err
	}

	m.metrics.SessionsCleaned(n)
	if n > 0 {
		m.logger.Info("cleaned up expired sessions", zap.Int64("count", n))
	} else {
		m.logger.Debug("no expired sessions found to clean up")
	}
	return n, nil
}

// StartCleanupWorker sweeps expired sessions every CleanupInterval until ctx is done.
// Expiry is enforced on read, so the sweep only reclaims storage.
func (m *Manager) StartCleanupWorker(ctx context.Context) {
	interval := m.config.CleanupInterval
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := m.Cleanup(ctx); err != nil && ctx.Err() == nil {
					m.logger.Error("session cleanup worker failed", zap.Error(err))
				}
			}
		}
	}()

	m.logger.Info("started session cleanup worker", zap.Duration("interval", interval))
}
