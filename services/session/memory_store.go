package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// MemoryStore is a Store for tests. It loses everything on restart and is not shared between
// processes, so it is never wired into the application.
type MemoryStore struct {
	mu       sync.Mutex
	byID     map[string]*Session
	byDigest map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:     make(map[string]*Session),
		byDigest: make(map[string]string),
	}
}

func (m *MemoryStore) Create(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byDigest[s.TokenDigest]; exists {
		return ErrDigestConflict
	}
	if s.ID == "" {
		s.ID = ulid.Make().String()
	}

	stored := *s
	m.byID[s.ID] = &stored
	m.byDigest[s.TokenDigest] = s.ID
	return nil
}

func (m *MemoryStore) FindByDigestAndNotRevoked(ctx context.Context, digest string) (*Session, error) {
	s, err := m.FindByDigest(ctx, digest)
	if err != nil {
		return nil, err
	}
	if s.Revoked {
		return nil, ErrNotFound
	}
	return s, nil
}

func (m *MemoryStore) FindByDigest(_ context.Context, digest string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byDigest[digest]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *m.byID[id]
	return &copied, nil
}

func (m *MemoryStore) ListActiveBySubject(_ context.Context, subject string, now time.Time) ([]Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var active []Session
	for _, s := range m.byID {
		if s.Subject == subject && !s.Revoked && !s.ExpiresAt.Before(now) {
			active = append(active, *s)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].LastUsedAt.After(active[j].LastUsedAt)
	})
	return active, nil
}

func (m *MemoryStore) MarkRevoked(_ context.Context, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.byID[id]
	if !ok || s.Revoked {
		return false, nil
	}
	s.Revoked = true
	s.RevokedAt = &at
	return true, nil
}

func (m *MemoryStore) Touch(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.byID[id]; ok && s.LastUsedAt.Before(at) {
		s.LastUsedAt = at
	}
	return nil
}

func (m *MemoryStore) DeleteBySubject(_ context.Context, subject string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, s := range m.byID {
		if s.Subject == subject {
			delete(m.byDigest, s.TokenDigest)
			delete(m.byID, id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, s := range m.byID {
		if s.ExpiresAt.Before(before) {
			delete(m.byDigest, s.TokenDigest)
			delete(m.byID, id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}
