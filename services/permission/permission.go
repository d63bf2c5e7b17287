// Package permission derives the effective permission set of an identity and carries it
// through a request.
package permission

import (
	"context"
	"sort"

	"github.com/tech-arch1tect/sessiongate/services/identity"
)

type Set struct {
	keys map[string]struct{}
}

func NewSet(keys ...string) Set {
	s := Set{keys: make(map[string]struct{}, len(keys))}
	for _, k := range keys {
		if k != "" {
			s.keys[k] = struct{}{}
		}
	}
	return s
}

func (s Set) Has(key string) bool {
	_, ok := s.keys[key]
	return ok
}

func (s Set) Len() int {
	return len(s.keys)
}

// Keys returns a sorted copy.
func (s Set) Keys() []string {
	keys := make([]string, 0, len(s.keys))
	for k := range s.keys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Resolve unions the record's direct grants with those of every group it belongs to.
func Resolve(r *identity.Record) Set {
	s := NewSet(r.Permissions...)
	for _, g := range r.Groups {
		for _, k := range g.Permissions {
			if k != "" {
				s.keys[k] = struct{}{}
			}
		}
	}
	return s
}

// Identity is the authenticated principal of one request. It is built fresh per request and
// never cached.
type Identity struct {
	Subject     string
	Name        string
	Email       string
	Permissions Set
	IsAdmin     bool
}

func FromRecord(r *identity.Record) *Identity {
	return &Identity{
		Subject:     r.Subject,
		Name:        r.Name,
		Email:       r.Email,
		Permissions: Resolve(r),
		IsAdmin:     r.IsAdmin,
	}
}

// Can is the inline authorization check. Administrators hold every permission.
func (i *Identity) Can(key string) bool {
	if i == nil {
		return false
	}
	return i.IsAdmin || i.Permissions.Has(key)
}

type contextKey struct{}

func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(*Identity)
	return id, ok && id != nil
}
