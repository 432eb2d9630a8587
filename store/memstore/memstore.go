// Package memstore is an in-process store.Store for local runs and tests.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/unkn0wn-root/userd"
	"github.com/unkn0wn-root/userd/store"
)

type Store struct {
	mu    sync.RWMutex
	users map[uuid.UUID]userd.User
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{users: make(map[uuid.UUID]userd.User)}
}

func (s *Store) Insert(_ context.Context, u userd.User) error {
	s.mu.Lock()
	s.users[u.ID] = u
	s.mu.Unlock()
	return nil
}

// GetAll returns users ordered by id, a stable stand-in for token order.
func (s *Store) GetAll(_ context.Context) ([]userd.User, error) {
	s.mu.RLock()
	out := make([]userd.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (s *Store) GetByID(_ context.Context, id uuid.UUID) (userd.User, bool, error) {
	s.mu.RLock()
	u, ok := s.users[id]
	s.mu.RUnlock()
	return u, ok, nil
}

func (s *Store) GetByEmail(_ context.Context, email string) (userd.User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, true, nil
		}
	}
	return userd.User{}, false, nil
}

// Update behaves like a CQL UPDATE: it upserts the named columns even when
// the row does not exist.
func (s *Store) Update(_ context.Context, id uuid.UUID, p userd.PartialUser) error {
	if p.Mask().Empty() {
		return store.ErrEmptyUpdate
	}
	s.mu.Lock()
	u := s.users[id]
	u.ID = id
	s.users[id] = p.Apply(u)
	s.mu.Unlock()
	return nil
}

func (s *Store) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	delete(s.users, id)
	s.mu.Unlock()
	return nil
}

func (s *Store) EnsureSchema(context.Context) error { return nil }
func (s *Store) Close() error                       { return nil }
