// Package service orchestrates the store of record and the user cache for
// each request. It returns *userd.Error values; the HTTP layer maps their
// Kind to a status code.
package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/unkn0wn-root/userd"
	"github.com/unkn0wn-root/userd/store"
)

// Cache is the part of *cache.Users the service depends on.
type Cache interface {
	GetUser(ctx context.Context, id string) (userd.User, bool, error)
	SnapshotUser(ctx context.Context, id string) uint64
	SetUserWithGen(ctx context.Context, u userd.User, observedGen uint64) error
	DeleteUser(ctx context.Context, id string) error

	GetAllUsers(ctx context.Context) ([]userd.User, bool, error)
	SnapshotAll(ctx context.Context) uint64
	SetAllUsersWithGen(ctx context.Context, users []userd.User, observedGen uint64) error
	DropAll(ctx context.Context) error
}

// Users implements the five user operations.
type Users struct {
	store store.Store
	cache Cache
	log   userd.Logger
}

func New(st store.Store, c Cache, log userd.Logger) *Users {
	if log == nil {
		log = userd.NopLogger{}
	}
	return &Users{store: st, cache: c, log: log}
}

// UpdateResult is the outcome of a committed update. User is nil when the
// re-read after the write failed; the write itself still succeeded.
type UpdateResult struct {
	ID   uuid.UUID
	User *userd.User
}

// List returns every user, from the cached list when it is present and
// non-empty.
func (s *Users) List(ctx context.Context) ([]userd.User, bool, error) {
	cached, ok, err := s.cache.GetAllUsers(ctx)
	if err != nil {
		return nil, false, userd.Backend(err, "Cache error")
	}
	if ok && len(cached) > 0 {
		return cached, true, nil
	}

	g := s.cache.SnapshotAll(ctx)
	users, err := s.store.GetAll(ctx)
	if err != nil {
		return nil, false, userd.Backend(err, "Database error")
	}
	if err := s.cache.SetAllUsersWithGen(ctx, users, g); err != nil {
		return nil, false, userd.Backend(err, "Cache error")
	}
	return users, false, nil
}

// Get returns one user. A malformed id is reported as not found.
func (s *Users) Get(ctx context.Context, rawID string) (userd.User, bool, error) {
	id, err := parseID(rawID)
	if err != nil {
		return userd.User{}, false, err
	}
	key := id.String()

	cached, ok, err := s.cache.GetUser(ctx, key)
	if err != nil {
		return userd.User{}, false, userd.Backend(err, "Cache error")
	}
	if ok {
		return cached, true, nil
	}

	g := s.cache.SnapshotUser(ctx, key)
	u, found, err := s.store.GetByID(ctx, id)
	if err != nil {
		return userd.User{}, false, userd.Backend(err, "Database error")
	}
	if !found {
		return userd.User{}, false, userd.NotFound("No user found with ID %s", rawID)
	}
	if err := s.cache.SetUserWithGen(ctx, u, g); err != nil {
		return userd.User{}, false, userd.Backend(err, "Cache error")
	}
	return u, false, nil
}

// Create validates in, assigns a fresh id and inserts it. Any client
// supplied id is ignored.
func (s *Users) Create(ctx context.Context, in userd.User) (userd.User, error) {
	in.ID = uuid.Nil
	if err := userd.ValidateUser(in); err != nil {
		return userd.User{}, err
	}

	// check-then-insert; only backends with a uniqueness constraint close the race
	_, taken, err := s.store.GetByEmail(ctx, in.Email)
	if err != nil {
		return userd.User{}, userd.Backend(err, "Database error")
	}
	if taken {
		return userd.User{}, userd.Validation("Email %s is already in use", in.Email)
	}

	in.ID = uuid.New()
	if err := s.store.Insert(ctx, in); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return userd.User{}, userd.Validation("Email %s is already in use", in.Email)
		}
		return userd.User{}, userd.Backend(err, "Database error")
	}

	if err := s.refreshList(ctx); err != nil {
		return userd.User{}, err
	}
	s.log.Info("user created", userd.Fields{"id": in.ID.String()})
	return in, nil
}

// Update applies the partial produced by decode to an existing user. decode
// runs only after the user is known to exist, so a missing id wins over a
// malformed body.
func (s *Users) Update(ctx context.Context, rawID string, decode func(*userd.PartialUser) error) (UpdateResult, error) {
	id, err := parseID(rawID)
	if err != nil {
		return UpdateResult{}, err
	}
	if err := s.mustExist(ctx, id, rawID); err != nil {
		return UpdateResult{}, err
	}

	var p userd.PartialUser
	if err := decode(&p); err != nil {
		return UpdateResult{}, userd.Validation("Invalid input: %v", err)
	}
	if err := userd.ValidatePartial(p); err != nil {
		return UpdateResult{}, err
	}
	if p.Email != nil {
		owner, taken, err := s.store.GetByEmail(ctx, *p.Email)
		if err != nil {
			return UpdateResult{}, userd.Backend(err, "Database error")
		}
		if taken && owner.ID != id {
			return UpdateResult{}, userd.Validation("Email %s is already in use", *p.Email)
		}
	}

	if err := s.store.Update(ctx, id, p); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return UpdateResult{}, userd.Validation("Email %s is already in use", *p.Email)
		}
		return UpdateResult{}, userd.Backend(err, "Failed to update user")
	}

	key := id.String()
	if err := s.cache.DeleteUser(ctx, key); err != nil {
		return UpdateResult{}, userd.Backend(err, "Cache error")
	}
	g := s.cache.SnapshotUser(ctx, key)
	u, found, err := s.store.GetByID(ctx, id)
	if err != nil || !found {
		s.log.Warn("update committed but re-read failed", userd.Fields{"id": key, "found": found, "err": err})
		if err := s.cache.DropAll(ctx); err != nil {
			return UpdateResult{}, userd.Backend(err, "Cache error")
		}
		return UpdateResult{ID: id}, nil
	}
	if err := s.cache.SetUserWithGen(ctx, u, g); err != nil {
		return UpdateResult{}, userd.Backend(err, "Cache error")
	}
	if err := s.refreshList(ctx); err != nil {
		return UpdateResult{}, err
	}
	s.log.Info("user updated", userd.Fields{"id": key, "fields": p.Mask().String()})
	return UpdateResult{ID: id, User: &u}, nil
}

// Delete removes an existing user and returns its id.
func (s *Users) Delete(ctx context.Context, rawID string) (uuid.UUID, error) {
	id, err := parseID(rawID)
	if err != nil {
		return uuid.Nil, err
	}
	if err := s.mustExist(ctx, id, rawID); err != nil {
		return uuid.Nil, err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return uuid.Nil, userd.Backend(err, "Failed to delete user")
	}
	if err := s.cache.DeleteUser(ctx, id.String()); err != nil {
		return uuid.Nil, userd.Backend(err, "Cache error")
	}
	if err := s.refreshList(ctx); err != nil {
		return uuid.Nil, err
	}
	s.log.Info("user deleted", userd.Fields{"id": id.String()})
	return id, nil
}

func (s *Users) mustExist(ctx context.Context, id uuid.UUID, rawID string) error {
	_, found, err := s.store.GetByID(ctx, id)
	if err != nil {
		return userd.Backend(err, "Database error")
	}
	if !found {
		return userd.NotFound("No user found with ID %s", rawID)
	}
	return nil
}

// refreshList fences the cached list, then refills it from the store. A
// refill that races a later mutation is dropped by the generation check. If
// the store read fails the list stays invalidated and the next read fills it.
func (s *Users) refreshList(ctx context.Context) error {
	if err := s.cache.DropAll(ctx); err != nil {
		return userd.Backend(err, "Cache error")
	}
	g := s.cache.SnapshotAll(ctx)
	users, err := s.store.GetAll(ctx)
	if err != nil {
		s.log.Warn("list refresh skipped", userd.Fields{"err": err})
		return nil
	}
	if err := s.cache.SetAllUsersWithGen(ctx, users, g); err != nil {
		return userd.Backend(err, "Cache error")
	}
	return nil
}

func parseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, userd.NotFound("No user found with ID %s", raw)
	}
	return id, nil
}
