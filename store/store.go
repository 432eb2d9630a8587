// Package store defines the database of record for users.
//
// Every operation is one independent request at the backend's default
// consistency. There are no multi-statement transactions: email uniqueness is
// a check-then-insert in the service and two concurrent creates with the same
// email can both succeed unless the backend enforces it (the DynamoDB backend
// does, with a conditional write).
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/unkn0wn-root/userd"
)

var (
	// ErrEmptyUpdate is returned by Update when the partial sets no field.
	ErrEmptyUpdate = errors.New("store: update sets no fields")

	// ErrDuplicateEmail is returned by backends that enforce email uniqueness.
	ErrDuplicateEmail = errors.New("store: email already in use")
)

// Store is the persistence contract shared by all backends.
type Store interface {
	// Insert writes all fields keyed by u.ID. Errors are returned as-is, never retried.
	Insert(ctx context.Context, u userd.User) error

	// GetAll returns every user. An empty store yields an empty slice.
	GetAll(ctx context.Context) ([]userd.User, error)

	// GetByID returns ok=false (and a nil error) when no row matches.
	GetByID(ctx context.Context, id uuid.UUID) (u userd.User, ok bool, err error)

	// GetByEmail is an unindexed lookup; fine at small scale only.
	GetByEmail(ctx context.Context, email string) (u userd.User, ok bool, err error)

	// Update writes only the fields set in p. Returns ErrEmptyUpdate for an empty mask.
	Update(ctx context.Context, id uuid.UUID, p userd.PartialUser) error

	// Delete removes the row. Deleting a missing id is not an error.
	Delete(ctx context.Context, id uuid.UUID) error

	// EnsureSchema creates keyspace/tables if missing. Called once at startup.
	EnsureSchema(ctx context.Context) error

	// Close releases the pooled session/client.
	Close() error
}
