// Package provider is the byte store under the user cache.
//
// The cache hands a provider framed bytes and expects the identical bytes back:
// a provider may compress or spill values, but Get must undo all of it. Keys
// under "single:<ns>:" belong to the cache; anything else written there fails
// frame validation on read and is deleted.
package provider

import (
	"context"
	"time"
)

// Provider must be safe for concurrent use.
type Provider interface {
	// Get reports a miss as (nil, false, nil). A non-nil error means the
	// backend could not answer.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set returns false without an error when the backend dropped the write,
	// e.g. ristretto's admission policy. cost and ttl are hints; a backend
	// without per-entry support ignores them.
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (bool, error)

	// Del of an absent key succeeds.
	Del(ctx context.Context, key string) error

	Close(ctx context.Context) error
}
