// Package genstore keeps the generation counters that guard user cache writes.
// An entry is valid only while the generation stamped into it matches the
// counter here. Every invalidation of a user or of the list bumps its counter.
package genstore

import "context"

// GenStore holds one counter per cache key.
// Local suits a single replica. Redis is needed once several replicas, or the
// stream invalidator, touch the same cache.
type GenStore interface {
	// Snapshot reads the counter; an unknown key reads as 0.
	Snapshot(ctx context.Context, key string) (uint64, error)
	// Bump increments the counter and returns the value after the increment.
	Bump(ctx context.Context, key string) (uint64, error)
	Close(context.Context) error
}
