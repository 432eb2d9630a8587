package genstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ GenStore = (*Redis)(nil)

// Redis keeps counters under "gen:<ns>:<key>" so every replica and the stream
// invalidator agree on them. With a TTL each bump renews the expiry; an expired
// counter reads as 0 and any older cache entry then fails validation.
//
// The client is shared with the cache provider and is not closed here.
type Redis struct {
	rdb redis.UniversalClient
	ns  string
	ttl time.Duration
}

// NewRedis returns a store whose counters expire ttl after their last bump.
// A ttl of 0 keeps them forever.
func NewRedis(client redis.UniversalClient, ns string, ttl time.Duration) *Redis {
	return &Redis{rdb: client, ns: ns, ttl: ttl}
}

func (r *Redis) counterKey(key string) string {
	return "gen:" + r.ns + ":" + key
}

func (r *Redis) Snapshot(ctx context.Context, key string) (uint64, error) {
	gen, err := r.rdb.Get(ctx, r.counterKey(key)).Uint64()
	switch {
	case errors.Is(err, redis.Nil):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("read generation %s: %w", key, err)
	}
	return gen, nil
}

// Bump runs INCR and EXPIRE in one MULTI so the counter never outlives its TTL
// without having been incremented.
func (r *Redis) Bump(ctx context.Context, key string) (uint64, error) {
	k := r.counterKey(key)
	var incr *redis.IntCmd
	_, err := r.rdb.TxPipelined(ctx, func(tx redis.Pipeliner) error {
		incr = tx.Incr(ctx, k)
		if r.ttl > 0 {
			tx.Expire(ctx, k, r.ttl)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("bump generation %s: %w", key, err)
	}
	return uint64(incr.Val()), nil
}

func (r *Redis) Close(context.Context) error { return nil }
