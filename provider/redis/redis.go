// Package redis serves the user cache from Redis so replicas share entries.
package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	pr "github.com/unkn0wn-root/userd/provider"
)

var ErrNilClient = errors.New("redis provider: nil client")

// Provider borrows a client opened by the caller. The same client backs the
// redis generation store, so Close leaves it open.
type Provider struct {
	rdb goredis.UniversalClient
}

var _ pr.Provider = (*Provider)(nil)

func New(client goredis.UniversalClient) (*Provider, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	return &Provider{rdb: client}, nil
}

func (p *Provider) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := p.rdb.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, goredis.Nil):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}
	return b, true, nil
}

// Set maps a non-positive ttl to no expiry.
func (p *Provider) Set(ctx context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	if ttl < 0 {
		ttl = 0
	}
	if err := p.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Provider) Del(ctx context.Context, key string) error {
	return p.rdb.Del(ctx, key).Err()
}

// Ping backs the cache check on /healthz.
func (p *Provider) Ping(ctx context.Context) error {
	return p.rdb.Ping(ctx).Err()
}

func (p *Provider) Close(context.Context) error { return nil }
