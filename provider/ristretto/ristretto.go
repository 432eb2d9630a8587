// Package ristretto keeps user cache entries in-process behind ristretto's
// TinyLFU admission, bounded by the bytes the cache charges per Set.
package ristretto

import (
	"context"
	"errors"
	"time"

	rc "github.com/dgraph-io/ristretto"

	pr "github.com/unkn0wn-root/userd/provider"
)

type Provider struct {
	c *rc.Cache
}

var _ pr.Provider = (*Provider)(nil)

type Config struct {
	// MaxBytes bounds the summed cost of live entries. The cache charges
	// each Set the length of its frame (cache.Options.ComputeSetCost).
	MaxBytes int64
	// ExpectedUsers sizes the admission counters at ten per entry.
	ExpectedUsers int64
}

func New(cfg Config) (*Provider, error) {
	if cfg.MaxBytes <= 0 || cfg.ExpectedUsers <= 0 {
		return nil, errors.New("ristretto: MaxBytes and ExpectedUsers must be positive")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: 10 * cfg.ExpectedUsers,
		MaxCost:     cfg.MaxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Provider{c: c}, nil
}

// Get drops a value that is not a byte slice and reports a miss.
func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := p.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	if b, ok := v.([]byte); ok {
		return b, true, nil
	}
	p.c.Del(key)
	return nil, false, nil
}

// Set blocks until the write is applied, so reads right after a mutation see it.
// A false result means admission rejected the entry.
func (p *Provider) Set(_ context.Context, key string, value []byte, cost int64, ttl time.Duration) (bool, error) {
	if ttl < 0 {
		ttl = 0
	}
	admitted := p.c.SetWithTTL(key, value, cost, ttl)
	p.c.Wait()
	return admitted, nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	p.c.Del(key)
	return nil
}

func (p *Provider) Close(context.Context) error {
	p.c.Close()
	return nil
}
