// Package bigcache keeps user cache entries in this process's heap, off the
// GC's scan path. Entries are not shared between replicas.
package bigcache

import (
	"context"
	"errors"
	"time"

	bc "github.com/allegro/bigcache/v3"

	pr "github.com/unkn0wn-root/userd/provider"
)

type Provider struct {
	c *bc.BigCache
}

var _ pr.Provider = (*Provider)(nil)

// Config sizes the shards from the expected working set.
type Config struct {
	// TTL applies to every entry; bigcache has no per-entry expiry.
	// Zero keeps entries for a year.
	TTL           time.Duration
	ExpectedUsers int
	AvgEntryBytes int
	// MaxMB caps total memory; 0 leaves it unbounded.
	MaxMB int
}

func New(ctx context.Context, cfg Config) (*Provider, error) {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 365 * 24 * time.Hour
	}
	conf := bc.DefaultConfig(ttl)
	conf.CleanWindow = ttl / 2
	if conf.CleanWindow < time.Second {
		conf.CleanWindow = time.Second
	}
	if cfg.ExpectedUsers > 0 {
		conf.MaxEntriesInWindow = cfg.ExpectedUsers
	}
	if cfg.AvgEntryBytes > 0 {
		conf.MaxEntrySize = cfg.AvgEntryBytes
	}
	conf.HardMaxCacheSize = cfg.MaxMB
	conf.Verbose = false

	c, err := bc.New(ctx, conf)
	if err != nil {
		return nil, err
	}
	return &Provider{c: c}, nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	b, err := p.c.Get(key)
	switch {
	case errors.Is(err, bc.ErrEntryNotFound):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}
	return b, true, nil
}

func (p *Provider) Set(_ context.Context, key string, value []byte, _ int64, _ time.Duration) (bool, error) {
	if err := p.c.Set(key, value); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	err := p.c.Delete(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return nil
	}
	return err
}

func (p *Provider) Close(context.Context) error { return p.c.Close() }
