// Package app builds the process-wide handles both binaries share: logger,
// store, Redis client and user cache, each chosen by config.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/userd"
	"github.com/unkn0wn-root/userd/cache"
	c "github.com/unkn0wn-root/userd/codec"
	gen "github.com/unkn0wn-root/userd/genstore"
	asynchook "github.com/unkn0wn-root/userd/hooks/async"
	"github.com/unkn0wn-root/userd/hooks/loghooks"
	"github.com/unkn0wn-root/userd/internal/config"
	logruslog "github.com/unkn0wn-root/userd/log/logrus"
	sloglog "github.com/unkn0wn-root/userd/log/slog"
	zaplog "github.com/unkn0wn-root/userd/log/zap"
	pr "github.com/unkn0wn-root/userd/provider"
	bcprov "github.com/unkn0wn-root/userd/provider/bigcache"
	redisprov "github.com/unkn0wn-root/userd/provider/redis"
	ristprov "github.com/unkn0wn-root/userd/provider/ristretto"
	"github.com/unkn0wn-root/userd/store"
	"github.com/unkn0wn-root/userd/store/cassandra"
	"github.com/unkn0wn-root/userd/store/dynamo"
	"github.com/unkn0wn-root/userd/store/memstore"
)

// Logger builds the configured backend. flush must run before exit.
func Logger(cfg config.Config) (log userd.Logger, flush func(), err error) {
	switch cfg.LogBackend {
	case "logrus":
		return logruslog.New(cfg.LogLevel), func() {}, nil
	case "slog":
		return sloglog.New(cfg.LogLevel), func() {}, nil
	default:
		z, err := zaplog.New(cfg.LogLevel)
		if err != nil {
			return nil, nil, fmt.Errorf("zap: %w", err)
		}
		return z, func() { _ = z.Sync() }, nil
	}
}

// Store connects the configured backend. It does not create the schema.
func Store(ctx context.Context, cfg config.Config) (store.Store, func(context.Context) error, error) {
	switch cfg.Store {
	case "memory":
		return memstore.New(), func(context.Context) error { return nil }, nil
	case "dynamo":
		client, err := dynamo.NewClient(ctx, dynamo.ClientConfig{
			Region:   cfg.DynamoRegion,
			Endpoint: cfg.DynamoEndpoint,
		})
		if err != nil {
			return nil, nil, err
		}
		s := dynamo.New(client, dynamo.Config{
			Table:       cfg.DynamoTable,
			UniqueTable: cfg.DynamoUniqueTable,
		})
		return s, s.Ping, nil
	default:
		consistency, err := gocql.ParseConsistencyWrapper(cfg.CassandraConsistency)
		if err != nil {
			return nil, nil, fmt.Errorf("cassandra consistency: %w", err)
		}
		ccfg := cassandra.DefaultConfig()
		ccfg.Hosts = cfg.CassandraHosts
		ccfg.Keyspace = cfg.CassandraKeyspace
		ccfg.Consistency = cassandra.Consistency(consistency)
		s, err := cassandra.Connect(ccfg)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Ping, nil
	}
}

// NeedsRedis reports whether the cache or genstore uses Redis.
func NeedsRedis(cfg config.Config) bool {
	return cfg.CacheProvider == "redis" || cfg.GenStore == "redis"
}

// RedisClient returns a pooled client. The caller owns it and closes it
// after the cache.
func RedisClient(cfg config.Config) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:         cfg.RedisAddr,
		DB:           cfg.RedisDB,
		Password:     cfg.RedisPassword,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
}

// Cache is the user cache plus the handles that must be closed with it.
type Cache struct {
	Users *cache.Users
	Ping  func(context.Context) error

	hooks *asynchook.Hooks
}

// Close stops the cache, then drains pending hook events.
func (cc *Cache) Close(ctx context.Context) error {
	err := cc.Users.Close(ctx)
	cc.hooks.Close()
	return err
}

// NewCache builds the user cache over the configured provider, codec and
// genstore. rdb may be nil unless NeedsRedis(cfg).
func NewCache(ctx context.Context, cfg config.Config, log userd.Logger, rdb goredis.UniversalClient, failClosed bool) (*Cache, error) {
	userCodec, listCodec, err := Codecs(cfg.CacheCodec, cfg.CacheMaxDecode)
	if err != nil {
		return nil, err
	}

	hooks := asynchook.New(loghooks.New(log, loghooks.Options{DegradedEvery: 10}), 1, 1024)
	opts := cache.Options{
		Namespace:  cfg.CacheNamespace,
		UserCodec:  userCodec,
		ListCodec:  listCodec,
		Logger:     log,
		Hooks:      hooks,
		TTL:        cfg.CacheTTL,
		FailClosed: failClosed,
	}
	ping := func(context.Context) error { return nil }

	var p pr.Provider
	switch cfg.CacheProvider {
	case "none":
		opts.Disabled = true
	case "ristretto":
		p, err = ristprov.New(ristprov.Config{MaxBytes: 64 << 20, ExpectedUsers: 10000})
		// cost counts bytes so MaxCost is a memory bound
		opts.ComputeSetCost = func(_ string, raw []byte, _ bool) int64 { return int64(len(raw)) }
	case "bigcache":
		p, err = bcprov.New(ctx, bcprov.Config{
			TTL:           cfg.CacheTTL,
			ExpectedUsers: 10000,
			AvgEntryBytes: 512,
		})
	default:
		var rp *redisprov.Provider
		if rp, err = redisprov.New(rdb); err == nil {
			p, ping = rp, rp.Ping
		}
	}
	if err != nil {
		hooks.Close()
		return nil, fmt.Errorf("cache provider %s: %w", cfg.CacheProvider, err)
	}
	opts.Provider = p

	if cfg.GenStore == "redis" {
		opts.GenStore = gen.NewRedis(rdb, cfg.CacheNamespace, genTTL(cfg.CacheTTL))
	}

	users, err := cache.New(opts)
	if err != nil {
		hooks.Close()
		return nil, err
	}
	return &Cache{Users: users, Ping: ping, hooks: hooks}, nil
}

// genTTL keeps generation keys well past the entries they fence.
func genTTL(entryTTL time.Duration) time.Duration {
	if entryTTL <= 0 {
		return 0
	}
	return 2 * entryTTL
}

// Codecs returns the user and list codecs for name, size-limited on decode.
func Codecs(name string, maxDecode int) (c.Codec[userd.User], c.Codec[[]userd.User], error) {
	var (
		one c.Codec[userd.User]
		all c.Codec[[]userd.User]
	)
	switch name {
	case "", "json":
		one, all = c.JSON[userd.User]{}, c.JSON[[]userd.User]{}
	case "msgpack":
		one, all = c.Msgpack[userd.User]{}, c.Msgpack[[]userd.User]{}
	case "cbor":
		cu, err := c.NewCBOR[userd.User](0)
		if err != nil {
			return nil, nil, err
		}
		cl, err := c.NewCBOR[[]userd.User](0)
		if err != nil {
			return nil, nil, err
		}
		one, all = cu, cl
	case "protobuf":
		one, all = c.UserProto{}, c.UserListProto{}
	default:
		return nil, nil, fmt.Errorf("unknown cache codec %q", name)
	}
	return c.LimitCodec[userd.User]{Inner: one, MaxDecode: maxDecode},
		c.LimitCodec[[]userd.User]{Inner: all, MaxDecode: maxDecode}, nil
}
