// Package config loads process settings from USERD_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	Store                string // cassandra | dynamo | memory
	CassandraHosts       []string
	CassandraKeyspace    string
	CassandraConsistency string
	DynamoEndpoint       string
	DynamoRegion         string
	DynamoTable          string
	DynamoUniqueTable    string

	CacheProvider   string // redis | ristretto | bigcache | none
	RedisAddr       string
	RedisDB         int
	RedisPassword   string
	CacheCodec      string // json | msgpack | cbor | protobuf
	CacheTTL        time.Duration
	CacheNamespace  string
	CacheMaxDecode  int
	CacheFailClosed bool
	GenStore        string // local | redis

	LogBackend string // zap | logrus | slog
	LogLevel   string
}

// Load reads the environment, applies defaults and validates the result.
func Load() (Config, error) {
	var p parser
	cfg := Config{
		HTTPAddr:        p.str("USERD_HTTP_ADDR", "127.0.0.1:8080"),
		RequestTimeout:  p.duration("USERD_REQUEST_TIMEOUT", 5*time.Second),
		ShutdownTimeout: p.duration("USERD_SHUTDOWN_TIMEOUT", 10*time.Second),

		Store:                strings.ToLower(p.str("USERD_STORE", "cassandra")),
		CassandraHosts:       p.list("USERD_CASSANDRA_HOSTS", []string{"127.0.0.1:9042"}),
		CassandraKeyspace:    p.str("USERD_CASSANDRA_KEYSPACE", "userks"),
		CassandraConsistency: strings.ToUpper(p.str("USERD_CASSANDRA_CONSISTENCY", "QUORUM")),
		DynamoEndpoint:       p.str("USERD_DYNAMO_ENDPOINT", ""),
		DynamoRegion:         p.str("USERD_DYNAMO_REGION", "us-east-1"),
		DynamoTable:          p.str("USERD_DYNAMO_TABLE", "users"),
		DynamoUniqueTable:    p.str("USERD_DYNAMO_UNIQUE_TABLE", "users_unique_emails"),

		CacheProvider:   strings.ToLower(p.str("USERD_CACHE_PROVIDER", "redis")),
		RedisAddr:       p.str("USERD_REDIS_ADDR", "127.0.0.1:6379"),
		RedisDB:         p.int("USERD_REDIS_DB", 0),
		RedisPassword:   p.str("USERD_REDIS_PASSWORD", ""),
		CacheCodec:      strings.ToLower(p.str("USERD_CACHE_CODEC", "json")),
		CacheTTL:        p.duration("USERD_CACHE_TTL", 0),
		CacheNamespace:  p.str("USERD_CACHE_NAMESPACE", "user"),
		CacheMaxDecode:  p.int("USERD_CACHE_MAX_DECODE", 1<<20),
		CacheFailClosed: p.bool("USERD_CACHE_FAIL_CLOSED", false),

		LogBackend: strings.ToLower(p.str("USERD_LOG_BACKEND", "zap")),
		LogLevel:   strings.ToLower(p.str("USERD_LOG_LEVEL", "info")),
	}
	// replicas sharing a redis cache must share its generations too
	genDefault := "local"
	if cfg.CacheProvider == "redis" {
		genDefault = "redis"
	}
	cfg.GenStore = strings.ToLower(p.str("USERD_GENSTORE", genDefault))

	if err := errors.Join(p.errs...); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects unknown choices and unusable values.
func (c Config) Validate() error {
	var errs []error
	check := func(name, v string, allowed ...string) {
		for _, a := range allowed {
			if v == a {
				return
			}
		}
		errs = append(errs, fmt.Errorf("%s: %q is not one of %s", name, v, strings.Join(allowed, ", ")))
	}
	check("USERD_STORE", c.Store, "cassandra", "dynamo", "memory")
	check("USERD_CACHE_PROVIDER", c.CacheProvider, "redis", "ristretto", "bigcache", "none")
	check("USERD_CACHE_CODEC", c.CacheCodec, "json", "msgpack", "cbor", "protobuf")
	check("USERD_GENSTORE", c.GenStore, "local", "redis")
	check("USERD_LOG_BACKEND", c.LogBackend, "zap", "logrus", "slog")
	check("USERD_LOG_LEVEL", c.LogLevel, "debug", "info", "warn", "error")

	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("USERD_HTTP_ADDR: must not be empty"))
	}
	if c.Store == "cassandra" && len(c.CassandraHosts) == 0 {
		errs = append(errs, errors.New("USERD_CASSANDRA_HOSTS: at least one host is required"))
	}
	if c.CacheNamespace == "" {
		errs = append(errs, errors.New("USERD_CACHE_NAMESPACE: must not be empty"))
	}
	if c.CacheMaxDecode < 0 {
		errs = append(errs, errors.New("USERD_CACHE_MAX_DECODE: must be >= 0"))
	}
	if c.CacheTTL < 0 {
		errs = append(errs, errors.New("USERD_CACHE_TTL: must be >= 0"))
	}
	if c.GenStore == "redis" && c.CacheProvider != "redis" {
		// a shared genstore fences nothing for a per-process cache
		errs = append(errs, errors.New("USERD_GENSTORE=redis requires USERD_CACHE_PROVIDER=redis"))
	}
	return errors.Join(errs...)
}

// Warnings lists settings that are valid but unsafe with more than one replica.
func (c Config) Warnings() []string {
	var ws []string
	if c.CacheProvider == "redis" && c.GenStore == "local" {
		ws = append(ws, "USERD_GENSTORE=local with a redis cache: each replica fences the shared entries "+
			"with its own generations, so replicas evict each other's fills and may serve stale users")
	}
	return ws
}

// parser collects every malformed variable instead of stopping at the first.
type parser struct{ errs []error }

func (p *parser) str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(v)
	}
	return def
}

func (p *parser) list(key string, def []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (p *parser) int(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (p *parser) bool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}
