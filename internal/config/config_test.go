package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != "127.0.0.1:8080" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if len(cfg.CassandraHosts) != 1 || cfg.CassandraHosts[0] != "127.0.0.1:9042" {
		t.Errorf("CassandraHosts = %v", cfg.CassandraHosts)
	}
	if cfg.RedisAddr != "127.0.0.1:6379" {
		t.Errorf("RedisAddr = %q", cfg.RedisAddr)
	}
	if cfg.RequestTimeout != 5*time.Second || cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("timeouts = %s/%s", cfg.RequestTimeout, cfg.ShutdownTimeout)
	}
	if cfg.CacheTTL != 0 {
		t.Errorf("CacheTTL = %s, want no expiry", cfg.CacheTTL)
	}
	if cfg.Store != "cassandra" || cfg.CacheProvider != "redis" || cfg.CacheCodec != "json" {
		t.Errorf("store/provider/codec = %s/%s/%s", cfg.Store, cfg.CacheProvider, cfg.CacheCodec)
	}
	if cfg.GenStore != "redis" {
		t.Errorf("GenStore = %q, want redis alongside the redis cache", cfg.GenStore)
	}
	if ws := cfg.Warnings(); len(ws) != 0 {
		t.Errorf("default config warns: %v", ws)
	}
}

func TestGenStoreDefaultFollowsProvider(t *testing.T) {
	t.Setenv("USERD_CACHE_PROVIDER", "ristretto")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GenStore != "local" {
		t.Fatalf("GenStore = %q, want local for an in-process cache", cfg.GenStore)
	}
}

func TestLocalGenStoreWithRedisCacheWarns(t *testing.T) {
	t.Setenv("USERD_GENSTORE", "local")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	ws := cfg.Warnings()
	if len(ws) != 1 || !strings.Contains(ws[0], "USERD_GENSTORE=local") {
		t.Fatalf("Warnings = %v", ws)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("USERD_STORE", "Dynamo")
	t.Setenv("USERD_CASSANDRA_HOSTS", "10.0.0.1:9042, 10.0.0.2:9042,")
	t.Setenv("USERD_CACHE_TTL", "90s")
	t.Setenv("USERD_REDIS_DB", "3")
	t.Setenv("USERD_CACHE_FAIL_CLOSED", "true")
	t.Setenv("USERD_LOG_BACKEND", "logrus")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store != "dynamo" {
		t.Errorf("Store = %q", cfg.Store)
	}
	if len(cfg.CassandraHosts) != 2 || cfg.CassandraHosts[1] != "10.0.0.2:9042" {
		t.Errorf("CassandraHosts = %v", cfg.CassandraHosts)
	}
	if cfg.CacheTTL != 90*time.Second || cfg.RedisDB != 3 || !cfg.CacheFailClosed || cfg.LogBackend != "logrus" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadReportsEveryBadVariable(t *testing.T) {
	t.Setenv("USERD_REQUEST_TIMEOUT", "five")
	t.Setenv("USERD_REDIS_DB", "x")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, key := range []string{"USERD_REQUEST_TIMEOUT", "USERD_REDIS_DB"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error %q does not mention %s", err, key)
		}
	}
}

func TestValidate(t *testing.T) {
	base, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		name string
		mut  func(*Config)
	}{
		{"unknown store", func(c *Config) { c.Store = "postgres" }},
		{"unknown codec", func(c *Config) { c.CacheCodec = "gob" }},
		{"empty namespace", func(c *Config) { c.CacheNamespace = "" }},
		{"redis genstore without redis", func(c *Config) { c.GenStore = "redis"; c.CacheProvider = "ristretto" }},
		{"no cassandra hosts", func(c *Config) { c.CassandraHosts = nil }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			tc.mut(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
