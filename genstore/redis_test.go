package genstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedis(t *testing.T, ttl time.Duration) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client, "user", ttl), mr
}

func TestRedisAbsentCounterReadsZero(t *testing.T) {
	r, _ := newRedis(t, 0)
	g, err := r.Snapshot(context.Background(), "single:user:abc")
	if err != nil || g != 0 {
		t.Fatalf("got (%d, %v), want (0, nil)", g, err)
	}
}

func TestRedisBumpCountsUpUnderNamespace(t *testing.T) {
	ctx := context.Background()
	r, mr := newRedis(t, 0)
	const key = "single:user:list:all_users"
	for want := uint64(1); want <= 3; want++ {
		got, err := r.Bump(ctx, key)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Fatalf("bump returned %d, want %d", got, want)
		}
	}
	if g, _ := r.Snapshot(ctx, key); g != 3 {
		t.Fatalf("snapshot = %d, want 3", g)
	}
	if v, err := mr.Get("gen:user:" + key); err != nil || v != "3" {
		t.Fatalf("stored counter = %q, %v", v, err)
	}
}

func TestRedisBumpSetsTTL(t *testing.T) {
	ctx := context.Background()
	r, mr := newRedis(t, 10*time.Minute)
	if _, err := r.Bump(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if ttl := mr.TTL("gen:user:k"); ttl != 10*time.Minute {
		t.Fatalf("ttl = %v, want 10m", ttl)
	}

	mr.FastForward(11 * time.Minute)
	if g, _ := r.Snapshot(ctx, "k"); g != 0 {
		t.Fatalf("expired counter = %d, want 0", g)
	}
}

func TestRedisBumpWithoutTTLNeverExpires(t *testing.T) {
	r, mr := newRedis(t, 0)
	if _, err := r.Bump(context.Background(), "k"); err != nil {
		t.Fatal(err)
	}
	if ttl := mr.TTL("gen:user:k"); ttl != 0 {
		t.Fatalf("ttl = %v, want none", ttl)
	}
}

func TestRedisSnapshotRejectsGarbage(t *testing.T) {
	r, mr := newRedis(t, 0)
	if err := mr.Set("gen:user:k", "not-a-number"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Snapshot(context.Background(), "k"); err == nil {
		t.Fatal("expected parse error")
	}
}
