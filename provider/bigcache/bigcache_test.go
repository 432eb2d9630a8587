package bigcache

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func TestRoundTripAndDelete(t *testing.T) {
	ctx := context.Background()
	p, err := New(ctx, Config{TTL: time.Minute, ExpectedUsers: 16, AvgEntryBytes: 128})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = p.Close(ctx) })

	if _, hit, err := p.Get(ctx, "missing"); hit || err != nil {
		t.Fatalf("missing key: hit=%v err=%v", hit, err)
	}

	frame := []byte{0x55, 0x53, 0x52, 0x44, 1, 1}
	if ok, err := p.Set(ctx, "single:users:list:all_users", frame, 0, 0); !ok || err != nil {
		t.Fatalf("set: ok=%v err=%v", ok, err)
	}
	got, hit, err := p.Get(ctx, "single:users:list:all_users")
	if err != nil || !hit || !bytes.Equal(got, frame) {
		t.Fatalf("get: %v hit=%v err=%v", got, hit, err)
	}

	if err := p.Del(ctx, "single:users:list:all_users"); err != nil {
		t.Fatal(err)
	}
	if err := p.Del(ctx, "single:users:list:all_users"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}
