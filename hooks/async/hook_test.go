package asynchook

import (
	"sync"
	"testing"

	"github.com/unkn0wn-root/userd"
)

type countHooks struct {
	userd.NopHooks
	mu    sync.Mutex
	heals int
	block chan struct{}
}

func (c *countHooks) SelfHeal(string, string) {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	c.heals++
	c.mu.Unlock()
}

func TestDeliversAllOnClose(t *testing.T) {
	inner := &countHooks{}
	h := New(inner, 2, 16)
	for i := 0; i < 10; i++ {
		h.SelfHeal("k", "corrupt")
	}
	h.Close()
	if inner.heals != 10 {
		t.Fatalf("delivered %d want 10", inner.heals)
	}
	h.Close() // idempotent
}

func TestDropsWhenFull(t *testing.T) {
	inner := &countHooks{block: make(chan struct{})}
	h := New(inner, 1, 1)

	// worker picks one and blocks, queue holds one more; the rest drop
	for i := 0; i < 10; i++ {
		h.SelfHeal("k", "corrupt")
	}
	close(inner.block)
	h.Close()

	if h.Dropped() == 0 {
		t.Fatalf("expected dropped events")
	}
	if uint64(inner.heals)+h.Dropped() != 10 {
		t.Fatalf("delivered %d + dropped %d != 10", inner.heals, h.Dropped())
	}
}

func TestEventsAfterCloseAreDropped(t *testing.T) {
	inner := &countHooks{}
	h := New(inner, 1, 4)
	h.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.SelfHeal("k", "corrupt")
			h.CacheDegraded("get", "k", nil)
		}()
	}
	wg.Wait()

	if inner.heals != 0 {
		t.Fatalf("delivered %d events after Close", inner.heals)
	}
	if h.Dropped() != 16 {
		t.Fatalf("dropped %d, want 16", h.Dropped())
	}
}

func TestCloseRacesWithEvents(t *testing.T) {
	h := New(&countHooks{}, 2, 8)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				h.ProviderSetRejected("k")
			}
		}()
	}
	h.Close()
	wg.Wait()
}
