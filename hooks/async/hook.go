// Package asynchook moves cache event delivery off the request path. The
// service wraps its log hooks in it so a slow log sink never adds latency to
// a user lookup.
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/userd"
)

// Hooks queues each event for a fixed set of workers. A full queue, or a
// closed one, drops the event and counts it.
type Hooks struct {
	inner   userd.Hooks
	events  chan func()
	workers sync.WaitGroup

	mu     sync.RWMutex // guards closed against enqueue
	closed bool

	dropped atomic.Uint64
}

var _ userd.Hooks = (*Hooks)(nil)

// New starts workers goroutines (at least 1) over a queue of size queue
// (1024 when not positive).
func New(inner userd.Hooks, workers, queue int) *Hooks {
	workers = max(workers, 1)
	if queue <= 0 {
		queue = 1024
	}
	h := &Hooks{inner: inner, events: make(chan func(), queue)}
	for range workers {
		h.workers.Add(1)
		go h.run()
	}
	return h
}

func (h *Hooks) run() {
	defer h.workers.Done()
	for deliver := range h.events {
		deliver()
	}
}

// Close delivers what is queued and waits for the workers. Events raised
// afterwards, e.g. by handlers outliving a timed-out shutdown, are dropped.
func (h *Hooks) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	close(h.events)
	h.mu.Unlock()
	h.workers.Wait()
}

func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) enqueue(deliver func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.events <- deliver:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) SelfHeal(key, reason string) {
	h.enqueue(func() { h.inner.SelfHeal(key, reason) })
}

func (h *Hooks) CacheDegraded(op, key string, err error) {
	h.enqueue(func() { h.inner.CacheDegraded(op, key, err) })
}

func (h *Hooks) ProviderSetRejected(key string) {
	h.enqueue(func() { h.inner.ProviderSetRejected(key) })
}

func (h *Hooks) GenBumpError(key string, err error) {
	h.enqueue(func() { h.inner.GenBumpError(key, err) })
}
