package genstore

import (
	"context"
	"sync"
	"time"
)

var _ GenStore = (*Local)(nil)

type counter struct {
	gen     uint64
	touched time.Time
}

// Local keeps counters in process memory.
// A background sweep forgets counters untouched for longer than retention. A
// forgotten key reads as 0 again, which is only safe when retention outlives
// the cache TTL.
type Local struct {
	mu       sync.RWMutex
	counters map[string]counter

	stop context.CancelFunc
	done chan struct{}
}

// NewLocal starts a sweep every sweepEvery when both durations are positive.
func NewLocal(sweepEvery, retention time.Duration) *Local {
	l := &Local{counters: make(map[string]counter)}
	if sweepEvery <= 0 || retention <= 0 {
		return l
	}

	ctx, cancel := context.WithCancel(context.Background())
	l.stop = cancel
	l.done = make(chan struct{})
	go l.sweepLoop(ctx, sweepEvery, retention)
	return l
}

func (l *Local) sweepLoop(ctx context.Context, every, retention time.Duration) {
	defer close(l.done)
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			l.forgetBefore(now.Add(-retention))
		}
	}
}

func (l *Local) Snapshot(_ context.Context, key string) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.counters[key].gen, nil
}

func (l *Local) Bump(_ context.Context, key string) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c := l.counters[key]
	c.gen++
	c.touched = time.Now()
	l.counters[key] = c
	return c.gen, nil
}

// Sweep forgets counters not bumped within retention.
func (l *Local) Sweep(retention time.Duration) {
	if retention > 0 {
		l.forgetBefore(time.Now().Add(-retention))
	}
}

func (l *Local) forgetBefore(cutoff time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, c := range l.counters {
		if c.touched.Before(cutoff) {
			delete(l.counters, k)
		}
	}
}

// Close stops the sweep. Calling it again is a no-op.
func (l *Local) Close(context.Context) error {
	if l.stop != nil {
		l.stop()
		<-l.done
	}
	return nil
}
