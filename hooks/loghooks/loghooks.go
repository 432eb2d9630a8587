// Package loghooks turns cache events into log lines. Keys are hashed before
// they are logged; a user key embeds the user's id.
package loghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"sync/atomic"

	"github.com/unkn0wn-root/userd"
)

type Options struct {
	// Log one in every N self-heals or degradations. 0 and 1 log all.
	SelfHealEvery uint64
	DegradedEvery uint64
	// Redact replaces the default 16-hex-digit SHA-256 prefix.
	Redact func(key string) string
}

// every passes one call in n.
type every struct {
	n   uint64
	ctr atomic.Uint64
}

func (e *every) pass() bool {
	return e.n <= 1 || e.ctr.Add(1)%e.n == 0
}

type Hooks struct {
	log      userd.Logger
	redact   func(string) string
	heals    every
	degraded every
}

var _ userd.Hooks = (*Hooks)(nil)

// New returns hooks that log through log. A nil log drops every event.
func New(log userd.Logger, opts Options) *Hooks {
	if log == nil {
		log = userd.NopLogger{}
	}
	h := &Hooks{log: log, redact: opts.Redact}
	if h.redact == nil {
		h.redact = hashKey
	}
	h.heals.n = opts.SelfHealEvery
	h.degraded.n = opts.DegradedEvery
	return h
}

func hashKey(k string) string {
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func (h *Hooks) SelfHeal(key, reason string) {
	if h.heals.pass() {
		h.log.Debug("user cache entry self-healed", userd.Fields{"key": h.redact(key), "reason": reason})
	}
}

func (h *Hooks) CacheDegraded(op, key string, err error) {
	if h.degraded.pass() {
		h.log.Warn("user cache degraded", userd.Fields{"op": op, "key": h.redact(key), "err": err})
	}
}

func (h *Hooks) ProviderSetRejected(key string) {
	h.log.Warn("user cache write rejected", userd.Fields{"key": h.redact(key)})
}

func (h *Hooks) GenBumpError(key string, err error) {
	h.log.Error("user cache generation bump failed", userd.Fields{"key": h.redact(key), "err": err})
}
