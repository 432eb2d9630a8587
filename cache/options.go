package cache

import (
	"time"

	"github.com/unkn0wn-root/userd"
	c "github.com/unkn0wn-root/userd/codec"
	gen "github.com/unkn0wn-root/userd/genstore"
	pr "github.com/unkn0wn-root/userd/provider"
)

type SetCostFunc func(key string, raw []byte, isList bool) int64

// Options tune the user cache.
// Only Namespace and Provider are required; others have sensible defaults.
type Options struct {
	// Required
	Namespace string // e.g. "user"; isolates keys from other tenants of the provider
	Provider  pr.Provider

	UserCodec       c.Codec[userd.User]   // nil => JSON
	ListCodec       c.Codec[[]userd.User] // nil => JSON
	Logger          userd.Logger          // nil => NopLogger
	Hooks           userd.Hooks           // nil => NopHooks
	TTL             time.Duration         // 0 => no expiry
	CleanupInterval time.Duration         // local genstore sweep; 0 => 1h
	GenRetention    time.Duration         // local genstore retention; 0 => 30d
	ComputeSetCost  SetCostFunc           // default 1 (cost counts entries)
	GenStore        gen.GenStore          // nil => genstore.Local
	Disabled        bool                  // every read misses, every write is dropped; Provider may be nil

	// FailClosed returns provider/genstore errors to the caller instead of
	// degrading to a miss. The default (false) keeps requests served from the
	// store while the cache is unreachable.
	FailClosed bool
}
