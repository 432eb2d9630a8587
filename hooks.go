package userd

// Hooks receive the cache events worth alerting on. They run inline on the
// request path, so an implementation that does I/O should be wrapped in
// hooks/async.
type Hooks interface {
	// SelfHeal: a read found a bad entry and deleted it. reason is "corrupt",
	// "gen_mismatch" or "value_decode".
	SelfHeal(storageKey, reason string)

	// CacheDegraded: op ("get", "set", "del", "snapshot") failed and the
	// request fell back to the store.
	CacheDegraded(op, storageKey string, err error)

	// ProviderSetRejected: the provider declined a write, e.g. ristretto
	// admission under memory pressure.
	ProviderSetRejected(storageKey string)

	// GenBumpError: invalidation could not advance the generation.
	GenBumpError(storageKey string, err error)
}

// NopHooks ignores every event.
type NopHooks struct{}

func (NopHooks) SelfHeal(string, string) {}

func (NopHooks) CacheDegraded(string, string, error) {}

func (NopHooks) ProviderSetRejected(string) {}

func (NopHooks) GenBumpError(string, error) {}
