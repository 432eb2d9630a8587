// Package cache is the cache-aside layer for users: single entries keyed by
// id and one entry holding the whole collection. Values are framed with the
// generation current at write time; a read whose frame generation no longer
// matches the generation store is treated as a miss and the entry is deleted.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/unkn0wn-root/userd"
	c "github.com/unkn0wn-root/userd/codec"
	gen "github.com/unkn0wn-root/userd/genstore"
	"github.com/unkn0wn-root/userd/internal/wire"
	pr "github.com/unkn0wn-root/userd/provider"
)

const (
	defaultGenRetention = 30 * 24 * time.Hour
	defaultSweep        = time.Hour

	// ListKey is the well-known key of the full user list.
	ListKey = "all_users"
)

// slot binds a value type to its codec and frame kind.
type slot[V any] struct {
	codec  c.Codec[V]
	encode func(gen uint64, payload []byte) []byte
	decode func(b []byte) (uint64, []byte, error)
	isList bool
}

// Users caches single users and the full user list.
type Users struct {
	ns             string
	provider       pr.Provider
	gen            gen.GenStore
	log            userd.Logger
	hooks          userd.Hooks
	ttl            time.Duration
	enabled        bool
	failClosed     bool
	computeSetCost SetCostFunc

	one slot[userd.User]
	all slot[[]userd.User]
}

func New(opts Options) (*Users, error) {
	if opts.Provider == nil && !opts.Disabled {
		return nil, errors.New("cache: provider is required")
	}
	if opts.Namespace == "" {
		return nil, errors.New("cache: namespace is required")
	}

	u := &Users{
		ns:         opts.Namespace,
		provider:   opts.Provider,
		ttl:        opts.TTL,
		enabled:    !opts.Disabled,
		failClosed: opts.FailClosed,
	}

	// defaults
	u.log = coalesce[userd.Logger](opts.Logger, userd.NopLogger{})
	u.hooks = coalesce[userd.Hooks](opts.Hooks, userd.NopHooks{})
	sweep := coalesce[time.Duration](opts.CleanupInterval, defaultSweep)
	retention := coalesce[time.Duration](opts.GenRetention, defaultGenRetention)

	if opts.ComputeSetCost != nil {
		u.computeSetCost = opts.ComputeSetCost
	} else {
		u.computeSetCost = func(string, []byte, bool) int64 { return 1 }
	}

	if opts.GenStore != nil {
		u.gen = opts.GenStore
	} else {
		u.gen = gen.NewLocal(sweep, retention)
	}

	u.one = slot[userd.User]{
		codec:  coalesce[c.Codec[userd.User]](opts.UserCodec, c.JSON[userd.User]{}),
		encode: wire.EncodeSingle,
		decode: wire.DecodeSingle,
	}
	u.all = slot[[]userd.User]{
		codec:  coalesce[c.Codec[[]userd.User]](opts.ListCodec, c.JSON[[]userd.User]{}),
		encode: wire.EncodeList,
		decode: wire.DecodeList,
		isList: true,
	}
	return u, nil
}

func (u *Users) Enabled() bool { return u.enabled }

func (u *Users) Close(ctx context.Context) error {
	// gen store first (best effort)
	if u.gen != nil {
		_ = u.gen.Close(ctx)
	}
	if u.provider != nil {
		return u.provider.Close(ctx)
	}
	return nil
}

// GetUser returns the cached user for id. Undecodable or stale entries are
// deleted and reported as a miss.
func (u *Users) GetUser(ctx context.Context, id string) (userd.User, bool, error) {
	return get(ctx, u, u.one, u.singleKey(id))
}

// SnapshotUser returns the generation to pass to SetUserWithGen. Take it
// before reading the store.
func (u *Users) SnapshotUser(ctx context.Context, id string) uint64 {
	return u.snapshotGen(ctx, u.singleKey(id))
}

// SetUserWithGen caches user iff its generation is still observedGen.
func (u *Users) SetUserWithGen(ctx context.Context, user userd.User, observedGen uint64) error {
	return setWithGen(ctx, u, u.one, u.singleKey(user.ID.String()), user, observedGen)
}

// SetUser overwrites the cached user after a store write. It bumps the
// generation first so in-flight read fills holding an older snapshot are
// discarded.
func (u *Users) SetUser(ctx context.Context, user userd.User) error {
	return set(ctx, u, u.one, u.singleKey(user.ID.String()), user)
}

// DeleteUser invalidates the cached user. Idempotent.
func (u *Users) DeleteUser(ctx context.Context, id string) error {
	return u.invalidate(ctx, u.singleKey(id))
}

// GetAllUsers returns the cached list.
func (u *Users) GetAllUsers(ctx context.Context) ([]userd.User, bool, error) {
	return get(ctx, u, u.all, u.listKey())
}

func (u *Users) SnapshotAll(ctx context.Context) uint64 {
	return u.snapshotGen(ctx, u.listKey())
}

// SetAllUsersWithGen replaces the list iff its generation is still observedGen.
func (u *Users) SetAllUsersWithGen(ctx context.Context, users []userd.User, observedGen uint64) error {
	return setWithGen(ctx, u, u.all, u.listKey(), users, observedGen)
}

// SetAllUsers replaces the whole list. The list is never edited in place.
func (u *Users) SetAllUsers(ctx context.Context, users []userd.User) error {
	return set(ctx, u, u.all, u.listKey(), users)
}

// DropAll invalidates the list entry.
func (u *Users) DropAll(ctx context.Context) error {
	return u.invalidate(ctx, u.listKey())
}

func get[V any](ctx context.Context, u *Users, s slot[V], k string) (V, bool, error) {
	var zero V
	if !u.enabled {
		return zero, false, nil
	}
	raw, ok, err := u.provider.Get(ctx, k)
	if err != nil {
		return zero, false, u.degrade("get", k, err)
	}
	if !ok {
		return zero, false, nil
	}
	g, payload, err := s.decode(raw)
	if err != nil {
		u.selfHeal(ctx, k, "corrupt")
		return zero, false, nil
	}
	cur, err := u.gen.Snapshot(ctx, k)
	if err != nil {
		return zero, false, u.degrade("snapshot", k, err)
	}
	if g != cur {
		u.selfHeal(ctx, k, "gen_mismatch")
		return zero, false, nil
	}
	v, err := s.codec.Decode(payload)
	if err != nil {
		u.selfHeal(ctx, k, "value_decode")
		return zero, false, nil
	}
	return v, true, nil
}

func setWithGen[V any](ctx context.Context, u *Users, s slot[V], k string, v V, observedGen uint64) error {
	if !u.enabled {
		return nil
	}
	cur, err := u.gen.Snapshot(ctx, k)
	if err != nil {
		return u.degrade("snapshot", k, err)
	}
	if cur != observedGen {
		// generation moved; skip stale write
		u.log.Debug("cache fill skipped (gen mismatch)", userd.Fields{"key": k, "obs": observedGen, "cur": cur})
		return nil
	}
	return write(ctx, u, s, k, v, observedGen)
}

func set[V any](ctx context.Context, u *Users, s slot[V], k string, v V) error {
	if !u.enabled {
		return nil
	}
	g, err := u.gen.Bump(ctx, k)
	if err != nil {
		u.hooks.GenBumpError(k, err)
		// without a fresh generation the old frame can't be fenced off; drop it
		_ = u.provider.Del(ctx, k)
		return u.degrade("bump", k, err)
	}
	return write(ctx, u, s, k, v, g)
}

func write[V any](ctx context.Context, u *Users, s slot[V], k string, v V, g uint64) error {
	payload, err := s.codec.Encode(v)
	if err != nil {
		return u.degrade("encode", k, err)
	}
	frame := s.encode(g, payload)
	ok, err := u.provider.Set(ctx, k, frame, u.computeSetCost(k, frame, s.isList), u.ttl)
	if err != nil {
		return u.degrade("set", k, err)
	}
	if !ok {
		u.hooks.ProviderSetRejected(k)
		u.log.Debug("cache set rejected by provider (pressure)", userd.Fields{"key": k})
	}
	return nil
}

func (u *Users) invalidate(ctx context.Context, k string) error {
	if !u.enabled {
		return nil
	}
	newGen, bumpErr := u.gen.Bump(ctx, k)
	if bumpErr != nil {
		u.hooks.GenBumpError(k, bumpErr)
	}
	delErr := u.provider.Del(ctx, k)
	if bumpErr != nil && delErr != nil {
		return u.degrade("del", k, fmt.Errorf("bump: %w; delete: %w", bumpErr, delErr))
	}
	if delErr != nil {
		// the bump alone already fences the old frame
		u.log.Debug("invalidate: delete failed after gen bump", userd.Fields{"key": k, "err": delErr})
	}
	u.log.Debug("invalidated key", userd.Fields{"key": k, "newGen": newGen})
	return nil
}

func (u *Users) snapshotGen(ctx context.Context, k string) uint64 {
	g, err := u.gen.Snapshot(ctx, k)
	if err != nil {
		// 0 makes the fill lose its CAS; readers self-heal
		u.log.Warn("gen snapshot error", userd.Fields{"key": k, "err": err})
		u.hooks.CacheDegraded("snapshot", k, err)
		return 0
	}
	return g
}

func (u *Users) selfHeal(ctx context.Context, k, reason string) {
	_ = u.provider.Del(ctx, k)
	u.hooks.SelfHeal(k, reason)
}

// degrade reports a cache failure. In FailClosed mode the error is returned
// to the caller; otherwise the request carries on without the cache.
func (u *Users) degrade(op, k string, err error) error {
	u.hooks.CacheDegraded(op, k, err)
	if u.failClosed {
		return &OpError{Op: op, Key: k, Err: err}
	}
	u.log.Warn(fmt.Sprintf("cache %s failed; serving from store", op), userd.Fields{"key": k, "err": err})
	return nil
}

func (u *Users) singleKey(id string) string {
	// isolate by namespace
	return "single:" + u.ns + ":" + id
}

func (u *Users) listKey() string {
	return "single:" + u.ns + ":list:" + ListKey
}
