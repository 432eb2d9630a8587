package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/unkn0wn-root/userd"
	"github.com/unkn0wn-root/userd/cache"
	pr "github.com/unkn0wn-root/userd/provider"
	"github.com/unkn0wn-root/userd/provider/bigcache"
	"github.com/unkn0wn-root/userd/store/memstore"
)

// countingStore wraps memstore and can fail chosen calls.
type countingStore struct {
	*memstore.Store

	mu          sync.Mutex
	getAll      int
	getByID     int
	failGetAll  error
	failByIDAt  int // 1-based GetByID call that fails; 0 = never
	failByIDErr error
}

func newCountingStore() *countingStore { return &countingStore{Store: memstore.New()} }

func (s *countingStore) GetAll(ctx context.Context) ([]userd.User, error) {
	s.mu.Lock()
	s.getAll++
	err := s.failGetAll
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.Store.GetAll(ctx)
}

func (s *countingStore) GetByID(ctx context.Context, id uuid.UUID) (userd.User, bool, error) {
	s.mu.Lock()
	s.getByID++
	fail := s.failByIDAt != 0 && s.getByID == s.failByIDAt
	s.mu.Unlock()
	if fail {
		return userd.User{}, false, s.failByIDErr
	}
	return s.Store.GetByID(ctx, id)
}

func (s *countingStore) getAllCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getAll
}

// downProvider fails every call, like an unreachable Redis.
type downProvider struct{}

var errDown = errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")

func (downProvider) Get(context.Context, string) ([]byte, bool, error) { return nil, false, errDown }
func (downProvider) Set(context.Context, string, []byte, int64, time.Duration) (bool, error) {
	return false, errDown
}
func (downProvider) Del(context.Context, string) error { return errDown }
func (downProvider) Close(context.Context) error       { return nil }

func newTestCache(t *testing.T, mut func(*cache.Options)) *cache.Users {
	t.Helper()
	p, err := bigcache.New(context.Background(), bigcache.Config{ExpectedUsers: 64, AvgEntryBytes: 256})
	if err != nil {
		t.Fatalf("bigcache: %v", err)
	}
	opts := cache.Options{Namespace: "user", Provider: p}
	if mut != nil {
		mut(&opts)
	}
	c, err := cache.New(opts)
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c
}

func newTestService(t *testing.T) (*Users, *countingStore) {
	t.Helper()
	st := newCountingStore()
	return New(st, newTestCache(t, nil), nil), st
}

func ptr(s string) *string { return &s }

func partial(p userd.PartialUser) func(*userd.PartialUser) error {
	return func(dst *userd.PartialUser) error {
		*dst = p
		return nil
	}
}

func wantKind(t *testing.T, err error, k userd.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", k)
	}
	if got := userd.KindOf(err); got != k {
		t.Fatalf("kind = %s, want %s (err=%v)", got, k, err)
	}
}

func TestCreateThenGet(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	created, err := svc.Create(ctx, userd.User{Name: "Ann", Email: "ann@x.com"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == uuid.Nil {
		t.Fatal("Create did not assign an id")
	}

	got, fromCache, err := svc.Get(ctx, created.ID.String())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fromCache {
		t.Fatal("first Get should come from the store")
	}
	if got != created {
		t.Fatalf("got %+v, want %+v", got, created)
	}

	got, fromCache, err = svc.Get(ctx, created.ID.String())
	if err != nil || !fromCache || got != created {
		t.Fatalf("second Get = %+v fromCache=%v err=%v", got, fromCache, err)
	}
}

func TestCreateIgnoresClientID(t *testing.T) {
	svc, _ := newTestService(t)
	supplied := uuid.New()
	created, err := svc.Create(context.Background(), userd.User{ID: supplied, Name: "Ann", Email: "ann@x.com"})
	if err != nil {
		t.Fatal(err)
	}
	if created.ID == supplied {
		t.Fatal("client supplied id was kept")
	}
}

func TestGetMissingAndMalformed(t *testing.T) {
	svc, _ := newTestService(t)
	_, _, err := svc.Get(context.Background(), uuid.NewString())
	wantKind(t, err, userd.KindNotFound)

	_, _, err = svc.Get(context.Background(), "not-a-uuid")
	wantKind(t, err, userd.KindNotFound)
	if !strings.Contains(err.Error(), "not-a-uuid") {
		t.Errorf("message %q should name the id", err.Error())
	}
}

func TestCreateValidation(t *testing.T) {
	svc, st := newTestService(t)
	cases := []struct {
		name string
		in   userd.User
		msg  string
	}{
		{"blank name", userd.User{Name: "   ", Email: "a@x.com"}, "Name cannot be blank"},
		{"bad email", userd.User{Name: "Ann", Email: "nope"}, "Invalid email format"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tc.in)
			wantKind(t, err, userd.KindValidation)
			if err.Error() != tc.msg {
				t.Errorf("msg = %q, want %q", err.Error(), tc.msg)
			}
		})
	}
	users, _ := st.Store.GetAll(context.Background())
	if len(users) != 0 {
		t.Fatalf("invalid input reached the store: %+v", users)
	}
}

func TestCreateDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	if _, err := svc.Create(ctx, userd.User{Name: "Ann", Email: "ann@x.com"}); err != nil {
		t.Fatal(err)
	}
	_, err := svc.Create(ctx, userd.User{Name: "Other", Email: "ann@x.com"})
	wantKind(t, err, userd.KindValidation)
	if err.Error() != "Email ann@x.com is already in use" {
		t.Errorf("msg = %q", err.Error())
	}
	users, _ := st.Store.GetAll(ctx)
	if len(users) != 1 {
		t.Fatalf("users = %d, want 1", len(users))
	}
}

func TestDeleteThenGet(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	u, err := svc.Create(ctx, userd.User{Name: "Ann", Email: "ann@x.com"})
	if err != nil {
		t.Fatal(err)
	}
	// warm the single entry
	if _, _, err := svc.Get(ctx, u.ID.String()); err != nil {
		t.Fatal(err)
	}

	id, err := svc.Delete(ctx, u.ID.String())
	if err != nil || id != u.ID {
		t.Fatalf("Delete = %s, %v", id, err)
	}
	_, _, err = svc.Get(ctx, u.ID.String())
	wantKind(t, err, userd.KindNotFound)

	_, err = svc.Delete(ctx, u.ID.String())
	wantKind(t, err, userd.KindNotFound)
}

func TestUpdateEmptyPartialRejected(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	u, _ := svc.Create(ctx, userd.User{Name: "Ann", Email: "ann@x.com"})

	_, err := svc.Update(ctx, u.ID.String(), partial(userd.PartialUser{}))
	wantKind(t, err, userd.KindValidation)

	got, _, _ := st.Store.GetByID(ctx, u.ID)
	if got != u {
		t.Fatalf("entity changed: %+v", got)
	}
}

func TestUpdateValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	u, _ := svc.Create(ctx, userd.User{Name: "Ann", Email: "ann@x.com"})

	_, err := svc.Update(ctx, u.ID.String(), partial(userd.PartialUser{Name: ptr(" ")}))
	wantKind(t, err, userd.KindValidation)

	_, err = svc.Update(ctx, u.ID.String(), partial(userd.PartialUser{Email: ptr("bad")}))
	wantKind(t, err, userd.KindValidation)

	_, err = svc.Update(ctx, u.ID.String(), func(*userd.PartialUser) error { return errors.New("unexpected EOF") })
	wantKind(t, err, userd.KindValidation)
	if !strings.HasPrefix(err.Error(), "Invalid input: ") {
		t.Errorf("msg = %q", err.Error())
	}
}

func TestUpdateMissingUserWinsOverBadBody(t *testing.T) {
	svc, _ := newTestService(t)
	called := false
	_, err := svc.Update(context.Background(), uuid.NewString(), func(*userd.PartialUser) error {
		called = true
		return errors.New("bad body")
	})
	wantKind(t, err, userd.KindNotFound)
	if called {
		t.Fatal("body decoded for a missing user")
	}
}

func TestUpdateEmailOwnership(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	a, _ := svc.Create(ctx, userd.User{Name: "Ann", Email: "ann@x.com"})
	b, _ := svc.Create(ctx, userd.User{Name: "Bob", Email: "bob@x.com"})

	_, err := svc.Update(ctx, b.ID.String(), partial(userd.PartialUser{Email: ptr(a.Email)}))
	wantKind(t, err, userd.KindValidation)

	// re-submitting your own email is fine
	res, err := svc.Update(ctx, a.ID.String(), partial(userd.PartialUser{Name: ptr("Annie"), Email: ptr(a.Email)}))
	if err != nil {
		t.Fatal(err)
	}
	if res.User == nil || res.User.Name != "Annie" || res.User.Email != a.Email {
		t.Fatalf("result = %+v", res.User)
	}
}

func TestUpdateRefreshesCaches(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	u, _ := svc.Create(ctx, userd.User{Name: "Ann", Email: "ann@x.com"})
	if _, _, err := svc.Get(ctx, u.ID.String()); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Update(ctx, u.ID.String(), partial(userd.PartialUser{Name: ptr("Annie")})); err != nil {
		t.Fatal(err)
	}
	got, fromCache, err := svc.Get(ctx, u.ID.String())
	if err != nil {
		t.Fatal(err)
	}
	if !fromCache || got.Name != "Annie" {
		t.Fatalf("single entry = %+v fromCache=%v", got, fromCache)
	}
}

func TestUpdateRereadFailureIsDegradedSuccess(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	u, _ := svc.Create(ctx, userd.User{Name: "Ann", Email: "ann@x.com"})

	// call 1 is the existence check, call 2 the re-read
	st.mu.Lock()
	st.getByID = 0
	st.failByIDAt = 2
	st.failByIDErr = errors.New("read timeout")
	st.mu.Unlock()

	res, err := svc.Update(ctx, u.ID.String(), partial(userd.PartialUser{Name: ptr("Annie")}))
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if res.User != nil || res.ID != u.ID {
		t.Fatalf("result = %+v", res)
	}
	got, _, _ := st.Store.GetByID(ctx, u.ID)
	if got.Name != "Annie" {
		t.Fatalf("write not committed: %+v", got)
	}
}

func TestListCacheReflectsMutations(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)

	users, fromCache, err := svc.List(ctx)
	if err != nil || fromCache || len(users) != 0 {
		t.Fatalf("empty List = %v fromCache=%v err=%v", users, fromCache, err)
	}

	a, _ := svc.Create(ctx, userd.User{Name: "Ann", Email: "ann@x.com"})
	b, _ := svc.Create(ctx, userd.User{Name: "Bob", Email: "bob@x.com"})

	before := st.getAllCalls()
	users, fromCache, err = svc.List(ctx)
	if err != nil || !fromCache || len(users) != 2 {
		t.Fatalf("List after creates = %v fromCache=%v err=%v", users, fromCache, err)
	}
	if st.getAllCalls() != before {
		t.Fatal("cached List hit the store")
	}

	if _, err := svc.Update(ctx, a.ID.String(), partial(userd.PartialUser{Name: ptr("Annie")})); err != nil {
		t.Fatal(err)
	}
	users, fromCache, _ = svc.List(ctx)
	if !fromCache || !containsName(users, "Annie") || containsName(users, "Ann") {
		t.Fatalf("List after update = %+v", users)
	}

	if _, err := svc.Delete(ctx, b.ID.String()); err != nil {
		t.Fatal(err)
	}
	users, fromCache, _ = svc.List(ctx)
	if !fromCache || len(users) != 1 || users[0].ID != a.ID {
		t.Fatalf("List after delete = %+v", users)
	}
}

func TestEmptyCachedListFallsThrough(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	if _, _, err := svc.List(ctx); err != nil {
		t.Fatal(err)
	}
	before := st.getAllCalls()
	if _, _, err := svc.List(ctx); err != nil {
		t.Fatal(err)
	}
	if st.getAllCalls() != before+1 {
		t.Fatal("an empty cached list should be re-read from the store")
	}
}

func TestStoreFailureIsBackend(t *testing.T) {
	svc, st := newTestService(t)
	st.failGetAll = errors.New("no hosts available")

	_, _, err := svc.List(context.Background())
	wantKind(t, err, userd.KindBackend)
	if err.Error() != "Database error: no hosts available" {
		t.Errorf("msg = %q", err.Error())
	}
}

func TestCacheDownServesFromStore(t *testing.T) {
	ctx := context.Background()
	st := newCountingStore()
	svc := New(st, newCacheOver(t, downProvider{}, false), nil)

	u, err := svc.Create(ctx, userd.User{Name: "Ann", Email: "ann@x.com"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, fromCache, err := svc.Get(ctx, u.ID.String())
	if err != nil || fromCache || got != u {
		t.Fatalf("Get = %+v fromCache=%v err=%v", got, fromCache, err)
	}
	users, _, err := svc.List(ctx)
	if err != nil || len(users) != 1 {
		t.Fatalf("List = %+v err=%v", users, err)
	}
	if _, err := svc.Delete(ctx, u.ID.String()); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}

func TestCacheFailClosed(t *testing.T) {
	svc := New(newCountingStore(), newCacheOver(t, downProvider{}, true), nil)
	_, _, err := svc.List(context.Background())
	wantKind(t, err, userd.KindBackend)
	if !strings.HasPrefix(err.Error(), "Cache error") {
		t.Errorf("msg = %q", err.Error())
	}
}

func newCacheOver(t *testing.T, p pr.Provider, failClosed bool) *cache.Users {
	t.Helper()
	c, err := cache.New(cache.Options{Namespace: "user", Provider: p, FailClosed: failClosed})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c
}

func containsName(users []userd.User, name string) bool {
	for _, u := range users {
		if u.Name == name {
			return true
		}
	}
	return false
}
