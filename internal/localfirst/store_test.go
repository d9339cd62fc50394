// ABOUTME: Tests for the local-first store against a scriptable fake remote
// ABOUTME: Covers fallback, remote-wins merge, the deletion outbox, ordering and serialization

package localfirst

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flareos/flareforge/internal/cache"
	"github.com/flareos/flareforge/internal/logging"
)

type item struct {
	Key     string `json:"key"`
	Value   string `json:"value"`
	Version int    `json:"version,omitempty"`
}

func itemKey(i item) string { return i.Key }

type fixedDevice string

func (d fixedDevice) Resolve(context.Context) (string, error) { return string(d), nil }

// switchDevice fails to resolve until enabled.
type switchDevice struct {
	mu sync.Mutex
	ok bool
}

func (d *switchDevice) Resolve(context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.ok {
		return "", errors.New("reading device id: database is locked")
	}
	return "dev-1", nil
}

func (d *switchDevice) enable() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ok = true
}

type statusErr int

func (e statusErr) Error() string   { return fmt.Sprintf("status %d", int(e)) }
func (e statusErr) NotFound() bool  { return e == 404 }
func (e statusErr) Permanent() bool { return e >= 400 && e < 500 && e != 404 && e != 408 && e != 429 }

var errDown = errors.New("connection refused")

// fakeRemote stores items per device and fails on demand.
type fakeRemote struct {
	mu        sync.Mutex
	items     map[string]item
	fetchErr  error
	putErr    error
	deleteErr error
	deletes   []string
	puts      int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{items: make(map[string]item)}
}

func (f *fakeRemote) Fetch(_ context.Context, device string) ([]item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if device != "dev-1" {
		return nil, fmt.Errorf("unexpected device %q", device)
	}
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	out := make([]item, 0, len(f.items))
	for _, it := range f.items {
		out = append(out, it)
	}
	return out, nil
}

func (f *fakeRemote) Put(_ context.Context, _ string, it item) (item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return item{}, f.putErr
	}
	f.puts++
	it.Version = f.puts
	f.items[it.Key] = it
	return it, nil
}

func (f *fakeRemote) Delete(_ context.Context, _ string, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, key)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.items[key]; !ok {
		return statusErr(404)
	}
	delete(f.items, key)
	return nil
}

func (f *fakeRemote) set(fn func(f *fakeRemote)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(t *testing.T, c cache.Cache, r Remote[item], clk *clock) *Store[item] {
	t.Helper()
	opts := Options[item]{
		Domain:     "items",
		StorageKey: "flareos_items",
		Key:        itemKey,
		Cache:      c,
		Device:     fixedDevice("dev-1"),
		Retry:      RetryPolicy{Initial: time.Second, Max: time.Minute},
		Logger:     logging.Discard(),
	}
	if r != nil {
		opts.Remote = r
	}
	if clk != nil {
		opts.Now = clk.Now
	}
	s, err := New(opts)
	require.NoError(t, err)
	return s
}

func values(s *Store[item]) map[string]string {
	out := make(map[string]string)
	for _, r := range s.State().Records {
		out[r.Key] = r.Value
	}
	return out
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Options[item]{StorageKey: "k", Key: itemKey, Cache: cache.NewMemory()})
	assert.Error(t, err)

	_, err = New(Options[item]{Domain: "d", StorageKey: "k", Key: itemKey, Cache: cache.NewMemory(), Remote: newFakeRemote()})
	assert.Error(t, err, "remote without device identity")

	s, err := New(Options[item]{Domain: "d", StorageKey: "k", Key: itemKey, Cache: cache.NewMemory()})
	require.NoError(t, err)
	assert.Equal(t, StatusUnknown, s.Status())
}

func TestStore_UpsertVisibleRegardlessOfRemote(t *testing.T) {
	for _, down := range []bool{false, true} {
		t.Run(fmt.Sprintf("down=%v", down), func(t *testing.T) {
			ctx := t.Context()
			remote := newFakeRemote()
			s := newTestStore(t, cache.NewMemory(), remote, nil)
			s.Initialize(ctx)

			if down {
				remote.set(func(f *fakeRemote) { f.putErr = errDown })
			}
			got := s.Upsert(ctx, item{Key: "a", Value: "1"})

			rec, ok := s.Get("a")
			require.True(t, ok)
			assert.Equal(t, "1", rec.Value)
			assert.Equal(t, got, rec)
			if down {
				assert.Equal(t, StatusOffline, s.Status())
			} else {
				assert.Equal(t, StatusOnline, s.Status())
			}
		})
	}
}

func TestStore_OfflineOverwriteScenario(t *testing.T) {
	ctx := t.Context()
	remote := newFakeRemote()
	remote.fetchErr = errDown
	remote.putErr = errDown
	s := newTestStore(t, cache.NewMemory(), remote, nil)

	assert.Equal(t, StatusOffline, s.Initialize(ctx))
	s.Upsert(ctx, item{Key: "a", Value: "1"})
	s.Upsert(ctx, item{Key: "a", Value: "2"})

	snap := s.State()
	assert.Equal(t, []item{{Key: "a", Value: "2"}}, snap.Records)
	assert.Equal(t, StatusOffline, snap.Status)
}

func TestStore_InitializeFallsBackToCache(t *testing.T) {
	ctx := t.Context()
	c := cache.NewMemory()
	remote := newFakeRemote()

	first := newTestStore(t, c, remote, nil)
	first.Initialize(ctx)
	first.Upsert(ctx, item{Key: "a", Value: "1"})
	first.Upsert(ctx, item{Key: "b", Value: "2"})
	written := first.State().Records

	remote.set(func(f *fakeRemote) { f.fetchErr = errors.New("invalid character '<' looking for beginning of value") })

	second := newTestStore(t, c, remote, nil)
	assert.Equal(t, StatusOffline, second.Initialize(ctx))
	assert.Equal(t, written, second.State().Records)
}

func TestStore_InitializeEmptyWithoutCache(t *testing.T) {
	remote := newFakeRemote()
	remote.fetchErr = errDown
	s := newTestStore(t, cache.NewMemory(), remote, nil)

	s.Initialize(t.Context())
	snap := s.State()
	assert.Empty(t, snap.Records)
	assert.NotNil(t, snap.Records)
	assert.Equal(t, StatusOffline, snap.Status)
}

func TestStore_UndecodableCacheIsEmpty(t *testing.T) {
	ctx := t.Context()
	c := cache.NewMemory()
	require.NoError(t, c.Put(ctx, "flareos_items", []byte("{not json")))

	s := newTestStore(t, c, nil, nil)
	assert.Equal(t, StatusLocal, s.Initialize(ctx))
	assert.Empty(t, s.State().Records)
}

func TestStore_InitializeWritesCache(t *testing.T) {
	ctx := t.Context()
	c := cache.NewMemory()
	remote := newFakeRemote()
	remote.items["a"] = item{Key: "a", Value: "remote"}

	s := newTestStore(t, c, remote, nil)
	assert.Equal(t, StatusOnline, s.Initialize(ctx))

	data, err := c.Get(ctx, "flareos_items")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"key":"a","value":"remote"}]`, string(data))
}

func TestStore_RemoteWins(t *testing.T) {
	ctx := t.Context()
	s := newTestStore(t, cache.NewMemory(), newFakeRemote(), nil)
	s.Initialize(ctx)

	push := func(v string) PushFunc[item] {
		return func(context.Context, string, item) (item, error) {
			return item{Key: "t1", Value: "server:" + v}, nil
		}
	}

	s.Apply(ctx, item{Key: "t1", Value: "one"}, push("one"))
	got := s.Apply(ctx, item{Key: "t1", Value: "two"}, push("two"))

	assert.Equal(t, "server:two", got.Value)
	snap := s.State()
	require.Len(t, snap.Records, 1)
	assert.Equal(t, "server:two", snap.Records[0].Value)
}

func TestStore_ApplyNilPushKeepsStatus(t *testing.T) {
	ctx := t.Context()
	remote := newFakeRemote()
	remote.fetchErr = errDown
	s := newTestStore(t, cache.NewMemory(), remote, nil)
	s.Initialize(ctx)

	s.Apply(ctx, item{Key: "x", Value: "local"}, nil)
	assert.Equal(t, StatusOffline, s.Status())
	_, ok := s.Get("x")
	assert.True(t, ok)
}

func TestStore_RemoveWithFailingRemote(t *testing.T) {
	ctx := t.Context()
	c := cache.NewMemory()
	remote := newFakeRemote()
	s := newTestStore(t, c, remote, nil)
	s.Initialize(ctx)
	s.Upsert(ctx, item{Key: "a", Value: "1"})

	remote.set(func(f *fakeRemote) { f.deleteErr = errDown })
	s.Remove(ctx, "a")

	_, ok := s.Get("a")
	assert.False(t, ok)
	snap := s.State()
	assert.Equal(t, StatusOffline, snap.Status)
	assert.Equal(t, 1, snap.Pending)

	pending := s.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "a", pending[0].Key)
	assert.Equal(t, 1, pending[0].Attempts)
	assert.Contains(t, pending[0].LastError, "connection refused")

	data, err := c.Get(ctx, "flareos_items")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
}

func TestStore_RemoveNotFoundIsSuccess(t *testing.T) {
	ctx := t.Context()
	s := newTestStore(t, cache.NewMemory(), newFakeRemote(), nil)
	s.Initialize(ctx)
	s.Apply(ctx, item{Key: "local-only", Value: "x"}, nil)

	s.Remove(ctx, "local-only")
	snap := s.State()
	assert.Equal(t, StatusOnline, snap.Status)
	assert.Zero(t, snap.Pending)
}

type noDeleteRemote struct{ *fakeRemote }

func (noDeleteRemote) Delete(context.Context, string, string) error { return errors.ErrUnsupported }

func TestStore_RemoveUnsupported(t *testing.T) {
	ctx := t.Context()
	s := newTestStore(t, cache.NewMemory(), noDeleteRemote{newFakeRemote()}, nil)
	s.Initialize(ctx)
	s.Upsert(ctx, item{Key: "a"})

	s.Remove(ctx, "a")
	assert.Zero(t, s.State().Pending)
	assert.Equal(t, StatusOnline, s.Status())
}

func TestStore_PendingDeletionSurvivesRestart(t *testing.T) {
	ctx := t.Context()
	c := cache.NewMemory()
	remote := newFakeRemote()
	clk := &clock{now: time.Unix(1700000000, 0)}

	first := newTestStore(t, c, remote, clk)
	first.Initialize(ctx)
	first.Upsert(ctx, item{Key: "a", Value: "1"})
	first.Upsert(ctx, item{Key: "b", Value: "2"})
	remote.set(func(f *fakeRemote) { f.deleteErr = errDown })
	first.Remove(ctx, "a")
	require.Equal(t, 1, first.State().Pending)

	// Remote recovers; the restarted store must not resurrect "a" and must
	// finish the delete once it is due.
	remote.set(func(f *fakeRemote) { f.deleteErr = nil })
	clk.Advance(time.Hour)

	second := newTestStore(t, c, remote, clk)
	assert.Equal(t, StatusOnline, second.Initialize(ctx))
	assert.Equal(t, map[string]string{"b": "2"}, values(second))
	assert.Zero(t, second.State().Pending)

	remote.mu.Lock()
	_, stillRemote := remote.items["a"]
	remote.mu.Unlock()
	assert.False(t, stillRemote)

	_, err := c.Get(ctx, second.PendingKey())
	assert.ErrorIs(t, err, cache.ErrNotFound)
}

func TestStore_FetchSkipsPendingKeys(t *testing.T) {
	ctx := t.Context()
	c := cache.NewMemory()
	remote := newFakeRemote()
	remote.items["a"] = item{Key: "a", Value: "1"}
	remote.items["b"] = item{Key: "b", Value: "2"}
	remote.deleteErr = errDown

	first := newTestStore(t, c, remote, nil)
	first.Initialize(ctx)
	first.Remove(ctx, "a")

	// Deletes still fail, so "a" stays queued but hidden.
	second := newTestStore(t, c, remote, nil)
	second.Initialize(ctx)
	assert.Equal(t, map[string]string{"b": "2"}, values(second))
	assert.Equal(t, 1, second.State().Pending)
}

func TestStore_UpsertCancelsPendingDeletion(t *testing.T) {
	ctx := t.Context()
	remote := newFakeRemote()
	s := newTestStore(t, cache.NewMemory(), remote, nil)
	s.Initialize(ctx)
	s.Upsert(ctx, item{Key: "a", Value: "1"})

	remote.set(func(f *fakeRemote) { f.deleteErr = errDown })
	s.Remove(ctx, "a")
	require.Len(t, s.Pending(), 1)

	s.Upsert(ctx, item{Key: "a", Value: "again"})
	assert.Empty(t, s.Pending())
	assert.Equal(t, map[string]string{"a": "again"}, values(s))
}

func TestStore_FlushFollowsSchedule(t *testing.T) {
	ctx := t.Context()
	remote := newFakeRemote()
	clk := &clock{now: time.Unix(1700000000, 0)}
	s := newTestStore(t, cache.NewMemory(), remote, clk)
	s.Initialize(ctx)
	s.Upsert(ctx, item{Key: "a"})

	remote.set(func(f *fakeRemote) { f.deleteErr = errDown })
	s.Remove(ctx, "a")
	remote.set(func(f *fakeRemote) { f.deleteErr = nil })

	assert.Equal(t, 1, s.Flush(ctx), "not due yet")
	remote.mu.Lock()
	assert.Len(t, remote.deletes, 1)
	remote.mu.Unlock()

	clk.Advance(2 * time.Second)
	assert.Equal(t, 0, s.Flush(ctx))
	assert.Equal(t, StatusOnline, s.Status())
}

func TestStore_FlushBacksOff(t *testing.T) {
	ctx := t.Context()
	remote := newFakeRemote()
	remote.deleteErr = errDown
	clk := &clock{now: time.Unix(1700000000, 0)}
	s := newTestStore(t, cache.NewMemory(), remote, clk)
	s.Initialize(ctx)

	s.Remove(ctx, "a")
	require.Equal(t, 1, s.Pending()[0].Attempts)

	clk.Advance(time.Minute)
	assert.Equal(t, 1, s.FlushNow(ctx))
	second := s.Pending()[0]
	assert.Equal(t, 2, second.Attempts)
	assert.True(t, second.NextAttempt.After(clk.Now()))
}

func TestStore_PermanentRejectionStopsRetry(t *testing.T) {
	ctx := t.Context()
	remote := newFakeRemote()
	s := newTestStore(t, cache.NewMemory(), remote, nil)
	s.Initialize(ctx)

	remote.set(func(f *fakeRemote) { f.deleteErr = errDown })
	s.Remove(ctx, "a")

	remote.set(func(f *fakeRemote) { f.deleteErr = statusErr(403) })
	assert.Equal(t, 1, s.FlushNow(ctx))

	pending := s.Pending()
	require.Len(t, pending, 1)
	assert.True(t, pending[0].Failed)
	assert.Equal(t, "status 403", pending[0].LastError)

	remote.mu.Lock()
	calls := len(remote.deletes)
	remote.mu.Unlock()

	s.FlushNow(ctx)
	remote.mu.Lock()
	assert.Equal(t, calls, len(remote.deletes), "failed entries are not retried")
	remote.mu.Unlock()
}

func TestStore_LocalOnly(t *testing.T) {
	ctx := t.Context()
	c := cache.NewMemory()
	s, err := New(Options[item]{
		Domain:     "agents",
		StorageKey: "flareos_agents",
		Key:        itemKey,
		Cache:      c,
		Append:     true,
		Logger:     logging.Discard(),
	})
	require.NoError(t, err)

	assert.Equal(t, StatusLocal, s.Initialize(ctx))
	s.Upsert(ctx, item{Key: "first"})
	s.Upsert(ctx, item{Key: "second"})
	s.Remove(ctx, "first")
	s.Upsert(ctx, item{Key: "third"})

	snap := s.State()
	assert.Equal(t, StatusLocal, snap.Status)
	assert.Equal(t, []item{{Key: "second"}, {Key: "third"}}, snap.Records)
	assert.Zero(t, s.Flush(ctx))
}

func TestStore_PrependsNewRecords(t *testing.T) {
	ctx := t.Context()
	s := newTestStore(t, cache.NewMemory(), nil, nil)
	s.Initialize(ctx)

	s.Upsert(ctx, item{Key: "a", Value: "1"})
	s.Upsert(ctx, item{Key: "b", Value: "1"})
	s.Upsert(ctx, item{Key: "a", Value: "2"})

	assert.Equal(t, []item{{Key: "b", Value: "1"}, {Key: "a", Value: "2"}}, s.State().Records)
}

func TestStore_SnapshotIsCopy(t *testing.T) {
	ctx := t.Context()
	s := newTestStore(t, cache.NewMemory(), nil, nil)
	s.Initialize(ctx)
	s.Upsert(ctx, item{Key: "a", Value: "1"})

	snap := s.State()
	snap.Records[0].Value = "mutated"

	rec, _ := s.Get("a")
	assert.Equal(t, "1", rec.Value)
}

func TestStore_UpdatesAreSerialized(t *testing.T) {
	ctx := t.Context()
	remote := newFakeRemote()
	s := newTestStore(t, cache.NewMemory(), remote, nil)
	s.Initialize(ctx)

	const writers = 25
	var wg sync.WaitGroup
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Update(ctx, "counter", func(cur item, _ bool) item {
				return item{Key: "counter", Version: cur.Version + 1}
			}, func(_ context.Context, _ string, next item) (item, error) {
				time.Sleep(time.Millisecond)
				return next, nil
			})
		}()
	}
	wg.Wait()

	rec, ok := s.Get("counter")
	require.True(t, ok)
	assert.Equal(t, writers, rec.Version)
}

func TestStore_ReadsDoNotWaitForRemote(t *testing.T) {
	ctx := t.Context()
	s := newTestStore(t, cache.NewMemory(), newFakeRemote(), nil)
	s.Initialize(ctx)
	s.Upsert(ctx, item{Key: "a", Value: "1"})

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Apply(ctx, item{Key: "b"}, func(context.Context, string, item) (item, error) {
			close(started)
			<-release
			return item{Key: "b"}, nil
		})
	}()

	<-started
	read := make(chan Snapshot[item], 1)
	go func() { read <- s.State() }()

	select {
	case snap := <-read:
		assert.Len(t, snap.Records, 1)
	case <-time.After(time.Second):
		t.Fatal("State blocked on an in-flight remote call")
	}

	close(release)
	<-done
	assert.Len(t, s.State().Records, 2)
}

func TestStore_RunStopsOnCancel(t *testing.T) {
	remote := newFakeRemote()
	remote.deleteErr = errDown
	s := newTestStore(t, cache.NewMemory(), remote, nil)
	s.Initialize(t.Context())
	s.Remove(t.Context(), "a")

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestStore_RemoveRejectedImmediately(t *testing.T) {
	ctx := t.Context()
	remote := newFakeRemote()
	remote.deleteErr = statusErr(400)
	s := newTestStore(t, cache.NewMemory(), remote, nil)
	s.Initialize(ctx)

	s.Remove(ctx, "a")
	pending := s.Pending()
	require.Len(t, pending, 1)
	assert.True(t, pending[0].Failed)
	assert.Equal(t, StatusOnline, s.Status(), "the remote answered")
}

func TestStore_RejectedDeleteDoesNotHideRemoteRecord(t *testing.T) {
	ctx := t.Context()
	c := cache.NewMemory()
	remote := newFakeRemote()
	remote.items["a"] = item{Key: "a", Value: "1"}
	remote.deleteErr = statusErr(403)

	first := newTestStore(t, c, remote, nil)
	first.Initialize(ctx)
	first.Remove(ctx, "a")
	require.Len(t, first.Pending(), 1)
	assert.Empty(t, values(first))

	second := newTestStore(t, c, remote, nil)
	assert.Equal(t, StatusOnline, second.Initialize(ctx))
	assert.Equal(t, map[string]string{"a": "1"}, values(second), "the server kept the record")
	assert.Empty(t, second.Pending())
	assert.Equal(t, 0, second.State().Pending)

	_, err := c.Get(ctx, second.PendingKey())
	assert.ErrorIs(t, err, cache.ErrNotFound)
}

func TestStore_UnresolvedDeviceStaysOffline(t *testing.T) {
	ctx := t.Context()
	c := cache.NewMemory()
	require.NoError(t, c.Put(ctx, "flareos_items", []byte(`[{"key":"local","value":"kept"}]`)))

	remote := newFakeRemote()
	remote.items["other"] = item{Key: "other", Value: "x"}
	dev := &switchDevice{}

	s, err := New(Options[item]{
		Domain:     "items",
		StorageKey: "flareos_items",
		Key:        itemKey,
		Cache:      c,
		Remote:     remote,
		Device:     dev,
		Retry:      RetryPolicy{Initial: time.Millisecond, Max: time.Millisecond},
		Logger:     logging.Discard(),
	})
	require.NoError(t, err)

	assert.Equal(t, StatusOffline, s.Initialize(ctx))
	assert.Equal(t, map[string]string{"local": "kept"}, values(s), "cache is not overwritten")

	s.Upsert(ctx, item{Key: "b", Value: "2"})
	assert.Equal(t, StatusOffline, s.Status())
	remote.mu.Lock()
	assert.Zero(t, remote.puts, "no write without an identity")
	remote.mu.Unlock()

	s.Remove(ctx, "local")
	assert.Equal(t, 1, s.State().Pending)
	remote.mu.Lock()
	assert.Empty(t, remote.deletes)
	remote.mu.Unlock()
	assert.Equal(t, 1, s.FlushNow(ctx))

	dev.enable()
	assert.Equal(t, 0, s.FlushNow(ctx))
	assert.Equal(t, StatusOnline, s.Initialize(ctx))
}

func TestStore_RunWithNonPositiveInterval(t *testing.T) {
	s := newTestStore(t, cache.NewMemory(), newFakeRemote(), nil)
	s.Initialize(t.Context())

	for _, interval := range []time.Duration{0, -time.Second} {
		ctx, cancel := context.WithCancel(t.Context())
		done := make(chan struct{})
		go func() {
			defer close(done)
			assert.NotPanics(t, func() { s.Run(ctx, interval) })
		}()
		cancel()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Run did not return after cancel")
		}
	}
}
