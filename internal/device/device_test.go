// ABOUTME: Tests for device identity creation, persistence and cache failure handling
// ABOUTME: Read and write failures are retried instead of pinning a process-local id

package device

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flareos/flareforge/internal/cache"
	"github.com/flareos/flareforge/internal/logging"
)

type brokenCache struct {
	cache.Cache
}

func (brokenCache) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("disk on fire")
}

func (brokenCache) Put(context.Context, string, []byte) error {
	return errors.New("disk on fire")
}

func TestIdentity_CreatesAndPersists(t *testing.T) {
	ctx := t.Context()
	c := cache.NewMemory()

	id := New(c, logging.Discard()).ID(ctx)
	_, err := uuid.Parse(id)
	require.NoError(t, err)

	stored, err := c.Get(ctx, StorageKey)
	require.NoError(t, err)
	assert.Equal(t, id, string(stored))
}

func TestIdentity_StableAcrossInstances(t *testing.T) {
	ctx := t.Context()
	c := cache.NewMemory()

	first := New(c, logging.Discard()).ID(ctx)
	second := New(c, logging.Discard()).ID(ctx)
	assert.Equal(t, first, second)
}

func TestIdentity_UsesExistingValue(t *testing.T) {
	ctx := t.Context()
	c := cache.NewMemory()
	require.NoError(t, c.Put(ctx, StorageKey, []byte("legacy-device\n")))

	assert.Equal(t, "legacy-device", New(c, logging.Discard()).ID(ctx))
}

func TestIdentity_BrokenCache(t *testing.T) {
	ctx := t.Context()
	d := New(brokenCache{}, logging.Discard())

	_, err := d.Resolve(ctx)
	require.Error(t, err)

	id := d.ID(ctx)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, d.ID(ctx), "placeholder is stable")

	_, err = d.Resolve(ctx)
	assert.Error(t, err, "a placeholder is never resolved")
}

// flakyCache fails reads until healed.
type flakyCache struct {
	cache.Cache
	mu     sync.Mutex
	broken bool
}

func (f *flakyCache) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	broken := f.broken
	f.mu.Unlock()
	if broken {
		return nil, errors.New("database is locked")
	}
	return f.Cache.Get(ctx, key)
}

func (f *flakyCache) heal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broken = false
}

func TestIdentity_TransientReadFailureIsNotMemoized(t *testing.T) {
	ctx := t.Context()
	inner := cache.NewMemory()
	require.NoError(t, inner.Put(ctx, StorageKey, []byte("stored-device")))
	c := &flakyCache{Cache: inner, broken: true}
	d := New(c, logging.Discard())

	_, err := d.Resolve(ctx)
	require.Error(t, err)
	assert.NotEqual(t, "stored-device", d.ID(ctx))

	c.heal()
	id, err := d.Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, "stored-device", id)
	assert.Equal(t, "stored-device", d.ID(ctx))
}

// writeFailCache accepts reads but rejects writes until healed.
type writeFailCache struct {
	cache.Cache
	mu     sync.Mutex
	broken bool
}

func (w *writeFailCache) Put(ctx context.Context, key string, value []byte) error {
	w.mu.Lock()
	broken := w.broken
	w.mu.Unlock()
	if broken {
		return errors.New("read-only file system")
	}
	return w.Cache.Put(ctx, key, value)
}

func TestIdentity_RetriesPersistingSameID(t *testing.T) {
	ctx := t.Context()
	c := &writeFailCache{Cache: cache.NewMemory(), broken: true}
	d := New(c, logging.Discard())

	_, err := d.Resolve(ctx)
	require.Error(t, err)
	placeholder := d.ID(ctx)

	c.mu.Lock()
	c.broken = false
	c.mu.Unlock()

	id, err := d.Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, placeholder, id)

	stored, err := c.Cache.Get(ctx, StorageKey)
	require.NoError(t, err)
	assert.Equal(t, id, string(stored))
}

func TestIdentity_ConcurrentFirstUse(t *testing.T) {
	ctx := t.Context()
	d := New(cache.NewMemory(), logging.Discard())

	ids := make([]string, 20)
	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids[i] = d.ID(ctx)
		}()
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}
