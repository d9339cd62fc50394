// ABOUTME: Persistent memory domain: key/value entries with creation timestamps
// ABOUTME: Updating an existing key keeps its position and original timestamp

package workspace

import (
	"context"
	"errors"
	"strings"

	"github.com/flareos/flareforge/internal/localfirst"
	"github.com/flareos/flareforge/internal/model"
)

// MemoryStorageKey is the cache key of the memory entries.
const MemoryStorageKey = "flareos_memory"

// ErrEmptyKey is returned when a memory key is blank after trimming.
var ErrEmptyKey = errors.New("key is empty")

// Memory manages key/value entries. New keys appear first.
type Memory struct {
	store *localfirst.Store[model.MemoryItem]
	push  localfirst.PushFunc[model.MemoryItem]
	env   env
}

func newMemory(w *Workspace) (*Memory, error) {
	m := &Memory{env: w.env}
	opts := storeOptions(w, memoryKey, "memory", MemoryStorageKey)
	if w.client != nil {
		r := memoryRemote{client: w.client}
		opts.Remote = r
		m.push = r.Put
	}
	store, err := localfirst.New(opts)
	if err != nil {
		return nil, err
	}
	m.store = store
	return m, nil
}

func memoryKey(m model.MemoryItem) string { return m.Key }

// Set stores value under key.
func (m *Memory) Set(ctx context.Context, key, value string) (model.MemoryItem, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return model.MemoryItem{}, ErrEmptyKey
	}

	now := model.Millis(m.env.now())
	local := func(current model.MemoryItem, exists bool) model.MemoryItem {
		if exists {
			current.Value = value
			return current
		}
		return model.MemoryItem{Key: key, Value: value, TS: now}
	}
	return m.store.Update(ctx, key, local, m.push), nil
}

// Delete removes key.
func (m *Memory) Delete(ctx context.Context, key string) {
	m.store.Remove(ctx, strings.TrimSpace(key))
}

// Items returns every entry, newest key first.
func (m *Memory) Items() []model.MemoryItem {
	return m.store.State().Records
}

// Get looks up one entry.
func (m *Memory) Get(key string) (model.MemoryItem, bool) {
	return m.store.Get(key)
}

// State returns the snapshot of the domain.
func (m *Memory) State() localfirst.Snapshot[model.MemoryItem] {
	return m.store.State()
}
