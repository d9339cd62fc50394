// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"

	"github.com/flareos/flareforge/internal/model"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu        sync.RWMutex
	threads   map[string]map[string]*model.Thread    // device -> thread ID
	memory    map[string]map[string]model.MemoryItem // device -> key
	keys      map[string]map[string]string           // device -> provider
	documents map[string]string                      // device -> html
	pingErr   error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		threads:   make(map[string]map[string]*model.Thread),
		memory:    make(map[string]map[string]model.MemoryItem),
		keys:      make(map[string]map[string]string),
		documents: make(map[string]string),
	}
}

func cloneThread(t *model.Thread) model.Thread {
	c := *t
	c.Messages = slices.Clone(t.Messages)
	if c.Messages == nil {
		c.Messages = []model.Message{}
	}
	return c
}

// CreateThread stores a new thread.
func (m *MockStore) CreateThread(ctx context.Context, device string, thread model.Thread) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	byID := m.threads[device]
	if byID == nil {
		byID = make(map[string]*model.Thread)
		m.threads[device] = byID
	}
	if _, exists := byID[thread.ID]; exists {
		return ErrDuplicateThread
	}

	// Make a copy to avoid external modification
	t := cloneThread(&thread)
	byID[t.ID] = &t
	return nil
}

// GetThread retrieves a thread by ID.
func (m *MockStore) GetThread(ctx context.Context, device, id string) (model.Thread, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.threads[device][id]
	if !ok {
		return model.Thread{}, ErrNotFound
	}
	return cloneThread(t), nil
}

// ListThreads returns the threads of device, newest first.
func (m *MockStore) ListThreads(ctx context.Context, device string) ([]model.Thread, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	threads := make([]model.Thread, 0, len(m.threads[device]))
	for _, t := range m.threads[device] {
		threads = append(threads, cloneThread(t))
	}
	sort.Slice(threads, func(i, j int) bool {
		if threads[i].CreatedAt != threads[j].CreatedAt {
			return threads[i].CreatedAt > threads[j].CreatedAt
		}
		return threads[i].ID < threads[j].ID
	})
	return threads, nil
}

// AppendMessages appends msgs to a thread and sets its title.
func (m *MockStore) AppendMessages(ctx context.Context, device, threadID, title string, msgs []model.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.threads[device][threadID]
	if !ok {
		return ErrNotFound
	}
	t.Title = title
	t.Messages = append(t.Messages, msgs...)
	return nil
}

// DeleteThread removes a thread.
func (m *MockStore) DeleteThread(ctx context.Context, device, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.threads[device][id]; !ok {
		return ErrNotFound
	}
	delete(m.threads[device], id)
	return nil
}

// ListMemory returns the memory entries of device, newest first.
func (m *MockStore) ListMemory(ctx context.Context, device string) ([]model.MemoryItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	items := slices.Collect(maps.Values(m.memory[device]))
	if items == nil {
		items = []model.MemoryItem{}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].TS != items[j].TS {
			return items[i].TS > items[j].TS
		}
		return items[i].Key < items[j].Key
	})
	return items, nil
}

// SetMemory upserts an entry, keeping the ts of an existing one.
func (m *MockStore) SetMemory(ctx context.Context, device string, item model.MemoryItem) (model.MemoryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byKey := m.memory[device]
	if byKey == nil {
		byKey = make(map[string]model.MemoryItem)
		m.memory[device] = byKey
	}
	if existing, ok := byKey[item.Key]; ok {
		item.TS = existing.TS
	}
	byKey[item.Key] = item
	return item, nil
}

// DeleteMemory removes an entry.
func (m *MockStore) DeleteMemory(ctx context.Context, device, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.memory[device][key]; !ok {
		return ErrNotFound
	}
	delete(m.memory[device], key)
	return nil
}

// GetKeys returns a copy of the provider secrets of device.
func (m *MockStore) GetKeys(ctx context.Context, device string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := maps.Clone(m.keys[device])
	if out == nil {
		out = map[string]string{}
	}
	return out, nil
}

// SetKeys replaces the provider secrets of device.
func (m *MockStore) SetKeys(ctx context.Context, device string, providers map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.keys[device] = maps.Clone(providers)
	return nil
}

// GetDocument returns the HTML document of device.
func (m *MockStore) GetDocument(ctx context.Context, device string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	html, ok := m.documents[device]
	if !ok {
		return "", ErrNotFound
	}
	return html, nil
}

// SetDocument stores the HTML document of device.
func (m *MockStore) SetDocument(ctx context.Context, device, html string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.documents[device] = html
	return nil
}

// SetPingErr makes Ping fail with err until it is reset with nil.
func (m *MockStore) SetPingErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingErr = err
}

// Ping returns the error set with SetPingErr.
func (m *MockStore) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingErr
}

// Close is a no-op for MockStore.
func (m *MockStore) Close() error {
	return nil
}

// Compile-time check
var _ Store = (*MockStore)(nil)
var _ Store = (*SQLiteStore)(nil)
