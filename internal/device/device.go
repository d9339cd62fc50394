// ABOUTME: Device identity shared by every workspace domain as the remote partition key
// ABOUTME: Generated once, persisted in the local cache and never regenerated

package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/flareos/flareforge/internal/cache"
)

// StorageKey is the cache key holding the device id.
const StorageKey = "flareos_device_id"

// Identity lazily loads or creates the device id.
type Identity struct {
	cache  cache.Cache
	logger *slog.Logger

	mu sync.Mutex
	id string
	// candidate is the id generated while it could not be persisted yet.
	candidate string
}

// New creates an Identity backed by c.
func New(c cache.Cache, logger *slog.Logger) *Identity {
	if logger == nil {
		logger = slog.Default()
	}
	return &Identity{
		cache:  c,
		logger: logger.With("component", "device"),
	}
}

// Resolve returns the persisted device id, creating and storing it on first
// use. It fails while the cache cannot be read or the new id cannot be
// written; nothing is memoized then, so the next call retries. A generated
// id is reused across retries until it is stored.
func (d *Identity) Resolve(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.id != "" {
		return d.id, nil
	}

	data, err := d.cache.Get(ctx, StorageKey)
	switch {
	case err == nil && strings.TrimSpace(string(data)) != "":
		d.id = strings.TrimSpace(string(data))
		return d.id, nil
	case err != nil && !errors.Is(err, cache.ErrNotFound):
		d.logger.Warn("reading device id failed", "error", err)
		return "", fmt.Errorf("reading device id: %w", err)
	}

	if d.candidate == "" {
		d.candidate = uuid.NewString()
	}
	if err := d.cache.Put(ctx, StorageKey, []byte(d.candidate)); err != nil {
		d.logger.Warn("persisting device id failed", "error", err)
		return "", fmt.Errorf("persisting device id: %w", err)
	}
	d.id = d.candidate
	d.logger.Info("created device id", "device", d.id)
	return d.id, nil
}

// ID returns the device id for display. When it cannot be resolved a
// process-local placeholder is returned; remote calls never use it.
func (d *Identity) ID(ctx context.Context) string {
	if id, err := d.Resolve(ctx); err == nil {
		return id
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.candidate == "" {
		d.candidate = uuid.NewString()
	}
	return d.candidate
}
