// ABOUTME: Cache interface for the durable local key/blob store used by local-first domains
// ABOUTME: Open selects the sqlite, bolt or memory driver from configuration

package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/flareos/flareforge/internal/config"
)

// ErrNotFound is returned when a key has never been written or was deleted
var ErrNotFound = errors.New("not found")

// Cache is a durable key/value store for serialized domain snapshots.
// Values are opaque blobs; every Put overwrites the whole value.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	Close() error
}

// Open creates the cache described by cfg.
func Open(cfg config.CacheConfig, logger *slog.Logger) (Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "cache", "driver", cfg.Driver)

	switch cfg.Driver {
	case config.CacheDriverSQLite:
		return NewSQLite(cfg.Path, logger)
	case config.CacheDriverBolt:
		return NewBolt(cfg.Path, logger)
	case config.CacheDriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown cache driver %q", cfg.Driver)
	}
}
