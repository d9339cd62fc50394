// ABOUTME: Store interface and errors for the flareforge backend persistence
// ABOUTME: Every record is partitioned by the device id supplied by clients

package store

import (
	"context"
	"errors"

	"github.com/flareos/flareforge/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateThread is returned when trying to create a thread that already exists
var ErrDuplicateThread = errors.New("thread already exists")

// Store defines the backend persistence for the four synced domains.
type Store interface {
	// Threads
	CreateThread(ctx context.Context, device string, thread model.Thread) error
	GetThread(ctx context.Context, device, id string) (model.Thread, error)
	// ListThreads returns threads newest first, each with its messages in order.
	ListThreads(ctx context.Context, device string) ([]model.Thread, error)
	// AppendMessages adds msgs to the end of a thread and sets its title.
	AppendMessages(ctx context.Context, device, threadID, title string, msgs []model.Message) error
	DeleteThread(ctx context.Context, device, id string) error

	// Memory
	ListMemory(ctx context.Context, device string) ([]model.MemoryItem, error)
	// SetMemory upserts an entry. An existing entry keeps its original ts.
	SetMemory(ctx context.Context, device string, item model.MemoryItem) (model.MemoryItem, error)
	DeleteMemory(ctx context.Context, device, key string) error

	// Provider keys
	// GetKeys returns an empty map when nothing is stored.
	GetKeys(ctx context.Context, device string) (map[string]string, error)
	// SetKeys replaces every stored provider secret of device.
	SetKeys(ctx context.Context, device string, providers map[string]string) error

	// Documents
	// GetDocument returns ErrNotFound when nothing is stored.
	GetDocument(ctx context.Context, device string) (string, error)
	SetDocument(ctx context.Context, device, html string) error

	// Ping checks the database is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store
	Close() error
}
