// ABOUTME: BoltDB implementation of the Cache interface
// ABOUTME: Keeps every key in a single local_storage bucket of one bolt file

package cache

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
)

var bucketName = []byte("local_storage")

// Bolt implements Cache on a BoltDB file
type Bolt struct {
	db     *bolt.DB
	logger *slog.Logger
}

// NewBolt opens (or creates) the bolt file at path.
func NewBolt(path string, logger *slog.Logger) (*Bolt, error) {
	if logger == nil {
		logger = slog.Default().With("component", "cache")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bolt cache: %w", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	logger.Debug("bolt cache initialized", "path", path)
	return &Bolt{db: db, logger: logger}, nil
}

// Get returns a copy of the value stored under key, or ErrNotFound.
func (b *Bolt) Get(ctx context.Context, key string) ([]byte, error) {
	// Bolt transactions cannot be canceled mid-flight, so check up front.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var value []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketName).Get([]byte(key))
		if data == nil {
			return ErrNotFound
		}
		// Bolt memory is only valid inside the transaction.
		value = append([]byte{}, data...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Put overwrites the value stored under key.
func (b *Bolt) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if value == nil {
		value = []byte{}
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketName).Put([]byte(key), value); err != nil {
			return fmt.Errorf("writing key %s: %w", key, err)
		}
		return nil
	})
}

// Delete removes key. Deleting a missing key is not an error.
func (b *Bolt) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Delete([]byte(key))
	})
}

// Keys lists every stored key in lexical order.
func (b *Bolt) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var keys []string
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	return keys, err
}

// Close closes the bolt file
func (b *Bolt) Close() error {
	return b.db.Close()
}
