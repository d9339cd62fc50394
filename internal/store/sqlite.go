// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides thread/message persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/flareos/flareforge/internal/model"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// One connection: foreign_keys is per connection and :memory: is per connection too.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS threads (
			device TEXT NOT NULL,
			id TEXT NOT NULL,
			title TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (device, id)
		);

		CREATE INDEX IF NOT EXISTS idx_threads_device_created
			ON threads(device, created_at);

		CREATE TABLE IF NOT EXISTS messages (
			device TEXT NOT NULL,
			thread_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			ts INTEGER NOT NULL,
			PRIMARY KEY (device, thread_id, seq),
			FOREIGN KEY (device, thread_id) REFERENCES threads(device, id) ON DELETE CASCADE
		);

		CREATE TABLE IF NOT EXISTS memory_items (
			device TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			ts INTEGER NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (device, key)
		);

		CREATE TABLE IF NOT EXISTS provider_keys (
			device TEXT NOT NULL,
			provider TEXT NOT NULL,
			secret TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (device, provider)
		);

		CREATE TABLE IF NOT EXISTS documents (
			device TEXT PRIMARY KEY,
			html TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// Ping checks the database connection
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

func nowString() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// CreateThread creates a new thread for device.
// Returns ErrDuplicateThread if the id is already taken on that device.
func (s *SQLiteStore) CreateThread(ctx context.Context, device string, thread model.Thread) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO threads (device, id, title, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, device, thread.ID, thread.Title, thread.CreatedAt, nowString())
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateThread
		}
		return fmt.Errorf("inserting thread: %w", err)
	}

	if len(thread.Messages) > 0 {
		return s.AppendMessages(ctx, device, thread.ID, thread.Title, thread.Messages)
	}

	s.logger.Debug("created thread", "device", device, "id", thread.ID)
	return nil
}

// GetThread retrieves a thread with its messages.
// Returns ErrNotFound if the thread doesn't exist.
func (s *SQLiteStore) GetThread(ctx context.Context, device, id string) (model.Thread, error) {
	var thread model.Thread
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, created_at FROM threads WHERE device = ? AND id = ?
	`, device, id).Scan(&thread.ID, &thread.Title, &thread.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Thread{}, ErrNotFound
	}
	if err != nil {
		return model.Thread{}, fmt.Errorf("querying thread: %w", err)
	}

	byThread, err := s.messages(ctx, device, id)
	if err != nil {
		return model.Thread{}, err
	}
	thread.Messages = byThread[id]
	if thread.Messages == nil {
		thread.Messages = []model.Message{}
	}
	return thread, nil
}

// ListThreads returns every thread of device, newest first.
func (s *SQLiteStore) ListThreads(ctx context.Context, device string) ([]model.Thread, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, created_at FROM threads
		WHERE device = ?
		ORDER BY created_at DESC, id ASC
	`, device)
	if err != nil {
		return nil, fmt.Errorf("querying threads: %w", err)
	}
	defer rows.Close()

	threads := []model.Thread{}
	for rows.Next() {
		var t model.Thread
		if err := rows.Scan(&t.ID, &t.Title, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning thread: %w", err)
		}
		threads = append(threads, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating threads: %w", err)
	}

	byThread, err := s.messages(ctx, device, "")
	if err != nil {
		return nil, err
	}
	for i := range threads {
		threads[i].Messages = byThread[threads[i].ID]
		if threads[i].Messages == nil {
			threads[i].Messages = []model.Message{}
		}
	}
	return threads, nil
}

// messages loads the messages of one thread, or of every thread of device
// when threadID is empty, grouped by thread id.
func (s *SQLiteStore) messages(ctx context.Context, device, threadID string) (map[string][]model.Message, error) {
	query := `SELECT thread_id, role, content, ts FROM messages WHERE device = ?`
	args := []any{device}
	if threadID != "" {
		query += ` AND thread_id = ?`
		args = append(args, threadID)
	}
	query += ` ORDER BY thread_id, seq ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]model.Message)
	for rows.Next() {
		var tid string
		var m model.Message
		if err := rows.Scan(&tid, &m.Role, &m.Content, &m.TS); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		out[tid] = append(out[tid], m)
	}
	return out, rows.Err()
}

// AppendMessages adds msgs after the last message of a thread and updates its title.
func (s *SQLiteStore) AppendMessages(ctx context.Context, device, threadID, title string, msgs []model.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE threads SET title = ?, updated_at = ? WHERE device = ? AND id = ?
	`, title, nowString(), device, threadID)
	if err != nil {
		return fmt.Errorf("updating thread: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	var next int64
	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM messages WHERE device = ? AND thread_id = ?
	`, device, threadID).Scan(&next); err != nil {
		return fmt.Errorf("querying last message: %w", err)
	}

	for _, m := range msgs {
		next++
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO messages (device, thread_id, seq, role, content, ts)
			VALUES (?, ?, ?, ?, ?, ?)
		`, device, threadID, next, m.Role, m.Content, m.TS); err != nil {
			return fmt.Errorf("inserting message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing messages: %w", err)
	}
	return nil
}

// DeleteThread removes a thread and its messages.
// Returns ErrNotFound if the thread doesn't exist.
func (s *SQLiteStore) DeleteThread(ctx context.Context, device, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM threads WHERE device = ? AND id = ?`, device, id)
	if err != nil {
		return fmt.Errorf("deleting thread: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	s.logger.Debug("deleted thread", "device", device, "id", id)
	return nil
}

// ListMemory returns every memory entry of device, newest first.
func (s *SQLiteStore) ListMemory(ctx context.Context, device string) ([]model.MemoryItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, value, ts FROM memory_items
		WHERE device = ?
		ORDER BY ts DESC, key ASC
	`, device)
	if err != nil {
		return nil, fmt.Errorf("querying memory: %w", err)
	}
	defer rows.Close()

	items := []model.MemoryItem{}
	for rows.Next() {
		var m model.MemoryItem
		if err := rows.Scan(&m.Key, &m.Value, &m.TS); err != nil {
			return nil, fmt.Errorf("scanning memory item: %w", err)
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

// SetMemory inserts or updates an entry. Updates keep the stored ts.
func (s *SQLiteStore) SetMemory(ctx context.Context, device string, item model.MemoryItem) (model.MemoryItem, error) {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO memory_items (device, key, value, ts, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(device, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, device, item.Key, item.Value, item.TS, nowString()); err != nil {
		return model.MemoryItem{}, fmt.Errorf("upserting memory item: %w", err)
	}

	var stored model.MemoryItem
	if err := s.db.QueryRowContext(ctx, `
		SELECT key, value, ts FROM memory_items WHERE device = ? AND key = ?
	`, device, item.Key).Scan(&stored.Key, &stored.Value, &stored.TS); err != nil {
		return model.MemoryItem{}, fmt.Errorf("reading memory item: %w", err)
	}
	return stored, nil
}

// DeleteMemory removes an entry.
// Returns ErrNotFound if the key doesn't exist.
func (s *SQLiteStore) DeleteMemory(ctx context.Context, device, key string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memory_items WHERE device = ? AND key = ?`, device, key)
	if err != nil {
		return fmt.Errorf("deleting memory item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetKeys returns the provider secrets of device.
func (s *SQLiteStore) GetKeys(ctx context.Context, device string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT provider, secret FROM provider_keys WHERE device = ?
	`, device)
	if err != nil {
		return nil, fmt.Errorf("querying provider keys: %w", err)
	}
	defer rows.Close()

	providers := map[string]string{}
	for rows.Next() {
		var provider, secret string
		if err := rows.Scan(&provider, &secret); err != nil {
			return nil, fmt.Errorf("scanning provider key: %w", err)
		}
		providers[provider] = secret
	}
	return providers, rows.Err()
}

// SetKeys replaces the provider secrets of device in one transaction.
func (s *SQLiteStore) SetKeys(ctx context.Context, device string, providers map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM provider_keys WHERE device = ?`, device); err != nil {
		return fmt.Errorf("clearing provider keys: %w", err)
	}

	now := nowString()
	for provider, secret := range providers {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO provider_keys (device, provider, secret, updated_at)
			VALUES (?, ?, ?, ?)
		`, device, provider, secret, now); err != nil {
			return fmt.Errorf("inserting provider key: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing provider keys: %w", err)
	}
	return nil
}

// GetDocument returns the HTML document of device.
// Returns ErrNotFound if none was saved.
func (s *SQLiteStore) GetDocument(ctx context.Context, device string) (string, error) {
	var html string
	err := s.db.QueryRowContext(ctx, `SELECT html FROM documents WHERE device = ?`, device).Scan(&html)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("querying document: %w", err)
	}
	return html, nil
}

// SetDocument stores the HTML document of device.
func (s *SQLiteStore) SetDocument(ctx context.Context, device, html string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (device, html, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(device) DO UPDATE SET html = excluded.html, updated_at = excluded.updated_at
	`, device, html, nowString())
	if err != nil {
		return fmt.Errorf("upserting document: %w", err)
	}
	return nil
}
