// Package store provides persistent storage for the flareforge backend.
//
// # Architecture
//
// Store is the single interface the HTTP server depends on. SQLiteStore
// implements it on modernc.org/sqlite; MockStore is an in-memory version for
// tests.
//
// Every row is partitioned by device, the opaque id each client generates
// once and sends with every request. Two devices never see each other's
// records.
//
// # Schema
//
//	threads       (device, id) -> title, created_at
//	messages      (device, thread_id, seq) -> role, content, ts
//	memory_items  (device, key) -> value, ts
//	provider_keys (device, provider) -> secret
//	documents     device -> html
//
// Chat and memory timestamps are Unix milliseconds, matching the records
// clients cache locally. updated_at columns are RFC 3339 strings.
//
// # Usage
//
//	s, err := store.NewSQLiteStore("/var/lib/flareforge/backend.db")
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	threads, err := s.ListThreads(ctx, device)
package store
