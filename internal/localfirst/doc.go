// Package localfirst implements the synchronization contract shared by every
// workspace domain: an in-memory working set, a durable local cache and an
// optional remote service.
//
// # Contract
//
// The caller's view always reflects its own mutations, whatever happens on
// the network:
//
//   - Initialize fetches the collection from the remote. On any failure it
//     falls back to the cached collection and reports StatusOffline.
//   - Upsert, Apply and Update write remotely first. The remote's record wins
//     when the call succeeds; otherwise the caller's record is applied
//     locally and the status drops to StatusOffline.
//   - Remove deletes locally at once. A failed remote delete is queued in a
//     persisted outbox and retried with exponential backoff by Flush or Run.
//     A delete the remote rejects outright is not retried; the next fetch
//     that still returns the record restores it and clears the entry.
//   - Until the device identity resolves, every domain behaves as offline.
//   - State returns a copy of the records and the status without touching
//     the network.
//
// None of these return errors; remote failures are logged and reflected in
// the status only.
//
// # Conflict policy
//
// Last writer wins. When the remote is reachable its copy replaces the local
// one; otherwise the latest local mutation stands. There is no version
// comparison and no refetch after Initialize, so two devices editing the same
// key while one is offline diverge until one of them writes again.
//
// # Concurrency
//
// Mutations of one store are serialized, so a second write waits for the
// first remote call to return. Reads use a separate lock and stay
// responsive during network calls. Every remote call receives the caller's
// context; timeouts come from the remote client.
//
// # Usage
//
//	store, err := localfirst.New(localfirst.Options[model.MemoryItem]{
//	    Domain:     "memory",
//	    StorageKey: "flareos_memory",
//	    Key:        func(m model.MemoryItem) string { return m.Key },
//	    Remote:     memoryRemote,
//	    Cache:      c,
//	    Device:     identity,
//	})
//	store.Initialize(ctx)
//	store.Upsert(ctx, model.MemoryItem{Key: "a", Value: "1"})
//	snap := store.State()
package localfirst
