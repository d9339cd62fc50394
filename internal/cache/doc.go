// Package cache provides the durable local key/value store behind every
// local-first domain.
//
// # Overview
//
// A Cache holds one opaque blob per key. Domains write their whole
// collection under a fixed storage key on every change, the device identity
// lives under its own key, and pending deletions are kept next to the domain
// blob under "<key>_pending".
//
// # Drivers
//
//   - sqlite: modernc.org/sqlite, WAL mode, one row per key in local_storage
//   - bolt: a single bolt file with one local_storage bucket
//   - memory: map-backed, nothing survives the process
//
// Open picks the driver from config.CacheConfig.
//
// # Usage
//
//	c, err := cache.Open(cfg.Cache, logger)
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	data, err := c.Get(ctx, "flareos_memory")
//	if errors.Is(err, cache.ErrNotFound) {
//	    // first run
//	}
package cache
