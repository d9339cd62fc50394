// Package model defines the records each workspace domain stores and syncs.
//
// The JSON shapes match the blobs the FlareOS front-end kept in local
// storage, so an existing flareos_chats or flareos_memory value decodes
// unchanged. Chat and memory timestamps are Unix milliseconds; agent
// createdAt is an RFC 3339 string.
//
// Records are values. Helpers such as Thread.WithExchange return a new
// record instead of mutating the receiver, which lets the sync layer hand
// out snapshots without copying.
package model
