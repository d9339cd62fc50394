// Package server implements the reference backend for flareforge workspaces.
//
// # Overview
//
// The server exposes one REST resource per synced domain, each partitioned
// by the device id the client sends:
//
//	GET    /api/chats/{device}          list threads, newest first
//	POST   /api/chats/send              append a message and its echo reply
//	DELETE /api/chats/{device}/{id}     delete a thread
//	GET    /api/memory/{device}         list memory entries
//	POST   /api/memory                  upsert a memory entry
//	DELETE /api/memory/{device}/{key}   delete a memory entry
//	GET    /api/keys/{device}           provider secrets
//	POST   /api/keys                    replace provider secrets
//	GET    /api/code/{device}           HTML document
//	POST   /api/code                    replace the HTML document
//
// plus /health, /health/ready and, when enabled, a Prometheus endpoint.
// Errors are JSON objects of the form {"error": "..."}.
//
// # Chat sends
//
// A send names an optional thread id and an optional message id. A missing
// thread is created under the given id (or a fresh UUID). When the message
// id was already applied within the dedupe TTL the stored thread is returned
// unchanged, so clients can retry a send whose response was lost.
package server
