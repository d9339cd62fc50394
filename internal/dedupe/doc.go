// Package dedupe makes chat sends idempotent on the backend.
//
// Clients attach a message id to every send. The server remembers, for a
// bounded time, which thread each (device, message id) pair was applied to,
// so a retried request returns that thread instead of appending the
// exchange a second time.
package dedupe
