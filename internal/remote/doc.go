// Package remote is the HTTP client for the flareforge backend.
//
// # Endpoints
//
//	GET    /api/chats/{device}         ListThreads
//	POST   /api/chats/send             SendMessage
//	DELETE /api/chats/{device}/{id}    DeleteThread
//	GET    /api/memory/{device}        ListMemory
//	POST   /api/memory                 PutMemory
//	DELETE /api/memory/{device}/{key}  DeleteMemory
//	GET    /api/keys/{device}          GetKeys
//	POST   /api/keys                   PutKeys
//	GET    /api/code/{device}          GetCode
//	POST   /api/code                   PutCode
//	GET    /health                     Health
//
// # Errors
//
// Every failure is one of:
//
//   - ErrUnavailable: connection refused, timeout, or the circuit breaker is open
//   - *StatusError: the server answered with a non-2xx status
//   - ErrMalformed: the body did not decode or lacked the expected field
//
// StatusError exposes NotFound and Permanent so callers can tell a missing
// record from a rejection that will never succeed.
//
// # Circuit Breaker
//
// When enabled, consecutive transport failures or 5xx responses open the
// breaker and further calls fail fast with ErrUnavailable until the open
// timeout passes and a probe succeeds. 4xx responses do not count as
// failures.
package remote
