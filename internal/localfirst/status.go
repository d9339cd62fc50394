// ABOUTME: Sync status values and the read-only snapshot returned by Store.State
// ABOUTME: Status is transient and recomputed by every operation, never persisted

package localfirst

// Status reports how the last operation of a domain resolved.
type Status string

const (
	// StatusUnknown is the state before the first operation.
	StatusUnknown Status = "unknown"
	// StatusOnline means the last remote call succeeded.
	StatusOnline Status = "online"
	// StatusOffline means the last remote call failed and local state was used.
	StatusOffline Status = "offline"
	// StatusLocal marks a domain that has no remote at all.
	StatusLocal Status = "local"
)

// Snapshot is a point-in-time copy of a domain.
type Snapshot[R any] struct {
	Records []R
	Status  Status
	// Pending counts deletions not yet confirmed by the remote.
	Pending int
}
