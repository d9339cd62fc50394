// ABOUTME: Persisted queue of remote deletions that have not been confirmed yet
// ABOUTME: Entries retry on an exponential schedule and stop after a permanent rejection

package localfirst

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy bounds the delay between attempts of a queued deletion.
type RetryPolicy struct {
	Initial time.Duration
	Max     time.Duration
}

// DefaultRetryPolicy retries after one second, backing off to five minutes.
var DefaultRetryPolicy = RetryPolicy{Initial: time.Second, Max: 5 * time.Minute}

// Deletion is one queued remote delete.
type Deletion struct {
	Key         string    `json:"key"`
	Attempts    int       `json:"attempts"`
	NextAttempt time.Time `json:"next_attempt"`
	LastError   string    `json:"last_error,omitempty"`
	// Failed entries were rejected permanently and are no longer retried.
	Failed bool `json:"failed,omitempty"`
}

type outboxEntry struct {
	Deletion
	backoff *backoff.ExponentialBackOff
}

// outbox is not safe for concurrent use; Store guards it with its op mutex.
type outbox struct {
	policy  RetryPolicy
	entries []*outboxEntry
}

func newOutbox(policy RetryPolicy) *outbox {
	if policy.Initial <= 0 {
		policy.Initial = DefaultRetryPolicy.Initial
	}
	if policy.Max < policy.Initial {
		policy.Max = policy.Initial
	}
	return &outbox{policy: policy}
}

func (o *outbox) newBackoff(attempts int) *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     o.policy.Initial,
		RandomizationFactor: backoff.DefaultRandomizationFactor,
		Multiplier:          2,
		MaxInterval:         o.policy.Max,
	}
	b.Reset()
	// Replay the schedule so a reloaded entry continues where it left off.
	for range attempts {
		b.NextBackOff()
	}
	return b
}

func (o *outbox) find(key string) *outboxEntry {
	for _, e := range o.entries {
		if e.Key == key {
			return e
		}
	}
	return nil
}

// add queues key after a failed attempt. A key already queued is rescheduled.
func (o *outbox) add(key string, cause error, now time.Time) {
	e := o.find(key)
	if e == nil {
		e = &outboxEntry{Deletion: Deletion{Key: key}, backoff: o.newBackoff(0)}
		o.entries = append(o.entries, e)
	}
	o.fail(e, cause, now)
}

// reject records key as permanently refused by the remote.
func (o *outbox) reject(key string, cause error) {
	e := o.find(key)
	if e == nil {
		e = &outboxEntry{Deletion: Deletion{Key: key}, backoff: o.newBackoff(0)}
		o.entries = append(o.entries, e)
	}
	o.markFailed(e, cause)
}

func (o *outbox) fail(e *outboxEntry, cause error, now time.Time) {
	e.Attempts++
	if cause != nil {
		e.LastError = cause.Error()
	}
	e.NextAttempt = now.Add(e.backoff.NextBackOff())
}

func (o *outbox) markFailed(e *outboxEntry, cause error) {
	e.Attempts++
	e.Failed = true
	if cause != nil {
		e.LastError = cause.Error()
	}
}

// remove drops key and reports whether it was queued.
func (o *outbox) remove(key string) bool {
	before := len(o.entries)
	o.entries = slices.DeleteFunc(o.entries, func(e *outboxEntry) bool { return e.Key == key })
	return len(o.entries) != before
}

// ready returns entries due at now. With force set every non-failed entry is due.
func (o *outbox) ready(now time.Time, force bool) []*outboxEntry {
	var due []*outboxEntry
	for _, e := range o.entries {
		if e.Failed {
			continue
		}
		if force || !now.Before(e.NextAttempt) {
			due = append(due, e)
		}
	}
	return due
}

func (o *outbox) len() int {
	return len(o.entries)
}

func (o *outbox) list() []Deletion {
	out := make([]Deletion, len(o.entries))
	for i, e := range o.entries {
		out[i] = e.Deletion
	}
	return out
}

func (o *outbox) encode() ([]byte, error) {
	return json.Marshal(o.list())
}

func (o *outbox) decode(data []byte) error {
	var list []Deletion
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	o.entries = o.entries[:0]
	for _, d := range list {
		if d.Key == "" {
			continue
		}
		o.entries = append(o.entries, &outboxEntry{Deletion: d, backoff: o.newBackoff(d.Attempts)})
	}
	return nil
}
