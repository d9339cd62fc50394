// ABOUTME: Generic local-first store mediating a domain between memory, the local cache and a remote
// ABOUTME: Remote failures are absorbed into the offline status; deletes are retried from an outbox

package localfirst

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/flareos/flareforge/internal/cache"
)

// Remote is the server side of a domain.
type Remote[R any] interface {
	// Fetch returns the full collection stored for device.
	Fetch(ctx context.Context, device string) ([]R, error)
	// Delete removes key for device. Domains without a delete endpoint
	// return errors.ErrUnsupported.
	Delete(ctx context.Context, device, key string) error
}

// Putter is implemented by remotes that accept a plain record write.
type Putter[R any] interface {
	Put(ctx context.Context, device string, record R) (R, error)
}

// PushFunc performs a remote write of record, the optimistic local result,
// and returns the canonical record.
type PushFunc[R any] func(ctx context.Context, device string, record R) (R, error)

// DeviceID supplies the partition key for remote calls. Resolve fails while
// the identity cannot be read from durable storage; the store then stays
// offline rather than talking to another partition.
type DeviceID interface {
	Resolve(ctx context.Context) (string, error)
}

// DefaultFlushInterval is used by Run when given a non-positive interval.
const DefaultFlushInterval = 15 * time.Second

// notFounder and permanent are satisfied by remote.StatusError.
type notFounder interface{ NotFound() bool }
type permanent interface{ Permanent() bool }

// Options configures a Store.
type Options[R any] struct {
	// Domain names the store in logs.
	Domain string
	// StorageKey is the cache key of the serialized collection.
	StorageKey string
	// Key returns the identity of a record.
	Key func(R) string
	// Codec defaults to JSONCodec.
	Codec Codec[R]
	// Remote is nil for local-only domains.
	Remote Remote[R]
	Cache  cache.Cache
	Device DeviceID
	Retry  RetryPolicy
	// Append places new records at the end instead of the front.
	Append bool
	Logger *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Store keeps one domain's records in memory and mirrors them to the local
// cache and, when configured, a remote service.
//
// Mutations are serialized by op, so a second write waits for the first
// remote call to resolve. Reads take only mu and never wait on the network.
type Store[R any] struct {
	opts   Options[R]
	logger *slog.Logger

	op     sync.Mutex
	outbox *outbox

	mu      sync.RWMutex
	records []R
	status  Status
	pending int
}

// New creates a store. Call Initialize before use.
func New[R any](opts Options[R]) (*Store[R], error) {
	if opts.Domain == "" {
		return nil, errors.New("domain is required")
	}
	if opts.StorageKey == "" {
		return nil, errors.New("storage key is required")
	}
	if opts.Key == nil {
		return nil, errors.New("key function is required")
	}
	if opts.Cache == nil {
		return nil, errors.New("cache is required")
	}
	if opts.Remote != nil && opts.Device == nil {
		return nil, errors.New("device identity is required with a remote")
	}
	if opts.Codec == nil {
		opts.Codec = JSONCodec[R]{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Store[R]{
		opts:   opts,
		logger: opts.Logger.With("component", "localfirst", "domain", opts.Domain),
		outbox: newOutbox(opts.Retry),
		status: StatusUnknown,
	}, nil
}

// Domain returns the domain name.
func (s *Store[R]) Domain() string {
	return s.opts.Domain
}

// PendingKey is the cache key of the deletion outbox.
func (s *Store[R]) PendingKey() string {
	return s.opts.StorageKey + "_pending"
}

// Initialize loads the domain. The remote is tried first; on any failure
// the last cached collection is used. It never returns an error.
func (s *Store[R]) Initialize(ctx context.Context) Status {
	s.op.Lock()
	defer s.op.Unlock()

	s.loadOutbox(ctx)

	if s.opts.Remote == nil {
		s.setState(s.loadCache(ctx), StatusLocal)
		return StatusLocal
	}

	device, err := s.opts.Device.Resolve(ctx)
	var records []R
	if err == nil {
		records, err = s.opts.Remote.Fetch(ctx, device)
	}
	if err != nil {
		s.logger.Warn("remote fetch failed, using local cache", "error", err)
		s.setState(s.loadCache(ctx), StatusOffline)
		return StatusOffline
	}

	records = s.reconcileOutbox(ctx, records)

	s.setState(records, StatusOnline)
	s.persist(ctx, records)
	s.logger.Debug("loaded from remote", "records", len(records))

	s.flushLocked(ctx, false)
	return s.Status()
}

// Upsert writes record through the remote's Put when it has one and
// returns the record now visible in memory.
func (s *Store[R]) Upsert(ctx context.Context, record R) R {
	var push PushFunc[R]
	if p, ok := s.opts.Remote.(Putter[R]); ok {
		push = p.Put
	}
	return s.Apply(ctx, record, push)
}

// Apply writes record with a caller supplied remote call.
// A nil push applies record locally.
func (s *Store[R]) Apply(ctx context.Context, record R, push PushFunc[R]) R {
	return s.Update(ctx, s.opts.Key(record), func(R, bool) R { return record }, push)
}

// Update is the general mutation. local computes the optimistic record from
// the current one (exists reports whether key is present); it runs under
// the op lock so concurrent updates of one key compose. push receives the
// optimistic record; when it succeeds its result replaces it.
func (s *Store[R]) Update(ctx context.Context, key string, local func(current R, exists bool) R, push PushFunc[R]) R {
	s.op.Lock()
	defer s.op.Unlock()

	current, exists := s.Get(key)
	optimistic := local(current, exists)

	if s.opts.Remote == nil {
		s.applyLocked(ctx, optimistic, StatusLocal)
		return optimistic
	}
	if push == nil {
		s.applyLocked(ctx, optimistic, s.Status())
		return optimistic
	}

	device, err := s.opts.Device.Resolve(ctx)
	var canonical R
	if err == nil {
		canonical, err = push(ctx, device, optimistic)
	}
	if err != nil {
		s.logger.Warn("remote write failed, applied locally", "key", key, "error", err)
		s.applyLocked(ctx, optimistic, StatusOffline)
		return optimistic
	}

	s.applyLocked(ctx, canonical, StatusOnline)
	// A successful write supersedes a queued delete of the same key.
	cancelled := s.outbox.remove(key)
	if s.outbox.remove(s.opts.Key(canonical)) {
		cancelled = true
	}
	if cancelled {
		s.persistOutbox(ctx)
	}
	s.flushLocked(ctx, false)
	return canonical
}

// Remove deletes key locally right away, then asks the remote to delete it.
// A failed remote delete is queued for retry; local state is never rolled back.
func (s *Store[R]) Remove(ctx context.Context, key string) {
	s.op.Lock()
	defer s.op.Unlock()

	s.mu.Lock()
	s.records = slices.DeleteFunc(s.records, func(r R) bool { return s.opts.Key(r) == key })
	records := slices.Clone(s.records)
	if s.opts.Remote == nil {
		s.status = StatusLocal
	}
	s.mu.Unlock()
	s.persist(ctx, records)

	if s.opts.Remote == nil {
		return
	}

	device, err := s.opts.Device.Resolve(ctx)
	if err == nil {
		err = s.opts.Remote.Delete(ctx, device, key)
	}
	switch {
	case err == nil || isNotFound(err):
		if s.outbox.remove(key) {
			s.persistOutbox(ctx)
		}
		s.setStatus(StatusOnline)
	case errors.Is(err, errors.ErrUnsupported):
	case isPermanent(err):
		s.logger.Error("remote delete rejected", "key", key, "error", err)
		s.outbox.reject(key, err)
		s.persistOutbox(ctx)
	default:
		s.logger.Warn("remote delete failed, queued for retry", "key", key, "error", err)
		s.outbox.add(key, err, s.opts.Now())
		s.persistOutbox(ctx)
		s.setStatus(StatusOffline)
	}
}

// State returns a copy of the records, the status and the pending deletion count.
func (s *Store[R]) State() Snapshot[R] {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Snapshot[R]{
		Records: slices.Clone(s.records),
		Status:  s.status,
		Pending: s.pending,
	}
}

// Status returns the current sync status.
func (s *Store[R]) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Get looks up a record by key.
func (s *Store[R]) Get(key string) (R, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.records {
		if s.opts.Key(r) == key {
			return r, true
		}
	}
	var zero R
	return zero, false
}

// Pending lists the deletion outbox, including permanently failed entries.
func (s *Store[R]) Pending() []Deletion {
	s.op.Lock()
	defer s.op.Unlock()
	return s.outbox.list()
}

// Flush retries the deletions that are due and returns how many remain queued.
func (s *Store[R]) Flush(ctx context.Context) int {
	s.op.Lock()
	defer s.op.Unlock()
	return s.flushLocked(ctx, false)
}

// FlushNow retries every queued deletion that has not failed permanently,
// ignoring the retry schedule.
func (s *Store[R]) FlushNow(ctx context.Context) int {
	s.op.Lock()
	defer s.op.Unlock()
	return s.flushLocked(ctx, true)
}

// Run flushes due deletions every interval until ctx is canceled.
// A non-positive interval means DefaultFlushInterval.
func (s *Store[R]) Run(ctx context.Context, interval time.Duration) {
	if s.opts.Remote == nil {
		return
	}
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Flush(ctx)
		}
	}
}

func (s *Store[R]) flushLocked(ctx context.Context, force bool) int {
	if s.opts.Remote == nil || s.outbox.len() == 0 {
		return s.outbox.len()
	}

	due := s.outbox.ready(s.opts.Now(), force)
	if len(due) == 0 {
		return s.outbox.len()
	}

	device, err := s.opts.Device.Resolve(ctx)
	if err != nil {
		s.logger.Debug("device identity unavailable, flush skipped", "error", err)
		return s.outbox.len()
	}
	for _, e := range due {
		if ctx.Err() != nil {
			break
		}
		err := s.opts.Remote.Delete(ctx, device, e.Key)
		switch {
		case err == nil || isNotFound(err):
			s.outbox.remove(e.Key)
			s.setStatus(StatusOnline)
			s.logger.Debug("queued delete confirmed", "key", e.Key, "attempts", e.Attempts+1)
		case errors.Is(err, errors.ErrUnsupported):
			s.outbox.remove(e.Key)
		case isPermanent(err):
			s.outbox.markFailed(e, err)
			s.logger.Error("queued delete rejected", "key", e.Key, "error", err)
		default:
			s.outbox.fail(e, err, s.opts.Now())
			s.setStatus(StatusOffline)
			s.logger.Debug("queued delete still failing", "key", e.Key, "attempts", e.Attempts, "next", e.NextAttempt)
		}
	}

	s.persistOutbox(ctx)
	return s.outbox.len()
}

// reconcileOutbox drops fetched records whose delete is still queued, so
// they do not come back. A delete the remote rejected permanently leaves the
// server copy authoritative: the record is kept and the entry is dropped.
func (s *Store[R]) reconcileOutbox(ctx context.Context, records []R) []R {
	changed := false
	records = slices.DeleteFunc(records, func(r R) bool {
		key := s.opts.Key(r)
		e := s.outbox.find(key)
		if e == nil {
			return false
		}
		if e.Failed {
			s.logger.Info("remote kept record after rejected delete", "key", key, "error", e.LastError)
			s.outbox.remove(key)
			changed = true
			return false
		}
		return true
	})
	if changed {
		s.persistOutbox(ctx)
	}
	return records
}

func (s *Store[R]) applyLocked(ctx context.Context, record R, status Status) {
	key := s.opts.Key(record)

	s.mu.Lock()
	idx := slices.IndexFunc(s.records, func(r R) bool { return s.opts.Key(r) == key })
	switch {
	case idx >= 0:
		s.records[idx] = record
	case s.opts.Append:
		s.records = append(s.records, record)
	default:
		s.records = append([]R{record}, s.records...)
	}
	s.status = status
	records := slices.Clone(s.records)
	s.mu.Unlock()

	s.persist(ctx, records)
}

func (s *Store[R]) setState(records []R, status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if records == nil {
		records = []R{}
	}
	s.records = records
	s.status = status
	s.pending = s.outbox.len()
}

func (s *Store[R]) setStatus(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

func (s *Store[R]) loadCache(ctx context.Context) []R {
	data, err := s.opts.Cache.Get(ctx, s.opts.StorageKey)
	if errors.Is(err, cache.ErrNotFound) {
		return []R{}
	}
	if err != nil {
		s.logger.Warn("reading local cache failed", "error", err)
		return []R{}
	}

	records, err := s.opts.Codec.Decode(data)
	if err != nil {
		s.logger.Warn("local cache is undecodable, starting empty", "error", err)
		return []R{}
	}
	return records
}

// persist overwrites the cached collection. Failures leave memory untouched.
func (s *Store[R]) persist(ctx context.Context, records []R) {
	data, err := s.opts.Codec.Encode(records)
	if err != nil {
		s.logger.Error("encoding collection failed", "error", err)
		return
	}
	if err := s.opts.Cache.Put(ctx, s.opts.StorageKey, data); err != nil {
		s.logger.Error("writing local cache failed", "error", err)
	}
}

func (s *Store[R]) loadOutbox(ctx context.Context) {
	data, err := s.opts.Cache.Get(ctx, s.PendingKey())
	switch {
	case errors.Is(err, cache.ErrNotFound):
		return
	case err != nil:
		s.logger.Warn("reading pending deletions failed", "error", err)
		return
	}
	if err := s.outbox.decode(data); err != nil {
		s.logger.Warn("pending deletions are undecodable, dropping", "error", err)
	}
}

func (s *Store[R]) persistOutbox(ctx context.Context) {
	s.mu.Lock()
	s.pending = s.outbox.len()
	s.mu.Unlock()

	if s.outbox.len() == 0 {
		if err := s.opts.Cache.Delete(ctx, s.PendingKey()); err != nil {
			s.logger.Error("clearing pending deletions failed", "error", err)
		}
		return
	}

	data, err := s.outbox.encode()
	if err != nil {
		s.logger.Error("encoding pending deletions failed", "error", err)
		return
	}
	if err := s.opts.Cache.Put(ctx, s.PendingKey(), data); err != nil {
		s.logger.Error("writing pending deletions failed", "error", fmt.Errorf("key %s: %w", s.PendingKey(), err))
	}
}

func isNotFound(err error) bool {
	var nf notFounder
	return errors.As(err, &nf) && nf.NotFound()
}

func isPermanent(err error) bool {
	var p permanent
	return errors.As(err, &p) && p.Permanent()
}
