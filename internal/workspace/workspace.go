// ABOUTME: Workspace wiring every domain onto one cache, one device identity and one backend client
// ABOUTME: Provides initialize, background flushing, status reporting and shutdown

package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flareos/flareforge/internal/cache"
	"github.com/flareos/flareforge/internal/config"
	"github.com/flareos/flareforge/internal/device"
	"github.com/flareos/flareforge/internal/localfirst"
	"github.com/flareos/flareforge/internal/remote"
)

// Options tunes a Workspace. Zero values use defaults.
type Options struct {
	Retry  localfirst.RetryPolicy
	Logger *slog.Logger
	// Now and NewID exist for tests.
	Now   func() time.Time
	NewID func() string
}

type env struct {
	now   func() time.Time
	newID func() string
}

// Workspace holds the five domains of one device.
type Workspace struct {
	Chats    *Chats
	Memory   *Memory
	Vault    *Vault
	Document *Document
	Agents   *Agents

	cache  cache.Cache
	client *remote.Client
	device *device.Identity
	retry  localfirst.RetryPolicy
	env    env
	base   *slog.Logger
	logger *slog.Logger
}

// DomainStatus summarizes one domain for status reports.
type DomainStatus struct {
	Domain  string            `json:"domain"`
	Status  localfirst.Status `json:"status"`
	Records int               `json:"records"`
	Pending int               `json:"pending"`
}

// syncer is the part of a store the workspace drives in bulk.
type syncer interface {
	Domain() string
	Initialize(ctx context.Context) localfirst.Status
	Flush(ctx context.Context) int
	FlushNow(ctx context.Context) int
	Run(ctx context.Context, interval time.Duration)
	Pending() []localfirst.Deletion
}

// RejectedDeletion is a queued delete the backend refused permanently.
// It is no longer retried and disappears once the backend copy is fetched.
type RejectedDeletion struct {
	Domain string `json:"domain"`
	Key    string `json:"key"`
	Error  string `json:"error"`
}

// New wires the domains on c. A nil client runs every domain local-only.
func New(c cache.Cache, client *remote.Client, opts Options) (*Workspace, error) {
	if c == nil {
		return nil, errors.New("cache is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	retry := opts.Retry
	if retry.Initial == 0 {
		retry = localfirst.DefaultRetryPolicy
	}
	e := env{now: opts.Now, newID: opts.NewID}
	if e.now == nil {
		e.now = time.Now
	}
	if e.newID == nil {
		e.newID = uuid.NewString
	}

	w := &Workspace{
		cache:  c,
		client: client,
		device: device.New(c, logger),
		retry:  retry,
		env:    e,
		base:   logger,
		logger: logger.With("component", "workspace"),
	}

	var err error
	if w.Chats, err = newChats(w); err != nil {
		return nil, fmt.Errorf("creating chats: %w", err)
	}
	if w.Memory, err = newMemory(w); err != nil {
		return nil, fmt.Errorf("creating memory: %w", err)
	}
	if w.Vault, err = newVault(w); err != nil {
		return nil, fmt.Errorf("creating vault: %w", err)
	}
	if w.Document, err = newDocument(w); err != nil {
		return nil, fmt.Errorf("creating document: %w", err)
	}
	if w.Agents, err = newAgents(w); err != nil {
		return nil, fmt.Errorf("creating agents: %w", err)
	}
	return w, nil
}

// Open builds the cache and client described by cfg, then initializes every domain.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Workspace, error) {
	c, err := cache.Open(cfg.Cache, logger)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}

	var client *remote.Client
	if cfg.Remote.BaseURL != "" {
		client, err = remote.FromConfig(cfg.Remote, logger)
		if err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("creating remote client: %w", err)
		}
	}

	w, err := New(c, client, Options{
		Retry:  localfirst.RetryPolicy{Initial: cfg.Sync.RetryInitial, Max: cfg.Sync.RetryMax},
		Logger: logger,
	})
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	w.Initialize(ctx)
	return w, nil
}

func storeOptions[R any](w *Workspace, key func(R) string, domain, storageKey string) localfirst.Options[R] {
	return localfirst.Options[R]{
		Domain:     domain,
		StorageKey: storageKey,
		Key:        key,
		Cache:      w.cache,
		Device:     w.device,
		Retry:      w.retry,
		Logger:     w.base,
		Now:        w.env.now,
	}
}

func (w *Workspace) syncers() []syncer {
	return []syncer{w.Chats.store, w.Memory.store, w.Vault.store, w.Document.store, w.Agents.store}
}

// Initialize loads every domain and returns their statuses by domain name.
func (w *Workspace) Initialize(ctx context.Context) map[string]localfirst.Status {
	// Create the device id before the domains race for it.
	if _, err := w.device.Resolve(ctx); err != nil {
		w.logger.Warn("device identity unavailable, domains stay offline", "error", err)
	}

	out := make(map[string]localfirst.Status)
	for _, s := range w.syncers() {
		out[s.Domain()] = s.Initialize(ctx)
	}
	w.logger.Info("workspace initialized",
		"chats", out["chats"], "memory", out["memory"], "vault", out["vault"],
		"document", out["document"], "agents", out["agents"])
	return out
}

// Run flushes pending deletions of every domain every interval until ctx is canceled.
func (w *Workspace) Run(ctx context.Context, interval time.Duration) {
	var wg sync.WaitGroup
	for _, s := range w.syncers() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Run(ctx, interval)
		}()
	}
	wg.Wait()
}

// Flush retries every pending deletion now and returns how many remain.
func (w *Workspace) Flush(ctx context.Context) int {
	remaining := 0
	for _, s := range w.syncers() {
		remaining += s.FlushNow(ctx)
	}
	return remaining
}

// Status reports every domain.
func (w *Workspace) Status() []DomainStatus {
	chats := w.Chats.store.State()
	memory := w.Memory.store.State()
	vault := w.Vault.store.State()
	doc := w.Document.store.State()
	agents := w.Agents.store.State()

	return []DomainStatus{
		{Domain: "chats", Status: chats.Status, Records: len(chats.Records), Pending: chats.Pending},
		{Domain: "memory", Status: memory.Status, Records: len(memory.Records), Pending: memory.Pending},
		{Domain: "vault", Status: vault.Status, Records: len(vault.Records), Pending: vault.Pending},
		{Domain: "document", Status: doc.Status, Records: len(doc.Records), Pending: doc.Pending},
		{Domain: "agents", Status: agents.Status, Records: len(agents.Records), Pending: agents.Pending},
	}
}

// Rejected lists the deletions the backend refused, across every domain.
func (w *Workspace) Rejected() []RejectedDeletion {
	var out []RejectedDeletion
	for _, s := range w.syncers() {
		for _, d := range s.Pending() {
			if d.Failed {
				out = append(out, RejectedDeletion{Domain: s.Domain(), Key: d.Key, Error: d.LastError})
			}
		}
	}
	return out
}

// CacheKeys lists the keys held in the local cache.
func (w *Workspace) CacheKeys(ctx context.Context) ([]string, error) {
	return w.cache.Keys(ctx)
}

// DeviceID returns the device identity shared by every domain.
func (w *Workspace) DeviceID(ctx context.Context) string {
	return w.device.ID(ctx)
}

// Remote returns the backend client, or nil in local-only mode.
func (w *Workspace) Remote() *remote.Client {
	return w.client
}

// Close closes the cache.
func (w *Workspace) Close() error {
	return w.cache.Close()
}
