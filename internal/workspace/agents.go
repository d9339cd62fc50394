// ABOUTME: Agent profiles domain, kept only in the local cache
// ABOUTME: Agents are listed in creation order; clones get a fresh id and a " Copy" suffix

package workspace

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/flareos/flareforge/internal/localfirst"
	"github.com/flareos/flareforge/internal/model"
)

// AgentsStorageKey is the cache key of the agent list.
const AgentsStorageKey = "flareos_agents"

var (
	// ErrAgentNotFound is returned by Clone for an unknown id.
	ErrAgentNotFound = errors.New("agent not found")
	// ErrAgentName is returned by Create for a blank name.
	ErrAgentName = errors.New("agent name is empty")
)

// Agents manages agent profiles. There is no backend endpoint for them.
type Agents struct {
	store *localfirst.Store[model.Agent]
	env   env
}

func newAgents(w *Workspace) (*Agents, error) {
	opts := storeOptions(w, func(a model.Agent) string { return a.ID }, "agents", AgentsStorageKey)
	opts.Append = true
	store, err := localfirst.New(opts)
	if err != nil {
		return nil, err
	}
	return &Agents{store: store, env: w.env}, nil
}

// Create saves draft as a new agent with a fresh id.
func (a *Agents) Create(ctx context.Context, draft model.Agent) (model.Agent, error) {
	if strings.TrimSpace(draft.Name) == "" {
		return model.Agent{}, ErrAgentName
	}
	draft.ID = a.env.newID()
	draft.CreatedAt = a.env.now().UTC().Format(time.RFC3339Nano)
	return a.store.Upsert(ctx, draft), nil
}

// Clone copies an existing agent. The copy keeps the original createdAt.
func (a *Agents) Clone(ctx context.Context, id string) (model.Agent, error) {
	src, ok := a.store.Get(id)
	if !ok {
		return model.Agent{}, ErrAgentNotFound
	}
	clone := src
	clone.ID = a.env.newID()
	clone.Name = src.Name + " Copy"
	return a.store.Upsert(ctx, clone), nil
}

// Remove deletes an agent. Unknown ids are ignored.
func (a *Agents) Remove(ctx context.Context, id string) {
	a.store.Remove(ctx, id)
}

// List returns agents in creation order.
func (a *Agents) List() []model.Agent {
	return a.store.State().Records
}

// Get looks up one agent.
func (a *Agents) Get(id string) (model.Agent, bool) {
	return a.store.Get(id)
}
