// ABOUTME: Chat threads domain: create, send, list and delete threads
// ABOUTME: Offline sends append the user message and the echo reply locally

package workspace

import (
	"context"
	"errors"
	"strings"

	"github.com/flareos/flareforge/internal/localfirst"
	"github.com/flareos/flareforge/internal/model"
	"github.com/flareos/flareforge/internal/remote"
)

// ChatsStorageKey is the cache key of the thread list.
const ChatsStorageKey = "flareos_chats"

// ErrEmptyMessage is returned when a message is blank after trimming.
var ErrEmptyMessage = errors.New("message is empty")

// Chats manages chat threads. New threads appear first.
type Chats struct {
	store  *localfirst.Store[model.Thread]
	client *remote.Client
	env    env
}

func newChats(w *Workspace) (*Chats, error) {
	opts := storeOptions(w, threadKey, "chats", ChatsStorageKey)
	if w.client != nil {
		opts.Remote = chatsRemote{client: w.client}
	}
	store, err := localfirst.New(opts)
	if err != nil {
		return nil, err
	}
	return &Chats{store: store, client: w.client, env: w.env}, nil
}

func threadKey(t model.Thread) string { return t.ID }

// NewThread creates an empty local thread titled "New Chat". The backend
// learns about it with the first message sent to it.
func (c *Chats) NewThread(ctx context.Context) model.Thread {
	thread := model.NewThread(c.env.newID(), c.env.now())
	return c.store.Apply(ctx, thread, nil)
}

// Send posts content to threadID and returns the updated thread. An empty
// threadID starts a new thread.
func (c *Chats) Send(ctx context.Context, threadID, content string) (model.Thread, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return model.Thread{}, ErrEmptyMessage
	}
	if threadID == "" {
		threadID = c.env.newID()
	}

	now := c.env.now()
	local := func(current model.Thread, exists bool) model.Thread {
		if !exists {
			current = model.NewThread(threadID, now)
		}
		return current.WithExchange(content, now)
	}

	var push localfirst.PushFunc[model.Thread]
	if c.client != nil {
		messageID := c.env.newID()
		push = func(ctx context.Context, device string, _ model.Thread) (model.Thread, error) {
			return c.client.SendMessage(ctx, model.SendRequest{
				Device:    device,
				ThreadID:  threadID,
				Message:   content,
				MessageID: messageID,
			})
		}
	}

	return c.store.Update(ctx, threadID, local, push), nil
}

// Delete removes a thread locally and on the backend.
func (c *Chats) Delete(ctx context.Context, id string) {
	c.store.Remove(ctx, id)
}

// Threads returns every thread, newest first.
func (c *Chats) Threads() []model.Thread {
	return c.store.State().Records
}

// Thread looks up one thread.
func (c *Chats) Thread(id string) (model.Thread, bool) {
	return c.store.Get(id)
}

// State returns the snapshot of the domain.
func (c *Chats) State() localfirst.Snapshot[model.Thread] {
	return c.store.State()
}
