// ABOUTME: Adapters exposing the REST client as per-domain localfirst remotes
// ABOUTME: Singleton domains map their one record onto the device-scoped endpoints

package workspace

import (
	"context"
	"errors"

	"github.com/flareos/flareforge/internal/model"
	"github.com/flareos/flareforge/internal/remote"
)

type chatsRemote struct{ client *remote.Client }

func (r chatsRemote) Fetch(ctx context.Context, device string) ([]model.Thread, error) {
	return r.client.ListThreads(ctx, device)
}

func (r chatsRemote) Delete(ctx context.Context, device, id string) error {
	return r.client.DeleteThread(ctx, device, id)
}

type memoryRemote struct{ client *remote.Client }

func (r memoryRemote) Fetch(ctx context.Context, device string) ([]model.MemoryItem, error) {
	return r.client.ListMemory(ctx, device)
}

func (r memoryRemote) Put(ctx context.Context, device string, item model.MemoryItem) (model.MemoryItem, error) {
	return r.client.PutMemory(ctx, device, item.Key, item.Value)
}

func (r memoryRemote) Delete(ctx context.Context, device, key string) error {
	return r.client.DeleteMemory(ctx, device, key)
}

type vaultRemote struct{ client *remote.Client }

func (r vaultRemote) Fetch(ctx context.Context, device string) ([]model.Vault, error) {
	providers, err := r.client.GetKeys(ctx, device)
	if err != nil {
		return nil, err
	}
	return []model.Vault{{Providers: providers}}, nil
}

func (r vaultRemote) Put(ctx context.Context, device string, v model.Vault) (model.Vault, error) {
	providers, err := r.client.PutKeys(ctx, device, v.Providers)
	if err != nil {
		return model.Vault{}, err
	}
	return model.Vault{Providers: providers}, nil
}

// Delete is unsupported: the vault has no delete endpoint.
func (vaultRemote) Delete(context.Context, string, string) error {
	return errors.ErrUnsupported
}

type documentRemote struct{ client *remote.Client }

func (r documentRemote) Fetch(ctx context.Context, device string) ([]model.Document, error) {
	html, err := r.client.GetCode(ctx, device)
	if err != nil {
		return nil, err
	}
	if html == "" {
		return []model.Document{}, nil
	}
	return []model.Document{{HTML: html}}, nil
}

func (r documentRemote) Put(ctx context.Context, device string, doc model.Document) (model.Document, error) {
	html, err := r.client.PutCode(ctx, device, doc.HTML)
	if err != nil {
		return model.Document{}, err
	}
	return model.Document{HTML: html}, nil
}

// Delete is unsupported: the document has no delete endpoint.
func (documentRemote) Delete(context.Context, string, string) error {
	return errors.ErrUnsupported
}
