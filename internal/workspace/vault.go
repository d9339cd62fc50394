// ABOUTME: API key vault domain: one provider-to-secret map per device
// ABOUTME: Exposes masked views so secrets are not echoed to terminals

package workspace

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/flareos/flareforge/internal/localfirst"
	"github.com/flareos/flareforge/internal/model"
)

// VaultStorageKey is the cache key of the provider map.
const VaultStorageKey = "flareos_api_keys"

// vaultRecordKey is the local key of the single vault record.
const vaultRecordKey = "vault"

// ErrUnknownProvider is returned by SetKey for a provider outside model.Providers.
var ErrUnknownProvider = errors.New("unknown provider")

// Vault manages the provider secrets.
type Vault struct {
	store *localfirst.Store[model.Vault]
	push  localfirst.PushFunc[model.Vault]
}

func newVault(w *Workspace) (*Vault, error) {
	v := &Vault{}
	opts := storeOptions(w, func(model.Vault) string { return vaultRecordKey }, "vault", VaultStorageKey)
	opts.Codec = vaultCodec{}
	if w.client != nil {
		r := vaultRemote{client: w.client}
		opts.Remote = r
		v.push = r.Put
	}
	store, err := localfirst.New(opts)
	if err != nil {
		return nil, err
	}
	v.store = store
	return v, nil
}

// Providers returns the stored secrets, with a blank entry for every known
// provider that has none.
func (v *Vault) Providers() map[string]string {
	out := model.EmptyVault().Providers
	if current, ok := v.store.Get(vaultRecordKey); ok {
		maps.Copy(out, current.Providers)
	}
	return out
}

// Masked returns Providers with every secret masked.
func (v *Vault) Masked() map[string]string {
	return model.Vault{Providers: v.Providers()}.Masked()
}

// Save replaces the whole provider map.
func (v *Vault) Save(ctx context.Context, providers map[string]string) model.Vault {
	record := model.Vault{Providers: maps.Clone(providers)}
	if record.Providers == nil {
		record.Providers = map[string]string{}
	}
	return v.store.Apply(ctx, record, v.push)
}

// SetKey stores one provider secret, keeping the others.
func (v *Vault) SetKey(ctx context.Context, provider, secret string) (model.Vault, error) {
	if !model.KnownProvider(provider) {
		return model.Vault{}, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
	local := func(current model.Vault, exists bool) model.Vault {
		if !exists {
			current = model.EmptyVault()
		}
		return current.With(provider, secret)
	}
	return v.store.Update(ctx, vaultRecordKey, local, v.push), nil
}

// Status returns the sync status of the vault.
func (v *Vault) Status() localfirst.Status {
	return v.store.Status()
}
