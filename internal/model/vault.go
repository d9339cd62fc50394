// ABOUTME: API key vault record, known providers and secret masking
// ABOUTME: Secrets are never printed unmasked by any helper in this file

package model

import (
	"maps"
	"slices"
	"strings"
)

// Provider is an LLM vendor whose key the vault stores.
type Provider struct {
	ID    string
	Label string
}

// Providers lists the vendors shown in the vault, in display order.
var Providers = []Provider{
	{ID: "openai", Label: "OpenAI"},
	{ID: "gemini", Label: "Google Gemini"},
	{ID: "anthropic", Label: "Anthropic"},
}

// KnownProvider reports whether id is one of Providers.
func KnownProvider(id string) bool {
	return slices.ContainsFunc(Providers, func(p Provider) bool { return p.ID == id })
}

// Vault maps provider ids to API secrets. One vault exists per device.
type Vault struct {
	Providers map[string]string `json:"providers"`
}

// EmptyVault returns a vault with a blank entry for every known provider.
func EmptyVault() Vault {
	v := Vault{Providers: make(map[string]string, len(Providers))}
	for _, p := range Providers {
		v.Providers[p.ID] = ""
	}
	return v
}

// With returns a copy of v with provider set to secret.
func (v Vault) With(provider, secret string) Vault {
	next := Vault{Providers: make(map[string]string, len(v.Providers)+1)}
	maps.Copy(next.Providers, v.Providers)
	next.Providers[provider] = secret
	return next
}

// Masked returns a copy of the provider map with every secret masked.
func (v Vault) Masked() map[string]string {
	out := make(map[string]string, len(v.Providers))
	for k, s := range v.Providers {
		out[k] = Mask(s)
	}
	return out
}

// Mask hides all but the last four characters of secret.
// Secrets of four characters or fewer are fully masked.
func Mask(secret string) string {
	const visible = 4
	r := []rune(secret)
	if len(r) <= visible {
		return strings.Repeat("*", len(r))
	}
	return strings.Repeat("*", len(r)-visible) + string(r[len(r)-visible:])
}
