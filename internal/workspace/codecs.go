// ABOUTME: Cache blob formats of the singleton domains, compatible with the front-end's local storage
// ABOUTME: The vault is a bare {provider: secret} object and the document is raw HTML text

package workspace

import (
	"encoding/json"

	"github.com/flareos/flareforge/internal/model"
)

// vaultCodec stores the provider map itself, as flareos_api_keys always held.
type vaultCodec struct{}

func (vaultCodec) Encode(vaults []model.Vault) ([]byte, error) {
	providers := map[string]string{}
	if len(vaults) > 0 && vaults[0].Providers != nil {
		providers = vaults[0].Providers
	}
	return json.Marshal(providers)
}

func (vaultCodec) Decode(data []byte) ([]model.Vault, error) {
	var providers map[string]string
	if err := json.Unmarshal(data, &providers); err != nil {
		return nil, err
	}
	if providers == nil {
		return []model.Vault{}, nil
	}
	return []model.Vault{{Providers: providers}}, nil
}

// documentCodec stores the HTML text unwrapped. An empty blob means no document.
type documentCodec struct{}

func (documentCodec) Encode(docs []model.Document) ([]byte, error) {
	if len(docs) == 0 {
		return []byte{}, nil
	}
	return []byte(docs[0].HTML), nil
}

func (documentCodec) Decode(data []byte) ([]model.Document, error) {
	if len(data) == 0 {
		return []model.Document{}, nil
	}
	return []model.Document{{HTML: string(data)}}, nil
}
