// ABOUTME: Codecs translating a domain's record collection to and from its cache blob
// ABOUTME: JSON arrays by default; domains with legacy blob formats supply their own

package localfirst

import "encoding/json"

// Codec serializes the full record collection of a domain.
type Codec[R any] interface {
	Encode(records []R) ([]byte, error)
	Decode(data []byte) ([]R, error)
}

// JSONCodec stores the collection as a JSON array.
type JSONCodec[R any] struct{}

// Encode writes records as a JSON array. A nil slice encodes as [].
func (JSONCodec[R]) Encode(records []R) ([]byte, error) {
	if records == nil {
		records = []R{}
	}
	return json.Marshal(records)
}

// Decode reads a JSON array. The literal null decodes to an empty collection.
func (JSONCodec[R]) Decode(data []byte) ([]R, error) {
	var records []R
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	return records, nil
}
