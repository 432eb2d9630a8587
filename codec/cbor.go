package codec

import (
	"github.com/fxamacker/cbor/v2"
)

// CBOR stores users as compact CBOR maps keyed by the struct's json names.
// Build one with NewCBOR; the zero value has no modes and panics on use.
type CBOR[V any] struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

var _ Codec[struct{}] = CBOR[struct{}]{}

// NewCBOR builds a codec with sorted map keys, so one user always encodes to
// the same bytes. Decoding rejects duplicate map keys and caps collection sizes
// at maxItems (0 keeps the library default).
func NewCBOR[V any](maxItems int) (CBOR[V], error) {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return CBOR[V]{}, err
	}

	opts := cbor.DecOptions{DupMapKey: cbor.DupMapKeyEnforcedAPF}
	if maxItems > 0 {
		opts.MaxArrayElements = maxItems
		opts.MaxMapPairs = maxItems
	}
	dec, err := opts.DecMode()
	if err != nil {
		return CBOR[V]{}, err
	}
	return CBOR[V]{enc: enc, dec: dec}, nil
}

func (c CBOR[V]) Encode(v V) ([]byte, error) { return c.enc.Marshal(v) }

func (c CBOR[V]) Decode(b []byte) (V, error) {
	var v V
	if err := c.dec.Unmarshal(b, &v); err != nil {
		return v, err
	}
	return v, nil
}
