package codec

import (
	"errors"
	"fmt"
)

var ErrTooLarge = errors.New("codec: payload too large")

// LimitCodec refuses to decode payloads over MaxDecode bytes, so a bloated
// entry in a shared cache cannot force a large allocation. The cache treats
// the refusal like any decode failure: it deletes the entry and reads the
// store. MaxDecode <= 0 disables the check.
type LimitCodec[V any] struct {
	Inner     Codec[V]
	MaxDecode int
}

func (c LimitCodec[V]) Encode(v V) ([]byte, error) { return c.Inner.Encode(v) }

func (c LimitCodec[V]) Decode(b []byte) (V, error) {
	if n := len(b); c.MaxDecode > 0 && n > c.MaxDecode {
		var zero V
		return zero, fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, n, c.MaxDecode)
	}
	return c.Inner.Decode(b)
}
