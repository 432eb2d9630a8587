package codec

import "github.com/vmihailenco/msgpack/v5"

// Msgpack follows the msgpack struct tags on userd.User. The ID travels as
// the 16 raw bytes of the UUID.
type Msgpack[V any] struct{}

var _ Codec[struct{}] = Msgpack[struct{}]{}

func (Msgpack[V]) Encode(v V) ([]byte, error) { return msgpack.Marshal(&v) }

func (Msgpack[V]) Decode(b []byte) (v V, err error) {
	err = msgpack.Unmarshal(b, &v)
	return v, err
}
