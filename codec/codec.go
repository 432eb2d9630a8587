// Package codec turns users and user lists into the payload bytes that the
// cache frames and stores.
package codec

// Codec must be safe for concurrent use; the cache shares one per key kind.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
