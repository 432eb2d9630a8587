// Package wire frames cached payloads with the generation they were read at.
//
//	"USRD" | version u8 | kind u8 | gen u64 | len u32 | payload
//
// Integers are big-endian. The kind byte separates a single user from the
// user list, so neither frame can be mistaken for the other.
package wire

import (
	"encoding/binary"
	"errors"
)

const (
	version  byte = 1
	kindUser byte = 1
	kindList byte = 2

	headerLen = 4 + 1 + 1 + 8 + 4
)

var ErrCorrupt = errors.New("userd: corrupt cache entry")

const magic = "USRD"

func frame(kind byte, gen uint64, payload []byte) []byte {
	b := make([]byte, 0, headerLen+len(payload))
	b = append(b, magic...)
	b = append(b, version, kind)
	b = binary.BigEndian.AppendUint64(b, gen)
	b = binary.BigEndian.AppendUint32(b, uint32(len(payload)))
	return append(b, payload...)
}

// unframe accepts only an exact frame of the given kind; trailing bytes are
// corruption too.
func unframe(kind byte, b []byte) (uint64, []byte, error) {
	if len(b) < headerLen || string(b[:4]) != magic || b[4] != version || b[5] != kind {
		return 0, nil, ErrCorrupt
	}
	gen := binary.BigEndian.Uint64(b[6:14])
	n := binary.BigEndian.Uint32(b[14:headerLen])
	body := b[headerLen:]
	if uint64(n) != uint64(len(body)) {
		return 0, nil, ErrCorrupt
	}
	return gen, body, nil
}

func EncodeSingle(gen uint64, payload []byte) []byte { return frame(kindUser, gen, payload) }

// DecodeSingle returns a payload that aliases b.
func DecodeSingle(b []byte) (uint64, []byte, error) { return unframe(kindUser, b) }

func EncodeList(gen uint64, payload []byte) []byte { return frame(kindList, gen, payload) }

// DecodeList returns a payload that aliases b.
func DecodeList(b []byte) (uint64, []byte, error) { return unframe(kindList, b) }
