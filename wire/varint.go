// Package wire holds the small, protocol-version-stable primitives the
// outbound packets this core produces (chunk-with-light, section-blocks-update,
// block-change-ack, ...) are built from. The length-prefixing, compression and
// socket framing around these primitives belongs to the network collaborator;
// this package only encodes the values that go inside a packet body.
package wire

import (
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// maxVarIntBytes bounds a well-formed 32-bit VarInt's encoded length; used to
// reject malformed streams that never terminate instead of scanning forever.
const maxVarIntBytes = 5

// PutVarInt appends v's VarInt encoding to buf and returns the result.
func PutVarInt(buf []byte, v int32) []byte {
	u := uint32(v)
	for {
		b := byte(u & 0x7f)
		u >>= 7
		if u != 0 {
			buf = append(buf, b|0x80)
			continue
		}
		buf = append(buf, b)
		return buf
	}
}

// ReadVarInt decodes a VarInt from the front of buf, returning the value and
// the number of bytes consumed. An error is returned if buf is exhausted
// before a terminating byte or the encoding runs past maxVarIntBytes (a
// malformed/adversarial length prefix, handled as a protocol error per §7).
func ReadVarInt(buf []byte) (int32, int, error) {
	var result uint32
	for i := 0; i < maxVarIntBytes; i++ {
		if i >= len(buf) {
			return 0, 0, fmt.Errorf("wire: varint truncated")
		}
		b := buf[i]
		result |= uint32(b&0x7f) << (7 * uint(i))
		if b&0x80 == 0 {
			return int32(result), i + 1, nil
		}
	}
	return 0, 0, fmt.Errorf("wire: varint too long")
}

// SizeVarInt returns the number of bytes v would encode to, without
// allocating -- used to size packet-length prefixes ahead of encoding.
func SizeVarInt(v int32) int {
	u := uint32(v)
	n := 1
	for u >= 0x80 {
		u >>= 7
		n++
	}
	return n
}

// MaxStringBytes bounds the UTF-8 byte length of a wire string; the network
// collaborator rejects any incoming string claiming a longer length before
// this core ever sees it, but this core enforces the same cap on strings it
// produces so a future network layer cannot be handed an oversize value.
const MaxStringBytes = 32767

// PutString appends a VarInt-length-prefixed UTF-8 string to buf. It returns
// an error rather than truncating if s exceeds MaxStringBytes, since silently
// truncating a resource-location or chat string would corrupt the field
// rather than merely reject it.
func PutString(buf []byte, s string) ([]byte, error) {
	// NFC-normalise so a player name or resource location with combining
	// marks encodes identically regardless of the client's own
	// normalisation, matching the teacher's reliance on golang.org/x/text
	// for string hygiene elsewhere.
	s = norm.NFC.String(s)
	if len(s) > MaxStringBytes {
		return nil, fmt.Errorf("wire: string exceeds %d bytes", MaxStringBytes)
	}
	buf = PutVarInt(buf, int32(len(s)))
	buf = append(buf, s...)
	return buf, nil
}
