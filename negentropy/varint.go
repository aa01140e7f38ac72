package negentropy

import (
	"errors"
	"fmt"
	"io"
	"math"
)

// maxVarIntLen is the maximum length of an encoded uint64.
const maxVarIntLen = 10

// EncodeVarInt encodes n as a big-endian base-128 varint. Every byte except the last one
// has the high bit set. Zero is encoded as a single zero byte.
func EncodeVarInt(n uint64) []byte {
	if n == 0 {
		return []byte{0}
	}
	var tmp [maxVarIntLen]byte
	i := len(tmp)
	for n != 0 {
		i--
		tmp[i] = byte(n & 0x7f)
		n >>= 7
	}
	for j := i; j < len(tmp)-1; j++ {
		tmp[j] |= 0x80
	}
	return append([]byte(nil), tmp[i:]...)
}

// DecodeVarInt reads a varint from the front of r.
// Both *Buffer and *bytes.Reader can be used as the source.
func DecodeVarInt(r io.ByteReader) (uint64, error) {
	var res uint64
	for {
		b, err := r.ReadByte()
		switch {
		case errors.Is(err, io.EOF) || errors.Is(err, ErrBufferUnderrun):
			return 0, fmt.Errorf("%w: unexpected end of varint", ErrBufferUnderrun)
		case err != nil:
			return 0, err
		}
		if res > math.MaxUint64>>7 {
			return 0, ErrVarIntOverflow
		}
		res = res<<7 | uint64(b&0x7f)
		if b&0x80 == 0 {
			return res, nil
		}
	}
}
