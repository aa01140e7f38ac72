package negentropy

import (
	"encoding/binary"
	"encoding/hex"
	"math/bits"

	"github.com/nostrsync/negsync/hash"
)

// FingerprintSize is the size of a range fingerprint in bytes.
const FingerprintSize = 16

// Fingerprint summarizes the IDs of all items in a range.
type Fingerprint [FingerprintSize]byte

// String implements fmt.Stringer.
func (fp Fingerprint) String() string {
	return hex.EncodeToString(fp[:])
}

// Accumulator sums IDs as little-endian 256-bit integers modulo 2^256.
type Accumulator struct {
	words [IDSize / 8]uint64
}

// Reset sets the accumulator to zero.
func (a *Accumulator) Reset() {
	clear(a.words[:])
}

// Add adds the ID to the sum.
func (a *Accumulator) Add(id ID) {
	var carry uint64
	for i := range a.words {
		v := binary.LittleEndian.Uint64(id[i*8:])
		a.words[i], carry = bits.Add64(a.words[i], v, carry)
	}
}

// Sum returns the current value of the accumulator as little-endian bytes.
func (a *Accumulator) Sum() ID {
	var r ID
	for i, w := range a.words {
		binary.LittleEndian.PutUint64(r[i*8:], w)
	}
	return r
}

// Fingerprint returns the fingerprint of count items summed in the accumulator:
// the first FingerprintSize bytes of sha256(sum || varint(count)).
func (a *Accumulator) Fingerprint(count int) Fingerprint {
	h := hash.GetHasher()
	defer func() {
		h.Reset()
		hash.PutHasher(h)
	}()
	sum := a.Sum()
	h.Write(sum[:])
	h.Write(EncodeVarInt(uint64(count)))
	var res [hash.Size]byte
	var fp Fingerprint
	copy(fp[:], h.Sum(res[:0]))
	return fp
}

// FingerprintOf computes the fingerprint of the given IDs.
func FingerprintOf(ids ...ID) Fingerprint {
	var a Accumulator
	for _, id := range ids {
		a.Add(id)
	}
	return a.Fingerprint(len(ids))
}
