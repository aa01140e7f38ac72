package negentropy

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

// IDSize is the size of an item ID in bytes.
const IDSize = 32

// ID identifies an item in a reconcilable set.
type ID [IDSize]byte

// String implements fmt.Stringer.
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// ShortString returns the hex representation of the first 5 bytes of the ID.
func (id ID) ShortString() string {
	return hex.EncodeToString(id[:5])
}

// Compare compares two IDs lexicographically.
func (id ID) Compare(other ID) int {
	return bytes.Compare(id[:], other[:])
}

// IDFromBytes converts a byte slice of IDSize bytes into an ID.
func IDFromBytes(b []byte) (ID, error) {
	var id ID
	if len(b) != IDSize {
		return id, fmt.Errorf("%w: expected %d, got %d", ErrInvalidIDSize, IDSize, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// ParseID parses a hex-encoded ID.
func ParseID(s string) (ID, error) {
	b, err := HexToBytes(s)
	if err != nil {
		return ID{}, err
	}
	return IDFromBytes(b)
}

// MustParseID parses a hex-encoded ID and panics on error.
func MustParseID(s string) ID {
	id, err := ParseID(s)
	if err != nil {
		panic("bad ID: " + err.Error())
	}
	return id
}

// RandomID generates a random ID for testing.
func RandomID() ID {
	var id ID
	if _, err := rand.Read(id[:]); err != nil {
		panic("failed to generate random ID: " + err.Error())
	}
	return id
}

// CompareBytes compares two byte slices lexicographically, returning -1, 0 or 1.
// When one slice is a strict prefix of the other, the shorter one sorts first.
func CompareBytes(a, b []byte) int {
	return bytes.Compare(a, b)
}

// HexToBytes decodes a hex string, accepting an optional 0x prefix.
func HexToBytes(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	if len(s)%2 != 0 {
		return nil, ErrOddHexLength
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}
	return b, nil
}

// BytesToHex encodes b as lowercase hex without a prefix.
func BytesToHex(b []byte) string {
	return hex.EncodeToString(b)
}
