package negentropy_test

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nostrsync/negsync/negentropy"
)

func TestFingerprintEmpty(t *testing.T) {
	var input [negentropy.IDSize + 1]byte
	h := sha256.Sum256(input[:])
	var expected negentropy.Fingerprint
	copy(expected[:], h[:])
	require.Equal(t, expected, negentropy.FingerprintOf())
}

func TestFingerprint(t *testing.T) {
	id1 := negentropy.RandomID()
	id2 := negentropy.RandomID()
	id3 := negentropy.RandomID()
	require.Equal(t,
		negentropy.FingerprintOf(id1, id2, id3),
		negentropy.FingerprintOf(id3, id1, id2),
		"fingerprint doesn't depend on the order")
	require.NotEqual(t, negentropy.FingerprintOf(id1, id2), negentropy.FingerprintOf(id1, id3))
	require.NotEqual(t, negentropy.FingerprintOf(id1), negentropy.FingerprintOf(id1, id1, id1),
		"count is a part of the fingerprint")
}

func TestAccumulatorCarry(t *testing.T) {
	var a negentropy.Accumulator
	var maxID, one negentropy.ID
	for i := range maxID {
		maxID[i] = 0xff
	}
	one[0] = 1
	a.Add(maxID)
	a.Add(one)
	require.Equal(t, negentropy.ID{}, a.Sum(), "sum wraps modulo 2^256")

	a.Reset()
	var lowWord negentropy.ID
	for i := range 8 {
		lowWord[i] = 0xff
	}
	a.Add(lowWord)
	a.Add(one)
	var expected negentropy.ID
	expected[8] = 1
	require.Equal(t, expected, a.Sum(), "carry propagates to the next word")

	var count [1]byte
	count[0] = 2
	h := sha256.Sum256(append(expected[:], count[:]...))
	var fp negentropy.Fingerprint
	copy(fp[:], h[:])
	require.Equal(t, fp, a.Fingerprint(2))
}
