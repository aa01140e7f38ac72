package negentropy

import (
	"bytes"
	"cmp"
	"fmt"
	"math"
)

// MaxTimestamp is the timestamp of the upper bound of the item universe.
const MaxTimestamp = math.MaxUint64

// Item is an element of a reconcilable set. Items are ordered by timestamp, then by ID.
type Item struct {
	Timestamp uint64
	ID        ID
}

// Compare compares two items by (timestamp, id).
func (it Item) Compare(other Item) int {
	if c := cmp.Compare(it.Timestamp, other.Timestamp); c != 0 {
		return c
	}
	return it.ID.Compare(other.ID)
}

// String implements fmt.Stringer.
func (it Item) String() string {
	return fmt.Sprintf("%d:%s", it.Timestamp, it.ID.ShortString())
}

// Bound delimits the end of a range. Prefix is a prefix of an ID, possibly empty.
type Bound struct {
	Timestamp uint64
	Prefix    []byte
}

// InfiniteBound returns the bound past the last possible item.
func InfiniteBound() Bound {
	return Bound{Timestamp: MaxTimestamp}
}

// ItemBound returns the bound that sorts exactly at the item.
func ItemBound(it Item) Bound {
	return Bound{Timestamp: it.Timestamp, Prefix: it.ID[:]}
}

// IsInfinite returns true if b is the upper bound of the universe.
func (b Bound) IsInfinite() bool {
	return b.Timestamp == MaxTimestamp
}

// String implements fmt.Stringer.
func (b Bound) String() string {
	if b.IsInfinite() {
		return "inf"
	}
	return fmt.Sprintf("%d:%x", b.Timestamp, b.Prefix)
}

// compareItem compares the item against the bound. The prefix is treated as if it was
// padded with zero bytes to IDSize.
func (b Bound) compareItem(it Item) int {
	if c := cmp.Compare(it.Timestamp, b.Timestamp); c != 0 {
		return c
	}
	n := min(len(b.Prefix), IDSize)
	if c := bytes.Compare(it.ID[:n], b.Prefix[:n]); c != 0 {
		return c
	}
	for _, v := range it.ID[n:] {
		if v != 0 {
			return 1
		}
	}
	return 0
}

// minimalBound returns the shortest bound that separates prev from curr, where prev
// sorts before curr.
func minimalBound(prev, curr Item) Bound {
	if curr.Timestamp != prev.Timestamp {
		return Bound{Timestamp: curr.Timestamp}
	}
	shared := 0
	for shared < IDSize && curr.ID[shared] == prev.ID[shared] {
		shared++
	}
	return Bound{
		Timestamp: curr.Timestamp,
		Prefix:    append([]byte(nil), curr.ID[:min(shared+1, IDSize)]...),
	}
}
