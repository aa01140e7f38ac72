package negentropy

import (
	"fmt"
	"slices"
	"sort"
)

// VectorStorage is an in-memory Storage backed by a sorted slice of items.
// Items are inserted first, then the storage is sealed, after which it can be read.
type VectorStorage struct {
	items  []Item
	sealed bool
}

var _ Storage = &VectorStorage{}

// NewVectorStorage creates an empty, unsealed VectorStorage.
func NewVectorStorage() *VectorStorage {
	return &VectorStorage{}
}

// FromItems creates a sealed VectorStorage containing the specified items.
func FromItems(items ...Item) (*VectorStorage, error) {
	s := &VectorStorage{items: slices.Clone(items)}
	if err := s.Seal(); err != nil {
		return nil, err
	}
	return s, nil
}

// Insert adds an item to the storage.
func (s *VectorStorage) Insert(ts uint64, id ID) error {
	if s.sealed {
		return ErrSealed
	}
	s.items = append(s.items, Item{Timestamp: ts, ID: id})
	return nil
}

// InsertHex adds an item with a hex-encoded ID to the storage.
func (s *VectorStorage) InsertHex(ts uint64, idHex string) error {
	id, err := ParseID(idHex)
	if err != nil {
		return err
	}
	return s.Insert(ts, id)
}

// Seal sorts the items and makes the storage readable.
func (s *VectorStorage) Seal() error {
	if s.sealed {
		return ErrSealed
	}
	slices.SortFunc(s.items, Item.Compare)
	for i := 1; i < len(s.items); i++ {
		if s.items[i-1] == s.items[i] {
			return fmt.Errorf("%w: %s", ErrDuplicateItem, s.items[i])
		}
	}
	s.sealed = true
	return nil
}

// Unseal makes the storage writable again.
func (s *VectorStorage) Unseal() {
	s.sealed = false
}

// Size implements Storage.
func (s *VectorStorage) Size() int {
	return len(s.items)
}

func (s *VectorStorage) checkRange(begin, end int) error {
	if !s.sealed {
		return ErrNotSealed
	}
	if begin < 0 || begin > end || end > len(s.items) {
		return fmt.Errorf("%w: [%d, %d) in storage of size %d", ErrInvalidRange, begin, end, len(s.items))
	}
	return nil
}

// Item implements Storage.
func (s *VectorStorage) Item(i int) (Item, error) {
	if err := s.checkRange(i, i+1); err != nil {
		return Item{}, err
	}
	return s.items[i], nil
}

// Iterate implements Storage.
func (s *VectorStorage) Iterate(begin, end int, fn func(it Item, i int) bool) error {
	if err := s.checkRange(begin, end); err != nil {
		return err
	}
	for i := begin; i < end; i++ {
		if !fn(s.items[i], i) {
			break
		}
	}
	return nil
}

// FindLowerBound implements Storage.
func (s *VectorStorage) FindLowerBound(begin, end int, b Bound) (int, error) {
	if err := s.checkRange(begin, end); err != nil {
		return 0, err
	}
	return begin + sort.Search(end-begin, func(i int) bool {
		return b.compareItem(s.items[begin+i]) >= 0
	}), nil
}

// Fingerprint implements Storage.
func (s *VectorStorage) Fingerprint(begin, end int) (Fingerprint, error) {
	if err := s.checkRange(begin, end); err != nil {
		return Fingerprint{}, err
	}
	var a Accumulator
	for _, it := range s.items[begin:end] {
		a.Add(it.ID)
	}
	return a.Fingerprint(end - begin), nil
}
