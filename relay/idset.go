package relay

import (
	"encoding/json"
	"maps"
	"slices"

	"github.com/nostrsync/negsync/negentropy"
)

// IDSet is a set of hex-encoded event IDs.
type IDSet map[string]struct{}

// NewIDSet creates an IDSet containing the specified hex IDs.
func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// AddIDs adds the IDs to the set.
func (s IDSet) AddIDs(ids []negentropy.ID) {
	for _, id := range ids {
		s[id.String()] = struct{}{}
	}
}

// Merge adds the contents of other to the set.
func (s IDSet) Merge(other IDSet) {
	maps.Copy(s, other)
}

// Has returns true if the set contains the hex ID.
func (s IDSet) Has(id string) bool {
	_, found := s[id]
	return found
}

// Len returns the number of IDs in the set.
func (s IDSet) Len() int {
	return len(s)
}

// Sorted returns the IDs in lexicographic order.
func (s IDSet) Sorted() []string {
	return slices.Sorted(maps.Keys(s))
}

// MarshalJSON implements json.Marshaler.
func (s IDSet) MarshalJSON() ([]byte, error) {
	ids := s.Sorted()
	if ids == nil {
		ids = []string{}
	}
	return json.Marshal(ids)
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *IDSet) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewIDSet(ids...)
	return nil
}
