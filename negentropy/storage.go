package negentropy

// Storage is a sorted, indexed collection of items the engine reconciles against.
// Indices are positions in (timestamp, id) order, and ranges are half-open [begin, end).
// The contents must not change while a reconciliation is in progress.
type Storage interface {
	// Size returns the number of items.
	Size() int
	// Item returns the item at index i.
	Item(i int) (Item, error)
	// Iterate calls fn for each item in [begin, end) in order until fn returns false.
	Iterate(begin, end int, fn func(it Item, i int) bool) error
	// FindLowerBound returns the index of the first item in [begin, end) which does not
	// sort before b, or end if there's no such item.
	FindLowerBound(begin, end int, b Bound) (int, error)
	// Fingerprint returns the fingerprint of the items in [begin, end).
	Fingerprint(begin, end int) (Fingerprint, error)
}
