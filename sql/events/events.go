// Package events contains the queries for the events table, which holds the
// (created_at, id) pairs of the locally known events.
package events

import (
	"errors"
	"fmt"
	"math"

	"github.com/nostrsync/negsync/negentropy"
	"github.com/nostrsync/negsync/sql"
)

// ErrTimestampOutOfRange is returned for timestamps that don't fit in an sqlite integer.
var ErrTimestampOutOfRange = errors.New("events: timestamp out of range")

const orderedItems = "select created_at, id from events order by created_at, id"

func decodeItem(stmt *sql.Statement) negentropy.Item {
	var it negentropy.Item
	it.Timestamp = uint64(stmt.ColumnInt64(0))
	stmt.ColumnBytes(1, it.ID[:])
	return it
}

// Add inserts the item. It returns sql.ErrObjectExists if an event with the same
// ID already exists.
func Add(db sql.Executor, it negentropy.Item) error {
	if it.Timestamp > math.MaxInt64 {
		return fmt.Errorf("%w: %d", ErrTimestampOutOfRange, it.Timestamp)
	}
	if _, err := db.Exec("insert into events (id, created_at) values (?1, ?2)",
		func(stmt *sql.Statement) {
			stmt.BindBytes(1, it.ID[:])
			stmt.BindInt64(2, int64(it.Timestamp))
		}, nil); err != nil {
		return fmt.Errorf("insert event %s: %w", it.ID.ShortString(), err)
	}
	return nil
}

// Has returns true if the event with the specified ID is present.
func Has(db sql.Executor, id negentropy.ID) (bool, error) {
	rows, err := db.Exec("select 1 from events where id = ?1",
		func(stmt *sql.Statement) {
			stmt.BindBytes(1, id[:])
		}, nil)
	if err != nil {
		return false, fmt.Errorf("has event %s: %w", id.ShortString(), err)
	}
	return rows > 0, nil
}

// Get returns the item for the event with the specified ID.
func Get(db sql.Executor, id negentropy.ID) (negentropy.Item, error) {
	var it negentropy.Item
	rows, err := db.Exec("select created_at, id from events where id = ?1",
		func(stmt *sql.Statement) {
			stmt.BindBytes(1, id[:])
		}, func(stmt *sql.Statement) bool {
			it = decodeItem(stmt)
			return false
		})
	switch {
	case err != nil:
		return negentropy.Item{}, fmt.Errorf("get event %s: %w", id.ShortString(), err)
	case rows == 0:
		return negentropy.Item{}, fmt.Errorf("%w: event %s", sql.ErrNotFound, id)
	}
	return it, nil
}

// Count returns the number of events.
func Count(db sql.Executor) (int, error) {
	var n int
	if _, err := db.Exec("select count(*) from events", nil,
		func(stmt *sql.Statement) bool {
			n = stmt.ColumnInt(0)
			return false
		}); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// IterateOrdered calls fn for up to limit events in (created_at, id) order, skipping
// the first offset ones, until fn returns false. Negative limit means no limit.
func IterateOrdered(db sql.Executor, offset, limit int, fn func(it negentropy.Item) bool) error {
	if _, err := db.Exec(orderedItems+" limit ?1 offset ?2",
		func(stmt *sql.Statement) {
			stmt.BindInt64(1, int64(limit))
			stmt.BindInt64(2, int64(offset))
		}, func(stmt *sql.Statement) bool {
			return fn(decodeItem(stmt))
		}); err != nil {
		return fmt.Errorf("iterate events: %w", err)
	}
	return nil
}

// All returns all the events in (created_at, id) order.
func All(db sql.Executor) ([]negentropy.Item, error) {
	var items []negentropy.Item
	if err := IterateOrdered(db, 0, -1, func(it negentropy.Item) bool {
		items = append(items, it)
		return true
	}); err != nil {
		return nil, err
	}
	return items, nil
}
