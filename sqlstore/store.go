// Package sqlstore provides negentropy storage backed by the events table.
package sqlstore

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nostrsync/negsync/negentropy"
	"github.com/nostrsync/negsync/sql"
	"github.com/nostrsync/negsync/sql/events"
)

// Opt is an option for Store.
type Opt func(s *Store)

// WithLogger specifies the logger for the Store.
func WithLogger(logger *zap.Logger) Opt {
	return func(s *Store) {
		s.logger = logger
	}
}

// Store is a negentropy.Storage holding a snapshot of the events table.
// The (created_at, id) pairs are read once, in index order, when the Store is
// opened, and no database connection is held afterwards.
type Store struct {
	*negentropy.VectorStorage
	logger *zap.Logger
}

var _ negentropy.Storage = &Store{}

// Open loads the current contents of the events table.
func Open(ctx context.Context, db *sql.Database, opts ...Opt) (*Store, error) {
	s := &Store{
		VectorStorage: negentropy.NewVectorStorage(),
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	start := time.Now()
	tx, err := db.Tx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin read transaction: %w", err)
	}
	defer tx.Release()
	var insertErr error
	if err := events.IterateOrdered(tx, 0, -1, func(it negentropy.Item) bool {
		insertErr = s.Insert(it.Timestamp, it.ID)
		return insertErr == nil
	}); err != nil {
		return nil, err
	}
	if insertErr != nil {
		return nil, fmt.Errorf("load events: %w", insertErr)
	}
	if err := s.Seal(); err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	s.logger.Debug("loaded store",
		zap.Int("size", s.Size()),
		zap.Duration("elapsed", time.Since(start)))
	return s, nil
}
