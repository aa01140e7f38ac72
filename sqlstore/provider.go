package sqlstore

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/nostrsync/negsync/negentropy"
	"github.com/nostrsync/negsync/sql"
)

// Provider opens a Store snapshot per sync session.
type Provider struct {
	db     *sql.Database
	logger *zap.Logger
}

// NewProvider creates a Provider for the database.
func NewProvider(db *sql.Database, logger *zap.Logger) *Provider {
	return &Provider{db: db, logger: logger}
}

// OpenStorage implements relay.StorageProvider. All the events in the database
// are included regardless of the filters. The snapshot holds no database
// resources, so release only drops the reference.
func (p *Provider) OpenStorage(ctx context.Context, _ json.RawMessage) (negentropy.Storage, func(), error) {
	s, err := Open(ctx, p.db, WithLogger(p.logger))
	if err != nil {
		return nil, nil, err
	}
	return s, func() {}, nil
}
