// Package sql is a thin layer over a pool of sqlite connections holding the local
// event set.
package sql

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	sqlite "github.com/go-llsqlite/crawshaw"
	"github.com/go-llsqlite/crawshaw/sqlitex"
	"go.uber.org/zap"
)

var (
	// ErrNoConnection is returned when the pool is closed or the context is done
	// before a connection becomes available.
	ErrNoConnection = errors.New("database: no free connection")
	// ErrNotFound is returned if requested record is not found.
	ErrNotFound = errors.New("database: not found")
	// ErrObjectExists is returned when a primary key or unique constraint rejects an insert.
	ErrObjectExists = errors.New("database: object exists")
)

// Statement is an sqlite statement.
type Statement = sqlite.Stmt

// Encoder binds query parameters, either positional (?1) or named (@id).
type Encoder func(*Statement)

// Decoder is called for every row. Returning false stops the iteration.
type Decoder func(*Statement) bool

// Executor runs a single query and returns the number of rows it visited.
type Executor interface {
	Exec(query string, enc Encoder, dec Decoder) (int, error)
}

type options struct {
	logger      *zap.Logger
	connections int
	migrations  Migrations
	latency     bool
	memory      bool
}

// Opt configures the database.
type Opt func(*options)

// WithLogger specifies the logger for the database.
func WithLogger(logger *zap.Logger) Opt {
	return func(o *options) {
		o.logger = logger
	}
}

// WithConnections sets the size of the connection pool.
func WithConnections(n int) Opt {
	return func(o *options) {
		o.connections = n
	}
}

// WithMigrations replaces the embedded schema migrations.
func WithMigrations(m Migrations) Opt {
	return func(o *options) {
		o.migrations = m
	}
}

// WithLatencyMetering records the duration of every query, labeled by the query text.
func WithLatencyMetering(enable bool) Opt {
	return func(o *options) {
		o.latency = enable
	}
}

// InMemory opens a private in-memory database and panics on failure.
// Intended for tests.
func InMemory(opts ...Opt) *Database {
	opts = append(opts, WithConnections(1), func(o *options) { o.memory = true })
	db, err := Open("file::memory:?mode=memory", opts...)
	if err != nil {
		panic(err)
	}
	return db
}

// Open opens the database at uri, creating it if it doesn't exist, and applies
// the migrations. File databases use WAL journaling, so readers don't block
// the writer.
func Open(uri string, opts ...Opt) (*Database, error) {
	o := options{
		logger:      zap.NewNop(),
		connections: 8,
		migrations:  embeddedMigrations,
	}
	for _, opt := range opts {
		opt(&o)
	}
	pool, err := openPool(uri, &o)
	if err != nil {
		return nil, err
	}
	db := &Database{pool: pool}
	if o.latency {
		db.latency = queryDuration
	}
	if o.migrations == nil {
		return db, nil
	}
	err = db.WithTxImmediate(context.Background(), func(tx *Tx) error {
		return o.migrations(tx)
	})
	if err != nil {
		return nil, errors.Join(fmt.Errorf("migrate %s: %w", uri, err), db.Close())
	}
	return db, nil
}

func openPool(uri string, o *options) (*sqlitex.Pool, error) {
	if o.memory {
		pool, err := sqlitex.Open(uri, 0, o.connections)
		if err != nil {
			return nil, fmt.Errorf("open db %s: %w", uri, err)
		}
		return pool, nil
	}
	flags := sqlite.SQLITE_OPEN_READWRITE | sqlite.SQLITE_OPEN_WAL |
		sqlite.SQLITE_OPEN_URI | sqlite.SQLITE_OPEN_NOMUTEX
	pool, err := sqlitex.Open(uri, flags, o.connections)
	switch {
	case err == nil:
		return pool, nil
	case sqlite.ErrCode(err) != sqlite.SQLITE_CANTOPEN:
		return nil, fmt.Errorf("open db %s: %w", uri, err)
	}
	o.logger.Info("creating database", zap.String("uri", uri))
	pool, err = sqlitex.Open(uri, flags|sqlite.SQLITE_OPEN_CREATE, o.connections)
	if err != nil {
		return nil, fmt.Errorf("create db %s: %w", uri, err)
	}
	return pool, nil
}

// Database is a pool of connections to a single sqlite database.
type Database struct {
	pool    *sqlitex.Pool
	latency histogram
	queries atomic.Int64

	mu     sync.Mutex
	closed bool
}

func (db *Database) acquire(ctx context.Context) (*sqlite.Conn, error) {
	start := time.Now()
	conn := db.pool.Get(ctx)
	if conn == nil {
		return nil, ErrNoConnection
	}
	connWaitLatency.Observe(time.Since(start).Seconds())
	return conn, nil
}

func (db *Database) begin(ctx context.Context, stmt string) (*Tx, error) {
	conn, err := db.acquire(ctx)
	if err != nil {
		return nil, err
	}
	if err := step(conn, stmt); err != nil {
		db.pool.Put(conn)
		return nil, fmt.Errorf("begin: %w", err)
	}
	return &Tx{db: db, conn: conn}, nil
}

// Tx starts a deferred transaction. Used as a read snapshot: in WAL mode the
// first read fixes the state seen by the transaction until it is released.
func (db *Database) Tx(ctx context.Context) (*Tx, error) {
	return db.begin(ctx, "BEGIN;")
}

// WithTxImmediate runs exec in a write transaction. The transaction is committed
// only if exec returns nil.
func (db *Database) WithTxImmediate(ctx context.Context, exec func(*Tx) error) error {
	tx, err := db.begin(ctx, "BEGIN IMMEDIATE;")
	if err != nil {
		return err
	}
	defer tx.Release()
	if err := exec(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Exec runs the query on a pooled connection outside of any explicit transaction.
func (db *Database) Exec(query string, enc Encoder, dec Decoder) (int, error) {
	conn, err := db.acquire(context.Background())
	if err != nil {
		return 0, err
	}
	defer db.pool.Put(conn)
	return db.run(conn, query, enc, dec)
}

func (db *Database) run(conn *sqlite.Conn, query string, enc Encoder, dec Decoder) (int, error) {
	db.queries.Add(1)
	if db.latency != nil {
		defer func(start time.Time) {
			db.latency.WithLabelValues(query).Observe(float64(time.Since(start)))
		}(time.Now())
	}
	return execute(conn, query, enc, dec)
}

// QueryCount returns the number of queries run so far, including failed ones.
// Transaction control statements are not counted.
func (db *Database) QueryCount() int {
	return int(db.queries.Load())
}

// Close closes the pool. It is safe to call Close more than once.
func (db *Database) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil
	}
	if err := db.pool.Close(); err != nil {
		return fmt.Errorf("close pool: %w", err)
	}
	db.closed = true
	return nil
}

func step(conn *sqlite.Conn, stmt string) error {
	_, err := conn.Prep(stmt).Step()
	return err
}

func execute(conn *sqlite.Conn, query string, enc Encoder, dec Decoder) (int, error) {
	stmt, err := conn.Prepare(query)
	if err != nil {
		return 0, fmt.Errorf("prepare %s: %w", query, err)
	}
	if enc != nil {
		enc(stmt)
	}
	defer stmt.ClearBindings()

	for rows := 0; ; rows++ {
		ok, err := stmt.Step()
		if err != nil {
			switch sqlite.ErrCode(err) {
			case sqlite.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite.SQLITE_CONSTRAINT_UNIQUE:
				return 0, ErrObjectExists
			}
			return 0, fmt.Errorf("step %d: %w", rows, err)
		}
		if !ok {
			return rows, nil
		}
		if dec != nil && !dec(stmt) {
			if err := stmt.Reset(); err != nil {
				return rows + 1, fmt.Errorf("reset: %w", err)
			}
			return rows + 1, nil
		}
	}
}

// Tx is a transaction holding one pooled connection until released.
type Tx struct {
	db        *Database
	conn      *sqlite.Conn
	committed bool
	released  bool
}

// Exec runs the query within the transaction.
func (tx *Tx) Exec(query string, enc Encoder, dec Decoder) (int, error) {
	return tx.db.run(tx.conn, query, enc, dec)
}

// Commit commits the transaction. The connection is returned to the pool by Release.
func (tx *Tx) Commit() error {
	if err := step(tx.conn, "COMMIT;"); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	tx.committed = true
	return nil
}

// Release rolls back the transaction unless it was committed and returns the
// connection to the pool. Releasing twice is a no-op.
func (tx *Tx) Release() error {
	if tx.released {
		return nil
	}
	tx.released = true
	defer tx.db.pool.Put(tx.conn)
	if tx.committed {
		return nil
	}
	return step(tx.conn, "ROLLBACK;")
}
