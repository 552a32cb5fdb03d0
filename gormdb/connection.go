package gormdb

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/fogfactory/flow"
)

// ErrNoTable is returned when the destination table does not exist.
var ErrNoTable = errors.New("table does not exist")

// Connection is a flow.ConnectionManager over a gorm database.
type Connection struct {
	db *gorm.DB
	// insertBatchSize splits a bulk insert into statements of that many rows, 0 meaning one statement.
	insertBatchSize int
	// owner is false for clones: they share the connection pool of their origin.
	owner bool

	mu     sync.Mutex
	closed bool
}

var _ flow.ConnectionManager = (*Connection)(nil)

// Option customizes a Connection.
type Option func(*Connection)

// WithInsertBatchSize splits bulk inserts into statements of at most size rows.
func WithInsertBatchSize(size int) Option {
	return func(c *Connection) { c.insertBatchSize = size }
}

// New wraps db. Closing the connection closes db.
func New(db *gorm.DB, opts ...Option) *Connection {
	c := &Connection{db: db, owner: true}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open opens a database with dialector, logging statements to log at level ("silent", "error",
// "warn" or "info").
func Open(dialector gorm.Dialector, log zerolog.Logger, level string, opts ...Option) (*Connection, error) {
	db, err := gorm.Open(dialector, &gorm.Config{Logger: NewLogger(log, ParseLogLevel(level))})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return New(db, opts...), nil
}

// DB returns the underlying gorm database.
func (c *Connection) DB() *gorm.DB {
	return c.db
}

// Clone returns a connection on a fresh session of the same database.
func (c *Connection) Clone() (flow.ConnectionManager, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errors.New("connection closed")
	}
	return &Connection{
		db:              c.db.Session(&gorm.Session{NewDB: true}),
		insertBatchSize: c.insertBatchSize,
	}, nil
}

// PrepareBulkInsert checks that table exists.
func (c *Connection) PrepareBulkInsert(ctx context.Context, table string) error {
	if !c.db.WithContext(ctx).Migrator().HasTable(table) {
		return fmt.Errorf("%w: %s", ErrNoTable, table)
	}
	return nil
}

// BulkInsert inserts rows into table in one transaction.
func (c *Connection) BulkInsert(ctx context.Context, table string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	values := make([]map[string]any, len(rows))
	for i, row := range rows {
		m := make(map[string]any, len(columns))
		for j, column := range columns {
			if j < len(row) {
				m[column] = row[j]
			}
		}
		values[i] = m
	}
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if c.insertBatchSize > 0 {
			return tx.Table(table).CreateInBatches(values, c.insertBatchSize).Error
		}
		return tx.Table(table).Create(values).Error
	})
}

// CleanUpBulkInsert has nothing to undo: every batch is committed on its own.
func (c *Connection) CleanUpBulkInsert(context.Context, string) error {
	return nil
}

// Close closes the database when c is not a clone. Safe to call multiple times.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if !c.owner {
		return nil
	}
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
