package flow

import (
	"context"
	"sync"

	"go.uber.org/multierr"
)

// ConnectionManager is the database access of a DbDestination.
type ConnectionManager interface {
	// Clone returns a connection of its own for one destination.
	Clone() (ConnectionManager, error)
	// PrepareBulkInsert runs once before the first batch is inserted into table.
	PrepareBulkInsert(ctx context.Context, table string) error
	// BulkInsert inserts rows, holding values in columns order, into table.
	BulkInsert(ctx context.Context, table string, columns []string, rows [][]any) error
	// CleanUpBulkInsert runs once after the last batch, whether the destination succeeded or not.
	CleanUpBulkInsert(ctx context.Context, table string) error
	Close() error
}

// DbDestination writes records into a database table in batches of BatchSize. Records are
// structs, pointers to structs or *Row; their columns are read in a stable order, columns first
// seen in later records being appended.
type DbDestination[T any] struct {
	*BatchDestination[T]
	Table string

	connMu   sync.Mutex
	template ConnectionManager
	conn     ConnectionManager
	columns  columns[T]
	index    *ColumnIndex
}

// NewDbDestination creates a destination inserting records into table through conn.
func NewDbDestination[T any](conn ConnectionManager, table string, batchSize int, opts ...Option) *DbDestination[T] {
	d := &DbDestination[T]{Table: table, template: conn, index: NewColumnIndex()}
	d.BatchDestination = newBatchDestination("DbDestination", batchSize, d.insert, opts)
	d.impl = d
	d.self = d
	return d
}

func (d *DbDestination[T]) initBuffers() error {
	if isNil(d.template) || d.Table == "" {
		return errorf(ErrNoTableDefinition, "no connection or table name")
	}
	columns, err := newColumns[T]()
	if err != nil {
		return err
	}
	d.columns = columns
	return d.BatchDestination.initBuffers()
}

// connection clones the connection and prepares the table on first use.
func (d *DbDestination[T]) connection(ctx context.Context) (ConnectionManager, error) {
	d.connMu.Lock()
	defer d.connMu.Unlock()
	if d.conn != nil {
		return d.conn, nil
	}
	conn, err := d.template.Clone()
	if err != nil {
		return nil, err
	}
	if err := conn.PrepareBulkInsert(ctx, d.Table); err != nil {
		return nil, multierr.Append(err, conn.Close())
	}
	d.conn = conn
	return conn, nil
}

func (d *DbDestination[T]) insert(ctx context.Context, batch []T) error {
	conn, err := d.connection(ctx)
	if err != nil {
		return err
	}
	for _, v := range batch {
		for _, name := range d.columns.names(v) {
			d.index.Add(name)
		}
	}
	names := d.index.Names()
	rows := make([][]any, len(batch))
	for i, v := range batch {
		row := make([]any, len(names))
		for j, name := range names {
			row[j], _ = d.columns.get(v, name)
		}
		rows[i] = row
	}
	return conn.BulkInsert(ctx, d.Table, names, rows)
}

func (d *DbDestination[T]) release() error {
	d.connMu.Lock()
	defer d.connMu.Unlock()
	if d.conn == nil {
		return nil
	}
	conn := d.conn
	d.conn = nil
	return multierr.Append(conn.CleanUpBulkInsert(d.settings.ctx, d.Table), conn.Close())
}

func (d *DbDestination[T]) onSuccess() error { return d.release() }

func (d *DbDestination[T]) onFault(error) { _ = d.release() }
