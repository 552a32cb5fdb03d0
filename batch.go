package flow

import (
	"context"
	"sync"
)

// DefaultBatchSize is the number of records written at once by batch destinations.
const DefaultBatchSize = 1000

// BatchDestination accumulates records and hands them to WriteBatch in batches of BatchSize,
// the last batch holding the remainder. A failed batch is a row-level error whose record is the
// whole batch.
type BatchDestination[T any] struct {
	destination[T]
	BatchSize  int
	WriteBatch func(ctx context.Context, batch []T) error

	mu    sync.Mutex
	batch []T
}

// NewBatchDestination creates a destination writing batches of size records with write.
// A size <= 0 means DefaultBatchSize.
func NewBatchDestination[T any](size int, write func(ctx context.Context, batch []T) error, opts ...Option) *BatchDestination[T] {
	return newBatchDestination("BatchDestination", size, write, opts)
}

func newBatchDestination[T any](kind string, size int, write func(context.Context, []T) error, opts []Option) *BatchDestination[T] {
	d := &BatchDestination[T]{BatchSize: size, WriteBatch: write}
	d.destination = newDestination[T](d, kind, opts)
	d.handle = d.accumulate
	d.flush = d.flushBatch
	return d
}

func (d *BatchDestination[T]) initBuffers() error {
	if d.WriteBatch == nil {
		return errorf(ErrNoTransformation, "no batch write function")
	}
	if d.BatchSize <= 0 {
		d.BatchSize = DefaultBatchSize
	}
	return d.destination.initBuffers()
}

func (d *BatchDestination[T]) accumulate(v T) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.batch = append(d.batch, v)
	if len(d.batch) < d.BatchSize {
		return nil
	}
	return d.write()
}

func (d *BatchDestination[T]) flushBatch() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.batch) == 0 {
		return nil
	}
	return d.write()
}

// write must be called with mu held.
func (d *BatchDestination[T]) write() error {
	batch := d.batch
	d.batch = nil
	if err := safelyDo(func() error { return d.WriteBatch(d.settings.ctx, batch) }); err != nil {
		return d.throwOrRedirect(err, renderRecord(batch))
	}
	return nil
}
