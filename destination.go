package flow

import (
	"sync"
)

// destination is a node consuming records without producing any.
type destination[T any] struct {
	*node
	consumer[T]
	handle func(T) error
	// flush runs once every record has been handled, unless the input was faulted.
	flush func() error
}

func newDestination[T any](impl component, kind string, opts []Option) destination[T] {
	return destination[T]{node: newNode(impl, kind, opts)}
}

func (d *destination[T]) initBuffers() error {
	d.input = newQueue[T](d.bufferSize())
	return nil
}

func (d *destination[T]) start() {
	d.runWorkers(d.node, d.process, func(cause error) {
		if cause != nil || d.flush == nil {
			return
		}
		if err := d.flush(); err != nil {
			d.input.fault(err)
		}
	})
}

func (d *destination[T]) process(v T) error {
	d.progress.start()
	if err := d.handle(v); err != nil {
		return err
	}
	d.progress.add(1)
	return nil
}

func (d *destination[T]) completeBuffer() { d.input.complete() }

func (d *destination[T]) faultBuffer(err error) { d.input.fault(err) }

func (d *destination[T]) bufferDone() <-chan struct{} { return d.input.done() }

func (d *destination[T]) bufferErr() error { return d.input.err() }

// MemoryDestination collects every record in memory.
type MemoryDestination[T any] struct {
	destination[T]
	mu   sync.Mutex
	data []T
}

// NewMemoryDestination creates a destination keeping records in arrival order.
func NewMemoryDestination[T any](opts ...Option) *MemoryDestination[T] {
	d := &MemoryDestination[T]{}
	d.destination = newDestination[T](d, "MemoryDestination", opts)
	d.handle = d.write
	return d
}

func (d *MemoryDestination[T]) write(v T) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.data = append(d.data, v)
	return nil
}

// Data returns a copy of the records received so far.
func (d *MemoryDestination[T]) Data() []T {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]T(nil), d.data...)
}

// CustomDestination hands every record to WriteFunc. WriteFunc errors are row-level errors.
type CustomDestination[T any] struct {
	destination[T]
	WriteFunc func(T) error
}

// NewCustomDestination creates a destination calling write for every record.
func NewCustomDestination[T any](write func(T) error, opts ...Option) *CustomDestination[T] {
	d := &CustomDestination[T]{WriteFunc: write}
	d.destination = newDestination[T](d, "CustomDestination", opts)
	d.handle = d.write
	return d
}

func (d *CustomDestination[T]) initBuffers() error {
	if d.WriteFunc == nil {
		return errorf(ErrNoTransformation, "no write function")
	}
	return d.destination.initBuffers()
}

func (d *CustomDestination[T]) write(v T) error {
	if err := safelyDo(func() error { return d.WriteFunc(v) }); err != nil {
		return d.throwOrRedirect(err, renderRecord(v))
	}
	return nil
}

// VoidDestination discards every record. It terminates branches nobody needs to read.
type VoidDestination[T any] struct {
	destination[T]
}

// NewVoidDestination creates a destination dropping records.
func NewVoidDestination[T any](opts ...Option) *VoidDestination[T] {
	d := &VoidDestination[T]{}
	d.destination = newDestination[T](d, "VoidDestination", opts)
	d.handle = func(T) error { return nil }
	return d
}
