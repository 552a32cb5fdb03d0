package flow

import (
	"context"
)

// Executable is a node without predecessors, starting the flow of records.
type Executable interface {
	Node
	// Execute initializes the data flow on first call, then reads every record and returns once
	// they have all been handed off to the successors.
	Execute(ctx context.Context) error
	// ExecuteAsync is Execute without waiting.
	ExecuteAsync(ctx context.Context) *Completion
}

// Reader yields records one at a time. Next returns false once there is no more record; an error
// concerns the current record only and the next call moves on.
type Reader[T any] interface {
	Next(ctx context.Context) (T, bool, error)
}

type source[T any] struct {
	producer[T]
	read func(ctx context.Context) error
}

func (s *source[T]) initBuffers() error {
	s.output = newQueue[T](s.bufferSize())
	return nil
}

func (s *source[T]) start() { s.runPump() }

// compose is a no-op: a source completion begins with its read loop.
func (s *source[T]) compose() {}

func (s *source[T]) completeBuffer() { s.output.complete() }

func (s *source[T]) faultBuffer(err error) { s.output.fault(err) }

func (s *source[T]) bufferDone() <-chan struct{} { return s.output.done() }

func (s *source[T]) bufferErr() error { return s.output.err() }

func (s *source[T]) ExecuteAsync(ctx context.Context) *Completion {
	n := s.base()
	if err := n.net.initialize(); err != nil {
		return n.completion
	}
	if !n.completion.begin() {
		return n.completion
	}
	n.pool().submit(func() {
		n.runSource(func() error {
			n.progress.start()
			return s.read(ctx)
		})
	})
	return n.completion
}

func (s *source[T]) Execute(ctx context.Context) error {
	return s.ExecuteAsync(ctx).Wait()
}

// MemorySource emits the records of a slice.
type MemorySource[T any] struct {
	source[T]
	Data []T
}

// NewMemorySource creates a source emitting data in order.
func NewMemorySource[T any](data []T, opts ...Option) *MemorySource[T] {
	s := &MemorySource[T]{Data: data}
	s.producer = newProducer[T](s, "MemorySource", opts)
	s.read = s.readAll
	return s
}

func (s *MemorySource[T]) readAll(ctx context.Context) error {
	for _, v := range s.Data {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.emit(v); err != nil {
			return err
		}
		s.progress.add(1)
	}
	return nil
}

// CustomSource emits the records returned by ReadFunc until it reports there is no more.
type CustomSource[T any] struct {
	source[T]
	ReadFunc func(ctx context.Context) (T, bool, error)
	// CloseFunc, when set, runs once the source finished, whatever the outcome.
	CloseFunc func() error
}

// NewCustomSource creates a source pulling records from read.
func NewCustomSource[T any](read func(ctx context.Context) (T, bool, error), opts ...Option) *CustomSource[T] {
	s := &CustomSource[T]{ReadFunc: read}
	s.producer = newProducer[T](s, "CustomSource", opts)
	s.read = s.readAll
	return s
}

// NewReaderSource creates a source pulling records from r. The reader is closed when it
// implements io.Closer.
func NewReaderSource[T any](r Reader[T], opts ...Option) *CustomSource[T] {
	s := NewCustomSource(r.Next, opts...)
	if closer, ok := r.(interface{ Close() error }); ok {
		s.CloseFunc = closer.Close
	}
	return s
}

func (s *CustomSource[T]) initBuffers() error {
	if s.ReadFunc == nil {
		return errorf(ErrNoTransformation, "no read function")
	}
	return s.source.initBuffers()
}

func (s *CustomSource[T]) readAll(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		var more bool
		v, err := safely(func() (T, error) {
			v, ok, err := s.ReadFunc(ctx)
			more = ok
			return v, err
		})
		if err != nil {
			if err := s.throwOrRedirect(err, err.Error()); err != nil {
				return err
			}
			continue
		}
		if !more {
			return nil
		}
		if err := s.emit(v); err != nil {
			return err
		}
		s.progress.add(1)
	}
}

func (s *CustomSource[T]) onSuccess() error {
	if s.CloseFunc == nil {
		return nil
	}
	return s.CloseFunc()
}

func (s *CustomSource[T]) onFault(error) {
	if s.CloseFunc != nil {
		_ = s.CloseFunc()
	}
}
