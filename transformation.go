package flow

import (
	"sync"
)

// transform is a node with an input stage feeding workers, and an output stage.
type transform[In, Out any] struct {
	producer[Out]
	consumer[In]
	handle func(In) error
	// flush runs once every input record has been handled, before the output completes.
	flush func() error
	// inputSize overrides the input capacity, 0 meaning the node buffer size.
	inputSize int
}

func newTransform[In, Out any](impl component, kind string, opts []Option) transform[In, Out] {
	return transform[In, Out]{producer: newProducer[Out](impl, kind, opts)}
}

// inputCapacity returns the capacity of the input buffer, 0 meaning unbounded.
func (t *transform[In, Out]) inputCapacity() int {
	if t.inputSize != 0 {
		return max(0, t.inputSize)
	}
	return t.bufferSize()
}

func (t *transform[In, Out]) initBuffers() error {
	t.input = newQueue[In](t.inputCapacity())
	t.output = newQueue[Out](t.bufferSize())
	return nil
}

func (t *transform[In, Out]) start() {
	t.runPump()
	t.runWorkers(t.node, t.handle, func(cause error) {
		if cause != nil {
			t.output.fault(cause)
			return
		}
		if t.flush != nil {
			if err := t.flush(); err != nil {
				t.output.fault(err)
				return
			}
		}
		t.output.complete()
	})
}

func (t *transform[In, Out]) completeBuffer() { t.input.complete() }

func (t *transform[In, Out]) faultBuffer(err error) {
	t.input.fault(err)
	t.output.fault(err)
}

func (t *transform[In, Out]) bufferDone() <-chan struct{} { return t.output.done() }

func (t *transform[In, Out]) bufferErr() error { return t.output.err() }

// RowTransformation maps every record with TransformFunc. InitAction, when set, runs once before
// the first record.
type RowTransformation[In, Out any] struct {
	transform[In, Out]
	TransformFunc Transform[In, Out]
	InitAction    func() error

	initOnce sync.Once
	initErr  error
}

// NewRowTransformation creates a transformation applying fn to every record.
func NewRowTransformation[In, Out any](fn Transform[In, Out], opts ...Option) *RowTransformation[In, Out] {
	t := &RowTransformation[In, Out]{TransformFunc: fn}
	t.transform = newTransform[In, Out](t, "RowTransformation", opts)
	t.handle = t.process
	return t
}

func (t *RowTransformation[In, Out]) initBuffers() error {
	if t.TransformFunc == nil {
		return errorf(ErrNoTransformation, "no transformation function")
	}
	return t.transform.initBuffers()
}

func (t *RowTransformation[In, Out]) process(v In) error {
	t.progress.start()
	t.initOnce.Do(func() {
		if t.InitAction != nil {
			t.initErr = safelyDo(t.InitAction)
		}
	})
	if t.initErr != nil {
		t.faultWithPredecessors(t.initErr)
		return t.initErr
	}
	out, err := safely(func() (Out, error) { return t.TransformFunc(v) })
	if err != nil {
		return t.throwOrRedirect(err, renderRecord(v))
	}
	if err := t.emit(out); err != nil {
		return err
	}
	t.progress.add(1)
	return nil
}

// RowMultiplication maps every record to any number of records.
type RowMultiplication[In, Out any] struct {
	transform[In, Out]
	MultiplicationFunc Split[In, Out]
}

// NewRowMultiplication creates a transformation emitting every record returned by fn, in order.
func NewRowMultiplication[In, Out any](fn Split[In, Out], opts ...Option) *RowMultiplication[In, Out] {
	t := &RowMultiplication[In, Out]{MultiplicationFunc: fn}
	t.transform = newTransform[In, Out](t, "RowMultiplication", opts)
	t.handle = t.process
	return t
}

func (t *RowMultiplication[In, Out]) initBuffers() error {
	if t.MultiplicationFunc == nil {
		return errorf(ErrNoTransformation, "no multiplication function")
	}
	return t.transform.initBuffers()
}

func (t *RowMultiplication[In, Out]) process(v In) error {
	t.progress.start()
	outs, err := safely(func() ([]Out, error) { return t.MultiplicationFunc(v) })
	if err != nil {
		return t.throwOrRedirect(err, renderRecord(v))
	}
	for _, out := range outs {
		if err := t.emit(out); err != nil {
			return err
		}
	}
	t.progress.add(1)
	return nil
}
