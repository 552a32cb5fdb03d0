package flow

import (
	"errors"
	"reflect"
	"sync"
)

// JoinTarget is one input side of a join. Link the records of that side to it.
type JoinTarget[T any] struct {
	destination[T]
}

func newJoinTarget[T any](parent *node, side string, action func(T) error, bufferSize int) *JoinTarget[T] {
	opts := []Option{
		WithName(parent.name + " " + side),
		WithConfig(parent.config()),
		WithBufferSize(parent.settings.bufferSize),
		WithoutLogging(),
	}
	if bufferSize != 0 {
		opts = append(opts, WithBufferSize(bufferSize))
	}
	j := &JoinTarget[T]{}
	j.destination = newDestination[T](j, "JoinTarget", opts)
	j.handle = action
	j.link(parent, nil)
	return j
}

// linkBuffers is a no-op: a join target hands its records to its join through an action.
func (j *JoinTarget[T]) linkBuffers(*node, any) error { return nil }

// MergeJoin pairs the i-th record of its left input with the i-th record of its right input.
// Once both inputs completed, records left without a partner are joined with the zero value of
// the other side, so the output has as many records as the longest input.
type MergeJoin[L, R, Out any] struct {
	producer[Out]
	Left     *JoinTarget[L]
	Right    *JoinTarget[R]
	JoinFunc JoinFunc[L, R, Out]

	mu     sync.Mutex
	lefts  []L
	rights []R
}

// NewMergeJoin creates a merge join combining pairs with fn.
func NewMergeJoin[L, R, Out any](fn JoinFunc[L, R, Out], opts ...Option) *MergeJoin[L, R, Out] {
	m := &MergeJoin[L, R, Out]{JoinFunc: fn}
	m.producer = newProducer[Out](m, "MergeJoin", opts)
	m.Left = newJoinTarget(m.node, "left", m.leftArrived, 0)
	m.Right = newJoinTarget(m.node, "right", m.rightArrived, 0)
	return m
}

func (m *MergeJoin[L, R, Out]) initBuffers() error {
	if m.JoinFunc == nil {
		return errorf(ErrNoTransformation, "no join function")
	}
	m.output = newQueue[Out](m.bufferSize())
	return nil
}

func (m *MergeJoin[L, R, Out]) start() { m.runPump() }

func (m *MergeJoin[L, R, Out]) leftArrived(l L) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.progress.start()
	if len(m.rights) == 0 {
		m.lefts = append(m.lefts, l)
		return nil
	}
	var zero R
	r := m.rights[0]
	m.rights[0] = zero
	m.rights = m.rights[1:]
	return m.join(l, r)
}

func (m *MergeJoin[L, R, Out]) rightArrived(r R) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.progress.start()
	if len(m.lefts) == 0 {
		m.rights = append(m.rights, r)
		return nil
	}
	var zero L
	l := m.lefts[0]
	m.lefts[0] = zero
	m.lefts = m.lefts[1:]
	return m.join(l, r)
}

// join must be called with mu held. Redirected errors go to an unbounded queue and never block.
func (m *MergeJoin[L, R, Out]) join(l L, r R) error {
	out, err := safely(func() (Out, error) { return m.JoinFunc(l, r) })
	if err != nil {
		return m.throwOrRedirect(err, renderPair(l, r))
	}
	if err := m.emit(out); err != nil {
		return err
	}
	m.progress.add(1)
	return nil
}

// joinUnpaired joins the records still waiting for a partner with the zero value of the other side.
func (m *MergeJoin[L, R, Out]) joinUnpaired() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var (
		zeroL L
		zeroR R
	)
	lefts, rights := m.lefts, m.rights
	m.lefts, m.rights = nil, nil
	for _, l := range lefts {
		if err := m.join(l, zeroR); err != nil {
			return err
		}
	}
	for _, r := range rights {
		if err := m.join(zeroL, r); err != nil {
			return err
		}
	}
	return nil
}

func (m *MergeJoin[L, R, Out]) completeBuffer() {
	if err := m.joinUnpaired(); err != nil {
		m.output.fault(err)
		return
	}
	m.output.complete()
}

func (m *MergeJoin[L, R, Out]) faultBuffer(err error) {
	m.Left.faultBuffer(err)
	m.Right.faultBuffer(err)
	m.output.fault(err)
}

func (m *MergeJoin[L, R, Out]) bufferDone() <-chan struct{} { return m.output.done() }

func (m *MergeJoin[L, R, Out]) bufferErr() error { return m.output.err() }

// CrossJoin joins every record of its in-memory input with every record of its passing input.
// The in-memory input is read entirely before the first passing record is joined; each passing
// record is then joined with the in-memory records in their arrival order.
//
// A pair yields no output when the join function returns ErrSkip or a nil result.
type CrossJoin[M, P, Out any] struct {
	producer[Out]
	InMemory *JoinTarget[M]
	Passing  *JoinTarget[P]
	JoinFunc JoinFunc[M, P, Out]

	data   []M
	loaded bool
}

// NewCrossJoin creates a cross join combining pairs with fn.
func NewCrossJoin[M, P, Out any](fn JoinFunc[M, P, Out], opts ...Option) *CrossJoin[M, P, Out] {
	c := &CrossJoin[M, P, Out]{JoinFunc: fn}
	c.producer = newProducer[Out](c, "CrossJoin", opts)
	c.InMemory = newJoinTarget(c.node, "in-memory", c.collect, unbounded)
	c.Passing = newJoinTarget(c.node, "passing", c.cross, 0)
	return c
}

func (c *CrossJoin[M, P, Out]) initBuffers() error {
	if c.JoinFunc == nil {
		return errorf(ErrNoTransformation, "no join function")
	}
	c.output = newQueue[Out](c.bufferSize())
	return nil
}

func (c *CrossJoin[M, P, Out]) start() { c.runPump() }

func (c *CrossJoin[M, P, Out]) collect(m M) error {
	c.data = append(c.data, m)
	return nil
}

func (c *CrossJoin[M, P, Out]) cross(p P) error {
	if !c.loaded {
		if err := c.InMemory.Wait(); err != nil {
			return err
		}
		c.loaded = true
	}
	c.progress.start()
	for _, m := range c.data {
		out, err := safely(func() (Out, error) { return c.JoinFunc(m, p) })
		switch {
		case errors.Is(err, ErrSkip):
			continue
		case err != nil:
			if err := c.throwOrRedirect(err, renderPair(m, p)); err != nil {
				return err
			}
			continue
		case isNil(out):
			continue
		}
		if err := c.emit(out); err != nil {
			return err
		}
		c.progress.add(1)
	}
	return nil
}

func (c *CrossJoin[M, P, Out]) completeBuffer() { c.output.complete() }

func (c *CrossJoin[M, P, Out]) faultBuffer(err error) {
	c.InMemory.faultBuffer(err)
	c.Passing.faultBuffer(err)
	c.output.fault(err)
}

func (c *CrossJoin[M, P, Out]) bufferDone() <-chan struct{} { return c.output.done() }

func (c *CrossJoin[M, P, Out]) bufferErr() error { return c.output.err() }

func isNil(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
