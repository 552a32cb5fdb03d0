package flow

import (
	"github.com/samber/lo"
)

// Multicast sends an independent deep copy of every record to each of its successors.
//
// When the input buffers of all successors hold as many records as the multicast buffer, a single
// shared stage feeds them all. Otherwise each successor gets a private buffer of the multicast
// capacity, filled by one clone-and-fan-out worker, so a slow successor only holds back its own
// branch until its buffer is full.
type Multicast[T any] struct {
	producer[T]
	input        *queue[T]
	clone        func(T) T
	perSuccessor bool
	branches     []*branch[T]
	drained      chan struct{}
}

type branch[T any] struct {
	edge[T]
	buffer *queue[T]
}

// NewMulticast creates a multicast. It fails when records of type T cannot be deep copied.
func NewMulticast[T any](opts ...Option) (*Multicast[T], error) {
	clone, err := newCloner[T]()
	if err != nil {
		return nil, err
	}
	m := &Multicast[T]{clone: clone, drained: make(chan struct{})}
	m.producer = newProducer[T](m, "Multicast", opts)
	return m, nil
}

func (m *Multicast[T]) inputQueue() *queue[T] {
	if m.perSuccessor {
		return m.input
	}
	return m.output
}

func (m *Multicast[T]) initBuffers() error {
	size := m.bufferSize()
	m.perSuccessor = lo.SomeBy(m.succs, func(succ *node) bool { return succ.effectiveInputCapacity() != size })
	m.output = newQueue[T](size)
	if m.perSuccessor {
		m.input = newQueue[T](size)
	}
	return nil
}

func (m *Multicast[T]) linkBuffers(succ *node, predicates any) error {
	e, err := newEdge[T](succ, predicates)
	if err != nil {
		return err
	}
	b := &branch[T]{edge: e}
	if m.perSuccessor {
		b.buffer = newQueue[T](m.bufferSize())
	}
	m.branches = append(m.branches, b)
	return nil
}

func (m *Multicast[T]) start() {
	if !m.perSuccessor {
		m.runBroadcast()
		return
	}
	for _, b := range m.branches {
		m.runBranch(b)
	}
	m.runFanOut()
	m.pool().submit(func() {
		for _, b := range m.branches {
			<-b.buffer.done()
		}
		close(m.drained)
	})
}

// runBroadcast drains the shared stage, pushing a copy of every record to each successor.
func (m *Multicast[T]) runBroadcast() {
	m.pool().submit(func() {
		defer m.output.settle()
		defer close(m.drained)
		for {
			v, ok := m.output.pop()
			if !ok {
				return
			}
			m.progress.start()
			if err := m.deliver(v, func(b *branch[T], c T) error { return b.target.push(c) }); err != nil {
				m.faultWithPredecessors(err)
				return
			}
			m.progress.add(1)
		}
	})
}

// runFanOut drains the input into the private buffer of every successor.
func (m *Multicast[T]) runFanOut() {
	m.pool().submit(func() {
		defer m.input.settle()
		for {
			v, ok := m.input.pop()
			if !ok {
				break
			}
			m.progress.start()
			if err := m.deliver(v, func(b *branch[T], c T) error { return b.buffer.push(c) }); err != nil {
				m.faultWithPredecessors(err)
				return
			}
			m.progress.add(1)
		}
		if err := m.input.err(); err != nil {
			m.faultBranches(err)
			return
		}
		for _, b := range m.branches {
			b.buffer.complete()
		}
	})
}

func (m *Multicast[T]) runBranch(b *branch[T]) {
	m.pool().submit(func() {
		defer b.buffer.settle()
		for {
			v, ok := b.buffer.pop()
			if !ok {
				return
			}
			if err := b.target.push(v); err != nil {
				m.faultWithPredecessors(err)
				return
			}
		}
	})
}

func (m *Multicast[T]) deliver(v T, push func(*branch[T], T) error) error {
	for _, b := range m.branches {
		keep, _, err := b.accepts(v)
		if err != nil {
			return err
		}
		if !keep {
			continue
		}
		c, err := safely(func() (T, error) { return m.clone(v), nil })
		if err != nil {
			return err
		}
		if err := push(b, c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Multicast[T]) faultBranches(err error) {
	for _, b := range m.branches {
		if b.buffer != nil {
			b.buffer.fault(err)
		}
	}
}

func (m *Multicast[T]) completeBuffer() {
	if m.perSuccessor {
		m.input.complete()
		return
	}
	m.output.complete()
}

func (m *Multicast[T]) faultBuffer(err error) {
	m.output.fault(err)
	if m.perSuccessor {
		m.input.fault(err)
		m.faultBranches(err)
	}
}

func (m *Multicast[T]) bufferDone() <-chan struct{} { return m.drained }

func (m *Multicast[T]) bufferErr() error {
	errs := []error{m.output.err()}
	if m.perSuccessor {
		errs = append(errs, m.input.err())
		for _, b := range m.branches {
			errs = append(errs, b.buffer.err())
		}
	}
	return combineErrors(errs)
}
