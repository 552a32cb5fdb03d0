package flow

import (
	"sync"
)

type queueState int

const (
	queueOpen queueState = iota
	queueCompleted
	queueFaulted
)

// queue is the FIFO buffer stage owned by a node. A capacity <= 0 means unbounded.
//
// Producers push, a single logical drainer pops. Once completed or faulted, the queue accepts no
// more records. The drain signal is raised by the drainer through settle, after it has handed off
// its last record.
type queue[T any] struct {
	mu       sync.Mutex
	notEmpty sync.Cond
	notFull  sync.Cond

	items    []T
	capacity int
	state    queueState
	cause    error

	drained chan struct{}
	settled sync.Once
}

func newQueue[T any](capacity int) *queue[T] {
	q := &queue[T]{
		capacity: capacity,
		drained:  make(chan struct{}),
	}
	q.notEmpty.L = &q.mu
	q.notFull.L = &q.mu
	return q
}

// push appends v, blocking while the queue is full. It fails with the fault cause once the queue
// has been faulted, and with ErrBufferClosed once it has been completed.
func (q *queue[T]) push(v T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.state == queueOpen && q.capacity > 0 && len(q.items) >= q.capacity {
		q.notFull.Wait()
	}
	switch q.state {
	case queueFaulted:
		return q.cause
	case queueCompleted:
		return ErrBufferClosed
	}
	q.items = append(q.items, v)
	q.notEmpty.Signal()
	return nil
}

// pop removes the oldest record, blocking while the queue is open and empty. The boolean is false
// when nothing more will ever come out: completed and empty, or faulted.
func (q *queue[T]) pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	for q.state == queueOpen && len(q.items) == 0 {
		q.notEmpty.Wait()
	}
	if q.state == queueFaulted || len(q.items) == 0 {
		return zero, false
	}
	v := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	q.notFull.Signal()
	return v, true
}

func (q *queue[T]) complete() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.state != queueOpen {
		return
	}
	q.state = queueCompleted
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

// fault discards pending records and wakes every blocked producer and drainer. A queue that was
// already drained keeps its outcome.
func (q *queue[T]) fault(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.state == queueFaulted || q.isSettled() {
		return
	}
	q.state = queueFaulted
	q.cause = err
	q.items = nil
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

func (q *queue[T]) isSettled() bool {
	select {
	case <-q.drained:
		return true
	default:
		return false
	}
}

// settle raises the drain signal. Only the drainer calls it.
func (q *queue[T]) settle() {
	q.settled.Do(func() { close(q.drained) })
}

func (q *queue[T]) done() <-chan struct{} {
	return q.drained
}

func (q *queue[T]) err() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.cause
}

func (q *queue[T]) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *queue[T]) isFaulted() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state == queueFaulted
}
