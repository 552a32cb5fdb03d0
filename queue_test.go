package flow

import (
	"errors"
	"testing"
	"time"

	"github.com/maxatome/go-testdeep/td"
)

func TestQueue(t *testing.T) {
	errBoom := errors.New("boom")

	t.Run("fifo_until_completed", func(t *testing.T) {
		// Arrange
		q := newQueue[int](0)
		for i := range 3 {
			td.Require(t).CmpNoError(q.push(i))
		}

		// Act
		q.complete()
		var got []int
		for {
			v, ok := q.pop()
			if !ok {
				break
			}
			got = append(got, v)
		}

		// Assert
		td.Cmp(t, got, []int{0, 1, 2})
		td.CmpErrorIs(t, q.push(3), ErrBufferClosed)
		td.CmpNoError(t, q.err())
	})

	t.Run("push_blocks_while_full", func(t *testing.T) {
		// Arrange
		q := newQueue[int](1)
		td.Require(t).CmpNoError(q.push(1))
		pushed := make(chan error)

		// Act
		go func() { pushed <- q.push(2) }()

		// Assert
		select {
		case <-pushed:
			t.Fatal("push should block on a full queue")
		case <-time.After(20 * time.Millisecond):
		}
		v, ok := q.pop()
		td.CmpTrue(t, ok)
		td.Cmp(t, v, 1)
		td.CmpNoError(t, <-pushed)
		td.Cmp(t, q.len(), 1)
	})

	t.Run("fault_wakes_blocked_producer", func(t *testing.T) {
		// Arrange
		q := newQueue[int](1)
		td.Require(t).CmpNoError(q.push(1))
		pushed := make(chan error)
		go func() { pushed <- q.push(2) }()

		// Act
		q.fault(errBoom)

		// Assert
		td.CmpErrorIs(t, <-pushed, errBoom)
		_, ok := q.pop()
		td.CmpFalse(t, ok, "a faulted queue yields nothing")
		td.CmpTrue(t, q.isFaulted())
		td.CmpErrorIs(t, q.err(), errBoom)
	})

	t.Run("settled_queue_keeps_its_outcome", func(t *testing.T) {
		// Arrange
		q := newQueue[int](0)
		q.complete()
		q.settle()

		// Act
		q.fault(errBoom)

		// Assert
		td.CmpFalse(t, q.isFaulted())
		td.CmpNoError(t, q.err())
		td.CmpTrue(t, q.isSettled())
	})

	t.Run("first_fault_wins", func(t *testing.T) {
		// Arrange
		q := newQueue[int](0)

		// Act
		q.fault(errBoom)
		q.fault(errors.New("later"))

		// Assert
		td.CmpErrorIs(t, q.err(), errBoom)
	})
}

func TestCompletion(t *testing.T) {
	t.Run("resolves_once", func(t *testing.T) {
		// Arrange
		c := newCompletion()
		td.Cmp(t, c.State(), StatePending)

		// Act
		td.CmpTrue(t, c.begin())
		td.CmpFalse(t, c.begin(), "already running")
		c.resolve(nil)
		c.resolve(errors.New("too late"))

		// Assert
		td.Cmp(t, c.State(), StateSucceeded)
		td.CmpNoError(t, c.Wait())
		td.CmpNoError(t, c.Err())
	})

	t.Run("fault_from_pending", func(t *testing.T) {
		// Arrange
		c := newCompletion()
		errBoom := errors.New("boom")

		// Act
		c.resolve(errBoom)

		// Assert
		td.Cmp(t, c.State(), StateFaulted)
		td.CmpErrorIs(t, c.Wait(), errBoom)
		td.Cmp(t, c.State().String(), "faulted")
	})

	t.Run("err_is_nil_while_running", func(t *testing.T) {
		// Arrange
		c := newCompletion()

		// Act
		c.begin()

		// Assert
		td.CmpNoError(t, c.Err())
		select {
		case <-c.Done():
			t.Fatal("completion should not be done")
		default:
		}
	})
}
