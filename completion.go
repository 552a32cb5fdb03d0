package flow

import "sync/atomic"

// State is the lifecycle state of a node.
type State int32

const (
	// StatePending means the node has not started yet.
	StatePending State = iota
	// StateRunning means the node is processing or waiting for its predecessors.
	StateRunning
	// StateSucceeded means every record has been processed and handed off.
	StateSucceeded
	// StateFaulted means the node stopped on an error.
	StateFaulted
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFaulted:
		return "faulted"
	}
	return "unknown"
}

// Completion is the single-assignment outcome of a node.
type Completion struct {
	state atomic.Int32
	done  chan struct{}
	cause error
}

func newCompletion() *Completion {
	return &Completion{done: make(chan struct{})}
}

// begin moves a pending completion to running. It reports false if the node already started.
func (c *Completion) begin() bool {
	return c.state.CompareAndSwap(int32(StatePending), int32(StateRunning))
}

// resolve sets the outcome once. Later calls are ignored.
func (c *Completion) resolve(err error) {
	target := StateSucceeded
	if err != nil {
		target = StateFaulted
	}
	for {
		current := c.state.Load()
		if current == int32(StateSucceeded) || current == int32(StateFaulted) {
			return
		}
		if c.state.CompareAndSwap(current, int32(target)) {
			c.cause = err
			close(c.done)
			return
		}
	}
}

// State returns the current lifecycle state.
func (c *Completion) State() State {
	return State(c.state.Load())
}

// Done is closed once the outcome is known.
func (c *Completion) Done() <-chan struct{} {
	return c.done
}

// Err returns the fault cause, or nil while running or after a success.
func (c *Completion) Err() error {
	select {
	case <-c.done:
		return c.cause
	default:
		return nil
	}
}

// Wait blocks until the outcome is known and returns the fault cause, if any.
func (c *Completion) Wait() error {
	<-c.done
	return c.cause
}
