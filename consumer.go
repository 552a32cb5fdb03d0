package flow

import (
	"sync"
)

// consumer is the input stage of a node: a queue drained by one or several workers.
type consumer[T any] struct {
	input   *queue[T]
	workers sync.WaitGroup
}

func (c *consumer[T]) inputQueue() *queue[T] {
	return c.input
}

// runWorkers drains the input with the degree of parallelism of n. Once every worker stopped,
// drained is called with the input fault, if any, then the input drain signal is raised. A failing
// or panicking handle faults n and its predecessors.
func (c *consumer[T]) runWorkers(n *node, handle func(T) error, drained func(cause error)) {
	workers := n.parallelism()
	c.workers.Add(workers)
	for range workers {
		n.pool().submit(func() {
			defer c.workers.Done()
			for {
				v, ok := c.input.pop()
				if !ok {
					return
				}
				if err := safelyDo(func() error { return handle(v) }); err != nil {
					n.faultWithPredecessors(err)
					c.input.fault(err)
					return
				}
			}
		})
	}
	n.pool().submit(func() {
		c.workers.Wait()
		if drained != nil {
			drained(c.input.err())
		}
		c.input.settle()
	})
}
