package flow

import "github.com/panjf2000/ants/v2"

// Ants returns the underlying pool
func (p *Pool) Ants() *ants.Pool {
	if p == nil {
		return nil
	}
	return p.pool
}

// IsInitialized tells whether the buffers of n have been allocated
func IsInitialized(n Node) bool {
	return n.base().initialized
}

// InputCapacity returns the capacity of the input buffer of c, 0 meaning unbounded
func InputCapacity[T any](c Consumer[T]) int {
	return c.inputQueue().capacity
}

// IsPerSuccessor tells whether m gives each successor a buffer of its own
func IsPerSuccessor[T any](m *Multicast[T]) bool {
	return m.perSuccessor
}

// ProcessedRows returns the number of records counted by the progress logger of n
func ProcessedRows(n Node) int64 {
	return n.base().progress.rows()
}

// InputBuffer returns the input buffer of c, for identity checks
func InputBuffer[T any](c Consumer[T]) any {
	return c.inputQueue()
}

// Reinitialize runs the buffer allocation and linking passes of n once more
func Reinitialize(n Node) error {
	b := n.base()
	if err := b.initBuffersOnce(); err != nil {
		return err
	}
	return b.linkBuffersOnce()
}

// OutputEdges returns the number of links wired to the output of p
func OutputEdges[T any](p *MemorySource[T]) int {
	return len(p.edges)
}
