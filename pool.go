package flow

import (
	"github.com/panjf2000/ants/v2"
)

// Pool furnishes the goroutines running node loops: source read loops, link pumps and the
// processing workers of every node. A graph usually shares one Pool through its Config.
type Pool struct {
	pool *ants.Pool
}

// Release releases the underlying goroutine pool.
func (p *Pool) Release() {
	if p == nil || p.pool == nil {
		return
	}
	p.pool.Release()
}

// NewPoolWithOptions builds a Pool of the given size. A size <= 0 yields an unbounded pool.
//
// The pool never blocks a submitter: once saturated, loops are started on a fresh goroutine.
func NewPoolWithOptions(size int, opts ...ants.Option) (*Pool, error) {
	if size <= 0 {
		size = -1
	}
	pool, err := ants.NewPool(size, append([]ants.Option{ants.WithNonblocking(true)}, opts...)...)
	if err != nil {
		return nil, err
	}
	return &Pool{pool: pool}, nil
}

// NewPool builds a Pool of the given size. A size <= 0 yields an unbounded pool.
func NewPool(size int) (*Pool, error) {
	return NewPoolWithOptions(size)
}

// Running returns the number of pooled goroutines currently busy.
func (p *Pool) Running() int {
	if p == nil || p.pool == nil {
		return 0
	}
	return p.pool.Running()
}

// submit runs f concurrently. Without a pool, or when the pool refuses the task, f gets its own goroutine.
func (p *Pool) submit(f func()) {
	if p == nil || p.pool == nil {
		go f()
		return
	}
	if err := p.pool.Submit(f); err != nil {
		go f()
	}
}
