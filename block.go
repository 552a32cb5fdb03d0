package flow

import (
	"slices"
	"sync"
)

// BlockTransformation reads its whole input before calling BlockFunc once with every record, in
// arrival order, and emitting the records it returns. Its input is unbounded.
type BlockTransformation[In, Out any] struct {
	transform[In, Out]
	BlockFunc func(block []In) ([]Out, error)

	mu    sync.Mutex
	block []In
}

// NewBlockTransformation creates a transformation applying fn to the complete input.
func NewBlockTransformation[In, Out any](fn func([]In) ([]Out, error), opts ...Option) *BlockTransformation[In, Out] {
	b := &BlockTransformation[In, Out]{BlockFunc: fn}
	b.bind(b, "BlockTransformation", opts)
	return b
}

// bind builds the transformation in place for impl, the outermost component embedding b.
func (b *BlockTransformation[In, Out]) bind(impl component, kind string, opts []Option) {
	b.transform = newTransform[In, Out](impl, kind, opts)
	b.inputSize = unbounded
	b.handle = b.collect
	b.flush = b.run
}

func (b *BlockTransformation[In, Out]) initBuffers() error {
	if b.BlockFunc == nil {
		return errorf(ErrNoTransformation, "no block function")
	}
	return b.transform.initBuffers()
}

func (b *BlockTransformation[In, Out]) collect(v In) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.progress.start()
	b.block = append(b.block, v)
	return nil
}

func (b *BlockTransformation[In, Out]) run() error {
	b.mu.Lock()
	block := b.block
	b.block = nil
	b.mu.Unlock()

	b.progress.start()
	outs, err := safely(func() ([]Out, error) { return b.BlockFunc(block) })
	if err != nil {
		return b.throwOrRedirect(err, renderRecord(block))
	}
	for _, out := range outs {
		if err := b.emit(out); err != nil {
			return err
		}
	}
	b.progress.add(len(outs))
	return nil
}

// Sort emits its input ordered by SortFunc once every record arrived. Equal records keep their
// arrival order.
type Sort[T any] struct {
	BlockTransformation[T, T]
	SortFunc func(a, b T) int
}

// NewSort creates a stable sort ordering records with cmp.
func NewSort[T any](cmp func(a, b T) int, opts ...Option) *Sort[T] {
	s := &Sort[T]{SortFunc: cmp}
	s.bind(s, "Sort", opts)
	s.BlockFunc = s.sort
	return s
}

func (s *Sort[T]) initBuffers() error {
	if s.SortFunc == nil {
		return errorf(ErrNoTransformation, "no sort function")
	}
	return s.BlockTransformation.initBuffers()
}

func (s *Sort[T]) sort(block []T) ([]T, error) {
	slices.SortStableFunc(block, s.SortFunc)
	return block, nil
}

// RowDuplication emits every record followed by NumberOfDuplicates deep copies of it. When
// CanDuplicate is set, records it rejects are emitted once, without copies.
type RowDuplication[T any] struct {
	transform[T, T]
	NumberOfDuplicates int
	CanDuplicate       Predicate[T]

	clone func(T) T
}

// NewRowDuplication creates a transformation emitting every record and one copy of it.
func NewRowDuplication[T any](opts ...Option) *RowDuplication[T] {
	d := &RowDuplication[T]{NumberOfDuplicates: 1}
	d.transform = newTransform[T, T](d, "RowDuplication", opts)
	d.handle = d.process
	return d
}

func (d *RowDuplication[T]) initBuffers() error {
	clone, err := newCloner[T]()
	if err != nil {
		return err
	}
	d.clone = clone
	return d.transform.initBuffers()
}

func (d *RowDuplication[T]) process(v T) error {
	d.progress.start()
	copies := max(0, d.NumberOfDuplicates)
	if d.CanDuplicate != nil {
		ok, err := safely(func() (bool, error) { return d.CanDuplicate(v), nil })
		if err != nil {
			return d.throwOrRedirect(err, renderRecord(v))
		}
		if !ok {
			copies = 0
		}
	}
	clones := make([]T, 0, copies)
	for range copies {
		c, err := safely(func() (T, error) { return d.clone(v), nil })
		if err != nil {
			return d.throwOrRedirect(err, renderRecord(v))
		}
		clones = append(clones, c)
	}
	if err := d.emit(v); err != nil {
		return err
	}
	for _, c := range clones {
		if err := d.emit(c); err != nil {
			return err
		}
	}
	d.progress.add(1)
	return nil
}
