package flow

import (
	"context"
	"sync"

	"github.com/samber/lo"
)

// DefaultMaxCacheSize is the number of records a MemoryCache keeps when no size is given.
const DefaultMaxCacheSize = 10000

// Cache holds the records a cached-row transformation looks up. In is the type of the incoming
// records, C the type of the cached ones.
type Cache[In, C any] interface {
	// Contains tells whether a cached record matches row.
	Contains(row In) bool
	// Add caches row. Caches loaded from elsewhere ignore it.
	Add(row In)
	// Find returns the first cached record matching row.
	Find(row In) (C, bool)
	// Records returns the cached records, oldest first.
	Records() []C
}

// MemoryCache keeps the last MaxSize records added. Equality is decided by the match function.
type MemoryCache[T any] struct {
	mu      sync.RWMutex
	records []T
	maxSize int
	match   func(cached, row T) bool
}

// NewMemoryCache creates a cache evicting its oldest record once maxSize records are held.
// A maxSize <= 0 means DefaultMaxCacheSize.
func NewMemoryCache[T any](match func(cached, row T) bool, maxSize int) *MemoryCache[T] {
	if maxSize <= 0 {
		maxSize = DefaultMaxCacheSize
	}
	return &MemoryCache[T]{match: match, maxSize: maxSize}
}

func (c *MemoryCache[T]) Contains(row T) bool {
	_, ok := c.Find(row)
	return ok
}

func (c *MemoryCache[T]) Add(row T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, row)
	if len(c.records) > c.maxSize {
		var zero T
		c.records[0] = zero
		c.records = c.records[1:]
	}
}

func (c *MemoryCache[T]) Find(row T) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return lo.Find(c.records, func(cached T) bool { return c.match(cached, row) })
}

func (c *MemoryCache[T]) Records() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]T(nil), c.records...)
}

// MaxSize returns the capacity of the cache.
func (c *MemoryCache[T]) MaxSize() int {
	return c.maxSize
}

// LookupSource is a source read to fill a FullTableCache.
type LookupSource[T any] interface {
	Executable
	Producer[T]
}

// FullTableCache holds every record of a source. The source is executed to completion once, on
// first use, and the cache never changes afterwards.
type FullTableCache[In, C any] struct {
	source LookupSource[C]
	match  func(row In, cached C) bool

	once    sync.Once
	err     error
	records []C
	errs    *ErrorSource
}

// NewFullTableCache creates a cache loaded from source. match may be nil when the cache is only
// scanned through Records.
func NewFullTableCache[In, C any](source LookupSource[C], match func(row In, cached C) bool) *FullTableCache[In, C] {
	return &FullTableCache[In, C]{source: source, match: match}
}

// load runs the source and keeps its records. Only the first call does the work.
func (c *FullTableCache[In, C]) load(ctx context.Context) error {
	c.once.Do(func() {
		if !c.hasSource() {
			c.err = ErrNoLookupSource
			return
		}
		if c.errs != nil {
			redirectErrors(c.source.base(), c.errs)
		}
		dest := NewMemoryDestination[C](WithName(c.source.Name()+" cache"), WithConfig(c.source.base().config()))
		c.source.LinkTo(dest)
		if err := c.source.Execute(ctx); err != nil {
			c.err = err
			return
		}
		if err := dest.Wait(); err != nil {
			c.err = err
			return
		}
		c.records = dest.Data()
	})
	return c.err
}

// redirectErrors reports the row-level errors of the source into errs. It must be called before
// the first load.
func (c *FullTableCache[In, C]) redirectErrors(errs *ErrorSource) {
	c.errs = errs
}

func (c *FullTableCache[In, C]) hasSource() bool {
	return !isNil(c.source)
}

func (c *FullTableCache[In, C]) Contains(row In) bool {
	_, ok := c.Find(row)
	return ok
}

// Add is a no-op: the cache only holds the records of its source.
func (c *FullTableCache[In, C]) Add(In) {}

func (c *FullTableCache[In, C]) Find(row In) (C, bool) {
	if c.match == nil {
		var zero C
		return zero, false
	}
	return lo.Find(c.records, func(cached C) bool { return c.match(row, cached) })
}

func (c *FullTableCache[In, C]) Records() []C {
	return c.records
}
