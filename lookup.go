package flow

import (
	"context"
	"reflect"
	"sync"

	"github.com/samber/lo"
)

// CachedRowTransformation transforms every record with access to a cache of records. With a
// mutable cache, each incoming record is added to the cache unless already contained, before the
// transformation runs. InitAction, when set, runs once with the cache before the first record.
//
// Without TransformFunc, and when Out is In, the transformation looks records up in the cache:
// the first cached record whose match columns equal those of the incoming record gives its
// retrieve columns to the incoming record. Columns are paired with MatchColumn and RetrieveColumn,
// or with `match:"cached column"` and `retrieve:"cached column"` tags on the fields of In.
type CachedRowTransformation[In, Out, C any] struct {
	transform[In, Out]
	TransformFunc func(row In, cache Cache[In, C]) (Out, error)
	InitAction    func(cache Cache[In, C]) error

	cache    Cache[In, C]
	match    []columnPair
	retrieve []columnPair

	initOnce sync.Once
	initErr  error
}

type cacheLoader interface {
	load(ctx context.Context) error
	hasSource() bool
	redirectErrors(errs *ErrorSource)
}

// NewCachedRowTransformation creates a transformation calling fn with every record and cache.
// A nil cache means a MemoryCache of DefaultMaxCacheSize records compared with reflect.DeepEqual,
// which requires C to be In.
func NewCachedRowTransformation[In, Out, C any](fn func(In, Cache[In, C]) (Out, error), cache Cache[In, C], opts ...Option) *CachedRowTransformation[In, Out, C] {
	return newCachedRowTransformation("CachedRowTransformation", fn, cache, opts)
}

func newCachedRowTransformation[In, Out, C any](kind string, fn func(In, Cache[In, C]) (Out, error), cache Cache[In, C], opts []Option) *CachedRowTransformation[In, Out, C] {
	t := &CachedRowTransformation[In, Out, C]{TransformFunc: fn, cache: cache}
	t.transform = newTransform[In, Out](t, kind, opts)
	t.handle = t.process
	return t
}

// NewLookupTransformation creates a transformation enriching In records with the records of
// source, read entirely before the first record goes through.
func NewLookupTransformation[In, L any](source LookupSource[L], opts ...Option) *CachedRowTransformation[In, In, L] {
	return newCachedRowTransformation[In, In, L]("LookupTransformation", nil, NewFullTableCache[In, L](source, nil), opts)
}

// MatchColumn compares column of the incoming records with cachedColumn of the cached ones.
func (t *CachedRowTransformation[In, Out, C]) MatchColumn(column, cachedColumn string) *CachedRowTransformation[In, Out, C] {
	t.match = append(t.match, columnPair{row: column, other: cachedColumn})
	return t
}

// RetrieveColumn copies cachedColumn of the matching cached record into column.
func (t *CachedRowTransformation[In, Out, C]) RetrieveColumn(column, cachedColumn string) *CachedRowTransformation[In, Out, C] {
	t.retrieve = append(t.retrieve, columnPair{row: column, other: cachedColumn})
	return t
}

// Cache returns the cache of the transformation.
func (t *CachedRowTransformation[In, Out, C]) Cache() Cache[In, C] {
	return t.cache
}

// LinkErrorTo also reports the errors of the lookup source, if any, into target.
func (t *CachedRowTransformation[In, Out, C]) LinkErrorTo(target Consumer[ErrorRecord]) Producer[ErrorRecord] {
	errs := t.node.LinkErrorTo(target)
	if loader, ok := t.cache.(cacheLoader); ok {
		loader.redirectErrors(t.errorSource)
	}
	return errs
}

func (t *CachedRowTransformation[In, Out, C]) initBuffers() error {
	if t.cache == nil {
		cache, ok := any(NewMemoryCache(func(cached, row In) bool { return reflect.DeepEqual(cached, row) }, 0)).(Cache[In, C])
		if !ok {
			return errorf(ErrNoLookupDefinition, "no cache")
		}
		t.cache = cache
	}
	if loader, ok := t.cache.(cacheLoader); ok && !loader.hasSource() {
		return ErrNoLookupSource
	}
	if t.TransformFunc == nil {
		fn, err := t.lookupFunc()
		if err != nil {
			return err
		}
		t.TransformFunc = fn
	}
	return t.transform.initBuffers()
}

// lookupFunc builds the column-driven lookup used without TransformFunc.
func (t *CachedRowTransformation[In, Out, C]) lookupFunc() (func(In, Cache[In, C]) (Out, error), error) {
	rows, err := newColumns[In]()
	if err != nil {
		return nil, errorf(ErrNoLookupDefinition, "%s", err)
	}
	cached, err := newColumns[C]()
	if err != nil {
		return nil, errorf(ErrNoLookupDefinition, "%s", err)
	}
	match, retrieve := t.match, t.retrieve
	if len(match) == 0 && len(retrieve) == 0 {
		match, retrieve = rows.tagged("match"), rows.tagged("retrieve")
	}
	if len(match) == 0 || len(retrieve) == 0 {
		return nil, errorf(ErrNoLookupDefinition, "no match or retrieve column")
	}

	lookup := func(row In, cache Cache[In, C]) (In, error) {
		hit, ok := lo.Find(cache.Records(), func(record C) bool {
			return lo.EveryBy(match, func(p columnPair) bool {
				a, okRow := rows.get(row, p.row)
				b, okCached := cached.get(record, p.other)
				return okRow && okCached && reflect.DeepEqual(a, b)
			})
		})
		if !ok {
			return row, nil
		}
		for _, p := range retrieve {
			v, ok := cached.get(hit, p.other)
			if !ok {
				continue
			}
			if row, ok = rows.set(row, p.row, v); !ok {
				return row, errorf(ErrNoLookupDefinition, "cannot retrieve %s into %s", p.other, p.row)
			}
		}
		return row, nil
	}
	fn, ok := any(lookup).(func(In, Cache[In, C]) (Out, error))
	if !ok {
		return nil, errorf(ErrNoLookupDefinition, "lookup without transformation function must output its input type")
	}
	return fn, nil
}

func (t *CachedRowTransformation[In, Out, C]) initialize() {
	loader, loaded := t.cache.(cacheLoader)
	if loaded {
		if err := loader.load(t.settings.ctx); err != nil {
			t.initErr = err
			return
		}
	}
	if t.InitAction != nil {
		t.initErr = safelyDo(func() error { return t.InitAction(t.cache) })
	}
}

func (t *CachedRowTransformation[In, Out, C]) process(v In) error {
	t.progress.start()
	t.initOnce.Do(t.initialize)
	if t.initErr != nil {
		t.faultWithPredecessors(t.initErr)
		return t.initErr
	}
	if _, loaded := t.cache.(cacheLoader); !loaded {
		err := safelyDo(func() error {
			if !t.cache.Contains(v) {
				t.cache.Add(v)
			}
			return nil
		})
		if err != nil {
			return t.throwOrRedirect(err, renderRecord(v))
		}
	}
	out, err := safely(func() (Out, error) { return t.TransformFunc(v, t.cache) })
	if err != nil {
		return t.throwOrRedirect(err, renderRecord(v))
	}
	if err := t.emit(out); err != nil {
		return err
	}
	t.progress.add(1)
	return nil
}
