package flow

import (
	"github.com/samber/lo"
)

// Transform maps one input record to one output record.
type Transform[In, Out any] func(In) (Out, error)

// Split maps one input record to any number of output records.
type Split[In, Out any] func(In) ([]Out, error)

// Predicate tells whether a record goes through a link.
type Predicate[T any] func(T) bool

// JoinFunc combines a record from each side of a join.
type JoinFunc[L, R, Out any] func(L, R) (Out, error)

// AsTransform decorates an infallible function, in order to make it seen as a Transform.
func AsTransform[In, Out any](f func(In) Out) Transform[In, Out] {
	return func(in In) (Out, error) { return f(in), nil }
}

// AsTransforms is an helper function to call AsTransform on lists.
func AsTransforms[T any](fs ...func(T) T) []Transform[T, T] {
	return lo.Map(fs, func(f func(T) T, _ int) Transform[T, T] {
		return AsTransform(f)
	})
}

// Link merges several transforms into one, applied in order. The first error stops the chain.
func Link[T any](transforms ...Transform[T, T]) Transform[T, T] {
	return func(t T) (T, error) {
		var err error
		return lo.Reduce(transforms, func(val T, transform Transform[T, T], _ int) T {
			if err != nil {
				return val
			}
			val, err = transform(val)
			return val
		}, t), err
	}
}

// Not negates a predicate. It is handy to build the discard predicate of a link from its keep predicate.
func Not[T any](p Predicate[T]) Predicate[T] {
	return func(t T) bool { return !p(t) }
}

// AsSplit decorates a Transform, in order to make it seen as a Split yielding exactly one record.
func AsSplit[In, Out any](t Transform[In, Out]) Split[In, Out] {
	return func(in In) ([]Out, error) {
		out, err := t(in)
		if err != nil {
			return nil, err
		}
		return []Out{out}, nil
	}
}
