package flow

import (
	"fmt"
	"reflect"
)

// Cloneable is implemented by records providing their own deep copy.
type Cloneable[T any] interface {
	Clone() T
}

// newCloner returns a deep copy function for T. Records implementing Cloneable are copied with
// Clone; other records are copied field by field through reflection, exported fields only.
// A type reaching a channel, a function or an unsafe pointer through its exported fields is
// rejected, so that the failure happens when the graph is built rather than on a record.
func newCloner[T any]() (func(T) T, error) {
	var zero T
	if _, ok := any(zero).(Cloneable[T]); ok {
		return func(v T) T { return any(v).(Cloneable[T]).Clone() }, nil
	}
	t := reflect.TypeFor[T]()
	if err := checkCloneable(t, make(map[reflect.Type]bool)); err != nil {
		return nil, err
	}
	return func(v T) T {
		c := deepCopy(reflect.ValueOf(&v).Elem(), make(map[uintptr]reflect.Value))
		return c.Interface().(T)
	}, nil
}

func checkCloneable(t reflect.Type, seen map[reflect.Type]bool) error {
	if seen[t] {
		return nil
	}
	seen[t] = true
	switch t.Kind() {
	case reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return errorf(ErrNotCloneable, "%s", t)
	case reflect.Pointer, reflect.Slice, reflect.Array:
		return checkCloneable(t.Elem(), seen)
	case reflect.Map:
		if err := checkCloneable(t.Key(), seen); err != nil {
			return err
		}
		return checkCloneable(t.Elem(), seen)
	case reflect.Struct:
		for i := range t.NumField() {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			if err := checkCloneable(f.Type, seen); err != nil {
				return fmt.Errorf("%s.%s: %w", t, f.Name, err)
			}
		}
	}
	return nil
}

// deepCopy copies v. Pointers already copied are reused, so shared and cyclic structures keep
// their shape.
func deepCopy(v reflect.Value, copied map[uintptr]reflect.Value) reflect.Value {
	t := v.Type()
	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return reflect.Zero(t)
		}
		if c, ok := copied[v.Pointer()]; ok {
			return c
		}
		c := reflect.New(t.Elem())
		copied[v.Pointer()] = c
		c.Elem().Set(deepCopy(v.Elem(), copied))
		return c
	case reflect.Interface:
		if v.IsNil() {
			return reflect.Zero(t)
		}
		c := reflect.New(t).Elem()
		c.Set(deepCopy(v.Elem(), copied))
		return c
	case reflect.Struct:
		c := reflect.New(t).Elem()
		c.Set(v)
		for i := range t.NumField() {
			if !t.Field(i).IsExported() {
				continue
			}
			c.Field(i).Set(deepCopy(v.Field(i), copied))
		}
		return c
	case reflect.Slice:
		if v.IsNil() {
			return reflect.Zero(t)
		}
		c := reflect.MakeSlice(t, v.Len(), v.Len())
		for i := range v.Len() {
			c.Index(i).Set(deepCopy(v.Index(i), copied))
		}
		return c
	case reflect.Array:
		c := reflect.New(t).Elem()
		for i := range v.Len() {
			c.Index(i).Set(deepCopy(v.Index(i), copied))
		}
		return c
	case reflect.Map:
		if v.IsNil() {
			return reflect.Zero(t)
		}
		c := reflect.MakeMapWithSize(t, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			c.SetMapIndex(deepCopy(iter.Key(), copied), deepCopy(iter.Value(), copied))
		}
		return c
	}
	return v
}
