package flow

import (
	"reflect"
	"strings"

	"github.com/spf13/cast"
)

// ColumnIndex assigns a stable position to every column name, in discovery order. Static records
// and dynamic rows go through the same index, so a column keeps its position once discovered.
type ColumnIndex struct {
	names     []string
	positions map[string]int
}

// NewColumnIndex creates an index holding names.
func NewColumnIndex(names ...string) *ColumnIndex {
	c := &ColumnIndex{positions: make(map[string]int)}
	for _, name := range names {
		c.Add(name)
	}
	return c
}

// Add returns the position of name, appending it when unknown.
func (c *ColumnIndex) Add(name string) int {
	if pos, ok := c.positions[name]; ok {
		return pos
	}
	c.positions[name] = len(c.names)
	c.names = append(c.names, name)
	return len(c.names) - 1
}

// Position returns the position of name.
func (c *ColumnIndex) Position(name string) (int, bool) {
	pos, ok := c.positions[name]
	return pos, ok
}

// Names returns the column names by position.
func (c *ColumnIndex) Names() []string {
	return append([]string(nil), c.names...)
}

func (c *ColumnIndex) Len() int {
	return len(c.names)
}

// columns reads and writes the named columns of records of type T.
type columns[T any] interface {
	names(v T) []string
	get(v T, column string) (any, bool)
	// set returns v with column set, and false when the value does not fit the column.
	set(v T, column string, value any) (T, bool)
	// tagged returns, for every field tagged with key, the column name and the tag value.
	tagged(key string) []columnPair
}

// columnPair relates a column of the incoming record to a column of the other record.
type columnPair struct {
	row   string
	other string
}

// newColumns returns the column accessor of T: Row columns for *Row, exported fields for structs
// and pointers to structs. Struct fields are renamed with a `flow:"name"` tag, and skipped with
// `flow:"-"`.
func newColumns[T any]() (columns[T], error) {
	var zero T
	if _, ok := any(zero).(*Row); ok {
		return any(rowColumns{}).(columns[T]), nil
	}
	t := reflect.TypeFor[T]()
	st := t
	if st.Kind() == reflect.Pointer {
		st = st.Elem()
	}
	if st.Kind() != reflect.Struct {
		return nil, errorf(ErrNoColumns, "%s", t)
	}
	c := &structColumns[T]{pointer: t.Kind() == reflect.Pointer, byName: make(map[string]structField)}
	for _, f := range reflect.VisibleFields(st) {
		if !f.IsExported() || f.Anonymous {
			continue
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup("flow"); ok {
			tag, _, _ = strings.Cut(tag, ",")
			if tag == "-" {
				continue
			}
			if tag != "" {
				name = tag
			}
		}
		field := structField{column: name, index: f.Index, tag: f.Tag}
		c.fields = append(c.fields, field)
		c.byName[name] = field
	}
	return c, nil
}

type rowColumns struct{}

func (rowColumns) names(r *Row) []string { return r.Columns() }

func (rowColumns) get(r *Row, column string) (any, bool) { return r.Get(column) }

func (rowColumns) set(r *Row, column string, value any) (*Row, bool) {
	if r == nil {
		return r, false
	}
	return r.Set(column, value), true
}

func (rowColumns) tagged(string) []columnPair { return nil }

type structField struct {
	column string
	index  []int
	tag    reflect.StructTag
}

type structColumns[T any] struct {
	pointer bool
	fields  []structField
	byName  map[string]structField
}

func (c *structColumns[T]) names(T) []string {
	names := make([]string, len(c.fields))
	for i, f := range c.fields {
		names[i] = f.column
	}
	return names
}

// record returns the struct held by v, addressable when reached through a pointer.
func (c *structColumns[T]) record(v *T) (reflect.Value, bool) {
	rv := reflect.ValueOf(v).Elem()
	if c.pointer {
		if rv.IsNil() {
			return reflect.Value{}, false
		}
		rv = rv.Elem()
	}
	return rv, true
}

func (c *structColumns[T]) get(v T, column string) (any, bool) {
	f, ok := c.byName[column]
	if !ok {
		return nil, false
	}
	rv, ok := c.record(&v)
	if !ok {
		return nil, false
	}
	fv, err := rv.FieldByIndexErr(f.index)
	if err != nil {
		return nil, false
	}
	return fv.Interface(), true
}

func (c *structColumns[T]) set(v T, column string, value any) (T, bool) {
	f, ok := c.byName[column]
	if !ok {
		return v, false
	}
	rv, ok := c.record(&v)
	if !ok {
		return v, false
	}
	fv, err := rv.FieldByIndexErr(f.index)
	if err != nil || !fv.CanSet() {
		return v, false
	}
	val := reflect.ValueOf(value)
	switch {
	case !val.IsValid():
		fv.SetZero()
	case val.Type().AssignableTo(fv.Type()):
		fv.Set(val)
	case fv.Kind() == reflect.String && val.Kind() != reflect.String:
		// Go converts integers to strings as runes: format the value instead.
		str, err := cast.ToStringE(value)
		if err != nil {
			return v, false
		}
		fv.SetString(str)
	case val.Type().ConvertibleTo(fv.Type()):
		fv.Set(val.Convert(fv.Type()))
	default:
		return v, false
	}
	return v, true
}

func (c *structColumns[T]) tagged(key string) []columnPair {
	var pairs []columnPair
	for _, f := range c.fields {
		if other, ok := f.tag.Lookup(key); ok {
			if other == "" {
				other = f.column
			}
			pairs = append(pairs, columnPair{row: f.column, other: other})
		}
	}
	return pairs
}
