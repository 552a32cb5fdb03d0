package flow

import (
	"bytes"
	"slices"

	"github.com/goccy/go-json"
)

// Row is a dynamically shaped record: values indexed by column name, columns kept in insertion order.
type Row struct {
	columns []string
	values  map[string]any
}

// NewRow creates a row from alternating column names and values.
func NewRow(pairs ...any) *Row {
	r := &Row{values: make(map[string]any, len(pairs)/2)}
	for i := 0; i+1 < len(pairs); i += 2 {
		name, _ := pairs[i].(string)
		r.Set(name, pairs[i+1])
	}
	return r
}

// Set sets the value of a column, appending the column when new.
func (r *Row) Set(column string, value any) *Row {
	if r.values == nil {
		r.values = make(map[string]any)
	}
	if _, ok := r.values[column]; !ok {
		r.columns = append(r.columns, column)
	}
	r.values[column] = value
	return r
}

// Get returns the value of a column.
func (r *Row) Get(column string) (any, bool) {
	if r == nil {
		return nil, false
	}
	v, ok := r.values[column]
	return v, ok
}

// Delete removes a column.
func (r *Row) Delete(column string) {
	if _, ok := r.values[column]; !ok {
		return
	}
	delete(r.values, column)
	r.columns = slices.DeleteFunc(r.columns, func(c string) bool { return c == column })
}

// Columns returns the column names in insertion order.
func (r *Row) Columns() []string {
	if r == nil {
		return nil
	}
	return slices.Clone(r.columns)
}

// Len returns the number of columns.
func (r *Row) Len() int {
	if r == nil {
		return 0
	}
	return len(r.columns)
}

// Clone returns a copy of the row. Values are deep copied when their type allows it.
func (r *Row) Clone() *Row {
	if r == nil {
		return nil
	}
	c := &Row{columns: slices.Clone(r.columns), values: make(map[string]any, len(r.values))}
	for k, v := range r.values {
		c.values[k] = cloneValue(v)
	}
	return c
}

func cloneValue(v any) any {
	if v == nil {
		return nil
	}
	clone, err := newCloner[any]()
	if err != nil {
		return v
	}
	return clone(v)
}

// MarshalJSON renders the row as a JSON object, columns in order.
func (r *Row) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, column := range r.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(column)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(r.values[column])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
