package stategraph

import (
	"fmt"
	"reflect"
	"sort"
)

// State is an immutable snapshot of the fields flowing through a graph.
//
// Every scheduler step produces a new State generation; nodes receive a
// snapshot and never observe a sibling's writes from the same step. The
// zero value is an empty state.
//
// Nodes read from State and describe changes by returning Updates:
//
//	func double(ctx stategraph.Context, s stategraph.State) (stategraph.Outcome, error) {
//	    x, _ := s.Float("x")
//	    return stategraph.Updates{"x": x * 2}, nil
//	}
type State struct {
	fields map[string]any
}

// NewState creates a State from the given values.
// The map is copied; later changes to values do not affect the State.
// Values are validated against the graph schema when the state is passed
// to Invoke.
func NewState(values map[string]any) State {
	fields := make(map[string]any, len(values))
	for k, v := range values {
		fields[k] = v
	}
	return State{fields: fields}
}

// Get returns the value of a field and whether it is set.
func (s State) Get(field string) (any, bool) {
	v, ok := s.fields[field]
	return v, ok
}

// Has reports whether a field is set.
func (s State) Has(field string) bool {
	_, ok := s.fields[field]
	return ok
}

// Len returns the number of set fields.
func (s State) Len() int {
	return len(s.fields)
}

// Fields returns the names of all set fields in sorted order.
func (s State) Fields() []string {
	names := make([]string, 0, len(s.fields))
	for k := range s.fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Map returns a copy of the state as a plain map.
// List values are copied as well so callers cannot alias state storage.
func (s State) Map() map[string]any {
	out := make(map[string]any, len(s.fields))
	for k, v := range s.fields {
		if list, ok := v.([]any); ok {
			v = append([]any(nil), list...)
		}
		out[k] = v
	}
	return out
}

// Equal reports whether two states hold deeply equal fields.
func (s State) Equal(other State) bool {
	if len(s.fields) != len(other.fields) {
		return false
	}
	for k, v := range s.fields {
		ov, ok := other.fields[k]
		if !ok || !reflect.DeepEqual(v, ov) {
			return false
		}
	}
	return true
}

// String returns a string field.
func (s State) String(field string) (string, bool) {
	v, ok := s.fields[field].(string)
	return v, ok
}

// Bool returns a boolean field.
func (s State) Bool(field string) (bool, bool) {
	v, ok := s.fields[field].(bool)
	return v, ok
}

// Int returns an integer field.
// Accepts any Go integer type and float64 values without a fractional part.
func (s State) Int(field string) (int, bool) {
	switch v := s.fields[field].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case int32:
		return int(v), true
	case float64:
		if v == float64(int(v)) {
			return int(v), true
		}
	}
	return 0, false
}

// Float returns a numeric field as float64.
func (s State) Float(field string) (float64, bool) {
	switch v := s.fields[field].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// List returns a list field (the storage form of Append fields).
// The returned slice is a copy.
func (s State) List(field string) ([]any, bool) {
	v, ok := s.fields[field].([]any)
	if !ok {
		return nil, false
	}
	return append([]any(nil), v...), true
}

// Strings returns a list field whose elements are all strings.
func (s State) Strings(field string) ([]string, bool) {
	switch v := s.fields[field].(type) {
	case []string:
		return append([]string(nil), v...), true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			str, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, str)
		}
		return out, true
	}
	return nil, false
}

// GoString renders the state deterministically, which keeps log lines
// and test failures stable.
func (s State) GoString() string {
	names := s.Fields()
	out := "State{"
	for i, name := range names {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%s: %#v", name, s.fields[name])
	}
	return out + "}"
}
