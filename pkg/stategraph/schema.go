package stategraph

import (
	"fmt"
	"math"
	"reflect"
	"sort"
)

// Type is the declared type of a state field.
type Type int

// Field types.
const (
	TypeAny Type = iota
	TypeString
	TypeInt
	TypeFloat
	TypeBool
	TypeList
	TypeMap
)

// String returns the type name.
func (t Type) String() string {
	switch t {
	case TypeAny:
		return "any"
	case TypeString:
		return "string"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeBool:
		return "bool"
	case TypeList:
		return "list"
	case TypeMap:
		return "map"
	default:
		return "unknown"
	}
}

// MergeRule decides how concurrent and successive writes to a field combine.
type MergeRule int

// Merge rules.
const (
	// LastWriteWins overwrites the field. When several nodes of one step
	// write it, the node whose ID sorts last wins.
	LastWriteWins MergeRule = iota

	// AppendRule accumulates values into a list, in frontier order.
	AppendRule

	// ReduceRule folds each write into the previous value with a Reducer.
	ReduceRule
)

// Reducer folds a new value into the previous value of a field.
// prev is nil when the field is not yet set.
type Reducer func(prev, next any) (any, error)

// Field describes one declared state field.
type Field struct {
	Name    string
	Type    Type
	Rule    MergeRule
	reducer Reducer
}

// Schema declares the fields a graph's state may hold.
// Declare every field once while building the graph:
//
//	schema := stategraph.NewSchema().
//	    Field("text", stategraph.TypeString).
//	    Field("count", stategraph.TypeInt).
//	    Append("history", stategraph.TypeString)
//
// Problems (duplicate or empty names) are reported by Graph.Compile.
type Schema struct {
	fields   map[string]Field
	problems []error
}

// NewSchema creates an empty schema.
func NewSchema() *Schema {
	return &Schema{fields: make(map[string]Field)}
}

// Field declares a last-write-wins field.
func (s *Schema) Field(name string, t Type) *Schema {
	return s.add(Field{Name: name, Type: t, Rule: LastWriteWins})
}

// Append declares a list field that accumulates writes.
// elem is the type of each element.
func (s *Schema) Append(name string, elem Type) *Schema {
	return s.add(Field{Name: name, Type: elem, Rule: AppendRule})
}

// Reduce declares a field merged by a custom reducer.
func (s *Schema) Reduce(name string, t Type, fn Reducer) *Schema {
	if fn == nil {
		s.problems = append(s.problems, fmt.Errorf("%w: reducer for field %q", ErrNilFunc, name))
		return s
	}
	return s.add(Field{Name: name, Type: t, Rule: ReduceRule, reducer: fn})
}

func (s *Schema) add(f Field) *Schema {
	if f.Name == "" {
		s.problems = append(s.problems, fmt.Errorf("%w: empty field name", ErrInvalidSchema))
		return s
	}
	if _, exists := s.fields[f.Name]; exists {
		s.problems = append(s.problems, fmt.Errorf("%w: field %q declared twice", ErrInvalidSchema, f.Name))
		return s
	}
	s.fields[f.Name] = f
	return s
}

// Lookup returns the declaration of a field.
func (s *Schema) Lookup(name string) (Field, bool) {
	f, ok := s.fields[name]
	return f, ok
}

// Names returns the declared field names in sorted order.
func (s *Schema) Names() []string {
	names := make([]string, 0, len(s.fields))
	for name := range s.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// clone returns an independent copy, used to freeze the schema at compile time.
func (s *Schema) clone() *Schema {
	c := NewSchema()
	for k, v := range s.fields {
		c.fields[k] = v
	}
	return c
}

// normalize validates an initial state and converts values to their
// storage form.
func (s *Schema) normalize(st State) (State, error) {
	out := make(map[string]any, len(st.fields))
	for name, v := range st.fields {
		f, ok := s.fields[name]
		if !ok {
			return State{}, fmt.Errorf("%w: %q", ErrUnknownField, name)
		}
		var err error
		if f.Rule == AppendRule {
			out[name], err = appendValues(f, nil, v)
		} else {
			out[name], err = coerce(f, v)
		}
		if err != nil {
			return State{}, err
		}
	}
	return State{fields: out}, nil
}

// coerce checks v against the declared type and returns its storage form.
func coerce(f Field, v any) (any, error) {
	if f.Type == TypeAny {
		return v, nil
	}
	mismatch := func() error {
		return fmt.Errorf("%w: field %q wants %s, got %T", ErrFieldType, f.Name, f.Type, v)
	}
	if v == nil {
		if f.Type == TypeList || f.Type == TypeMap {
			return nil, nil
		}
		return nil, mismatch()
	}

	rv := reflect.ValueOf(v)
	switch f.Type {
	case TypeString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case TypeBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case TypeInt:
		// Values outside the range of int are rejected rather than wrapped.
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			if i := rv.Int(); i >= math.MinInt && i <= math.MaxInt {
				return int(i), nil
			}
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			if u := rv.Uint(); u <= math.MaxInt {
				return int(u), nil
			}
		case reflect.Float32, reflect.Float64:
			// JSON decodes every number as float64.
			if f := rv.Float(); f == math.Trunc(f) && f >= math.MinInt && f < -math.MinInt {
				return int(f), nil
			}
		}
	case TypeFloat:
		switch rv.Kind() {
		case reflect.Float32, reflect.Float64:
			return rv.Float(), nil
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return float64(rv.Int()), nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return float64(rv.Uint()), nil
		}
	case TypeList:
		if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
			out := make([]any, rv.Len())
			for i := range out {
				out[i] = rv.Index(i).Interface()
			}
			return out, nil
		}
	case TypeMap:
		if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
			out := make(map[string]any, rv.Len())
			iter := rv.MapRange()
			for iter.Next() {
				out[iter.Key().String()] = iter.Value().Interface()
			}
			return out, nil
		}
	}
	return nil, mismatch()
}

// appendValues appends v (a single element or a slice of elements) to prev.
// prev is never modified; a new slice is always returned.
func appendValues(f Field, prev, v any) (any, error) {
	existing, _ := prev.([]any)
	out := make([]any, len(existing), len(existing)+1)
	copy(out, existing)

	if v == nil {
		return out, nil
	}
	elem := Field{Name: f.Name, Type: f.Type}
	rv := reflect.ValueOf(v)
	if (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) && f.Type != TypeList {
		for i := 0; i < rv.Len(); i++ {
			item, err := coerce(elem, rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		}
		return out, nil
	}
	item, err := coerce(elem, v)
	if err != nil {
		return nil, err
	}
	return append(out, item), nil
}
