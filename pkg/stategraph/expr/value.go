package expr

import (
	"fmt"
	"reflect"
	"strings"
)

func (l literal) eval(map[string]any) any { return l.value }

func (id ident) eval(vars map[string]any) any {
	var cur any = vars
	for _, part := range id.path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[part]
	}
	return cur
}

func (n notExpr) eval(vars map[string]any) any {
	return !IsTruthy(n.inner.eval(vars))
}

func (l logicExpr) eval(vars map[string]any) any {
	left := IsTruthy(l.left.eval(vars))
	if l.and {
		return left && IsTruthy(l.right.eval(vars))
	}
	return left || IsTruthy(l.right.eval(vars))
}

func (c compareExpr) eval(vars map[string]any) any {
	left, right := c.left.eval(vars), c.right.eval(vars)
	switch c.op {
	case "==":
		return equal(left, right)
	case "!=":
		return !equal(left, right)
	case "contains":
		return contains(left, right)
	}

	lf, lok := toFloat(left)
	rf, rok := toFloat(right)
	if lok && rok {
		switch c.op {
		case "<":
			return lf < rf
		case "<=":
			return lf <= rf
		case ">":
			return lf > rf
		case ">=":
			return lf >= rf
		}
	}
	ls, lok := left.(string)
	rs, rok := right.(string)
	if lok && rok {
		switch c.op {
		case "<":
			return ls < rs
		case "<=":
			return ls <= rs
		case ">":
			return ls > rs
		case ">=":
			return ls >= rs
		}
	}
	return false
}

func equal(left, right any) bool {
	lf, lok := toFloat(left)
	rf, rok := toFloat(right)
	if lok && rok {
		return lf == rf
	}
	if left == nil || right == nil {
		return left == nil && right == nil
	}
	return fmt.Sprintf("%v", left) == fmt.Sprintf("%v", right)
}

func contains(left, right any) bool {
	if s, ok := left.(string); ok {
		return strings.Contains(s, fmt.Sprintf("%v", right))
	}
	rv := reflect.ValueOf(left)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return false
	}
	for i := 0; i < rv.Len(); i++ {
		if equal(rv.Index(i).Interface(), right) {
			return true
		}
	}
	return false
}

// toFloat converts numeric values to float64. Strings are not converted.
func toFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint64:
		return float64(val), true
	}
	return 0, false
}

// IsTruthy reports whether a value counts as true.
// nil is false, bools return their value, empty strings, zero numbers and
// empty lists or maps are false, everything else is true.
func IsTruthy(v any) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	if s, ok := v.(string); ok {
		return s != ""
	}
	if f, ok := toFloat(v); ok {
		return f != 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	}
	return true
}
