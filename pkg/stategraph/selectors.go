package stategraph

import (
	"github.com/randalmurphal/stategraph/pkg/stategraph/expr"
)

// SelectorFunc chooses a routing label from the post-merge state.
// The label is mapped to a node through the conditional edge's target map.
// Returning an empty string is a routing error.
type SelectorFunc func(ctx Context, state State) string

// Labels produced by When and Expr.
const (
	LabelTrue  = "true"
	LabelFalse = "false"
)

// When adapts a predicate into a selector labelled LabelTrue or LabelFalse.
//
//	graph.AddConditionalEdge("controller",
//	    stategraph.When(func(s stategraph.State) bool {
//	        n, _ := s.Int("iterations")
//	        return n < 3
//	    }),
//	    map[string]string{stategraph.LabelTrue: "writer", stategraph.LabelFalse: stategraph.END})
func When(pred func(State) bool) SelectorFunc {
	if pred == nil {
		return nil
	}
	return func(_ Context, s State) string {
		if pred(s) {
			return LabelTrue
		}
		return LabelFalse
	}
}

// Expr builds a selector from a boolean expression over state fields,
// labelled LabelTrue or LabelFalse. See package expr for the syntax.
//
// Expr panics if the expression does not parse, like regexp.MustCompile;
// use ParseExpr to handle the error.
func Expr(expression string) SelectorFunc {
	sel, err := ParseExpr(expression)
	if err != nil {
		panic("stategraph: " + err.Error())
	}
	return sel
}

// ParseExpr is like Expr but returns parse errors.
func ParseExpr(expression string) (SelectorFunc, error) {
	e, err := expr.Parse(expression)
	if err != nil {
		return nil, err
	}
	return func(_ Context, s State) string {
		if e.Eval(s.fields) {
			return LabelTrue
		}
		return LabelFalse
	}, nil
}

// FieldLabel returns a selector that uses a string field as the label.
// A missing or non-string field yields an empty label.
func FieldLabel(name string) SelectorFunc {
	return func(_ Context, s State) string {
		v, _ := s.String(name)
		return v
	}
}
