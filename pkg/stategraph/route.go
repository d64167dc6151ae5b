package stategraph

import (
	"fmt"
	"runtime/debug"
)

// route is the routing decision for one completed node.
type route struct {
	// targets are local successors, possibly including END.
	targets []string
	// escalate is set when the node returned a parent-scope command.
	escalate *Command
	// static is true when routing fell through to static and join edges.
	static bool
}

// resolve computes where control goes after node from completed with
// outcome, given the post-merge state.
//
// Priority: the node's Command, then its conditional edge, then its
// static and join edges.
func (cg *CompiledGraph) resolve(ctx Context, from string, outcome Outcome, state State) (route, error) {
	if cmd, ok := outcome.(*Command); ok && cmd != nil && len(cmd.Goto) > 0 {
		if cmd.Scope == ScopeParent {
			return route{escalate: cmd}, nil
		}
		for _, to := range cmd.Goto {
			if to != END && !cg.HasNode(to) {
				return route{}, &RoutingError{From: from, Label: to, Err: ErrTargetNotFound}
			}
		}
		return route{targets: append([]string(nil), cmd.Goto...)}, nil
	}

	if ce, ok := cg.conditional[from]; ok {
		label, err := callSelector(ctx, from, ce.selector, state)
		if err != nil {
			return route{}, err
		}
		if label == "" {
			return route{}, &RoutingError{From: from, Err: ErrEmptyLabel}
		}
		to := label
		if ce.targets != nil {
			mapped, ok := ce.targets[label]
			if !ok {
				return route{}, &RoutingError{From: from, Label: label, Err: ErrLabelNotMapped}
			}
			to = mapped
		}
		if to != END && !cg.HasNode(to) {
			return route{}, &RoutingError{From: from, Label: label, Err: ErrTargetNotFound}
		}
		return route{targets: []string{to}}, nil
	}

	edges := cg.edges[from]
	if len(edges) == 0 && len(cg.joinsBySource[from]) == 0 {
		return route{}, &RoutingError{From: from, Err: ErrNoSuccessor}
	}
	return route{targets: append([]string(nil), edges...), static: true}, nil
}

// callSelector runs a selector, converting a panic into a routing error.
func callSelector(ctx Context, from string, sel SelectorFunc, state State) (label string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &RoutingError{
				From: from,
				Err:  fmt.Errorf("selector: %w", &PanicError{NodeID: from, Value: r, Stack: string(debug.Stack())}),
			}
		}
	}()
	return sel(ctx, state), nil
}
