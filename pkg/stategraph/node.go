package stategraph

import (
	"sort"
	"time"
)

// END is the terminal node identifier.
// Use this as an edge target to indicate a path through the graph is finished.
const END = "__end__"

// NodeFunc is the signature for all node functions.
// Nodes receive the execution context and a snapshot of the current state,
// and return an Outcome describing what changed and, optionally, where to go.
//
// Nodes must not keep references to the state between invocations. They
// should return an error only for unexpected faults; expected business
// conditions belong in state fields.
//
// Example:
//
//	func increment(ctx stategraph.Context, s stategraph.State) (stategraph.Outcome, error) {
//	    n, _ := s.Int("count")
//	    return stategraph.Updates{"count": n + 1}, nil
//	}
type NodeFunc func(ctx Context, state State) (Outcome, error)

// Outcome is what a node returns: either Updates or a *Command.
// A nil Outcome means the node changed nothing.
//
// The set of implementations is closed; the scheduler switches on it.
type Outcome interface {
	outcome()
}

// Updates is a partial state update naming only the fields a node changed.
type Updates map[string]any

func (Updates) outcome() {}

// Scope selects which graph a Command routes within.
type Scope int

// Routing scopes.
const (
	// ScopeLocal routes within the graph that ran the node.
	ScopeLocal Scope = iota

	// ScopeParent ends the current sub-graph run and routes within the
	// graph hosting it.
	ScopeParent
)

// String returns the scope name.
func (s Scope) String() string {
	if s == ScopeParent {
		return "parent"
	}
	return "local"
}

// Command is an explicit routing decision with an optional update.
// A Command overrides the static and conditional edges of the node that
// returned it, for that invocation only.
//
// Example:
//
//	return stategraph.Goto("risk").With(stategraph.Updates{"log": log}), nil
type Command struct {
	// Goto lists the next node IDs (or END). Several targets fan out.
	Goto []string
	// Update is merged like any other partial update.
	Update Updates
	// Scope is ScopeLocal unless the command escapes a sub-graph.
	Scope Scope
}

func (*Command) outcome() {}

// Goto creates a local command targeting the given nodes.
func Goto(targets ...string) *Command {
	return &Command{Goto: append([]string(nil), targets...)}
}

// With returns a copy of the command carrying the given update.
func (c *Command) With(u Updates) *Command {
	cp := *c
	cp.Update = u
	return &cp
}

// ToParent returns a copy of the command scoped to the hosting graph.
func (c *Command) ToParent() *Command {
	cp := *c
	cp.Scope = ScopeParent
	return &cp
}

// NodeOption configures a node at registration time.
type NodeOption func(*nodeSpec)

// nodeSpec is a registered node with its options.
type nodeSpec struct {
	id           string
	fn           NodeFunc
	sub          *CompiledGraph
	destinations []string
	timeout      time.Duration
}

// WithDestinations declares that the node routes with commands and lists the
// targets it may name. Targets are checked at compile time, and the node is
// not required to have outgoing edges.
func WithDestinations(targets ...string) NodeOption {
	return func(n *nodeSpec) {
		n.destinations = append(n.destinations, targets...)
	}
}

// WithTimeout sets a timeout for this node, overriding Options.NodeTimeout.
//
// The timeout cancels the node's Context; it does not interrupt the node.
// A node that ignores ctx.Done() keeps running, and the step waits for it
// before the TimeoutError is reported.
func WithTimeout(d time.Duration) NodeOption {
	return func(n *nodeSpec) {
		if d > 0 {
			n.timeout = d
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
