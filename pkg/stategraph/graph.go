package stategraph

import (
	"fmt"
	"strings"
	"sync"
)

// Graph is a mutable builder for state graphs.
// Use NewGraph to create one, chain AddNode, AddEdge, AddConditionalEdge,
// AddJoin and SetEntry calls to define it, then call Compile.
//
// Graph is NOT thread-safe during building. Use a single goroutine to
// construct the graph, then call Compile() to create an immutable
// CompiledGraph that can be shared.
//
// Registration never panics. Problems such as duplicate node IDs are
// collected and reported together by Compile.
//
// Example:
//
//	schema := stategraph.NewSchema().Field("x", stategraph.TypeFloat)
//	graph := stategraph.NewGraph(schema).
//	    AddNode("a", setOne).
//	    AddNode("b", double).
//	    AddEdge("a", "b").
//	    AddEdge("b", stategraph.END).
//	    SetEntry("a")
//
//	compiled, err := graph.Compile()
type Graph struct {
	mu          sync.RWMutex
	schema      *Schema
	nodes       map[string]*nodeSpec
	edges       map[string][]string
	conditional map[string]conditionalEdge
	joins       map[string][]string // target -> sources
	entry       string
	problems    []error
}

// conditionalEdge routes by a selector label.
type conditionalEdge struct {
	selector SelectorFunc
	// targets maps labels to node IDs. Nil means labels are node IDs.
	targets map[string]string
}

// NewGraph creates a graph builder whose state follows schema.
// A nil schema is reported by Compile.
func NewGraph(schema *Schema) *Graph {
	g := &Graph{
		schema:      schema,
		nodes:       make(map[string]*nodeSpec),
		edges:       make(map[string][]string),
		conditional: make(map[string]conditionalEdge),
		joins:       make(map[string][]string),
	}
	if schema == nil {
		g.problems = append(g.problems, fmt.Errorf("%w: nil schema", ErrInvalidSchema))
	}
	return g
}

// AddNode registers a node.
// Returns the graph for method chaining.
//
// Compile reports an error if:
//   - id is empty, contains whitespace or is the reserved word END/__end__
//   - fn is nil
//   - id was already registered
func (g *Graph) AddNode(id string, fn NodeFunc, opts ...NodeOption) *Graph {
	if fn == nil {
		g.mu.Lock()
		g.problems = append(g.problems, fmt.Errorf("%w: node %q", ErrNilFunc, id))
		g.mu.Unlock()
		return g
	}
	return g.register(&nodeSpec{id: id, fn: fn}, opts)
}

// AddSubgraph registers a compiled graph as a single node of this graph.
//
// When the node runs, the sub-graph is invoked with the host fields it
// declares as its initial state. On normal termination the fields it
// changed flow back into the host as an ordinary update; for Append fields
// only newly added elements are returned. A node inside the sub-graph can
// return a command with ScopeParent: the sub-run then stops and the command
// continues in this graph with the same targets. List those targets with
// WithDestinations so Compile can check them.
func (g *Graph) AddSubgraph(id string, sub *CompiledGraph, opts ...NodeOption) *Graph {
	if sub == nil {
		g.mu.Lock()
		g.problems = append(g.problems, fmt.Errorf("%w: sub-graph %q", ErrNilFunc, id))
		g.mu.Unlock()
		return g
	}
	return g.register(&nodeSpec{id: id, sub: sub}, opts)
}

func (g *Graph) register(spec *nodeSpec, opts []NodeOption) *Graph {
	for _, opt := range opts {
		opt(spec)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if err := validateNodeID(spec.id); err != nil {
		g.problems = append(g.problems, err)
		return g
	}
	if _, exists := g.nodes[spec.id]; exists {
		g.problems = append(g.problems, fmt.Errorf("%w: %s", ErrDuplicateNode, spec.id))
		return g
	}
	g.nodes[spec.id] = spec
	return g
}

func validateNodeID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidNodeID)
	}
	lower := strings.ToLower(id)
	if lower == "end" || lower == END {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidNodeID, id)
	}
	if strings.ContainsAny(id, " \t\n\r") {
		return fmt.Errorf("%w: %q contains whitespace", ErrInvalidNodeID, id)
	}
	return nil
}

// AddEdge adds an unconditional edge from one node to another.
// The target can be a node ID or END. Several edges from the same source
// fan out: every target runs in the next step.
// Returns the graph for method chaining.
//
// Edge validation happens at Compile() time, so edges can be added in any order.
func (g *Graph) AddEdge(from, to string) *Graph {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, existing := range g.edges[from] {
		if existing == to {
			return g
		}
	}
	g.edges[from] = append(g.edges[from], to)
	return g
}

// AddConditionalEdge routes from a node by evaluating selector on the
// post-merge state and mapping the returned label through targets.
// A nil targets map means labels are node IDs (or END).
//
// A conditional edge takes precedence over the node's static edges; a
// Command returned by the node takes precedence over both.
//
//	graph.AddConditionalEdge("tester",
//	    stategraph.When(func(s stategraph.State) bool { ok, _ := s.Bool("passed"); return ok }),
//	    map[string]string{stategraph.LabelTrue: stategraph.END, stategraph.LabelFalse: "writer"})
func (g *Graph) AddConditionalEdge(from string, selector SelectorFunc, targets map[string]string) *Graph {
	g.mu.Lock()
	defer g.mu.Unlock()

	if selector == nil {
		g.problems = append(g.problems, fmt.Errorf("%w: selector for %q", ErrNilFunc, from))
		return g
	}
	if _, exists := g.conditional[from]; exists {
		g.problems = append(g.problems, fmt.Errorf("%w: from %q", ErrDuplicateEdge, from))
		return g
	}

	var copied map[string]string
	if targets != nil {
		copied = make(map[string]string, len(targets))
		for label, to := range targets {
			copied[label] = to
		}
	}
	g.conditional[from] = conditionalEdge{selector: selector, targets: copied}
	return g
}

// AddJoin declares target as the convergence point of sources.
// target runs once every source has completed (and routed by its static
// edges) since the join last fired; the count then starts over.
//
// Sources do not need an explicit edge to target. When they have one, or
// route to target through a conditional edge or command, that hand-off is
// counted as an arrival instead of scheduling target directly.
func (g *Graph) AddJoin(target string, sources ...string) *Graph {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(sources) == 0 {
		g.problems = append(g.problems, fmt.Errorf("%w: %q has no sources", ErrInvalidJoin, target))
		return g
	}
	if _, exists := g.joins[target]; exists {
		g.problems = append(g.problems, fmt.Errorf("%w: %q declared twice", ErrInvalidJoin, target))
		return g
	}
	seen := make(map[string]bool, len(sources))
	for _, s := range sources {
		if seen[s] {
			g.problems = append(g.problems, fmt.Errorf("%w: %q lists source %q twice", ErrInvalidJoin, target, s))
			return g
		}
		seen[s] = true
	}
	g.joins[target] = append([]string(nil), sources...)
	return g
}

// SetEntry designates the entry point node.
// SetEntry(END) is allowed and yields a graph that returns its input.
// Returns the graph for method chaining.
func (g *Graph) SetEntry(id string) *Graph {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.entry = id
	return g
}
