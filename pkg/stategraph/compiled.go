package stategraph

import "sort"

// CompiledGraph is an immutable, executable graph.
// It is created by calling Compile() on a Graph builder.
//
// CompiledGraph is safe for concurrent use: invocations share nothing but
// the read-only structure below.
//
// Use the introspection methods (NodeIDs, Successors, etc.) to examine
// the graph structure for debugging or visualization.
type CompiledGraph struct {
	schema        *Schema
	nodes         map[string]*nodeSpec
	edges         map[string][]string
	conditional   map[string]conditionalEdge
	joins         map[string][]string // target -> sorted sources
	joinsBySource map[string][]string // source -> sorted targets
	entry         string

	predecessors map[string][]string
}

// EntryPoint returns the entry node ID (possibly END).
func (cg *CompiledGraph) EntryPoint() string {
	return cg.entry
}

// Schema returns the state schema of the graph.
func (cg *CompiledGraph) Schema() *Schema {
	return cg.schema.clone()
}

// NodeIDs returns all node identifiers in sorted order.
func (cg *CompiledGraph) NodeIDs() []string {
	return sortedKeys(cg.nodes)
}

// HasNode checks if a node exists in the graph.
func (cg *CompiledGraph) HasNode(id string) bool {
	_, exists := cg.nodes[id]
	return exists
}

// IsSubgraph reports whether the node embeds another graph.
func (cg *CompiledGraph) IsSubgraph(id string) bool {
	spec, ok := cg.nodes[id]
	return ok && spec.sub != nil
}

// Successors returns the targets of the node's static edges, in
// declaration order. Conditional, join and command targets are not included.
func (cg *CompiledGraph) Successors(id string) []string {
	if id == END {
		return nil
	}
	return append([]string(nil), cg.edges[id]...)
}

// Predecessors returns the nodes that may hand control to id through any
// declared edge, join or destination, in sorted order.
func (cg *CompiledGraph) Predecessors(id string) []string {
	return append([]string(nil), cg.predecessors[id]...)
}

// IsConditional returns true if the node has a conditional edge.
func (cg *CompiledGraph) IsConditional(id string) bool {
	_, exists := cg.conditional[id]
	return exists
}

// ConditionalTargets returns a copy of the label map of the node's
// conditional edge, or nil when the node has none or labels are node IDs.
func (cg *CompiledGraph) ConditionalTargets(id string) map[string]string {
	ce, ok := cg.conditional[id]
	if !ok || ce.targets == nil {
		return nil
	}
	out := make(map[string]string, len(ce.targets))
	for k, v := range ce.targets {
		out[k] = v
	}
	return out
}

// Destinations returns the command targets declared with WithDestinations.
func (cg *CompiledGraph) Destinations(id string) []string {
	spec, ok := cg.nodes[id]
	if !ok {
		return nil
	}
	return append([]string(nil), spec.destinations...)
}

// IsJoinNode returns true if the node was declared with AddJoin or
// inferred as the meeting point of parallel branches.
func (cg *CompiledGraph) IsJoinNode(id string) bool {
	_, exists := cg.joins[id]
	return exists
}

// JoinSources returns the sorted sources of a join node, or nil.
func (cg *CompiledGraph) JoinSources(id string) []string {
	return append([]string(nil), cg.joins[id]...)
}

// ForkNodes returns the nodes with more than one static successor, sorted.
// Their targets run concurrently in the same step.
func (cg *CompiledGraph) ForkNodes() []string {
	var forks []string
	for id, targets := range cg.edges {
		if len(targets) > 1 {
			forks = append(forks, id)
		}
	}
	sort.Strings(forks)
	return forks
}
