package stategraph

import (
	"fmt"
	"log/slog"
	"sort"
)

// Compile validates the graph and creates an executable CompiledGraph.
// Every problem found is reported in a single *BuildError.
//
// Validation checks:
//  1. Schema and registration problems (duplicates, invalid IDs, nil functions)
//  2. Entry point is set and names a node or END
//  3. Edge, conditional-edge, join and destination references exist
//  4. Every node has a way to route onward
//
// Unreachable nodes, and an END that cannot be reached from the entry, are
// logged as warnings but do not fail compilation. A graph that never
// reaches END fails at run time with a StepLimitError.
// The builder may be compiled again; each CompiledGraph is independent.
func (g *Graph) Compile() (*CompiledGraph, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var errs []error
	errs = append(errs, g.problems...)
	if g.schema != nil {
		errs = append(errs, g.schema.problems...)
	}

	switch {
	case g.entry == "":
		errs = append(errs, ErrNoEntryPoint)
	case g.entry != END && g.nodes[g.entry] == nil:
		errs = append(errs, fmt.Errorf("%w: %s", ErrEntryNotFound, g.entry))
	}

	errs = append(errs, g.validateReferences()...)

	joinSources := make(map[string]bool)
	for _, sources := range g.joins {
		for _, s := range sources {
			joinSources[s] = true
		}
	}
	for _, id := range sortedKeys(g.nodes) {
		spec := g.nodes[id]
		_, hasConditional := g.conditional[id]
		if len(g.edges[id]) == 0 && !hasConditional && !joinSources[id] && len(spec.destinations) == 0 {
			errs = append(errs, fmt.Errorf("%w: %s", ErrNoSuccessor, id))
		}
	}

	if len(errs) > 0 {
		return nil, &BuildError{Problems: errs}
	}

	g.warnUnreachableNodes()
	if g.entry != END && !g.canReachEnd()[g.entry] {
		slog.Warn("END is unreachable from entry; runs will stop at the step limit", "entry", g.entry)
	}
	return g.buildCompiledGraph(), nil
}

// validateReferences checks that every referenced node exists.
func (g *Graph) validateReferences() []error {
	var errs []error
	exists := func(id string) bool {
		return id == END || g.nodes[id] != nil
	}

	for _, from := range sortedKeys(g.edges) {
		if g.nodes[from] == nil {
			errs = append(errs, fmt.Errorf("%w: edge source %q does not exist", ErrNodeNotFound, from))
		}
		for _, to := range g.edges[from] {
			if !exists(to) {
				errs = append(errs, fmt.Errorf("%w: edge target %q does not exist", ErrNodeNotFound, to))
			}
		}
	}

	for _, from := range sortedKeys(g.conditional) {
		if g.nodes[from] == nil {
			errs = append(errs, fmt.Errorf("%w: conditional edge source %q does not exist", ErrNodeNotFound, from))
		}
		targets := g.conditional[from].targets
		for _, label := range sortedKeys(targets) {
			if !exists(targets[label]) {
				errs = append(errs, fmt.Errorf("%w: conditional target %q (label %q) does not exist",
					ErrNodeNotFound, targets[label], label))
			}
		}
	}

	for _, target := range sortedKeys(g.joins) {
		if g.nodes[target] == nil {
			errs = append(errs, fmt.Errorf("%w: join target %q does not exist", ErrInvalidJoin, target))
		}
		for _, s := range g.joins[target] {
			if g.nodes[s] == nil {
				errs = append(errs, fmt.Errorf("%w: join source %q does not exist", ErrInvalidJoin, s))
			}
		}
	}

	for _, id := range sortedKeys(g.nodes) {
		for _, d := range g.nodes[id].destinations {
			if !exists(d) {
				errs = append(errs, fmt.Errorf("%w: destination %q of %q does not exist", ErrNodeNotFound, d, id))
			}
		}
	}
	return errs
}

// outgoing lists every node a node may hand control to. The boolean is
// true when a conditional edge without a target map can reach any node.
func (g *Graph) outgoing(id string) ([]string, bool) {
	var out []string
	out = append(out, g.edges[id]...)
	out = append(out, g.nodes[id].destinations...)
	if ce, ok := g.conditional[id]; ok {
		if ce.targets == nil {
			return out, true
		}
		for _, to := range ce.targets {
			out = append(out, to)
		}
	}
	for target, sources := range g.joins {
		for _, s := range sources {
			if s == id {
				out = append(out, target)
			}
		}
	}
	return out, false
}

// canReachEnd returns the set of nodes from which END is reachable,
// by propagating backwards until nothing changes.
func (g *Graph) canReachEnd() map[string]bool {
	reach := map[string]bool{END: true}
	changed := true
	for changed {
		changed = false
		for id := range g.nodes {
			if reach[id] {
				continue
			}
			targets, anyNode := g.outgoing(id)
			if anyNode {
				reach[id] = true
				changed = true
				continue
			}
			for _, to := range targets {
				if reach[to] {
					reach[id] = true
					changed = true
					break
				}
			}
		}
	}
	return reach
}

// findReachableNodes returns the set of nodes reachable from the entry point.
func (g *Graph) findReachableNodes() map[string]bool {
	reachable := make(map[string]bool)
	if g.entry == "" || g.entry == END {
		return reachable
	}

	queue := []string{g.entry}
	reachable[g.entry] = true
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		targets, anyNode := g.outgoing(current)
		if anyNode {
			// The selector may return any node ID.
			targets = sortedKeys(g.nodes)
		}
		for _, to := range targets {
			if to != END && !reachable[to] {
				reachable[to] = true
				queue = append(queue, to)
			}
		}
	}
	return reachable
}

// warnUnreachableNodes logs warnings for nodes not reachable from entry.
func (g *Graph) warnUnreachableNodes() {
	reachable := g.findReachableNodes()
	for _, id := range sortedKeys(g.nodes) {
		if !reachable[id] {
			slog.Warn("node is unreachable from entry", "node_id", id)
		}
	}
}

// buildCompiledGraph creates the immutable CompiledGraph from the builder state.
func (g *Graph) buildCompiledGraph() *CompiledGraph {
	nodes := make(map[string]*nodeSpec, len(g.nodes))
	for id, spec := range g.nodes {
		cp := *spec
		cp.destinations = append([]string(nil), spec.destinations...)
		nodes[id] = &cp
	}

	edges := make(map[string][]string, len(g.edges))
	for from, targets := range g.edges {
		edges[from] = append([]string(nil), targets...)
	}

	conditional := make(map[string]conditionalEdge, len(g.conditional))
	for from, ce := range g.conditional {
		conditional[from] = ce
	}

	joinSets := make(map[string][]string, len(g.joins))
	for target, sources := range g.joins {
		joinSets[target] = sources
	}
	for target, sources := range g.inferJoins() {
		slog.Debug("inferred join from parallel branches", "node_id", target, "sources", sources)
		joinSets[target] = sources
	}

	joins := make(map[string][]string, len(joinSets))
	joinsBySource := make(map[string][]string)
	for target, sources := range joinSets {
		sorted := append([]string(nil), sources...)
		sort.Strings(sorted)
		joins[target] = sorted
		for _, s := range sorted {
			joinsBySource[s] = append(joinsBySource[s], target)
			// An edge from a source into its own join is an arrival,
			// never a direct hand-off.
			edges[s] = removeString(edges[s], target)
		}
	}
	for s := range joinsBySource {
		sort.Strings(joinsBySource[s])
	}

	predecessors := make(map[string][]string)
	for _, id := range sortedKeys(nodes) {
		targets, _ := g.outgoing(id)
		seen := make(map[string]bool)
		for _, to := range targets {
			if to != END && !seen[to] {
				seen[to] = true
				predecessors[to] = append(predecessors[to], id)
			}
		}
	}

	return &CompiledGraph{
		schema:        g.schema.clone(),
		nodes:         nodes,
		edges:         edges,
		conditional:   conditional,
		joins:         joins,
		joinsBySource: joinsBySource,
		entry:         g.entry,
		predecessors:  predecessors,
	}
}

// inferJoins finds nodes fed by static edges from different branches of a
// static fork and returns them as joins over those predecessors. Nodes
// declared with AddJoin are left alone.
func (g *Graph) inferJoins() map[string][]string {
	preds := make(map[string][]string)
	for _, from := range sortedKeys(g.edges) {
		if _, cond := g.conditional[from]; cond || g.nodes[from] == nil {
			continue
		}
		for _, to := range g.edges[from] {
			if to != END && to != from {
				preds[to] = append(preds[to], from)
			}
		}
	}

	inferred := make(map[string][]string)
	for _, target := range sortedKeys(preds) {
		if len(preds[target]) < 2 || g.joins[target] != nil {
			continue
		}
		sources := make(map[string]bool)
		for _, fork := range sortedKeys(g.edges) {
			branches := g.edges[fork]
			if _, cond := g.conditional[fork]; cond || len(branches) < 2 {
				continue
			}
			// The predecessors each branch leads to, and which branches
			// lead anywhere.
			reached := make(map[string]bool)
			branchesHit := 0
			for _, b := range branches {
				hit := false
				if b == target && containsString(preds[target], fork) {
					reached[fork] = true
					hit = true
				}
				for p := range g.staticReach(b, target) {
					if containsString(preds[target], p) {
						reached[p] = true
						hit = true
					}
				}
				if hit {
					branchesHit++
				}
			}
			if len(reached) >= 2 && branchesHit >= 2 {
				for p := range reached {
					sources[p] = true
				}
			}
		}
		if len(sources) >= 2 {
			inferred[target] = sortedKeys(sources)
		}
	}
	return inferred
}

// staticReach returns the nodes reachable from start by edges that always
// fire: static edges of nodes without a conditional edge, and declared
// joins. The walk does not continue past stop.
func (g *Graph) staticReach(start, stop string) map[string]bool {
	reach := make(map[string]bool)
	if start == END || start == stop || g.nodes[start] == nil {
		return reach
	}
	reach[start] = true
	queue := []string{start}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		var next []string
		if _, cond := g.conditional[current]; !cond {
			next = append(next, g.edges[current]...)
		}
		for target, sources := range g.joins {
			if containsString(sources, current) {
				next = append(next, target)
			}
		}
		for _, to := range next {
			if to != END && to != stop && !reach[to] && g.nodes[to] != nil {
				reach[to] = true
				queue = append(queue, to)
			}
		}
	}
	return reach
}

func removeString(list []string, s string) []string {
	out := list[:0:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
