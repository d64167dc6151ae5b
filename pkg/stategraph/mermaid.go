package stategraph

import (
	"fmt"
	"strings"
)

const mermaidStart = "__start__"

// Mermaid renders the graph structure as a Mermaid flowchart.
//
// Static edges are solid arrows, conditional edges carry their label,
// command destinations are dotted and join arrivals are thick arrows.
// A conditional edge without a target map is noted as a comment.
// Sub-graph nodes are drawn as subroutines. Output is deterministic.
func (cg *CompiledGraph) Mermaid() string {
	var sb strings.Builder

	sb.WriteString("graph TD\n")
	fmt.Fprintf(&sb, "    %s((START))\n", mermaidStart)
	for _, id := range cg.NodeIDs() {
		if cg.IsSubgraph(id) {
			fmt.Fprintf(&sb, "    %s[[%s]]\n", id, id)
		} else {
			fmt.Fprintf(&sb, "    %s[%s]\n", id, id)
		}
	}
	fmt.Fprintf(&sb, "    %s((END))\n", END)

	fmt.Fprintf(&sb, "    %s --> %s\n", mermaidStart, cg.entry)
	for _, id := range cg.NodeIDs() {
		for _, to := range cg.edges[id] {
			fmt.Fprintf(&sb, "    %s --> %s\n", id, to)
		}
		if ce, ok := cg.conditional[id]; ok {
			if ce.targets == nil {
				fmt.Fprintf(&sb, "    %%%% %s routes to any node by ID\n", id)
			}
			for _, label := range sortedKeys(ce.targets) {
				fmt.Fprintf(&sb, "    %s -->|%s| %s\n", id, label, ce.targets[label])
			}
		}
		for _, to := range cg.nodes[id].destinations {
			fmt.Fprintf(&sb, "    %s -.-> %s\n", id, to)
		}
		for _, target := range cg.joinsBySource[id] {
			fmt.Fprintf(&sb, "    %s ==> %s\n", id, target)
		}
	}
	return sb.String()
}
