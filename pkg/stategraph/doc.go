/*
Package stategraph executes directed graphs of nodes over a shared, typed
state record.

# Overview

Nodes read a snapshot of the state and return a partial update. Edges
decide which nodes run next: static edges, conditional edges that map a
selector label to a node, and commands returned by nodes at run time.
Several successors fan out and run concurrently; joins wait for all their
sources; loops are ordinary conditional edges bounded by a step limit.

# Basic Usage

	schema := stategraph.NewSchema().Field("x", stategraph.TypeFloat)

	graph := stategraph.NewGraph(schema).
	    AddNode("a", func(ctx stategraph.Context, s stategraph.State) (stategraph.Outcome, error) {
	        return stategraph.Updates{"x": 1}, nil
	    }).
	    AddNode("b", func(ctx stategraph.Context, s stategraph.State) (stategraph.Outcome, error) {
	        x, _ := s.Float("x")
	        return stategraph.Updates{"x": x * 2}, nil
	    }).
	    AddEdge("a", "b").
	    AddEdge("b", stategraph.END).
	    SetEntry("a")

	compiled, err := graph.Compile()
	if err != nil {
	    log.Fatal(err)
	}

	ctx := stategraph.NewContext(context.Background())
	final, err := compiled.Invoke(ctx, stategraph.NewState(nil), stategraph.NewOptions(10))

# Supersteps

Invoke runs in supersteps. All nodes of the current frontier run
concurrently (bounded by Options.MaxConcurrency) against the same
snapshot; none of them sees a sibling's writes. When every node has
returned, their updates are merged in lexicographic node-ID order, which
makes conflicting writes deterministic: for last-write-wins fields the
node whose ID sorts last wins, regardless of which finished first.

Each node is then routed against the merged state, in priority order:
  - a *Command returned by the node
  - the node's conditional edge
  - the node's static edges and joins

The union of all successors, minus END, is the next frontier.

# Merge Rules

Fields are declared once on the Schema. Field uses last-write-wins, Append
accumulates every write (a slice update appends each element), and Reduce
folds writes with a custom function.

# Joins

	graph.AddEdge("intake", "billing").
	    AddEdge("intake", "shipping").
	    AddJoin("report", "billing", "shipping")

report runs once both billing and shipping have completed, in the step
after the later of the two. The join then re-arms. An edge, conditional
edge or command from a source to its own join counts as an arrival.

A node fed by plain edges from different branches of a static fork is
treated as a join over those predecessors even without AddJoin:

	graph.AddEdge("intake", "billing").
	    AddEdge("intake", "shipping").
	    AddEdge("billing", "report").
	    AddEdge("shipping", "report")

# Commands

A node can choose its successors itself:

	return stategraph.Goto("risk").With(stategraph.Updates{"log": "checked"}), nil

Declare such nodes with WithDestinations so they need no edges and Compile
can check their targets. Inside a sub-graph (AddSubgraph), a command with
ToParent() stops the sub-run and continues in the hosting graph.

# Termination

Options.MaxSteps is required. A run that still has work after MaxSteps
steps fails with *StepLimitError. Bounded loops keep their counter in
an ordinary state field:

	graph.AddConditionalEdge("controller",
	    stategraph.Expr("not passed and iterations < 3"),
	    map[string]string{stategraph.LabelTrue: "writer", stategraph.LabelFalse: stategraph.END})

# Errors

Compile reports every structural problem at once in a *BuildError.
Invoke returns the last merged state together with *NodeError,
*RoutingError, *StepLimitError, *TimeoutError or *CancellationError.
All of them support errors.Is and errors.As.

# Observability

Options can carry an OpenTelemetry metrics recorder and span manager (see
package observability) and a step journal (see package journal). Logging
goes through the slog.Logger of the Context, enriched per node with
run_id, node_id and step.
*/
package stategraph
