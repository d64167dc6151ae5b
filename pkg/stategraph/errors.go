package stategraph

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors for graph building and compilation.
var (
	// ErrNoEntryPoint indicates SetEntry() was not called before Compile().
	ErrNoEntryPoint = errors.New("entry point not set")

	// ErrEntryNotFound indicates the entry point references a non-existent node.
	ErrEntryNotFound = errors.New("entry point node not found")

	// ErrNodeNotFound indicates an edge references a non-existent node.
	ErrNodeNotFound = errors.New("node not found")

	// ErrDuplicateNode indicates two nodes were registered under the same ID.
	ErrDuplicateNode = errors.New("duplicate node ID")

	// ErrInvalidNodeID indicates a node ID is empty, reserved, or contains whitespace.
	ErrInvalidNodeID = errors.New("invalid node ID")

	// ErrNilFunc indicates a nil node, selector, or sub-graph was registered.
	ErrNilFunc = errors.New("nil function")

	// ErrNoSuccessor indicates a node has no edge and does not route dynamically.
	ErrNoSuccessor = errors.New("node has no successor")

	// ErrDuplicateEdge indicates a second conditional edge from the same node.
	ErrDuplicateEdge = errors.New("duplicate conditional edge")

	// ErrInvalidJoin indicates a join declaration is malformed.
	ErrInvalidJoin = errors.New("invalid join")


	// ErrInvalidSchema indicates a malformed field declaration.
	ErrInvalidSchema = errors.New("invalid schema")
)

// Sentinel errors for state validation.
var (
	// ErrUnknownField indicates a state value names a field the schema does not declare.
	ErrUnknownField = errors.New("unknown state field")

	// ErrFieldType indicates a state value does not match the declared field type.
	ErrFieldType = errors.New("state field type mismatch")
)

// Sentinel errors for execution.
var (
	// ErrStepLimitExceeded indicates the scheduler crossed Options.MaxSteps.
	ErrStepLimitExceeded = errors.New("step limit exceeded")

	// ErrMaxStepsRequired indicates Invoke was called without a step bound.
	ErrMaxStepsRequired = errors.New("max steps must be positive")

	// ErrNilContext indicates Invoke() was called with a nil context.
	ErrNilContext = errors.New("context cannot be nil")

	// ErrEmptyLabel indicates a selector returned an empty label.
	ErrEmptyLabel = errors.New("selector returned empty label")

	// ErrLabelNotMapped indicates a selector returned a label absent from its target map.
	ErrLabelNotMapped = errors.New("label not in target map")

	// ErrTargetNotFound indicates a routing decision named an unknown node.
	ErrTargetNotFound = errors.New("routing target not found")

	// ErrNoParentGraph indicates a parent-scope command was issued by a top-level graph.
	ErrNoParentGraph = errors.New("parent-scope command outside a sub-graph")

	// ErrTimeout indicates a run or node exceeded its configured timeout.
	ErrTimeout = errors.New("timeout exceeded")
)

// BuildError reports every problem found while compiling a graph.
// It is only ever returned by Compile, never by Invoke.
//
// errors.Is works against each individual problem:
//
//	_, err := graph.Compile()
//	if errors.Is(err, stategraph.ErrDuplicateNode) { ... }
type BuildError struct {
	Problems []error
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Error()
	}
	return "build graph: " + strings.Join(msgs, "; ")
}

// Unwrap returns the individual problems for errors.Is/As support.
func (e *BuildError) Unwrap() []error {
	return e.Problems
}

// NodeError wraps an error with node context.
// It records which node failed, what operation was attempted and the
// state snapshot the node was given.
type NodeError struct {
	// NodeID is the identifier of the node that failed.
	NodeID string
	// Op is the operation that failed ("execute" or "update").
	Op string
	// State is the snapshot the node observed.
	State State
	// Err is the underlying error from the node.
	Err error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %s: %v", e.NodeID, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *NodeError) Unwrap() error {
	return e.Err
}

// PanicError captures panic information from node execution.
// It includes the stack trace for debugging.
type PanicError struct {
	// NodeID is the identifier of the node that panicked.
	NodeID string
	// Value is the value passed to panic().
	Value any
	// Stack is the full stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("node %s panicked: %v", e.NodeID, e.Value)
}

// RoutingError wraps errors from successor resolution.
// It is attributed to the source node whose routing failed.
type RoutingError struct {
	// From is the node whose successors were being resolved.
	From string
	// Label is the selector label or command target involved, if any.
	Label string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *RoutingError) Error() string {
	if e.Label == "" {
		return fmt.Sprintf("routing from %s: %v", e.From, e.Err)
	}
	return fmt.Sprintf("routing from %s via %q: %v", e.From, e.Label, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *RoutingError) Unwrap() error {
	return e.Err
}

// StepLimitError provides context when the global step bound is crossed.
// It usually signals a cycle without a reachable exit.
type StepLimitError struct {
	// Max is the configured step limit.
	Max int
	// Frontier is the set of nodes that would have executed next.
	Frontier []string
}

// Error implements the error interface.
func (e *StepLimitError) Error() string {
	return fmt.Sprintf("step limit exceeded (%d) with frontier %v", e.Max, e.Frontier)
}

// Unwrap returns ErrStepLimitExceeded for errors.Is support.
func (e *StepLimitError) Unwrap() error {
	return ErrStepLimitExceeded
}

// TimeoutScope distinguishes a run timeout from a node timeout.
type TimeoutScope string

// Timeout scopes.
const (
	TimeoutRun  TimeoutScope = "run"
	TimeoutNode TimeoutScope = "node"
)

// TimeoutError reports that a run or a single node exceeded its timeout.
type TimeoutError struct {
	// Scope is TimeoutRun or TimeoutNode.
	Scope TimeoutScope
	// NodeID is set for node-scoped timeouts.
	NodeID string
	// Timeout is the configured limit that was exceeded.
	Timeout time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	if e.Scope == TimeoutNode {
		return fmt.Sprintf("node %s exceeded timeout of %s", e.NodeID, e.Timeout)
	}
	return fmt.Sprintf("run exceeded timeout of %s", e.Timeout)
}

// Unwrap returns ErrTimeout for errors.Is support.
func (e *TimeoutError) Unwrap() error {
	return ErrTimeout
}

// CancellationError captures where execution was when the caller cancelled.
type CancellationError struct {
	// Step is the step that was running or about to run.
	Step int
	// Frontier is the set of nodes of that step.
	Frontier []string
	// Cause is the underlying cancellation cause.
	Cause error
}

// Error implements the error interface.
func (e *CancellationError) Error() string {
	return fmt.Sprintf("cancelled at step %d (frontier %v): %v", e.Step, e.Frontier, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CancellationError) Unwrap() error {
	return e.Cause
}
