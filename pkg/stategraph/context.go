package stategraph

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/randalmurphal/stategraph/pkg/stategraph/observability"
)

// Context provides execution context to nodes.
// It extends context.Context with run metadata and an enriched logger.
//
// Context is immutable after creation. The scheduler derives a context for
// each node execution with NodeID and Step set.
type Context interface {
	context.Context

	// Logger returns the configured logger, enriched with run and node context.
	// Never returns nil; defaults to slog.Default().
	Logger() *slog.Logger

	// RunID returns the unique identifier for this run.
	// Auto-generated if not configured.
	RunID() string

	// NodeID returns the node being executed.
	// Empty outside node execution.
	NodeID() string

	// Step returns the superstep number (1-based). Zero outside a run.
	Step() int
}

// executionContext is the internal implementation of Context.
type executionContext struct {
	context.Context

	logger *slog.Logger
	runID  string
	nodeID string
	step   int
}

// Logger returns the configured logger.
func (c *executionContext) Logger() *slog.Logger {
	return c.logger
}

// RunID returns the run identifier.
func (c *executionContext) RunID() string {
	return c.runID
}

// NodeID returns the current node identifier.
func (c *executionContext) NodeID() string {
	return c.nodeID
}

// Step returns the current superstep.
func (c *executionContext) Step() int {
	return c.step
}

// ContextOption configures a Context.
type ContextOption func(*executionContext)

// WithLogger sets the logger for the context.
// The logger is enriched with run_id, node_id and step during execution.
func WithLogger(logger *slog.Logger) ContextOption {
	return func(c *executionContext) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRunID sets the run identifier for the context.
// If not set, a UUID is generated.
func WithRunID(id string) ContextOption {
	return func(c *executionContext) {
		if id != "" {
			c.runID = id
		}
	}
}

// NewContext creates an execution context from a standard context.
//
// Example:
//
//	ctx := stategraph.NewContext(context.Background(),
//	    stategraph.WithLogger(logger),
//	    stategraph.WithRunID("run-123"))
func NewContext(ctx context.Context, opts ...ContextOption) Context {
	ec := &executionContext{
		Context: ctx,
		logger:  slog.Default(),
		runID:   uuid.New().String(),
	}
	for _, opt := range opts {
		opt(ec)
	}
	return ec
}

// asExecutionContext adopts any Context implementation.
func asExecutionContext(ctx Context) *executionContext {
	if ec, ok := ctx.(*executionContext); ok {
		return ec
	}
	logger := ctx.Logger()
	if logger == nil {
		logger = slog.Default()
	}
	runID := ctx.RunID()
	if runID == "" {
		runID = uuid.New().String()
	}
	return &executionContext{Context: ctx, logger: logger, runID: runID, nodeID: ctx.NodeID(), step: ctx.Step()}
}

// forNode returns the context handed to one node execution.
func (c *executionContext) forNode(parent context.Context, nodeID string, step int) *executionContext {
	return &executionContext{
		Context: parent,
		logger:  observability.EnrichLogger(c.logger, c.runID, nodeID, step),
		runID:   c.runID,
		nodeID:  nodeID,
		step:    step,
	}
}
