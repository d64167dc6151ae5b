package stategraph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/randalmurphal/stategraph/pkg/stategraph/journal"
	"github.com/randalmurphal/stategraph/pkg/stategraph/observability"
	"golang.org/x/sync/semaphore"
)

// Phase is a state of the step scheduler.
//
//	Ready(frontier) -> Executing -> Merging -> Ready | Terminated
//	any error -> Failed
type Phase int

// Scheduler phases.
const (
	PhaseReady Phase = iota
	PhaseExecuting
	PhaseMerging
	PhaseTerminated
	PhaseFailed
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseReady:
		return "ready"
	case PhaseExecuting:
		return "executing"
	case PhaseMerging:
		return "merging"
	case PhaseTerminated:
		return "terminated"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Invoke runs the graph from its entry point and returns the final state.
//
// Execution proceeds in supersteps. Each step runs every node of the
// frontier concurrently against the same state snapshot, waits for all of
// them, merges their updates in node-ID order, and routes each node to
// compute the next frontier. The run ends when the frontier is empty.
//
// On failure Invoke returns the last successfully merged state together
// with the error:
//   - *NodeError for node failures (wrapping *PanicError or *TimeoutError)
//   - *RoutingError for routing failures
//   - *StepLimitError when opts.MaxSteps is exhausted
//   - *TimeoutError when opts.RunTimeout elapses
//   - *CancellationError when ctx is cancelled
//
// Example:
//
//	ctx := stategraph.NewContext(context.Background())
//	final, err := compiled.Invoke(ctx, stategraph.NewState(nil), stategraph.NewOptions(25))
func (cg *CompiledGraph) Invoke(ctx Context, initial State, opts Options) (State, error) {
	if ctx == nil {
		return initial, ErrNilContext
	}
	if opts.MaxSteps <= 0 {
		return initial, ErrMaxStepsRequired
	}

	state, err := cg.schema.normalize(initial)
	if err != nil {
		return initial, fmt.Errorf("initial state: %w", err)
	}

	ec := asExecutionContext(ctx)
	r := newRun(cg, ec, ec.runID, opts.resolved(), false)
	final, _, err := r.execute(state)
	return final, err
}

// run is the mutable state of one invocation.
type run struct {
	cg     *CompiledGraph
	ec     *executionContext
	runID  string
	opts   Options
	nested bool
	joins  *joinTracker
}

func newRun(cg *CompiledGraph, ec *executionContext, runID string, opts Options, nested bool) *run {
	return &run{
		cg:     cg,
		ec:     ec,
		runID:  runID,
		opts:   opts,
		nested: nested,
		joins:  newJoinTracker(cg),
	}
}

// stepResult is the outcome of one superstep.
type stepResult struct {
	state    State
	frontier []string
	escalate *Command
	executed int
	err      error
}

// nodeResult is the outcome of one node execution.
type nodeResult struct {
	nodeID  string
	ran     bool
	outcome Outcome
	err     error
}

// execute wraps the step loop with run-level observability.
// It returns a non-nil command when a nested run escalated to its host.
func (r *run) execute(state State) (State, *Command, error) {
	logger := r.ec.logger
	start := time.Now()
	observability.LogRunStart(logger, r.runID, r.cg.entry)

	ctx, runSpan := r.opts.Spans.StartRunSpan(r.ec.Context, r.runID, r.cg.entry)
	if r.opts.RunTimeout > 0 && !r.nested {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, r.opts.RunTimeout,
			&TimeoutError{Scope: TimeoutRun, Timeout: r.opts.RunTimeout})
		defer cancel()
	}

	final, esc, steps, executed, err := r.loop(ctx, state)

	duration := time.Since(start)
	durationMs := float64(duration.Microseconds()) / 1000
	r.opts.Metrics.RecordRun(ctx, err == nil, steps, duration)
	r.opts.Spans.EndSpanWithError(runSpan, err)

	if err != nil {
		observability.LogRunError(logger, r.runID, err, durationMs, steps)
	} else {
		observability.LogRunComplete(logger, r.runID, durationMs, steps, executed)
	}
	return final, esc, err
}

// loop drives the scheduler phases until the frontier is empty.
func (r *run) loop(ctx context.Context, state State) (State, *Command, int, int, error) {
	if r.cg.entry == END {
		return state, nil, 0, 0, nil
	}

	frontier := []string{r.cg.entry}
	step, executed := 0, 0
	for len(frontier) > 0 {
		if step >= r.opts.MaxSteps {
			r.transition(step, PhaseFailed)
			return state, nil, step, executed, &StepLimitError{Max: r.opts.MaxSteps, Frontier: frontier}
		}
		step++
		r.transition(step, PhaseReady)

		res := r.runStep(ctx, step, frontier, state)
		executed += res.executed
		if res.err != nil {
			r.transition(step, PhaseFailed)
			return res.state, nil, step, executed, res.err
		}
		state = res.state
		if res.escalate != nil {
			r.transition(step, PhaseTerminated)
			return state, res.escalate, step, executed, nil
		}
		frontier = res.frontier
	}

	r.transition(step, PhaseTerminated)
	if pending := r.joins.pending(); len(pending) > 0 {
		r.ec.logger.Debug("run ended with unreleased joins", slog.Any("pending", pending))
	}
	return state, nil, step, executed, nil
}

func (r *run) transition(step int, phase Phase) {
	r.ec.logger.Debug("scheduler phase",
		slog.String("run_id", r.runID),
		slog.Int("step", step),
		slog.String("phase", phase.String()),
	)
}

// runStep executes one superstep with step-level observability and
// journals its outcome.
func (r *run) runStep(ctx context.Context, step int, frontier []string, state State) stepResult {
	logger := r.ec.logger
	start := time.Now()
	observability.LogStepStart(logger, step, frontier)

	stepCtx, span := r.opts.Spans.StartStepSpan(ctx, step, frontier)
	r.opts.Metrics.RecordStep(stepCtx, step, len(frontier))

	res := r.step(stepCtx, step, frontier, state)

	duration := time.Since(start)
	r.opts.Spans.EndSpanWithError(span, res.err)
	if res.err == nil {
		observability.LogStepComplete(logger, step, res.frontier, float64(duration.Microseconds())/1000)
	}
	r.record(step, frontier, res, duration)
	return res
}

// record appends the step to the journal. Journal failures are logged only.
func (r *run) record(step int, frontier []string, res stepResult, duration time.Duration) {
	if r.opts.Journal == nil {
		return
	}
	rec := journal.New(r.runID, step, frontier)
	rec.Next = res.frontier
	rec.Duration = duration

	var cancelled *CancellationError
	var timeout *TimeoutError
	switch {
	case res.err == nil && len(res.frontier) > 0:
		rec.Outcome = journal.OutcomeMerged
	case res.err == nil:
		rec.Outcome = journal.OutcomeTerminated
	case errors.As(res.err, &cancelled), errors.As(res.err, &timeout) && timeout.Scope == TimeoutRun:
		rec.Outcome = journal.OutcomeCancelled
	default:
		rec.Outcome = journal.OutcomeFailed
	}
	if res.err != nil {
		rec.Error = res.err.Error()
	}

	if err := r.opts.Journal.Append(rec); err != nil {
		observability.LogJournalError(r.ec.logger, step, err)
	}
}

// step runs the Executing and Merging phases for one frontier.
func (r *run) step(ctx context.Context, step int, frontier []string, state State) stepResult {
	if ctx.Err() != nil {
		return stepResult{state: state, err: r.interrupted(ctx, step, frontier)}
	}

	r.transition(step, PhaseExecuting)
	results := r.dispatch(ctx, step, frontier, state)
	executed := 0
	for _, res := range results {
		if res.ran {
			executed++
		}
	}

	// The caller cancelled or the run timed out: dispatched nodes have
	// finished, nothing from this step is merged.
	if ctx.Err() != nil {
		return stepResult{state: state, executed: executed, err: r.interrupted(ctx, step, frontier)}
	}
	if err := firstFailure(results); err != nil {
		return stepResult{state: state, executed: executed, err: err}
	}

	r.transition(step, PhaseMerging)
	updates := make([]nodeUpdate, 0, len(results))
	for _, res := range results {
		if u := updatesOf(res.outcome); len(u) > 0 {
			updates = append(updates, nodeUpdate{nodeID: res.nodeID, updates: u})
		}
	}
	merged, err := r.cg.schema.merge(state, updates)
	if err != nil {
		return stepResult{state: state, executed: executed, err: err}
	}

	next, esc, err := r.route(ctx, step, results, merged)
	if err != nil {
		return stepResult{state: merged, executed: executed, err: err}
	}
	return stepResult{state: merged, frontier: next, escalate: esc, executed: executed}
}

// dispatch executes the frontier concurrently, bounded by MaxConcurrency.
// Members are dispatched in frontier order. Once the context is done, no
// further members are dispatched; dispatched members are always awaited.
// The first node failure cancels the siblings' context.
func (r *run) dispatch(ctx context.Context, step int, frontier []string, state State) []nodeResult {
	results := make([]nodeResult, len(frontier))
	execCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var sem *semaphore.Weighted
	if r.opts.MaxConcurrency > 0 {
		sem = semaphore.NewWeighted(int64(r.opts.MaxConcurrency))
	}

	var wg sync.WaitGroup
	for i, id := range frontier {
		results[i].nodeID = id
		if execCtx.Err() != nil {
			continue
		}
		if sem != nil {
			if err := sem.Acquire(execCtx, 1); err != nil {
				continue
			}
		}

		results[i].ran = true
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			if sem != nil {
				defer sem.Release(1)
			}
			out, err := r.executeNode(execCtx, step, id, state)
			results[i].outcome, results[i].err = out, err
			if err != nil {
				cancel(err)
			}
		}(i, id)
	}
	wg.Wait()
	return results
}

// executeNode runs one node with timeout, panic recovery and observability.
func (r *run) executeNode(ctx context.Context, step int, id string, state State) (Outcome, error) {
	spec := r.cg.nodes[id]
	logger := r.ec.logger

	nodeCtx, span := r.opts.Spans.StartNodeSpan(ctx, id)

	timeout := spec.timeout
	if timeout == 0 {
		timeout = r.opts.NodeTimeout
	}
	var timeoutErr *TimeoutError
	if timeout > 0 {
		timeoutErr = &TimeoutError{Scope: TimeoutNode, NodeID: id, Timeout: timeout}
		var cancel context.CancelFunc
		nodeCtx, cancel = context.WithTimeoutCause(nodeCtx, timeout, timeoutErr)
		defer cancel()
	}

	observability.LogNodeStart(logger, id)
	start := time.Now()

	out, err := r.call(r.ec.forNode(nodeCtx, id, step), spec, state)

	// A node that outlives its timeout fails even if it returns normally.
	if timeoutErr != nil && errors.Is(context.Cause(nodeCtx), timeoutErr) {
		out, err = nil, timeoutErr
	}
	if err != nil {
		err = &NodeError{NodeID: id, Op: "execute", State: state, Err: err}
	}

	duration := time.Since(start)
	r.opts.Metrics.RecordNodeExecution(nodeCtx, id, duration, err)
	r.opts.Spans.EndSpanWithError(span, err)
	if err != nil {
		observability.LogNodeError(logger, id, err)
		return nil, err
	}
	observability.LogNodeComplete(logger, id, float64(duration.Microseconds())/1000)
	return out, nil
}

// call invokes the node function (or sub-graph), converting panics.
func (r *run) call(ctx *executionContext, spec *nodeSpec, state State) (out Outcome, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			out = nil
			err = &PanicError{
				NodeID: spec.id,
				Value:  rec,
				Stack:  string(debug.Stack()),
			}
		}
	}()

	if spec.sub != nil {
		return r.invokeSubgraph(ctx, spec, state)
	}
	return spec.fn(ctx, state)
}

// route resolves every node of the step against the merged state and
// returns the next frontier in sorted order.
func (r *run) route(ctx context.Context, step int, results []nodeResult, merged State) ([]string, *Command, error) {
	next := make(map[string]bool)
	var esc *Command

	for _, res := range results {
		rt, err := r.cg.resolve(r.ec.forNode(ctx, res.nodeID, step), res.nodeID, res.outcome, merged)
		if err != nil {
			return nil, nil, err
		}

		if rt.escalate != nil {
			if !r.nested {
				return nil, nil, &RoutingError{From: res.nodeID, Err: ErrNoParentGraph}
			}
			if esc == nil {
				esc = &Command{}
			}
			for _, to := range rt.escalate.Goto {
				if !containsString(esc.Goto, to) {
					esc.Goto = append(esc.Goto, to)
				}
			}
			continue
		}

		for _, to := range rt.targets {
			switch {
			case to == END:
			case r.joins.feeds(res.nodeID, to):
				// A routed hand-off to the node's own join is an arrival.
				if r.joins.arriveAt(res.nodeID, to) {
					next[to] = true
				}
			default:
				next[to] = true
			}
		}
		if rt.static {
			for _, released := range r.joins.arrive(res.nodeID) {
				next[released] = true
			}
		}
	}

	if esc != nil {
		return nil, esc, nil
	}
	return sortedKeys(next), nil, nil
}

// interrupted converts a done run context into the error Invoke reports.
func (r *run) interrupted(ctx context.Context, step int, frontier []string) error {
	cause := context.Cause(ctx)
	var timeout *TimeoutError
	if errors.As(cause, &timeout) && timeout.Scope == TimeoutRun {
		return timeout
	}
	return &CancellationError{Step: step, Frontier: append([]string(nil), frontier...), Cause: cause}
}

// firstFailure returns the error of the first failed node in frontier
// order. Failures caused only by a sibling's cancellation are reported
// only when nothing else failed.
func firstFailure(results []nodeResult) error {
	var collateral error
	for _, res := range results {
		if res.err == nil {
			continue
		}
		if errors.Is(res.err, context.Canceled) {
			if collateral == nil {
				collateral = res.err
			}
			continue
		}
		return res.err
	}
	return collateral
}

// updatesOf extracts the partial update carried by an outcome.
func updatesOf(o Outcome) Updates {
	switch v := o.(type) {
	case Updates:
		return v
	case *Command:
		if v != nil {
			return v.Update
		}
	}
	return nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
