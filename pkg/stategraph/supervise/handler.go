package supervise

import (
	"log/slog"

	"github.com/randalmurphal/stategraph/pkg/stategraph"
)

// Handler decides what a supervised node returns after its wrapped node
// failed. Returning an error still fails the run.
type Handler func(ctx stategraph.Context, state stategraph.State, err error) (stategraph.Outcome, error)

// Supervise returns a node that runs node and hands any error to h.
//
// A panic in node is not a failure here: it propagates and the scheduler
// reports it as a *stategraph.PanicError.
func Supervise(node stategraph.NodeFunc, h Handler) stategraph.NodeFunc {
	return func(ctx stategraph.Context, state stategraph.State) (stategraph.Outcome, error) {
		out, err := node(ctx, state)
		if err == nil {
			return out, nil
		}
		// The run is being torn down; a handler cannot save it.
		if ctx.Err() != nil {
			return nil, err
		}
		ctx.Logger().Warn("node failed, applying supervisor",
			slog.String("error", err.Error()),
		)
		return h(ctx, state, err)
	}
}

// Record returns a handler that stores the error message in field and lets
// the node route along its normal edges.
func Record(field string) Handler {
	return func(_ stategraph.Context, _ stategraph.State, err error) (stategraph.Outcome, error) {
		return stategraph.Updates{field: err.Error()}, nil
	}
}

// Escalate returns a handler that stores the error message in field and
// routes to target with a command. Declare target on the supervised node:
//
//	graph.AddNode("billing",
//	    supervise.Supervise(billing, supervise.Escalate("human", "last_error")),
//	    stategraph.WithDestinations("human"))
func Escalate(target, field string) Handler {
	return func(_ stategraph.Context, _ stategraph.State, err error) (stategraph.Outcome, error) {
		return stategraph.Goto(target).With(stategraph.Updates{field: err.Error()}), nil
	}
}

// Chain tries handlers in order and returns the first outcome produced
// without error. If every handler fails, the last handler's error is returned.
func Chain(handlers ...Handler) Handler {
	return func(ctx stategraph.Context, state stategraph.State, err error) (stategraph.Outcome, error) {
		last := err
		for _, h := range handlers {
			out, herr := h(ctx, state, err)
			if herr == nil {
				return out, nil
			}
			last = herr
		}
		return nil, last
	}
}

// Only returns a handler that applies h when match accepts the error and
// otherwise returns the error unchanged.
func Only(match func(error) bool, h Handler) Handler {
	return func(ctx stategraph.Context, state stategraph.State, err error) (stategraph.Outcome, error) {
		if !match(err) {
			return nil, err
		}
		return h(ctx, state, err)
	}
}
