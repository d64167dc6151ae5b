package stategraph

import (
	"fmt"
	"log/slog"
	"reflect"
)

// invokeSubgraph runs an embedded graph as one node of the host.
//
// The sub-run starts from the host fields the sub-graph declares. It shares
// the host's options, except that the run timeout is enforced by the host
// only, and is journalled under "<host run>/<node>@<step>".
func (r *run) invokeSubgraph(ctx *executionContext, spec *nodeSpec, host State) (Outcome, error) {
	sub := spec.sub

	input := make(map[string]any)
	for _, name := range sub.schema.Names() {
		if v, ok := host.fields[name]; ok {
			input[name] = v
		}
	}
	initial, err := sub.schema.normalize(State{fields: input})
	if err != nil {
		return nil, fmt.Errorf("sub-graph input: %w", err)
	}

	childCtx := &executionContext{
		Context: ctx.Context,
		logger:  r.ec.logger.With(slog.String("subgraph", spec.id)),
		runID:   fmt.Sprintf("%s/%s@%d", r.runID, spec.id, ctx.step),
	}
	child := newRun(sub, childCtx, childCtx.runID, r.opts, true)

	final, esc, err := child.execute(initial)
	if err != nil {
		return nil, err
	}

	updates := r.cg.schema.project(initial, final)
	if esc != nil {
		return &Command{Goto: esc.Goto, Update: updates}, nil
	}
	return updates, nil
}

// project returns the fields that changed between before and after and
// that this schema declares. Append fields contribute only the elements
// added after before's list.
func (s *Schema) project(before, after State) Updates {
	out := Updates{}
	for _, name := range after.Fields() {
		f, ok := s.fields[name]
		if !ok {
			continue
		}
		v := after.fields[name]
		old, had := before.fields[name]
		if had && reflect.DeepEqual(old, v) {
			continue
		}

		if f.Rule != AppendRule {
			out[name] = v
			continue
		}

		newList, _ := v.([]any)
		oldList, _ := old.([]any)
		if len(newList) <= len(oldList) {
			continue
		}
		added := append([]any(nil), newList[len(oldList):]...)
		if f.Type == TypeList && len(added) == 1 {
			// List elements are appended whole, so pass the single new
			// element rather than a slice of it.
			out[name] = added[0]
			continue
		}
		out[name] = added
	}
	return out
}
