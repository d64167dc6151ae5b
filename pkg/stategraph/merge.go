package stategraph

import "fmt"

// nodeUpdate is one node's contribution to a step, tagged with its ID so
// failures can be attributed.
type nodeUpdate struct {
	nodeID  string
	updates Updates
}

// merge folds updates into base and returns the next state generation.
//
// updates must already be in frontier order (sorted node IDs); that order
// decides last-write-wins conflicts and the element order of Append fields.
// base is never modified.
func (s *Schema) merge(base State, updates []nodeUpdate) (State, error) {
	next := make(map[string]any, len(base.fields))
	for k, v := range base.fields {
		next[k] = v
	}

	for _, nu := range updates {
		for _, name := range sortedKeys(nu.updates) {
			value := nu.updates[name]
			f, ok := s.fields[name]
			if !ok {
				return base, &NodeError{
					NodeID: nu.nodeID,
					Op:     "update",
					State:  base,
					Err:    fmt.Errorf("%w: %q", ErrUnknownField, name),
				}
			}

			var merged any
			var err error
			switch f.Rule {
			case AppendRule:
				merged, err = appendValues(f, next[name], value)
			case ReduceRule:
				merged, err = coerce(f, value)
				if err == nil {
					merged, err = f.reducer(next[name], merged)
				}
			default:
				merged, err = coerce(f, value)
			}
			if err != nil {
				return base, &NodeError{NodeID: nu.nodeID, Op: "update", State: base, Err: err}
			}
			next[name] = merged
		}
	}

	return State{fields: next}, nil
}
