package stategraph

// joinTracker counts, for one invocation, which sources of each join have
// completed since the join last fired.
//
// A tracker belongs to a single run and is only touched by the scheduler
// goroutine during the Merging phase, so it needs no locking.
type joinTracker struct {
	joins    map[string][]string
	bySource map[string][]string
	arrived  map[string]map[string]bool
}

func newJoinTracker(cg *CompiledGraph) *joinTracker {
	return &joinTracker{
		joins:    cg.joins,
		bySource: cg.joinsBySource,
		arrived:  make(map[string]map[string]bool),
	}
}

// arrive records that source completed and returns the joins it released,
// in sorted order. A released join re-arms immediately.
func (j *joinTracker) arrive(source string) []string {
	var released []string
	for _, target := range j.bySource[source] {
		if j.arriveAt(source, target) {
			released = append(released, target)
		}
	}
	return released
}

// feeds reports whether source is one of the sources of the join at target.
func (j *joinTracker) feeds(source, target string) bool {
	return containsString(j.bySource[source], target)
}

// arriveAt records source's arrival at the join at target and reports
// whether that released the join.
func (j *joinTracker) arriveAt(source, target string) bool {
	seen := j.arrived[target]
	if seen == nil {
		seen = make(map[string]bool, len(j.joins[target]))
		j.arrived[target] = seen
	}
	seen[source] = true
	if len(seen) < len(j.joins[target]) {
		return false
	}
	delete(j.arrived, target)
	return true
}

// pending returns, for each partially satisfied join, the sources still
// missing.
func (j *joinTracker) pending() map[string][]string {
	out := make(map[string][]string)
	for target, seen := range j.arrived {
		for _, s := range j.joins[target] {
			if !seen[s] {
				out[target] = append(out[target], s)
			}
		}
	}
	return out
}
