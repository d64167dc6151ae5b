// Package demos holds runnable example graphs used by the stategraph CLI.
//
// Each demo registers itself at init time and can be looked up by name.
// Nodes are deterministic stubs so runs are reproducible.
package demos

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/randalmurphal/stategraph/pkg/stategraph"
)

// Demo describes a runnable example graph.
type Demo struct {
	Name        string
	Description string

	// MaxSteps is used when the caller's options leave MaxSteps unset.
	MaxSteps int

	// Build compiles the demo graph.
	Build func() (*stategraph.CompiledGraph, error)

	// Inputs are the initial states, one run per input.
	Inputs []map[string]any

	// Report prints the interesting fields of a final state.
	Report func(w io.Writer, final stategraph.State)
}

// Result pairs an input with the final state of its run.
type Result struct {
	Input stategraph.State
	Final stategraph.State
}

// Run compiles the demo once and invokes it for every input.
// Each input runs under its own run ID, derived from ctx's as
// "<run-id>-<n>" with n counting from 1. It stops at the first failing run.
func (d Demo) Run(ctx stategraph.Context, opts stategraph.Options) ([]Result, error) {
	compiled, err := d.Build()
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", d.Name, err)
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = d.MaxSteps
	}

	results := make([]Result, 0, len(d.Inputs))
	for i, in := range d.Inputs {
		input := stategraph.NewState(in)
		runCtx := stategraph.NewContext(ctx,
			stategraph.WithLogger(ctx.Logger()),
			stategraph.WithRunID(fmt.Sprintf("%s-%d", ctx.RunID(), i+1)))
		final, err := compiled.Invoke(runCtx, input, opts)
		if err != nil {
			return results, fmt.Errorf("run %s input %d: %w", d.Name, i, err)
		}
		results = append(results, Result{Input: input, Final: final})
	}
	return results, nil
}

var (
	mu       sync.RWMutex
	registry = make(map[string]Demo)
)

// Register adds a demo, replacing any demo with the same name.
func Register(d Demo) {
	mu.Lock()
	defer mu.Unlock()
	registry[d.Name] = d
}

// Lookup returns the demo registered under name.
func Lookup(name string) (Demo, bool) {
	mu.RLock()
	defer mu.RUnlock()
	d, ok := registry[name]
	return d, ok
}

// All returns every registered demo sorted by name.
func All() []Demo {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Demo, 0, len(registry))
	for _, d := range registry {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// reportFields returns a Report that prints the named fields in order.
func reportFields(fields ...string) func(io.Writer, stategraph.State) {
	return func(w io.Writer, s stategraph.State) {
		for _, f := range fields {
			v, ok := s.Get(f)
			if !ok {
				continue
			}
			fmt.Fprintf(w, "%-20s %v\n", f+":", v)
		}
	}
}

func containsAny(text string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
