package benchmarks

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/randalmurphal/stategraph/pkg/stategraph"
)

func benchCtx() stategraph.Context {
	return stategraph.NewContext(context.Background(),
		stategraph.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func benchInvoke(b *testing.B, compiled *stategraph.CompiledGraph, input map[string]any, opts stategraph.Options) {
	b.Helper()
	ctx := benchCtx()
	state := stategraph.NewState(input)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := compiled.Invoke(ctx, state, opts); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkInvoke_Linear_5 runs a 5-node linear graph.
func BenchmarkInvoke_Linear_5(b *testing.B) {
	benchInvoke(b, mustCompile(buildLinearGraph(5)), nil, stategraph.NewOptions(10))
}

// BenchmarkInvoke_Linear_50 runs a 50-node linear graph.
func BenchmarkInvoke_Linear_50(b *testing.B) {
	benchInvoke(b, mustCompile(buildLinearGraph(50)), nil, stategraph.NewOptions(60))
}

// BenchmarkInvoke_Linear_100 runs a 100-node linear graph.
func BenchmarkInvoke_Linear_100(b *testing.B) {
	benchInvoke(b, mustCompile(buildLinearGraph(100)), nil, stategraph.NewOptions(110))
}

// BenchmarkInvoke_Branching runs a graph with a conditional edge.
func BenchmarkInvoke_Branching(b *testing.B) {
	benchInvoke(b, mustCompile(buildBranchingGraph()), map[string]any{"value": 1}, stategraph.NewOptions(5))
}

// BenchmarkInvoke_Loop_10 runs a loop of 10 iterations.
func BenchmarkInvoke_Loop_10(b *testing.B) {
	benchInvoke(b, mustCompile(buildLoopGraph(10)), nil, stategraph.NewOptions(20))
}

// BenchmarkInvoke_FanOut_10 runs 10 parallel workers and a join.
func BenchmarkInvoke_FanOut_10(b *testing.B) {
	benchInvoke(b, mustCompile(buildFanOutGraph(10)), nil, stategraph.NewOptions(5))
}

// BenchmarkInvoke_FanOut_50 runs 50 parallel workers and a join.
func BenchmarkInvoke_FanOut_50(b *testing.B) {
	benchInvoke(b, mustCompile(buildFanOutGraph(50)), nil, stategraph.NewOptions(5))
}

// BenchmarkInvoke_FanOut_50_Bounded runs 50 workers four at a time.
func BenchmarkInvoke_FanOut_50_Bounded(b *testing.B) {
	benchInvoke(b, mustCompile(buildFanOutGraph(50)), nil,
		stategraph.NewOptions(5, stategraph.WithMaxConcurrency(4)))
}

// BenchmarkContextCreation measures context creation overhead.
func BenchmarkContextCreation(b *testing.B) {
	bg := context.Background()
	for i := 0; i < b.N; i++ {
		stategraph.NewContext(bg)
	}
}
