package demos

import (
	"log/slog"

	"github.com/randalmurphal/stategraph/pkg/stategraph"
)

// writerDrafts is the sequence of numbers the writer proposes, one per
// iteration, wrapping around.
var writerDrafts = []int{37, 52, 40, 81, 90}

func init() {
	Register(Demo{
		Name:        "loop",
		Description: "Writer, tester and controller loop until a number divisible by 10 is found",
		MaxSteps:    20,
		Build:       buildLoop,
		Inputs: []map[string]any{{
			"passed":         false,
			"iterations":     0,
			"max_iterations": 5,
		}},
		Report: reportFields("number", "passed", "iterations", "max_iterations"),
	})
}

func buildLoop() (*stategraph.CompiledGraph, error) {
	schema := stategraph.NewSchema().
		Field("number", stategraph.TypeInt).
		Field("passed", stategraph.TypeBool).
		Field("iterations", stategraph.TypeInt).
		Field("max_iterations", stategraph.TypeInt)

	return stategraph.NewGraph(schema).
		AddNode("writer", writeNumber).
		AddNode("tester", testNumber).
		AddNode("controller", countIteration).
		AddEdge("writer", "tester").
		AddEdge("tester", "controller").
		AddConditionalEdge("controller",
			stategraph.Expr("not passed and iterations < max_iterations"),
			map[string]string{stategraph.LabelTrue: "writer", stategraph.LabelFalse: stategraph.END}).
		SetEntry("writer").
		Compile()
}

func writeNumber(ctx stategraph.Context, s stategraph.State) (stategraph.Outcome, error) {
	iter, _ := s.Int("iterations")
	n := writerDrafts[iter%len(writerDrafts)]
	ctx.Logger().Info("writer produced", slog.Int("number", n))
	return stategraph.Updates{"number": n}, nil
}

func testNumber(ctx stategraph.Context, s stategraph.State) (stategraph.Outcome, error) {
	n, _ := s.Int("number")
	passed := n%10 == 0
	ctx.Logger().Info("tester checked", slog.Int("number", n), slog.Bool("passed", passed))
	return stategraph.Updates{"passed": passed}, nil
}

func countIteration(ctx stategraph.Context, s stategraph.State) (stategraph.Outcome, error) {
	iter, _ := s.Int("iterations")
	iter++
	passed, _ := s.Bool("passed")
	ctx.Logger().Info("controller", slog.Int("iteration", iter), slog.Bool("passed", passed))
	return stategraph.Updates{"iterations": iter}, nil
}
