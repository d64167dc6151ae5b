package demos

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/randalmurphal/stategraph/pkg/stategraph"
)

// gdp2022 holds the figures the research worker "finds", in trillions of USD.
var gdp2022 = map[string]float64{
	"us":       25.46,
	"new_york": 2.05,
}

func init() {
	Register(Demo{
		Name:        "supervisor",
		Description: "A supervisor delegates to research and math worker sub-graphs until the question is answered",
		MaxSteps:    10,
		Build:       buildSupervisor,
		Inputs: []map[string]any{{
			"query": "find US and New York state GDP in 2022. what % of US GDP was New York state?",
		}},
		Report: func(w io.Writer, s stategraph.State) {
			msgs, _ := s.Strings("messages")
			for _, m := range msgs {
				fmt.Fprintln(w, m)
			}
			answer, _ := s.String("answer")
			fmt.Fprintf(w, "\nanswer: %s\n", answer)
		},
	})
}

func buildSupervisor() (*stategraph.CompiledGraph, error) {
	research, err := buildResearchWorker()
	if err != nil {
		return nil, fmt.Errorf("research worker: %w", err)
	}
	mathWorker, err := buildMathWorker()
	if err != nil {
		return nil, fmt.Errorf("math worker: %w", err)
	}

	schema := stategraph.NewSchema().
		Field("query", stategraph.TypeString).
		Append("messages", stategraph.TypeString).
		Field("us_gdp", stategraph.TypeFloat).
		Field("ny_gdp", stategraph.TypeFloat).
		Field("percentage", stategraph.TypeFloat).
		Field("answer", stategraph.TypeString)

	return stategraph.NewGraph(schema).
		AddNode("supervisor", delegate,
			stategraph.WithDestinations("research_agent", "math_agent", stategraph.END)).
		AddSubgraph("research_agent", research, stategraph.WithDestinations("supervisor")).
		AddSubgraph("math_agent", mathWorker).
		AddEdge("math_agent", "supervisor").
		SetEntry("supervisor").
		Compile()
}

// delegate picks the next worker from what the state still lacks.
func delegate(ctx stategraph.Context, s stategraph.State) (stategraph.Outcome, error) {
	handoff := func(worker string) stategraph.Outcome {
		ctx.Logger().Info("supervisor delegating", slog.String("worker", worker))
		return stategraph.Goto(worker).With(stategraph.Updates{
			"messages": "supervisor: Successfully transferred to " + worker,
		})
	}

	switch {
	case !s.Has("us_gdp") || !s.Has("ny_gdp"):
		return handoff("research_agent"), nil
	case !s.Has("percentage"):
		return handoff("math_agent"), nil
	}

	pct, _ := s.Float("percentage")
	answer := fmt.Sprintf("New York state accounted for %.2f%% of US GDP in 2022.", pct)
	return stategraph.Goto(stategraph.END).With(stategraph.Updates{
		"answer":   answer,
		"messages": "supervisor: " + answer,
	}), nil
}

// buildResearchWorker returns a worker that looks up GDP figures and hands
// control back to the supervisor with a parent-scoped command.
func buildResearchWorker() (*stategraph.CompiledGraph, error) {
	schema := stategraph.NewSchema().
		Field("query", stategraph.TypeString).
		Append("messages", stategraph.TypeString).
		Field("us_gdp", stategraph.TypeFloat).
		Field("ny_gdp", stategraph.TypeFloat)

	return stategraph.NewGraph(schema).
		AddNode("search", searchGDP).
		AddNode("handoff", func(_ stategraph.Context, s stategraph.State) (stategraph.Outcome, error) {
			us, _ := s.Float("us_gdp")
			ny, _ := s.Float("ny_gdp")
			return stategraph.Goto("supervisor").ToParent().With(stategraph.Updates{
				"messages": fmt.Sprintf("research_agent: US GDP 2022 was $%.2fT, New York state $%.2fT", us, ny),
			}), nil
		}).
		AddEdge("search", "handoff").
		AddEdge("handoff", stategraph.END).
		SetEntry("search").
		Compile()
}

func searchGDP(ctx stategraph.Context, s stategraph.State) (stategraph.Outcome, error) {
	query, _ := s.String("query")
	ctx.Logger().Info("research_agent searching", slog.String("query", query))
	return stategraph.Updates{
		"us_gdp": gdp2022["us"],
		"ny_gdp": gdp2022["new_york"],
	}, nil
}

// buildMathWorker returns a worker that divides the figures and returns
// through its host edge.
func buildMathWorker() (*stategraph.CompiledGraph, error) {
	schema := stategraph.NewSchema().
		Append("messages", stategraph.TypeString).
		Field("us_gdp", stategraph.TypeFloat).
		Field("ny_gdp", stategraph.TypeFloat).
		Field("percentage", stategraph.TypeFloat)

	return stategraph.NewGraph(schema).
		AddNode("divide", func(_ stategraph.Context, s stategraph.State) (stategraph.Outcome, error) {
			us, _ := s.Float("us_gdp")
			ny, _ := s.Float("ny_gdp")
			if us == 0 {
				return nil, fmt.Errorf("divide: US GDP is zero")
			}
			pct := round2(ny / us * 100)
			return stategraph.Updates{
				"percentage": pct,
				"messages":   fmt.Sprintf("math_agent: %.2f / %.2f = %.2f%%", ny, us, pct),
			}, nil
		}).
		AddEdge("divide", stategraph.END).
		SetEntry("divide").
		Compile()
}
