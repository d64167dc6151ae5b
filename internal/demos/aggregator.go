package demos

import (
	"fmt"
	"hash/fnv"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/randalmurphal/stategraph/pkg/stategraph"
)

// collectDelay scales the simulated collection latency.
var collectDelay = 10 * time.Millisecond

type socialSource struct {
	name  string
	text  string
	delay int
}

var socialSources = []socialSource{
	{name: "twitter", text: "Twitter buzz about product launch.", delay: 5},
	{name: "instagram", text: "Instagram comments praising visuals.", delay: 7},
	{name: "reddit", text: "Reddit users debating performance issues.", delay: 9},
}

func init() {
	Register(Demo{
		Name:        "aggregator",
		Description: "Collect and score three social feeds in parallel, then aggregate a report",
		MaxSteps:    6,
		Build:       buildAggregator,
		Inputs:      []map[string]any{{}},
		Report: func(w io.Writer, s stategraph.State) {
			report, _ := s.String("report")
			fmt.Fprint(w, report)
		},
	})
}

func buildAggregator() (*stategraph.CompiledGraph, error) {
	schema := stategraph.NewSchema().Field("report", stategraph.TypeString)
	for _, src := range socialSources {
		schema.Field(src.name+"_text", stategraph.TypeString).
			Field(src.name+"_sentiment", stategraph.TypeFloat)
	}

	g := stategraph.NewGraph(schema).AddNode("branch", passThrough)
	analyzers := make([]string, 0, len(socialSources))
	for _, src := range socialSources {
		collect, analyze := "collect_"+src.name, "analyze_"+src.name
		g.AddNode(collect, collectFeed(src)).
			AddNode(analyze, analyzeFeed(src.name)).
			AddEdge("branch", collect).
			AddEdge(collect, analyze)
		analyzers = append(analyzers, analyze)
	}

	return g.AddNode("aggregate", aggregateSentiment).
		AddJoin("aggregate", analyzers...).
		AddEdge("aggregate", stategraph.END).
		SetEntry("branch").
		Compile()
}

func collectFeed(src socialSource) stategraph.NodeFunc {
	return func(ctx stategraph.Context, _ stategraph.State) (stategraph.Outcome, error) {
		select {
		case <-time.After(time.Duration(src.delay) * collectDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		ctx.Logger().Info("collected feed", slog.String("source", src.name))
		return stategraph.Updates{src.name + "_text": src.text}, nil
	}
}

func analyzeFeed(source string) stategraph.NodeFunc {
	return func(ctx stategraph.Context, s stategraph.State) (stategraph.Outcome, error) {
		text, _ := s.String(source + "_text")
		score := sentimentScore(text)
		ctx.Logger().Info("analyzed sentiment",
			slog.String("source", source),
			slog.Float64("score", score),
		)
		return stategraph.Updates{source + "_sentiment": score}, nil
	}
}

// sentimentScore maps text to a stable pseudo score in [-1, 1].
func sentimentScore(text string) float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(text))
	return round2(float64(h.Sum32()%201)/100 - 1)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func aggregateSentiment(ctx stategraph.Context, s stategraph.State) (stategraph.Outcome, error) {
	var total float64
	scores := make([]float64, len(socialSources))
	for i, src := range socialSources {
		scores[i], _ = s.Float(src.name + "_sentiment")
		total += scores[i]
	}

	report := fmt.Sprintf("Overall sentiment: %v\n", round2(total/float64(len(socialSources))))
	for i, src := range socialSources {
		report += fmt.Sprintf("- %s: %v\n", src.name, scores[i])
	}
	ctx.Logger().Info("aggregated results")
	return stategraph.Updates{"report": report}, nil
}
