package demos

import (
	"strings"
	"time"

	"github.com/randalmurphal/stategraph/pkg/stategraph"
)

func init() {
	Register(Demo{
		Name:        "sequential",
		Description: "Ticket pipeline: preprocess, classify urgency, pick a queue",
		MaxSteps:    5,
		Build:       buildSequential,
		Inputs: []map[string]any{{
			"text": "Hi team, the system is down for all our users and we cannot login at all. " +
				"Please fix this immediately, it is blocking our work.",
		}},
		Report: reportFields("cleaned_text", "text_length", "urgency", "queue",
			"preprocess_time", "urgency_time", "triage_time"),
	})
}

func buildSequential() (*stategraph.CompiledGraph, error) {
	schema := stategraph.NewSchema().
		Field("text", stategraph.TypeString).
		Field("cleaned_text", stategraph.TypeString).
		Field("text_length", stategraph.TypeInt).
		Field("urgency", stategraph.TypeString).
		Field("queue", stategraph.TypeString).
		Field("preprocess_time", stategraph.TypeFloat).
		Field("urgency_time", stategraph.TypeFloat).
		Field("triage_time", stategraph.TypeFloat)

	return stategraph.NewGraph(schema).
		AddNode("preprocess", preprocessTicket).
		AddNode("urgency", classifyUrgency).
		AddNode("triage", triageTicket).
		AddEdge("preprocess", "urgency").
		AddEdge("urgency", "triage").
		AddEdge("triage", stategraph.END).
		SetEntry("preprocess").
		Compile()
}

func preprocessTicket(_ stategraph.Context, s stategraph.State) (stategraph.Outcome, error) {
	start := time.Now()
	raw, _ := s.String("text")
	cleaned := strings.Join(strings.Fields(raw), " ")
	return stategraph.Updates{
		"cleaned_text":    strings.ToLower(cleaned),
		"text_length":     len(cleaned),
		"preprocess_time": time.Since(start).Seconds(),
	}, nil
}

func classifyUrgency(_ stategraph.Context, s stategraph.State) (stategraph.Outcome, error) {
	start := time.Now()
	text, _ := s.String("cleaned_text")

	urgency := "low"
	switch {
	case containsAny(text, "system is down", "cannot login", "urgent", "immediately"):
		urgency = "high"
	case containsAny(text, "soon", "asap", "issue", "problem"):
		urgency = "medium"
	}
	return stategraph.Updates{
		"urgency":      urgency,
		"urgency_time": time.Since(start).Seconds(),
	}, nil
}

func triageTicket(_ stategraph.Context, s stategraph.State) (stategraph.Outcome, error) {
	start := time.Now()
	urgency, _ := s.String("urgency")
	return stategraph.Updates{
		"queue":       queueFor(urgency),
		"triage_time": time.Since(start).Seconds(),
	}, nil
}

func queueFor(urgency string) string {
	switch urgency {
	case "high":
		return "priority_queue"
	case "medium":
		return "standard_queue"
	default:
		return "backlog"
	}
}
