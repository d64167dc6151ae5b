package demos

import (
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/randalmurphal/stategraph/pkg/stategraph"
)

var commandPrefixes = []string{"summarize", "translate", "sentiment"}

var sentenceEnd = regexp.MustCompile(`[.!?] +`)

func init() {
	Register(Demo{
		Name:        "router",
		Description: "Route a prefixed command to the summarize, translate, sentiment or fallback handler",
		MaxSteps:    3,
		Build:       buildRouter,
		Inputs: []map[string]any{
			{"text": "summarize: The new park in the city is a wonderful addition. Families love it."},
			{"text": "translate: The system is running smoothly today."},
			{"text": "sentiment: I hate how slow this app is on my phone."},
			{"text": "hello, what is this?"},
		},
		Report: func(w io.Writer, s stategraph.State) {
			text, _ := s.String("text")
			task, _ := s.String("task")
			result, _ := s.String("result")
			fmt.Fprintf(w, "Input : %s\nTask  : %s\nResult: %s\n", text, task, result)
		},
	})
}

func buildRouter() (*stategraph.CompiledGraph, error) {
	schema := stategraph.NewSchema().
		Field("text", stategraph.TypeString).
		Field("task", stategraph.TypeString).
		Field("content", stategraph.TypeString).
		Field("result", stategraph.TypeString)

	return stategraph.NewGraph(schema).
		AddNode("router", parseCommand).
		AddNode("summarize", summarize).
		AddNode("translate", translate).
		AddNode("sentiment", sentiment).
		AddNode("fallback", unknownCommand).
		AddConditionalEdge("router", stategraph.FieldLabel("task"), map[string]string{
			"summarize": "summarize",
			"translate": "translate",
			"sentiment": "sentiment",
			"unknown":   "fallback",
		}).
		AddEdge("summarize", stategraph.END).
		AddEdge("translate", stategraph.END).
		AddEdge("sentiment", stategraph.END).
		AddEdge("fallback", stategraph.END).
		SetEntry("router").
		Compile()
}

func parseCommand(ctx stategraph.Context, s stategraph.State) (stategraph.Outcome, error) {
	raw, _ := s.String("text")
	raw = strings.TrimSpace(raw)
	lower := strings.ToLower(raw)

	task, content := "unknown", raw
	for _, p := range commandPrefixes {
		if strings.HasPrefix(lower, p+":") {
			task = p
			content = strings.TrimSpace(raw[len(p)+1:])
			break
		}
	}
	ctx.Logger().Info("router decided task", slog.String("task", task))
	return stategraph.Updates{"task": task, "content": content}, nil
}

func summarize(_ stategraph.Context, s stategraph.State) (stategraph.Outcome, error) {
	text, _ := s.String("content")
	summary := text
	if loc := sentenceEnd.FindStringIndex(text); loc != nil {
		summary = text[:loc[0]+1]
	}
	return stategraph.Updates{"result": "Summary: " + summary}, nil
}

func translate(_ stategraph.Context, s stategraph.State) (stategraph.Outcome, error) {
	text, _ := s.String("content")
	return stategraph.Updates{"result": "Traducción simulada al español: " + text}, nil
}

func sentiment(_ stategraph.Context, s stategraph.State) (stategraph.Outcome, error) {
	text, _ := s.String("content")
	text = strings.ToLower(text)

	label := "Neutral"
	switch {
	case containsAny(text, "love", "great", "awesome", "good"):
		label = "Positive"
	case containsAny(text, "hate", "terrible", "bad", "awful", "slow"):
		label = "Negative"
	}
	return stategraph.Updates{"result": "Sentiment: " + label}, nil
}

func unknownCommand(stategraph.Context, stategraph.State) (stategraph.Outcome, error) {
	return stategraph.Updates{
		"result": `Unknown command. Use one of: "summarize:", "translate:", "sentiment:".`,
	}, nil
}
