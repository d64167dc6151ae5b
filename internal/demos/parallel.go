package demos

import (
	"strings"
	"time"

	"github.com/randalmurphal/stategraph/pkg/stategraph"
)

func init() {
	Register(Demo{
		Name:        "parallel",
		Description: "Spam, urgency and category checks fan out from one ticket and join",
		MaxSteps:    5,
		Build:       buildParallel,
		Inputs: []map[string]any{{
			"text": "Hi team, my account was charged twice for the same invoice and I " +
				"need a refund as soon as possible. This is urgent because my card " +
				"is almost at the limit.",
		}},
		Report: reportFields("is_spam", "urgency", "category",
			"spam_time", "urgency_time", "category_time"),
	})
}

func buildParallel() (*stategraph.CompiledGraph, error) {
	schema := stategraph.NewSchema().
		Field("text", stategraph.TypeString).
		Field("is_spam", stategraph.TypeBool).
		Field("urgency", stategraph.TypeString).
		Field("category", stategraph.TypeString).
		Field("spam_time", stategraph.TypeFloat).
		Field("urgency_time", stategraph.TypeFloat).
		Field("category_time", stategraph.TypeFloat)

	return stategraph.NewGraph(schema).
		AddNode("branch", passThrough).
		AddNode("spam", detectSpam).
		AddNode("urgency", ticketUrgency).
		AddNode("category", ticketCategory).
		AddNode("join", passThrough).
		AddEdge("branch", "spam").
		AddEdge("branch", "urgency").
		AddEdge("branch", "category").
		AddJoin("join", "spam", "urgency", "category").
		AddEdge("join", stategraph.END).
		SetEntry("branch").
		Compile()
}

func passThrough(stategraph.Context, stategraph.State) (stategraph.Outcome, error) {
	return nil, nil
}

func detectSpam(_ stategraph.Context, s stategraph.State) (stategraph.Outcome, error) {
	start := time.Now()
	text, _ := s.String("text")
	return stategraph.Updates{
		"is_spam":   containsAny(strings.ToLower(text), "win money", "free gift", "click here", "lottery"),
		"spam_time": time.Since(start).Seconds(),
	}, nil
}

func ticketUrgency(_ stategraph.Context, s stategraph.State) (stategraph.Outcome, error) {
	start := time.Now()
	text, _ := s.String("text")
	text = strings.ToLower(text)

	urgency := "low"
	switch {
	case containsAny(text, "down", "cannot login", "urgent", "immediately"):
		urgency = "high"
	case containsAny(text, "soon", "asap", "issue"):
		urgency = "medium"
	}
	return stategraph.Updates{
		"urgency":      urgency,
		"urgency_time": time.Since(start).Seconds(),
	}, nil
}

func ticketCategory(_ stategraph.Context, s stategraph.State) (stategraph.Outcome, error) {
	start := time.Now()
	text, _ := s.String("text")
	return stategraph.Updates{
		"category":      categorize(strings.ToLower(text)),
		"category_time": time.Since(start).Seconds(),
	}, nil
}

func categorize(text string) string {
	switch {
	case containsAny(text, "invoice", "payment", "charged", "refund"):
		return "billing"
	case containsAny(text, "password", "login", "2fa", "bug", "error"):
		return "technical"
	case containsAny(text, "account", "profile", "username"):
		return "account"
	default:
		return "other"
	}
}
