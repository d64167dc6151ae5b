package demos

import (
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/randalmurphal/stategraph/pkg/stategraph"
	"github.com/randalmurphal/stategraph/pkg/stategraph/supervise"
)

var (
	errDeskBusy       = errors.New("refund desk busy")
	errNotAutomatable = errors.New("ticket cannot be auto-resolved")
)

// requiredInfo is what the simulated customer replies with.
const requiredInfo = " Account ID: 12345"

var refundRetryPolicy = supervise.Policy{
	MaxAttempts:    3,
	InitialBackoff: 5 * time.Millisecond,
	MaxBackoff:     20 * time.Millisecond,
	Multiplier:     2,
}

func init() {
	Register(Demo{
		Name:        "network",
		Description: "Intake, info, auto-resolve and escalate agents route tickets between each other",
		MaxSteps:    10,
		Build:       buildNetwork,
		Inputs: []map[string]any{
			{"text": "Hi, I was charged twice on my invoice but I did not include my account id.", "history": ""},
			{"text": "Please refund the second charge on my invoice.", "history": ""},
			{"text": "The app shows an error on login. My order id is 77.", "history": ""},
		},
		Report: reportFields("category", "has_required_info", "auto_resolved", "escalated", "history", "last_error"),
	})
}

// refundDesk simulates a flaky refund service: every other call is
// rejected as busy.
type refundDesk struct {
	calls atomic.Int64
}

func (d *refundDesk) refund() error {
	if d.calls.Add(1)%2 == 1 {
		return errDeskBusy
	}
	return nil
}

func buildNetwork() (*stategraph.CompiledGraph, error) {
	schema := stategraph.NewSchema().
		Field("text", stategraph.TypeString).
		Field("category", stategraph.TypeString).
		Field("has_required_info", stategraph.TypeBool).
		Field("auto_resolved", stategraph.TypeBool).
		Field("escalated", stategraph.TypeBool).
		Field("history", stategraph.TypeString).
		Field("last_error", stategraph.TypeString)

	desk := &refundDesk{}
	auto := supervise.Supervise(
		supervise.Retry(autoResolve(desk), refundRetryPolicy),
		supervise.Escalate("escalate", "last_error"))

	return stategraph.NewGraph(schema).
		AddNode("intake", intake).
		AddNode("info", requestInfo).
		AddNode("auto", auto, stategraph.WithDestinations("escalate")).
		AddNode("escalate", escalate).
		AddConditionalEdge("intake", intakeNext, nil).
		AddEdge("info", "intake").
		AddConditionalEdge("auto",
			stategraph.When(func(s stategraph.State) bool {
				resolved, _ := s.Bool("auto_resolved")
				return resolved
			}),
			map[string]string{stategraph.LabelTrue: stategraph.END, stategraph.LabelFalse: "escalate"}).
		AddEdge("escalate", stategraph.END).
		SetEntry("intake").
		Compile()
}

func appendHistory(s stategraph.State, entry string) string {
	h, _ := s.String("history")
	return h + " -> " + entry
}

func intake(ctx stategraph.Context, s stategraph.State) (stategraph.Outcome, error) {
	text, _ := s.String("text")
	text = strings.ToLower(text)

	category := "other"
	switch {
	case containsAny(text, "invoice", "refund", "charged"):
		category = "billing"
	case containsAny(text, "error", "bug", "crash", "login"):
		category = "technical"
	}
	hasInfo := containsAny(text, "account id", "order id")

	ctx.Logger().Info("intake classified ticket",
		slog.String("category", category),
		slog.Bool("has_required_info", hasInfo),
	)
	return stategraph.Updates{
		"category":          category,
		"has_required_info": hasInfo,
		"history":           appendHistory(s, "intake"),
	}, nil
}

func intakeNext(_ stategraph.Context, s stategraph.State) string {
	if ok, _ := s.Bool("has_required_info"); !ok {
		return "info"
	}
	if category, _ := s.String("category"); category == "billing" {
		return "auto"
	}
	return "escalate"
}

func requestInfo(ctx stategraph.Context, s stategraph.State) (stategraph.Outcome, error) {
	ctx.Logger().Info("info requesting details from customer")
	text, _ := s.String("text")
	return stategraph.Updates{
		"text":              text + requiredInfo,
		"has_required_info": true,
		"history":           appendHistory(s, "info"),
	}, nil
}

func autoResolve(desk *refundDesk) stategraph.NodeFunc {
	return func(ctx stategraph.Context, s stategraph.State) (stategraph.Outcome, error) {
		if category, _ := s.String("category"); category != "billing" {
			return nil, supervise.Permanent(errNotAutomatable)
		}
		if err := desk.refund(); err != nil {
			return nil, err
		}
		ctx.Logger().Info("auto resolved billing ticket")
		return stategraph.Updates{
			"auto_resolved": true,
			"history":       appendHistory(s, "auto"),
		}, nil
	}
}

func escalate(ctx stategraph.Context, s stategraph.State) (stategraph.Outcome, error) {
	ctx.Logger().Info("ticket sent to human support")
	return stategraph.Updates{
		"escalated": true,
		"history":   appendHistory(s, "escalate"),
	}, nil
}
