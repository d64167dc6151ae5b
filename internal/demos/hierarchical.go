package demos

import (
	"github.com/randalmurphal/stategraph/pkg/stategraph"
)

// riskThreshold is the loan amount above which a loan is rejected.
const riskThreshold = 100000

func init() {
	Register(Demo{
		Name:        "hierarchical",
		Description: "Boss, verification and risk agents hand a loan down with commands",
		MaxSteps:    5,
		Build:       buildHierarchical,
		Inputs: []map[string]any{
			{"loan_amount": 50000, "documents_ok": false, "log": ""},
			{"loan_amount": 250000, "documents_ok": true, "log": ""},
		},
		Report: reportFields("loan_amount", "documents_ok", "risk_score", "approved", "log"),
	})
}

func buildHierarchical() (*stategraph.CompiledGraph, error) {
	schema := stategraph.NewSchema().
		Field("loan_amount", stategraph.TypeInt).
		Field("documents_ok", stategraph.TypeBool).
		Field("risk_score", stategraph.TypeFloat).
		Field("approved", stategraph.TypeBool).
		Field("log", stategraph.TypeString)

	return stategraph.NewGraph(schema).
		AddNode("boss", boss, stategraph.WithDestinations("verification", "risk")).
		AddNode("verification", verifyDocuments, stategraph.WithDestinations("risk")).
		AddNode("risk", evaluateRisk, stategraph.WithDestinations(stategraph.END)).
		SetEntry("boss").
		Compile()
}

func appendLog(s stategraph.State, entry string) string {
	log, _ := s.String("log")
	return log + " -> " + entry
}

func boss(ctx stategraph.Context, s stategraph.State) (stategraph.Outcome, error) {
	ctx.Logger().Info("boss checking documents")
	next := "risk"
	if ok, _ := s.Bool("documents_ok"); !ok {
		next = "verification"
	}
	return stategraph.Goto(next).With(stategraph.Updates{"log": appendLog(s, "Boss")}), nil
}

func verifyDocuments(ctx stategraph.Context, s stategraph.State) (stategraph.Outcome, error) {
	ctx.Logger().Info("verification validating documents")
	return stategraph.Goto("risk").With(stategraph.Updates{
		"documents_ok": true,
		"log":          appendLog(s, "Verification"),
	}), nil
}

func evaluateRisk(ctx stategraph.Context, s stategraph.State) (stategraph.Outcome, error) {
	ctx.Logger().Info("risk evaluating loan")
	amount, _ := s.Int("loan_amount")

	risk, approved := 0.9, true
	if amount > riskThreshold {
		risk, approved = 0.3, false
	}
	return stategraph.Goto(stategraph.END).With(stategraph.Updates{
		"risk_score": risk,
		"approved":   approved,
		"log":        appendLog(s, "Risk"),
	}), nil
}
