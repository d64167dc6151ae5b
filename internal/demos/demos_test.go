package demos

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/randalmurphal/stategraph/pkg/stategraph"
	"github.com/randalmurphal/stategraph/pkg/stategraph/journal"
	"github.com/randalmurphal/stategraph/pkg/stategraph/supervise"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCtx() stategraph.Context {
	return stategraph.NewContext(context.Background(),
		stategraph.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func runDemo(t *testing.T, name string) []Result {
	t.Helper()
	d, ok := Lookup(name)
	require.True(t, ok, "demo %q not registered", name)

	results, err := d.Run(testCtx(), stategraph.NewOptions(0))
	require.NoError(t, err)
	require.Len(t, results, len(d.Inputs))

	var buf bytes.Buffer
	for _, r := range results {
		d.Report(&buf, r.Final)
	}
	assert.NotEmpty(t, buf.String())
	return results
}

func str(s stategraph.State, field string) string {
	v, _ := s.String(field)
	return v
}

func boolean(s stategraph.State, field string) bool {
	v, _ := s.Bool(field)
	return v
}

func TestRegistry(t *testing.T) {
	names := make([]string, 0)
	for _, d := range All() {
		names = append(names, d.Name)
		assert.NotEmpty(t, d.Description)
		assert.Positive(t, d.MaxSteps)
	}
	assert.Equal(t, []string{
		"aggregator", "hierarchical", "loop", "network",
		"parallel", "router", "sequential", "supervisor",
	}, names)

	_, ok := Lookup("missing")
	assert.False(t, ok)
}

func TestDemosCompile(t *testing.T) {
	for _, d := range All() {
		t.Run(d.Name, func(t *testing.T) {
			_, err := d.Build()
			require.NoError(t, err)
		})
	}
}

func TestSequential(t *testing.T) {
	final := runDemo(t, "sequential")[0].Final

	assert.Equal(t, "high", str(final, "urgency"))
	assert.Equal(t, "priority_queue", str(final, "queue"))
	cleaned := str(final, "cleaned_text")
	assert.Equal(t, strings.ToLower(cleaned), cleaned)
	n, _ := final.Int("text_length")
	assert.Equal(t, len(cleaned), n)
}

func TestQueueFor(t *testing.T) {
	testCases := []struct {
		urgency string
		want    string
	}{
		{"high", "priority_queue"},
		{"medium", "standard_queue"},
		{"low", "backlog"},
		{"", "backlog"},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, queueFor(tc.urgency), tc.urgency)
	}
}

func TestParallel(t *testing.T) {
	final := runDemo(t, "parallel")[0].Final

	assert.False(t, boolean(final, "is_spam"))
	assert.Equal(t, "high", str(final, "urgency"))
	assert.Equal(t, "billing", str(final, "category"))
	for _, f := range []string{"spam_time", "urgency_time", "category_time"} {
		assert.True(t, final.Has(f), f)
	}
}

func TestCategorize(t *testing.T) {
	testCases := []struct {
		text string
		want string
	}{
		{"please refund me", "billing"},
		{"i forgot my password", "technical"},
		{"change my username", "account"},
		{"hello there", "other"},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, categorize(tc.text), tc.text)
	}
}

func TestAggregator(t *testing.T) {
	old := collectDelay
	collectDelay = time.Millisecond
	t.Cleanup(func() { collectDelay = old })

	final := runDemo(t, "aggregator")[0].Final

	report := str(final, "report")
	assert.True(t, strings.HasPrefix(report, "Overall sentiment: "))
	for _, src := range socialSources {
		assert.Equal(t, src.text, str(final, src.name+"_text"))
		score, ok := final.Float(src.name + "_sentiment")
		require.True(t, ok)
		assert.GreaterOrEqual(t, score, -1.0)
		assert.LessOrEqual(t, score, 1.0)
		assert.Contains(t, report, "- "+src.name+": ")
	}
}

func TestSentimentScore_Stable(t *testing.T) {
	assert.Equal(t, sentimentScore("same text"), sentimentScore("same text"))
}

func TestLoop(t *testing.T) {
	final := runDemo(t, "loop")[0].Final

	n, _ := final.Int("number")
	iter, _ := final.Int("iterations")
	assert.Equal(t, 40, n)
	assert.True(t, boolean(final, "passed"))
	assert.Equal(t, 3, iter)
}

func TestLoop_StopsAtMaxIterations(t *testing.T) {
	compiled, err := buildLoop()
	require.NoError(t, err)

	final, err := compiled.Invoke(testCtx(), stategraph.NewState(map[string]any{
		"passed":         false,
		"iterations":     0,
		"max_iterations": 2,
	}), stategraph.NewOptions(20))

	require.NoError(t, err)
	iter, _ := final.Int("iterations")
	assert.Equal(t, 2, iter)
	assert.False(t, boolean(final, "passed"))
}

func TestRouter(t *testing.T) {
	results := runDemo(t, "router")

	want := []struct {
		task   string
		result string
	}{
		{"summarize", "Summary: The new park in the city is a wonderful addition."},
		{"translate", "Traducción simulada al español: The system is running smoothly today."},
		{"sentiment", "Sentiment: Negative"},
		{"unknown", `Unknown command. Use one of: "summarize:", "translate:", "sentiment:".`},
	}
	for i, w := range want {
		assert.Equal(t, w.task, str(results[i].Final, "task"))
		assert.Equal(t, w.result, str(results[i].Final, "result"))
	}
}

func TestNetwork(t *testing.T) {
	results := runDemo(t, "network")

	first := results[0].Final
	assert.Equal(t, "billing", str(first, "category"))
	assert.True(t, boolean(first, "auto_resolved"))
	assert.False(t, first.Has("escalated"))
	assert.Equal(t, " -> intake -> auto", str(first, "history"))

	second := results[1].Final
	assert.Equal(t, " -> intake -> info -> intake -> auto", str(second, "history"))
	assert.True(t, strings.HasSuffix(str(second, "text"), requiredInfo))

	third := results[2].Final
	assert.Equal(t, "technical", str(third, "category"))
	assert.True(t, boolean(third, "escalated"))
	assert.Equal(t, " -> intake -> escalate", str(third, "history"))
}

func TestNetwork_AutoEscalatesUnresolvable(t *testing.T) {
	node := supervise.Supervise(
		supervise.Retry(autoResolve(&refundDesk{}), refundRetryPolicy),
		supervise.Escalate("escalate", "last_error"))

	out, err := node(testCtx(), stategraph.NewState(map[string]any{"category": "technical"}))

	require.NoError(t, err)
	cmd, ok := out.(*stategraph.Command)
	require.True(t, ok)
	assert.Equal(t, []string{"escalate"}, cmd.Goto)
	assert.Equal(t, "ticket cannot be auto-resolved (attempts: 1)", cmd.Update["last_error"])
}

func TestHierarchical(t *testing.T) {
	results := runDemo(t, "hierarchical")

	small := results[0].Final
	assert.Equal(t, " -> Boss -> Verification -> Risk", str(small, "log"))
	assert.True(t, boolean(small, "documents_ok"))
	assert.True(t, boolean(small, "approved"))
	risk, _ := small.Float("risk_score")
	assert.Equal(t, 0.9, risk)

	large := results[1].Final
	assert.Equal(t, " -> Boss -> Risk", str(large, "log"))
	assert.False(t, boolean(large, "approved"))
	risk, _ = large.Float("risk_score")
	assert.Equal(t, 0.3, risk)
}

func TestSupervisor(t *testing.T) {
	final := runDemo(t, "supervisor")[0].Final

	msgs, ok := final.Strings("messages")
	require.True(t, ok)
	assert.Equal(t, []string{
		"supervisor: Successfully transferred to research_agent",
		"research_agent: US GDP 2022 was $25.46T, New York state $2.05T",
		"supervisor: Successfully transferred to math_agent",
		"math_agent: 2.05 / 25.46 = 8.05%",
		"supervisor: New York state accounted for 8.05% of US GDP in 2022.",
	}, msgs)
	pct, _ := final.Float("percentage")
	assert.Equal(t, 8.05, pct)
	assert.Equal(t, "New York state accounted for 8.05% of US GDP in 2022.", str(final, "answer"))
}

func TestRun_BuildFailure(t *testing.T) {
	d := Demo{
		Name: "broken",
		Build: func() (*stategraph.CompiledGraph, error) {
			return stategraph.NewGraph(stategraph.NewSchema()).Compile()
		},
		Inputs: []map[string]any{{}},
	}

	_, err := d.Run(testCtx(), stategraph.NewOptions(0))
	assert.Error(t, err)
}

func TestRun_JournalsEachInput(t *testing.T) {
	d, ok := Lookup("network")
	require.True(t, ok)
	store := journal.NewMemoryStore()
	ctx := stategraph.NewContext(context.Background(),
		stategraph.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		stategraph.WithRunID("net"))

	_, err := d.Run(ctx, stategraph.NewOptions(0, stategraph.WithJournal(store)))
	require.NoError(t, err)

	runs, err := store.Runs()
	require.NoError(t, err)
	assert.Equal(t, []string{"net-1", "net-2", "net-3"}, runs)

	// intake, info, intake, auto
	records, err := store.List("net-2")
	require.NoError(t, err)
	assert.Len(t, records, 4)
}
