package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/stategraph/pkg/stategraph"
)

// execute runs the CLI with args and an empty environment.
func execute(t *testing.T, env []string, args ...string) (string, error) {
	t.Helper()
	old := environ
	environ = func() []string { return env }
	t.Cleanup(func() { environ = old })

	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--env-file", ""}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestDemoList(t *testing.T) {
	out, err := execute(t, nil, "demo", "list")

	require.NoError(t, err)
	for _, name := range []string{"aggregator", "hierarchical", "loop", "network", "parallel", "router", "sequential", "supervisor"} {
		assert.Contains(t, out, name)
	}
}

func TestDemoRun(t *testing.T) {
	out, err := execute(t, nil, "demo", "run", "hierarchical")

	require.NoError(t, err)
	assert.Contains(t, out, "--- hierarchical #1 ---")
	assert.Contains(t, out, " -> Boss -> Verification -> Risk")
	assert.Contains(t, out, "--- hierarchical #2 ---")
}

func TestDemoRun_JSON(t *testing.T) {
	out, err := execute(t, nil, "demo", "run", "loop", "--json")
	require.NoError(t, err)

	var state map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &state))
	assert.Equal(t, 3.0, state["iterations"])
	assert.Equal(t, true, state["passed"])
}

func TestDemoRun_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		env     []string
		args    []string
		wantErr error
		wantMsg string
	}{
		{
			name:    "unknown demo",
			args:    []string{"demo", "run", "nope"},
			wantMsg: `unknown demo "nope"`,
		},
		{
			name:    "step limit flag",
			args:    []string{"demo", "run", "loop", "--max-steps", "2"},
			wantErr: stategraph.ErrStepLimitExceeded,
		},
		{
			name:    "step limit from env",
			env:     []string{"STATEGRAPH_MAX_STEPS=2"},
			args:    []string{"demo", "run", "loop"},
			wantErr: stategraph.ErrStepLimitExceeded,
		},
		{
			name:    "bad log format",
			args:    []string{"demo", "run", "loop", "--log-format", "xml"},
			wantMsg: "unsupported log format",
		},
		{
			name:    "missing config",
			args:    []string{"demo", "run", "loop", "--config", filepath.Join(t.TempDir(), "missing.yaml")},
			wantMsg: "read config file",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := execute(t, tc.env, tc.args...)
			require.Error(t, err)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			}
			if tc.wantMsg != "" {
				assert.Contains(t, err.Error(), tc.wantMsg)
			}
		})
	}
}

func TestDemoRun_FlagOverridesEnv(t *testing.T) {
	_, err := execute(t, []string{"STATEGRAPH_MAX_STEPS=2"}, "demo", "run", "loop", "--max-steps", "20")
	assert.NoError(t, err)
}

func TestDemoRun_ConfigStateOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
max_steps: 30
max_concurrency: 2
state:
  max_iterations: 2
`), 0o644))

	out, err := execute(t, nil, "demo", "run", "loop", "--config", path, "--json")
	require.NoError(t, err)

	var state map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &state))
	assert.Equal(t, 2.0, state["iterations"])
	assert.Equal(t, false, state["passed"])
}

func TestDemoRun_Metrics(t *testing.T) {
	out, err := execute(t, nil, "demo", "run", "router", "--metrics")

	require.NoError(t, err)
	assert.Contains(t, out, "metrics:")
	assert.Contains(t, out, "stategraph.run.count")
	assert.Contains(t, out, "stategraph.node.executions")
}

func TestJournalCommands(t *testing.T) {
	db := filepath.Join(t.TempDir(), "steps.db")

	_, err := execute(t, nil, "demo", "run", "sequential", "--journal", db)
	require.NoError(t, err)

	out, err := execute(t, nil, "journal", "runs", "--db", db)
	require.NoError(t, err)
	runs := strings.Fields(out)
	require.Len(t, runs, 1)

	out, err = execute(t, nil, "journal", "show", runs[0], "--db", db)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "preprocess")
	assert.Contains(t, lines[2], "terminated")

	_, err = execute(t, nil, "journal", "show", "missing", "--db", db)
	assert.Error(t, err)
}

func TestJournalCommands_OneRunPerInput(t *testing.T) {
	db := filepath.Join(t.TempDir(), "steps.db")

	_, err := execute(t, nil, "demo", "run", "network", "--journal", db)
	require.NoError(t, err)

	out, err := execute(t, nil, "journal", "runs", "--db", db)
	require.NoError(t, err)
	runs := strings.Fields(out)
	require.Len(t, runs, 3)
	for _, id := range runs {
		_, err := execute(t, nil, "journal", "show", id, "--db", db)
		assert.NoError(t, err)
	}
}

func TestDemoGraph(t *testing.T) {
	out, err := execute(t, nil, "demo", "graph", "hierarchical")

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "graph TD\n"))
	assert.Contains(t, out, "boss -.-> verification")
	assert.Contains(t, out, "risk -.-> __end__")
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, loadEnvFile(filepath.Join(dir, "missing.env")))
	assert.NoError(t, loadEnvFile(""))

	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("STATEGRAPH_TEST_ENV_FILE=loaded\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("STATEGRAPH_TEST_ENV_FILE") })

	require.NoError(t, loadEnvFile(path))
	assert.Equal(t, "loaded", os.Getenv("STATEGRAPH_TEST_ENV_FILE"))
}

func TestOverlayInputs(t *testing.T) {
	inputs := []map[string]any{{"a": 1}, nil}

	out := overlayInputs(inputs, map[string]any{"b": 2})

	assert.Equal(t, []map[string]any{{"a": 1, "b": 2}, {"b": 2}}, out)
	assert.NotContains(t, inputs[0], "b")
}
