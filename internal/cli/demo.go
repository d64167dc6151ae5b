package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/stategraph/internal/demos"
	"github.com/randalmurphal/stategraph/pkg/stategraph"
	"github.com/randalmurphal/stategraph/pkg/stategraph/config"
	"github.com/randalmurphal/stategraph/pkg/stategraph/journal"
)

type demoFlags struct {
	*rootFlags

	configPath     string
	maxSteps       int
	maxConcurrency int
	nodeTimeout    time.Duration
	runTimeout     time.Duration
	journalPath    string
	otlpEndpoint   string
	metrics        bool
	jsonOutput     bool
}

func newDemoCmd(root *rootFlags) *cobra.Command {
	flags := &demoFlags{rootFlags: root}

	demoCmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the bundled example graphs",
	}

	runCmd := &cobra.Command{
		Use:   "run <name>",
		Short: "Run a demo graph and print its final state",
		Long: `Run a demo graph and print its final state.

Run settings come from, in increasing precedence: the demo's defaults, the
--config file, STATEGRAPH_* environment variables and explicit flags.
A "state" section in the config file is laid over each demo input.

Examples:
  stategraph demo run loop
  stategraph demo run parallel --max-concurrency 1 --metrics
  stategraph demo run network --journal steps.db --log-level info
  stategraph demo run supervisor --otlp-endpoint 127.0.0.1:4318`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(cmd, flags, args[0])
		},
	}

	f := runCmd.Flags()
	f.StringVar(&flags.configPath, "config", "", "Run settings file (.yaml, .yml or .json)")
	f.IntVar(&flags.maxSteps, "max-steps", 0, "Maximum number of supersteps")
	f.IntVar(&flags.maxConcurrency, "max-concurrency", 0, "Maximum nodes executing at once (0 = unbounded)")
	f.DurationVar(&flags.nodeTimeout, "node-timeout", 0, "Per-node timeout, e.g. 5s")
	f.DurationVar(&flags.runTimeout, "run-timeout", 0, "Whole-run timeout, e.g. 1m")
	f.StringVar(&flags.journalPath, "journal", "", "SQLite file to journal steps into")
	f.StringVar(&flags.otlpEndpoint, "otlp-endpoint", "", "OTLP/HTTP trace endpoint (host:port or URL)")
	f.BoolVar(&flags.metrics, "metrics", false, "Print a metrics summary after the runs")
	f.BoolVar(&flags.jsonOutput, "json", false, "Print final states as JSON")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the available demos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, d := range demos.All() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-14s %s\n", d.Name, d.Description)
			}
			return nil
		},
	}

	graphCmd := &cobra.Command{
		Use:   "graph <name>",
		Short: "Print a demo graph as a Mermaid flowchart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := lookupDemo(args[0])
			if err != nil {
				return err
			}
			compiled, err := d.Build()
			if err != nil {
				return fmt.Errorf("build %s: %w", d.Name, err)
			}
			fmt.Fprint(cmd.OutOrStdout(), compiled.Mermaid())
			return nil
		},
	}

	demoCmd.AddCommand(runCmd, listCmd, graphCmd)
	return demoCmd
}

func lookupDemo(name string) (demos.Demo, error) {
	d, ok := demos.Lookup(name)
	if !ok {
		return demos.Demo{}, fmt.Errorf("unknown demo %q (see 'stategraph demo list')", name)
	}
	return d, nil
}

func runDemo(cmd *cobra.Command, flags *demoFlags, name string) error {
	d, err := lookupDemo(name)
	if err != nil {
		return err
	}

	logger, err := flags.logger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	cfg, err := flags.loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	tel, extra, err := setupTelemetry(ctx, flags.otlpEndpoint, flags.metrics)
	if err != nil {
		return err
	}
	defer func() {
		if err := tel.shutdown(context.Background()); err != nil {
			logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	if flags.journalPath != "" {
		store, err := journal.NewSQLiteStore(flags.journalPath)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer store.Close()
		extra = append(extra, stategraph.WithJournal(store))
	}

	opts := stategraph.OptionsFromConfig(cfg, 0, extra...)
	if cmd.Flags().Changed("max-steps") {
		opts.MaxSteps = flags.maxSteps
	}
	if cmd.Flags().Changed("max-concurrency") {
		opts.MaxConcurrency = flags.maxConcurrency
	}
	if cmd.Flags().Changed("node-timeout") {
		opts.NodeTimeout = flags.nodeTimeout
	}
	if cmd.Flags().Changed("run-timeout") {
		opts.RunTimeout = flags.runTimeout
	}

	if state := cfg.Sub("state"); len(state.Keys()) > 0 {
		d.Inputs = overlayInputs(d.Inputs, state.Raw())
	}

	runCtx := stategraph.NewContext(ctx, stategraph.WithLogger(logger))
	results, err := d.Run(runCtx, opts)

	out := cmd.OutOrStdout()
	for i, r := range results {
		if err := printResult(out, d, i, r.Final, flags.jsonOutput); err != nil {
			return err
		}
	}
	if err != nil {
		return err
	}
	return tel.printMetrics(ctx, out)
}

// loadConfig merges the config file with STATEGRAPH_* variables.
func (f *demoFlags) loadConfig() (config.Config, error) {
	cfg := config.New(nil)
	if f.configPath != "" {
		fileCfg, err := config.FromFile(f.configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = fileCfg
	}
	return cfg.Merge(config.FromEnv(EnvPrefix, environ())), nil
}

// overlayInputs returns copies of inputs with state laid over each one.
func overlayInputs(inputs []map[string]any, state map[string]any) []map[string]any {
	out := make([]map[string]any, len(inputs))
	for i, in := range inputs {
		merged := maps.Clone(in)
		if merged == nil {
			merged = make(map[string]any, len(state))
		}
		maps.Copy(merged, state)
		out[i] = merged
	}
	return out
}

func printResult(w io.Writer, d demos.Demo, i int, final stategraph.State, asJSON bool) error {
	if asJSON {
		data, err := json.MarshalIndent(final.Map(), "", "  ")
		if err != nil {
			return fmt.Errorf("encode state: %w", err)
		}
		fmt.Fprintln(w, string(data))
		return nil
	}
	if len(d.Inputs) > 1 {
		fmt.Fprintf(w, "--- %s #%d ---\n", d.Name, i+1)
	}
	d.Report(w, final)
	return nil
}
