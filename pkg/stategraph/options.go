package stategraph

import (
	"time"

	"github.com/randalmurphal/stategraph/pkg/stategraph/config"
	"github.com/randalmurphal/stategraph/pkg/stategraph/journal"
	"github.com/randalmurphal/stategraph/pkg/stategraph/observability"
)

// Options configures one invocation. It is an immutable value: Invoke
// reads it and never changes it, so one Options can serve many runs.
//
// MaxSteps is required. Build Options with NewOptions or OptionsFromConfig:
//
//	opts := stategraph.NewOptions(25,
//	    stategraph.WithMaxConcurrency(4),
//	    stategraph.WithNodeTimeout(30*time.Second))
type Options struct {
	// MaxSteps bounds the number of supersteps. Required.
	MaxSteps int
	// MaxConcurrency limits how many frontier members run at once.
	// 0 means unbounded.
	MaxConcurrency int
	// NodeTimeout is the default limit for each node execution. 0 means none.
	NodeTimeout time.Duration
	// RunTimeout is the limit for the whole invocation. 0 means none.
	RunTimeout time.Duration

	// Metrics receives node, step and run measurements. Nil disables metrics.
	Metrics observability.MetricsRecorder
	// Spans creates run, step and node spans. Nil disables tracing.
	Spans observability.SpanManager
	// Journal receives one record per step. Nil disables the journal.
	Journal journal.Store
}

// Option adjusts Options during NewOptions.
type Option func(*Options)

// NewOptions creates Options with the given step bound.
func NewOptions(maxSteps int, opts ...Option) Options {
	o := Options{MaxSteps: maxSteps}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithMaxConcurrency bounds parallel node execution within a step.
func WithMaxConcurrency(n int) Option {
	return func(o *Options) {
		if n >= 0 {
			o.MaxConcurrency = n
		}
	}
}

// WithNodeTimeout sets the default per-node timeout. Like WithTimeout, it
// only takes effect when the node watches its Context.
func WithNodeTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d >= 0 {
			o.NodeTimeout = d
		}
	}
}

// WithRunTimeout sets the timeout for the whole invocation. The step in
// flight is still awaited, so a node that ignores its Context delays the
// error until it returns.
func WithRunTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d >= 0 {
			o.RunTimeout = d
		}
	}
}

// WithMetrics enables metrics collection.
//
//	opts := stategraph.NewOptions(25,
//	    stategraph.WithMetrics(observability.NewMetricsRecorder()))
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(o *Options) {
		o.Metrics = m
	}
}

// WithTracing enables span creation.
func WithTracing(s observability.SpanManager) Option {
	return func(o *Options) {
		o.Spans = s
	}
}

// WithJournal records one entry per step into store.
func WithJournal(store journal.Store) Option {
	return func(o *Options) {
		o.Journal = store
	}
}

// OptionsFromConfig reads run settings from a config section:
//
//	max_steps: 40        # required unless defaultMaxSteps > 0
//	max_concurrency: 4
//	node_timeout: 30s
//	run_timeout: 5m
//
// Extra options are applied after the config values.
func OptionsFromConfig(cfg config.Config, defaultMaxSteps int, opts ...Option) Options {
	o := Options{
		MaxSteps:       cfg.Int("max_steps", defaultMaxSteps),
		MaxConcurrency: cfg.Int("max_concurrency", 0),
		NodeTimeout:    cfg.Duration("node_timeout", 0),
		RunTimeout:     cfg.Duration("run_timeout", 0),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// resolved fills the ambient hooks with no-ops so the scheduler can call
// them unconditionally.
func (o Options) resolved() Options {
	if o.Metrics == nil {
		o.Metrics = observability.NoopMetrics{}
	}
	if o.Spans == nil {
		o.Spans = observability.NoopSpanManager{}
	}
	return o
}
