/*
Package config provides type-safe configuration extraction from map[string]any.

Config wraps a map and offers typed accessors that return a default when a
key is missing or holds the wrong type. It backs run options and initial
state loaded from YAML or JSON files:

	# run.yaml
	max_steps: 40
	max_concurrency: 4
	node_timeout: 2s
	state:
	  text: hello

	cfg, err := config.FromFile("run.yaml")
	if err != nil {
	    return err
	}
	maxSteps := cfg.Int("max_steps", 25)
	state := cfg.Sub("state").Raw()

# Type Coercion

Duration accepts duration strings ("30s", "1h30m"), numbers (seconds) and
time.Duration values. Int accepts floats only without a fractional part.

# Environment

FromEnv turns prefixed environment variables into a Config, which can be
laid over a file config with Merge:

	cfg = cfg.Merge(config.FromEnv("STATEGRAPH_", os.Environ()))

Config is safe for concurrent read access.
*/
package config
