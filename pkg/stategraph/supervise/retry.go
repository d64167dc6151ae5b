// Package supervise wraps nodes with retry and failure handling.
//
// The scheduler never retries: a node error ends the run. Wrapping a node
// moves that decision to the graph author:
//   - Retry re-runs a failing node with exponential backoff
//   - Supervise converts a failure into an ordinary outcome
//
// Both return plain stategraph.NodeFunc values and compose:
//
//	node := supervise.Supervise(
//	    supervise.Retry(callAPI, supervise.DefaultPolicy),
//	    supervise.Escalate("human_review", "last_error"))
package supervise

import (
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/randalmurphal/stategraph/pkg/stategraph"
	"github.com/randalmurphal/stategraph/pkg/stategraph/config"
)

// Policy configures Retry.
type Policy struct {
	// MaxAttempts is the maximum number of attempts (including initial).
	MaxAttempts int

	// InitialBackoff is the wait after the first failure.
	InitialBackoff time.Duration

	// MaxBackoff caps the wait between attempts.
	MaxBackoff time.Duration

	// Multiplier is applied to the wait after each attempt.
	Multiplier float64

	// Jitter is the random jitter factor (0.0-1.0).
	Jitter float64

	// MaxElapsed bounds the total time spent retrying. 0 means no bound
	// other than MaxAttempts and the node's context.
	MaxElapsed time.Duration

	// Retryable optionally decides which errors are retried.
	// Errors marked with Permanent are never retried.
	Retryable func(error) bool
}

// DefaultPolicy is the standard retry configuration.
var DefaultPolicy = Policy{
	MaxAttempts:    3,
	InitialBackoff: 100 * time.Millisecond,
	MaxBackoff:     5 * time.Second,
	Multiplier:     2.0,
	Jitter:         0.1,
}

// NoRetry runs the node once.
var NoRetry = Policy{
	MaxAttempts: 1,
}

// PolicyFromConfig reads a policy from a config section, starting from
// DefaultPolicy:
//
//	max_attempts: 5
//	initial_backoff: 200ms
//	max_backoff: 10s
//	multiplier: 1.5
//	jitter: 0.2
func PolicyFromConfig(cfg config.Config) Policy {
	p := DefaultPolicy
	p.MaxAttempts = cfg.Int("max_attempts", p.MaxAttempts)
	p.InitialBackoff = cfg.Duration("initial_backoff", p.InitialBackoff)
	p.MaxBackoff = cfg.Duration("max_backoff", p.MaxBackoff)
	p.Multiplier = cfg.Float("multiplier", p.Multiplier)
	p.Jitter = cfg.Float("jitter", p.Jitter)
	p.MaxElapsed = cfg.Duration("max_elapsed", p.MaxElapsed)
	return p
}

func (p Policy) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialBackoff > 0 {
		b.InitialInterval = p.InitialBackoff
	}
	if p.MaxBackoff > 0 {
		b.MaxInterval = p.MaxBackoff
	}
	if p.Multiplier >= 1 {
		b.Multiplier = p.Multiplier
	}
	b.RandomizationFactor = p.Jitter
	return b
}

// Retry returns a node that re-runs node while it fails, waiting with
// exponential backoff between attempts. Updates of failed attempts are
// discarded; only the successful attempt's outcome is returned.
//
// Retrying stops early when the error is marked Permanent, when
// p.Retryable rejects it, or when the node's context is done. The final
// error is a *RetryError.
func Retry(node stategraph.NodeFunc, p Policy) stategraph.NodeFunc {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	return func(ctx stategraph.Context, state stategraph.State) (stategraph.Outcome, error) {
		attempts := 0
		op := func() (stategraph.Outcome, error) {
			attempts++
			out, err := node(ctx, state)
			if err == nil {
				return out, nil
			}
			if IsPermanent(err) || (p.Retryable != nil && !p.Retryable(err)) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}

		opts := []backoff.RetryOption{
			backoff.WithBackOff(p.backOff()),
			backoff.WithMaxTries(uint(maxAttempts)),
			backoff.WithMaxElapsedTime(p.MaxElapsed),
			backoff.WithNotify(func(err error, next time.Duration) {
				ctx.Logger().Warn("node attempt failed, retrying",
					slog.Int("attempt", attempts),
					slog.Duration("backoff", next),
					slog.String("error", err.Error()),
				)
			}),
		}

		start := time.Now()
		out, err := backoff.Retry(ctx, op, opts...)
		if err == nil {
			return out, nil
		}

		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Err
		}
		return nil, &RetryError{Err: err, Attempts: attempts, Duration: time.Since(start)}
	}
}
