// Package resilience wraps the caller-level retry policy applied around
// token, create and delete calls, plus a context-aware sleep.
package resilience

import (
	"context"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

type RetryConfig struct {
	// MaxRetries is the number of attempts after the first one.
	MaxRetries int
	// Delay is the fixed pause between attempts.
	Delay time.Duration
	// ShouldRetry decides whether a failed attempt is repeated.
	// Nil means every error is retried.
	ShouldRetry func(err error) bool
	// OnRetry is called before each repeated attempt.
	OnRetry func(attempt int, err error)
}

// NoRetry keeps the single-attempt behaviour.
var NoRetry = RetryConfig{}

func (c RetryConfig) Enabled() bool {
	return c.MaxRetries > 0
}

func NewRetryPolicy[R any](cfg RetryConfig) retrypolicy.RetryPolicy[R] {
	shouldRetry := cfg.ShouldRetry
	builder := retrypolicy.NewBuilder[R]().
		HandleIf(func(_ R, err error) bool {
			if err == nil {
				return false
			}
			return shouldRetry == nil || shouldRetry(err)
		}).
		WithMaxRetries(cfg.MaxRetries).
		ReturnLastFailure()
	if cfg.Delay > 0 {
		builder = builder.WithDelay(cfg.Delay)
	}
	if cfg.OnRetry != nil {
		onRetry := cfg.OnRetry
		builder = builder.OnRetry(func(e failsafe.ExecutionEvent[R]) {
			onRetry(e.Attempts(), e.LastError())
		})
	}
	return builder.Build()
}

type Executor[R any] struct {
	executor failsafe.Executor[R]
	enabled  bool
}

func NewExecutor[R any](cfg RetryConfig) *Executor[R] {
	return &Executor[R]{
		executor: failsafe.With(NewRetryPolicy[R](cfg)),
		enabled:  cfg.Enabled(),
	}
}

// Execute runs fn, repeating it per the retry policy. With retries disabled
// fn is called exactly once.
func (e *Executor[R]) Execute(ctx context.Context, fn func() (R, error)) (R, error) {
	if !e.enabled {
		return fn()
	}
	return e.executor.WithContext(ctx).Get(fn)
}

func WaitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
