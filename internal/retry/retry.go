// Package retry attaches bounded exponential backoff to external calls.
package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy bounds the retries of one kind of external call.
type Policy struct {
	MaxRetries   uint64
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// ClassifierPolicy keeps the conversational path well inside a few seconds.
func ClassifierPolicy() Policy {
	return Policy{MaxRetries: 1, InitialDelay: 100 * time.Millisecond, MaxDelay: 400 * time.Millisecond}
}

func QueuePolicy() Policy {
	return Policy{MaxRetries: 2, InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second}
}

func CatalogPolicy() Policy {
	return Policy{MaxRetries: 2, InitialDelay: 200 * time.Millisecond, MaxDelay: 2 * time.Second}
}

func DispatchPolicy() Policy {
	return Policy{MaxRetries: 2, InitialDelay: 250 * time.Millisecond, MaxDelay: 2 * time.Second}
}

// Permanent wraps err so Do returns it without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// Do runs fn until it succeeds, returns a permanent error, the policy is
// exhausted or ctx is done. The last error is returned unwrapped.
func Do(ctx context.Context, p Policy, op string, fn func(ctx context.Context) error) error {
	_, err := DoValue(ctx, p, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoValue is Do for calls that return a result.
func DoValue[T any](ctx context.Context, p Policy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	attempt := 0
	return backoff.RetryNotifyWithData(
		func() (T, error) {
			attempt++
			return fn(ctx)
		},
		p.backOff(ctx),
		func(err error, delay time.Duration) {
			slog.WarnContext(ctx, "retrying operation after error",
				"operation", op,
				"attempt", attempt,
				"max_retries", p.MaxRetries,
				"retry_delay", delay,
				"err", err,
			)
		},
	)
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.InitialDelay
	exp.MaxInterval = p.MaxDelay
	exp.RandomizationFactor = 0.25
	exp.MaxElapsedTime = 0
	if exp.InitialInterval <= 0 {
		exp.InitialInterval = time.Millisecond
	}
	if exp.MaxInterval < exp.InitialInterval {
		exp.MaxInterval = exp.InitialInterval
	}
	return backoff.WithContext(backoff.WithMaxRetries(exp, p.MaxRetries), ctx)
}
