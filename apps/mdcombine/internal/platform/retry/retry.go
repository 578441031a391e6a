// Package retry runs an operation a bounded number of times with a fixed
// delay between attempts.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Default policy values.
const (
	DefaultAttempts = 3
	DefaultDelay    = time.Second
)

// Policy controls Do.
type Policy struct {
	// Attempts is the total number of tries, including the first. Values
	// below 1 mean a single try.
	Attempts int
	// Delay is the fixed wait between tries.
	Delay time.Duration
	// Retryable decides whether a failure is worth another try. Nil retries every error.
	Retryable func(error) bool
	// OnRetry is called before each wait with the attempt that just failed (1-based).
	OnRetry func(attempt int, err error, wait time.Duration)
}

// Do calls op until it succeeds, returns a non-retryable error, the attempts
// are used up or ctx is done. The last error from op is returned unchanged.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	attempts := max(p.Attempts, 1)

	tries := 0
	operation := func() (T, error) {
		tries++
		v, err := op(ctx)
		if err != nil && p.Retryable != nil && !p.Retryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(backoff.NewConstantBackOff(p.Delay)),
		backoff.WithMaxTries(uint(attempts)),
	}
	if p.OnRetry != nil {
		opts = append(opts, backoff.WithNotify(func(err error, wait time.Duration) {
			p.OnRetry(tries, err, wait)
		}))
	}

	v, err := backoff.Retry(ctx, operation, opts...)
	if err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return v, permanent.Unwrap()
		}
		return v, err
	}
	return v, nil
}
