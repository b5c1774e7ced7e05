package exchange

import (
	"context"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy bounds a call: up to Attempts tries, exponential backoff from BaseDelay,
// each try limited by Timeout.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	Timeout   time.Duration
}

// DefaultRetryPolicy is three attempts, 1s/2s/4s backoff and a 10s per-call timeout.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, BaseDelay: time.Second, Timeout: 10 * time.Second}
}

// Retry runs fn under p. Only NetworkError failures are retried; anything else is returned at once.
func Retry[T any](ctx context.Context, p RetryPolicy, logger *zap.Logger, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var err error
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	for i := 0; i < attempts; i++ {
		callCtx := ctx
		cancel := func() {}
		if p.Timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, p.Timeout)
		}
		var v T
		v, err = fn(callCtx)
		cancel()
		if err == nil {
			return v, nil
		}

		var ne *NetworkError
		if !errors.As(err, &ne) {
			return zero, err
		}
		if i == attempts-1 {
			break
		}

		wait := ne.RetryAfter
		if wait == 0 {
			// Exponential backoff: 1s, 2s, 4s
			wait = time.Duration(math.Pow(2, float64(i))) * p.BaseDelay
		}
		logger.Warn("Request failed, retrying...",
			zap.String("op", op),
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", wait),
			zap.Error(err),
		)

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
	return zero, err
}
