package model

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// WithRateLimit blocks each call until limiter admits it. A cancelled
// context aborts the wait.
func WithRateLimit(limiter *rate.Limiter) Middleware {
	if limiter == nil {
		return nil
	}
	return func(next Model) Model {
		return Intercept(next, func(ctx context.Context, call Call, invoke Invoke) error {
			if err := limiter.Wait(ctx); err != nil {
				return fmt.Errorf("rate limit wait for %s: %w", call.Operation, err)
			}
			return invoke(ctx)
		})
	}
}

// WithTimeout bounds every call attempt by timeout. Placed inside
// [WithRetry] it bounds each attempt, outside it bounds the whole sequence.
func WithTimeout(timeout time.Duration) Middleware {
	if timeout <= 0 {
		return nil
	}
	return func(next Model) Model {
		return Intercept(next, func(ctx context.Context, _ Call, invoke Invoke) error {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return invoke(ctx)
		})
	}
}
