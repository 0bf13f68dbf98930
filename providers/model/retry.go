package model

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/leofalp/stategraph/providers/observability"
)

// RetryConfig holds the tuning parameters for the retry middleware. Zero values
// are replaced with the defaults documented below.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts after the first failure.
	// A value of 3 means the model is called at most 4 times.
	// Default: 3.
	MaxRetries int

	// InitialBackoff is the wait duration before the first retry attempt.
	// Default: 1s.
	InitialBackoff time.Duration

	// MaxBackoff caps the computed backoff.
	// Default: 30s.
	MaxBackoff time.Duration

	// BackoffFactor is the exponential growth multiplier
	// (backoff = min(InitialBackoff * BackoffFactor^attempt, MaxBackoff)).
	// Default: 2.0.
	BackoffFactor float64

	// JitterFraction adds random noise in [0, JitterFraction * backoff].
	// Default: 0.1.
	JitterFraction float64

	// RetryableFunc returns true when an error should trigger a retry.
	// Default: [DefaultRetryable].
	RetryableFunc func(error) bool
}

// DefaultRetryable retries temporary [StatusError] values. Errors without a
// status are matched on the status codes 429, 500, 502, 503 and 529 in their
// message. Context errors are never retried.
func DefaultRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var statusError *StatusError
	if errors.As(err, &statusError) {
		return statusError.Temporary()
	}

	message := err.Error()
	for _, code := range []string{"429", "500", "502", "503", "529"} {
		if strings.Contains(message, code) {
			return true
		}
	}
	return false
}

func applyRetryDefaults(config *RetryConfig) {
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.InitialBackoff == 0 {
		config.InitialBackoff = time.Second
	}
	if config.MaxBackoff == 0 {
		config.MaxBackoff = 30 * time.Second
	}
	if config.BackoffFactor == 0 {
		config.BackoffFactor = 2.0
	}
	if config.JitterFraction == 0 {
		config.JitterFraction = 0.1
	}
	if config.RetryableFunc == nil {
		config.RetryableFunc = DefaultRetryable
	}
}

// computeBackoff returns the wait before retry number attempt (0-indexed).
func computeBackoff(config RetryConfig, attempt int) time.Duration {
	base := float64(config.InitialBackoff) * math.Pow(config.BackoffFactor, float64(attempt))
	if base > float64(config.MaxBackoff) {
		base = float64(config.MaxBackoff)
	}

	jitter := base * config.JitterFraction * rand.Float64() //nolint:gosec // non-cryptographic jitter
	return time.Duration(base + jitter)
}

// WithRetry retries failed calls with exponential backoff and jitter.
// Non-retryable errors are returned immediately. On exhaustion the returned
// error wraps both [ErrRetryExhausted] and the last error.
//
// Retries are logged and counted through the observer found in the call's
// context, if any.
func WithRetry(config RetryConfig) Middleware {
	applyRetryDefaults(&config)

	return func(next Model) Model {
		return Intercept(next, func(ctx context.Context, call Call, invoke Invoke) error {
			var lastErr error

			for attempt := 0; attempt <= config.MaxRetries; attempt++ {
				if attempt > 0 {
					backoff := computeBackoff(config, attempt-1)
					if observer := observability.ObserverFromContext(ctx); observer != nil {
						observer.Warn(ctx, "retrying model call",
							observability.String(observability.AttrModelOperation, string(call.Operation)),
							observability.String(observability.AttrModelName, call.Model),
							observability.Int(observability.AttrModelAttempt, attempt+1),
							observability.Duration("backoff", backoff),
							observability.Error(lastErr),
						)
						observer.Counter(observability.MetricModelRetries).Add(ctx, 1,
							observability.String(observability.AttrModelOperation, string(call.Operation)),
						)
					}

					timer := time.NewTimer(backoff)
					select {
					case <-ctx.Done():
						timer.Stop()
						return ctx.Err()
					case <-timer.C:
					}
				}

				err := invoke(ctx)
				if err == nil {
					return nil
				}
				lastErr = err

				if !config.RetryableFunc(err) {
					return err
				}
			}

			return fmt.Errorf("%w after %d retries: %w", ErrRetryExhausted, config.MaxRetries, lastErr)
		})
	}
}
