package llm

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// RetryProvider is a decorator that retries transient errors with
// exponential backoff and jitter.
type RetryProvider struct {
	inner  StreamProvider
	config RetryConfig
}

// WithRetry wraps a StreamProvider with retry logic.
func WithRetry(p StreamProvider, cfg RetryConfig) StreamProvider {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &RetryProvider{inner: p, config: cfg}
}

func (r *RetryProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	return retry(ctx, r, func() (*Response, error) {
		return r.inner.Generate(ctx, req)
	})
}

// Stream retries only the opening of the stream. Once fragments have been
// handed to the caller a failure is reported in-band and never replayed,
// since the caller has already consumed a prefix.
func (r *RetryProvider) Stream(ctx context.Context, req Request) (<-chan Chunk, error) {
	return retry(ctx, r, func() (<-chan Chunk, error) {
		return r.inner.Stream(ctx, req)
	})
}

func (r *RetryProvider) ModelID() string {
	return r.inner.ModelID()
}

func retry[T any](ctx context.Context, r *RetryProvider, call func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	invalidRetried := false

	for attempt := range r.config.MaxAttempts {
		v, err := call()
		if err == nil {
			return v, nil
		}
		lastErr = err

		if !r.shouldRetry(err, &invalidRetried) {
			return zero, err
		}
		if attempt == r.config.MaxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(r.backoff(attempt, err)):
		}
	}
	return zero, lastErr
}

// shouldRetry determines if an error is retryable.
func (r *RetryProvider) shouldRetry(err error, invalidRetried *bool) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// Max tokens is a configuration issue, not transient.
	var maxTok *ErrMaxTokensExceeded
	if errors.As(err, &maxTok) {
		return false
	}

	// Invalid response gets one retry.
	var invResp *ErrInvalidResponse
	if errors.As(err, &invResp) {
		if *invalidRetried {
			return false
		}
		*invalidRetried = true
		return true
	}

	// Rate limits, outages and network errors are treated as transient.
	return true
}

// backoff computes the wait duration for the given attempt.
func (r *RetryProvider) backoff(attempt int, err error) time.Duration {
	var rl *ErrRateLimit
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		return rl.RetryAfter
	}

	wait := float64(r.config.InitialWait) * math.Pow(r.config.Multiplier, float64(attempt))
	if wait > float64(r.config.MaxWait) {
		wait = float64(r.config.MaxWait)
	}

	// ±20% jitter.
	wait += wait * 0.2 * (2*rand.Float64() - 1)
	if wait < 0 {
		wait = 0
	}
	return time.Duration(wait)
}
