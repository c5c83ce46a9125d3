package llm

import (
	"context"
	"errors"
	"iter"
	"math"
	"math/rand/v2"
	"time"
)

// RetryStreamer is a decorator that retries transient errors with
// exponential backoff and jitter. A stream is only retried while nothing
// has been yielded yet; a failure after the first chunk is passed through.
type RetryStreamer struct {
	inner  Streamer
	config RetryConfig
}

// WithRetry wraps a Streamer with retry logic.
func WithRetry(s Streamer, cfg RetryConfig) Streamer {
	return &RetryStreamer{inner: s, config: cfg}
}

func (r *RetryStreamer) Stream(ctx context.Context, req Request) iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		attempts := max(r.config.MaxAttempts, 1)

		for attempt := range attempts {
			started := false
			var failed error

			for chunk, err := range r.inner.Stream(ctx, req) {
				if err != nil {
					failed = err
					break
				}
				started = true
				if !yield(chunk, nil) {
					return
				}
			}
			if failed == nil {
				return
			}

			// Last attempt, or the caller already saw output.
			if started || !r.shouldRetry(failed) || attempt == attempts-1 {
				yield(Chunk{}, failed)
				return
			}

			select {
			case <-ctx.Done():
				yield(Chunk{}, ctx.Err())
				return
			case <-time.After(r.backoff(attempt, failed)):
			}
		}
	}
}

func (r *RetryStreamer) ListModels(ctx context.Context) ([]string, error) {
	var lastErr error
	attempts := max(r.config.MaxAttempts, 1)

	for attempt := range attempts {
		ids, err := r.inner.ListModels(ctx)
		if err == nil {
			return ids, nil
		}
		lastErr = err

		if !r.shouldRetry(err) || attempt == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.backoff(attempt, err)):
		}
	}

	return nil, lastErr
}

func (r *RetryStreamer) ModelID() string {
	return r.inner.ModelID()
}

// shouldRetry determines if an error is retryable.
func (r *RetryStreamer) shouldRetry(err error) bool {
	// Context errors are never retried.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// A missing model will not appear by waiting.
	var notFound *ErrModelNotFound
	if errors.As(err, &notFound) {
		return false
	}

	// Rate limit, provider unavailable and network errors are transient.
	return true
}

// backoff computes the wait duration for the given attempt.
func (r *RetryStreamer) backoff(attempt int, err error) time.Duration {
	// Respect RetryAfter for rate limits.
	var rl *ErrRateLimit
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		return rl.RetryAfter
	}

	wait := float64(r.config.InitialWait) * math.Pow(r.config.Multiplier, float64(attempt))
	if wait > float64(r.config.MaxWait) {
		wait = float64(r.config.MaxWait)
	}

	// Add ±20% jitter.
	jitter := wait * 0.2 * (2*rand.Float64() - 1)
	wait += jitter

	if wait < 0 {
		wait = 0
	}
	return time.Duration(wait)
}
