package internal

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"
)

// Embedder maps text to fixed-length dense vectors via a remote service.
// All vectors used together in one index must come from the same model.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	Model() string
}

// RetryingEmbedder retries rate-limit and timeout failures with capped
// exponential backoff and jitter. All other failures propagate unchanged.
type RetryingEmbedder struct {
	inner  Embedder
	policy RetryConfig
	logger *slog.Logger
}

var _ Embedder = (*RetryingEmbedder)(nil)

func NewRetryingEmbedder(inner Embedder, policy RetryConfig, logger *slog.Logger) *RetryingEmbedder {
	return &RetryingEmbedder{
		inner:  inner,
		policy: policy,
		logger: logger,
	}
}

func (e *RetryingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return withRetry(ctx, e.policy, e.logger, "embed", func() ([]float32, error) {
		return e.inner.Embed(ctx, text)
	})
}

func (e *RetryingEmbedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	return withRetry(ctx, e.policy, e.logger, "embed batch", func() ([][]float32, error) {
		return e.inner.EmbedMany(ctx, texts)
	})
}

func (e *RetryingEmbedder) Dimension() int { return e.inner.Dimension() }
func (e *RetryingEmbedder) Model() string  { return e.inner.Model() }

// withRetry runs fn up to the configured attempt count, backing off between
// retryable failures. Cancellation cuts the wait short.
func withRetry[T any](ctx context.Context, policy RetryConfig, logger *slog.Logger, op string, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(policy, attempt)
			logger.Warn("retrying", "op", op, "attempt", attempt+1, "delay", delay, "cause", lastErr)

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, fmt.Errorf("%s: %w", op, ctx.Err())
			case <-timer.C:
			}
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		if !Retryable(err) {
			return zero, err
		}
		lastErr = err
	}

	return zero, fmt.Errorf("%s: attempts exhausted: %w", op, lastErr)
}

// backoffDelay is exponential in the attempt number, capped, with a half
// window of jitter so concurrent workers do not retry in lockstep.
func backoffDelay(policy RetryConfig, attempt int) time.Duration {
	base := policy.BaseDelay
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	max := policy.MaxDelay
	if max <= 0 {
		max = 10 * time.Second
	}

	delay := base << (attempt - 1)
	if delay > max || delay <= 0 {
		delay = max
	}

	half := delay / 2
	return half + rand.N(half+1)
}

// Normalize scales a vector to unit length in place, so cosine similarity
// reduces to a dot product.
func Normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sum))
	for i := range vec {
		vec[i] *= inv
	}
}
