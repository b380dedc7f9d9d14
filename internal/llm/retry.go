package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/dyike/tradecortex/config"
	"github.com/dyike/tradecortex/models"
	"go.uber.org/zap"
)

// RetryPolicy 定义指数退避重试策略
type RetryPolicy struct {
	MaxAttempts  int           // total attempts including the first call
	InitialDelay time.Duration // delay before the second attempt
	MaxDelay     time.Duration // cap applied to every delay
	Multiplier   float64
	Jitter       bool
	ShouldRetry  func(error) bool // nil retries everything except caller cancellation
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// PolicyFromConfig builds the shared retry policy for completion, embedding and tool calls.
func PolicyFromConfig(cfg *config.Config) RetryPolicy {
	p := DefaultRetryPolicy()
	if cfg == nil {
		return p
	}
	if cfg.RetryMaxAttempts > 0 {
		p.MaxAttempts = cfg.RetryMaxAttempts
	}
	if cfg.RetryInitialDelay > 0 {
		p.InitialDelay = cfg.RetryInitialDelay
	}
	if cfg.RetryMaxDelay > 0 {
		p.MaxDelay = cfg.RetryMaxDelay
	}
	return p
}

// Retryer runs a call under a RetryPolicy, waiting between attempts without ignoring ctx.
type Retryer struct {
	policy RetryPolicy
	logger *zap.Logger
}

func NewRetryer(policy RetryPolicy, logger *zap.Logger) *Retryer {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.InitialDelay <= 0 {
		policy.InitialDelay = time.Second
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = 30 * time.Second
	}
	if policy.Multiplier < 1.0 {
		policy.Multiplier = 2.0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retryer{policy: policy, logger: logger.With(zap.String("component", "retryer"))}
}

func (r *Retryer) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	_, err := DoWithResult(ctx, r, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoWithResult is the generic form of Retryer.Do.
func DoWithResult[T any](ctx context.Context, r *Retryer, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var (
		zero    T
		lastErr error
	)
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := r.delay(attempt - 1)
			r.logger.Debug("retrying",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return zero, fmt.Errorf("%s: retry cancelled: %w", op, ctx.Err())
			case <-time.After(delay):
			}
		}

		result, err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				r.logger.Info("retry succeeded", zap.String("op", op), zap.Int("attempt", attempt))
			}
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil || !r.retryable(err) {
			return zero, err
		}
	}

	r.logger.Warn("retries exhausted", zap.String("op", op), zap.Int("attempts", r.policy.MaxAttempts), zap.Error(lastErr))
	return zero, lastErr
}

func (r *Retryer) retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if r.policy.ShouldRetry != nil {
		return r.policy.ShouldRetry(err)
	}
	var se *models.ServiceError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return true
}

// delay returns the wait before retry number n (1-based): InitialDelay * Multiplier^(n-1), capped.
func (r *Retryer) delay(n int) time.Duration {
	d := float64(r.policy.InitialDelay) * math.Pow(r.policy.Multiplier, float64(n-1))
	if d > float64(r.policy.MaxDelay) {
		d = float64(r.policy.MaxDelay)
	}
	if r.policy.Jitter {
		// ±25%
		d = d * (0.75 + rand.Float64()*0.5)
		if d > float64(r.policy.MaxDelay) {
			d = float64(r.policy.MaxDelay)
		}
	}
	return time.Duration(d)
}
