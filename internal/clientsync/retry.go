package clientsync

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy is an exponential backoff with jitter, applied to a matured
// operation's executor until it succeeds or exhausts MaxRetries.
type RetryPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       float64
	Logger       *zap.Logger
}

// DefaultRetryPolicy matches the tunable parameters the merge pipeline
// specifies: three retries, doubling backoff starting at one second.
func DefaultRetryPolicy(logger *zap.Logger) *RetryPolicy {
	return &RetryPolicy{
		MaxRetries:   3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.3,
		Logger:       logger,
	}
}

// Do runs fn, retrying on a retryable error up to MaxRetries times with
// exponential backoff and jitter. It returns the final error, or nil on
// success at any attempt.
func (p *RetryPolicy) Do(ctx context.Context, operation string, fn func() error) error {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	attempt := 0
	for {
		attempt++
		err := fn()
		if err == nil {
			if attempt > 1 {
				logger.Info("operation succeeded after retries", zap.String("operation", operation), zap.Int("attempts", attempt))
			}
			return nil
		}

		if attempt > p.MaxRetries {
			return fmt.Errorf("%s failed after %d attempts: %w", operation, attempt, err)
		}
		_, retryable := ClassifyError(err)
		if !retryable {
			return fmt.Errorf("%s failed (non-retryable): %w", operation, err)
		}

		delay := p.delayFor(attempt)
		logger.Warn("operation failed, retrying",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s retry aborted: %w", operation, ctx.Err())
		case <-time.After(delay):
		}
	}
}

func (p *RetryPolicy) delayFor(attempt int) time.Duration {
	exponent := float64(attempt - 1)
	delay := float64(p.InitialDelay) * math.Pow(p.Multiplier, exponent)
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	if p.Jitter > 0 {
		delay -= rand.Float64() * delay * p.Jitter
	}
	return time.Duration(delay)
}
