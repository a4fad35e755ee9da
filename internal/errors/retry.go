package errors

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// RetryConfig configures retry behavior.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts (not including the
	// initial attempt).
	MaxRetries int

	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration

	// MaxDelay is the maximum delay between retries.
	MaxDelay time.Duration

	// Multiplier is the factor by which delay increases after each retry.
	Multiplier float64

	// Jitter selects the jitter strategy applied to each computed delay.
	Jitter JitterMode
}

// JitterMode selects how backoff delay is randomized.
type JitterMode int

const (
	// JitterNone applies no randomization; delay is used as computed.
	JitterNone JitterMode = iota
	// JitterHalf applies delay * (0.5 + rand(0, 0.5)), the teacher's
	// original jitter strategy.
	JitterHalf
	// JitterFull applies delay * rand(0, 1.0) ("full jitter"), the strategy
	// spec.md §4.7 requires for job-queue retries: it spreads retries across
	// the whole window instead of clustering near the midpoint, which is
	// what prevents a dead upstream's clients from retrying in lockstep.
	JitterFull
)

// DefaultRetryConfig returns sensible default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     16 * time.Second,
		Multiplier:   2.0,
		Jitter:       JitterNone,
	}
}

// applyJitter returns delay randomized per cfg.Jitter.
func applyJitter(delay time.Duration, mode JitterMode) time.Duration {
	switch mode {
	case JitterHalf:
		factor := 0.5 + rand.Float64()*0.5
		return time.Duration(float64(delay) * factor)
	case JitterFull:
		return time.Duration(float64(delay) * rand.Float64())
	default:
		return delay
	}
}

// Retry executes fn with exponential backoff retry logic, up to
// cfg.MaxRetries additional attempts. If ctx is cancelled, it returns the
// context error immediately.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := fn(); err != nil {
			lastErr = err

			if attempt >= cfg.MaxRetries {
				break
			}

			waitDelay := applyJitter(delay, cfg.Jitter)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(waitDelay):
			}

			delay = time.Duration(float64(delay) * cfg.Multiplier)
			if delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}
			continue
		}

		return nil
	}

	return fmt.Errorf("failed after %d retries: %w", cfg.MaxRetries, lastErr)
}

// RetryWithResult executes fn (which returns a value and an error) with the
// same retry logic as Retry.
func RetryWithResult[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var result T
	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		var err error
		result, err = fn()
		if err != nil {
			lastErr = err

			if attempt >= cfg.MaxRetries {
				break
			}

			waitDelay := applyJitter(delay, cfg.Jitter)

			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(waitDelay):
			}

			delay = time.Duration(float64(delay) * cfg.Multiplier)
			if delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}
			continue
		}

		return result, nil
	}

	var zero T
	return zero, fmt.Errorf("failed after %d retries: %w", cfg.MaxRetries, lastErr)
}

// NextBackoff computes the single next delay for attempt n (0-indexed),
// applying cfg.Multiplier growth, cfg.MaxDelay cap and cfg.Jitter. Used by
// the job queue, which schedules a job's next visible_at rather than
// blocking a goroutine in a sleep.
func NextBackoff(cfg RetryConfig, attempt int) time.Duration {
	delay := float64(cfg.InitialDelay)
	for i := 0; i < attempt; i++ {
		delay *= cfg.Multiplier
	}
	d := time.Duration(delay)
	if cfg.MaxDelay > 0 && d > cfg.MaxDelay {
		d = cfg.MaxDelay
	}
	return applyJitter(d, cfg.Jitter)
}
