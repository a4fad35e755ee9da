package errors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetrySucceedsAfterFailures(t *testing.T) {
	attempts := 0
	cfg := RetryConfig{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		MaxDelay:     10 * time.Millisecond,
		Multiplier:   2,
		Jitter:       JitterNone,
	}

	err := Retry(context.Background(), cfg, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryExhaustsAndReturnsLastError(t *testing.T) {
	cfg := RetryConfig{
		MaxRetries:   2,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
		Jitter:       JitterNone,
	}
	sentinel := errors.New("always fails")
	attempts := 0

	err := Retry(context.Background(), cfg, func() error {
		attempts++
		return sentinel
	})

	require.Error(t, err)
	assert.Equal(t, 3, attempts) // initial + 2 retries
	assert.ErrorIs(t, err, sentinel)
}

func TestRetryRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := DefaultRetryConfig()
	err := Retry(ctx, cfg, func() error {
		return errors.New("should not matter")
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryWithResultReturnsValueOnSuccess(t *testing.T) {
	cfg := RetryConfig{
		MaxRetries:   2,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
		Jitter:       JitterHalf,
	}

	attempts := 0
	val, err := RetryWithResult(context.Background(), cfg, func() (int, error) {
		attempts++
		if attempts < 2 {
			return 0, errors.New("not yet")
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, val)
}

func TestApplyJitterBounds(t *testing.T) {
	base := 100 * time.Millisecond

	assert.Equal(t, base, applyJitter(base, JitterNone))

	for i := 0; i < 50; i++ {
		half := applyJitter(base, JitterHalf)
		assert.GreaterOrEqual(t, half, base/2)
		assert.LessOrEqual(t, half, base)

		full := applyJitter(base, JitterFull)
		assert.GreaterOrEqual(t, full, time.Duration(0))
		assert.LessOrEqual(t, full, base)
	}
}

func TestNextBackoffGrowsAndCaps(t *testing.T) {
	cfg := RetryConfig{
		InitialDelay: time.Second,
		MaxDelay:     4 * time.Second,
		Multiplier:   2,
		Jitter:       JitterNone,
	}

	assert.Equal(t, time.Second, NextBackoff(cfg, 0))
	assert.Equal(t, 2*time.Second, NextBackoff(cfg, 1))
	assert.Equal(t, 4*time.Second, NextBackoff(cfg, 2))
	assert.Equal(t, 4*time.Second, NextBackoff(cfg, 5)) // capped
}
