package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetrier(attempts int) *Retrier {
	return NewRetrier(Policy{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
	})
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	r := fastRetrier(3)
	calls := 0

	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return Retryable(errors.New("transient"))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustedBudgetReturnsLastError(t *testing.T) {
	r := fastRetrier(3)
	transient := errors.New("still down")
	calls := 0

	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Retryable(transient)
	})
	assert.ErrorIs(t, err, transient)
	assert.Equal(t, 3, calls)
}

func TestDo_PermanentErrorStopsImmediately(t *testing.T) {
	r := fastRetrier(5)
	fatal := errors.New("bad request")
	calls := 0

	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Permanent(fatal)
	})
	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, calls)
}

func TestDo_UnclassifiedErrorStopsImmediately(t *testing.T) {
	r := fastRetrier(5)
	calls := 0

	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("plain")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_CancelledContextBreaksTheLoop(t *testing.T) {
	r := fastRetrier(10)
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	err := r.Do(ctx, func(ctx context.Context) error {
		calls++
		cancel()
		return Retryable(errors.New("transient"))
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestClassification(t *testing.T) {
	assert.True(t, IsRetryable(Retryable(errors.New("x"))))
	assert.False(t, IsRetryable(Permanent(errors.New("x"))))
	assert.True(t, IsPermanent(Permanent(errors.New("x"))))
	assert.NoError(t, Retryable(nil))
	assert.NoError(t, Permanent(nil))
}
