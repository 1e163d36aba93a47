package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func failing(ctx context.Context) error { return errBoom }
func succeeding(ctx context.Context) error { return nil }

func trip(t *testing.T, cb *CircuitBreaker, failures int) {
	t.Helper()
	for i := 0; i < failures; i++ {
		assert.ErrorIs(t, cb.Execute(context.Background(), failing), errBoom)
	}
}

func TestExecute_OpensAfterConsecutiveFailures(t *testing.T) {
	cb := New(Settings{FailureThreshold: 3, OpenTimeout: time.Hour})

	trip(t, cb, 2)
	assert.Equal(t, StateClosed, cb.State())

	trip(t, cb, 1)
	assert.Equal(t, StateOpen, cb.State())

	err := cb.Execute(context.Background(), succeeding)
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestExecute_SuccessResetsFailureStreak(t *testing.T) {
	cb := New(Settings{FailureThreshold: 3, OpenTimeout: time.Hour})

	trip(t, cb, 2)
	require.NoError(t, cb.Execute(context.Background(), succeeding))
	trip(t, cb, 2)

	assert.Equal(t, StateClosed, cb.State())
}

func TestExecute_HalfOpenClosesAfterSuccessThreshold(t *testing.T) {
	cb := New(Settings{
		FailureThreshold: 1,
		SuccessThreshold: 2,
		OpenTimeout:      time.Millisecond,
	})

	trip(t, cb, 1)
	assert.Equal(t, StateOpen, cb.State())

	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, cb.State())

	require.NoError(t, cb.Execute(context.Background(), succeeding))
	assert.Equal(t, StateHalfOpen, cb.State())
	require.NoError(t, cb.Execute(context.Background(), succeeding))
	assert.Equal(t, StateClosed, cb.State())
}

func TestExecute_HalfOpenFailureReopens(t *testing.T) {
	cb := New(Settings{
		FailureThreshold: 1,
		OpenTimeout:      time.Millisecond,
	})

	trip(t, cb, 1)
	time.Sleep(5 * time.Millisecond)

	trip(t, cb, 1)
	assert.Equal(t, StateOpen, cb.State())
}

func TestExecute_StateChangeCallback(t *testing.T) {
	type transition struct{ from, to State }
	var seen []transition

	cb := New(Settings{
		Name:             "test",
		FailureThreshold: 1,
		OpenTimeout:      time.Millisecond,
		OnStateChange: func(name string, from, to State) {
			assert.Equal(t, "test", name)
			seen = append(seen, transition{from, to})
		},
	})

	trip(t, cb, 1)
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, cb.Execute(context.Background(), succeeding))

	require.Len(t, seen, 3)
	assert.Equal(t, transition{StateClosed, StateOpen}, seen[0])
	assert.Equal(t, transition{StateOpen, StateHalfOpen}, seen[1])
	assert.Equal(t, transition{StateHalfOpen, StateClosed}, seen[2])
}

func TestCounts_TrackOutcomes(t *testing.T) {
	cb := New(Settings{FailureThreshold: 10})

	trip(t, cb, 2)
	require.NoError(t, cb.Execute(context.Background(), succeeding))

	counts := cb.Counts()
	assert.Equal(t, 3, counts.Calls)
	assert.Equal(t, 2, counts.Failures)
	assert.Equal(t, 1, counts.Successes)
	assert.Equal(t, 0, counts.ConsecutiveFailures)
}
