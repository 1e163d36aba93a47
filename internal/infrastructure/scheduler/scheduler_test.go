package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJob struct {
	name string
	err  error
	runs int
}

func (j *fakeJob) Name() string        { return j.name }
func (j *fakeJob) Description() string { return "test job" }

func (j *fakeJob) Run(_ context.Context) error {
	j.runs++
	return j.err
}

func newTestScheduler() *Scheduler {
	cfg := DefaultSchedulerConfig()
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewScheduler(cfg)
}

func TestRegister_RejectsDuplicatesAndNils(t *testing.T) {
	s := newTestScheduler()
	schedule := NewIntervalSchedule(time.Hour)

	require.NoError(t, s.Register(&fakeJob{name: "sweep"}, schedule))

	err := s.Register(&fakeJob{name: "sweep"}, schedule)
	assert.ErrorIs(t, err, ErrJobAlreadyExists)

	assert.ErrorIs(t, s.Register(nil, schedule), ErrNilJob)
	assert.ErrorIs(t, s.Register(&fakeJob{name: "other"}, nil), ErrNilSchedule)
}

func TestRunNow_ExecutesAndRecordsResult(t *testing.T) {
	s := newTestScheduler()
	job := &fakeJob{name: "sweep"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	result, err := s.RunNow(context.Background(), "sweep")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, job.runs)

	info, err := s.GetJobInfo("sweep")
	require.NoError(t, err)
	require.NotNil(t, info.LastResult)
	assert.Equal(t, "sweep", info.LastResult.JobName)

	history := s.GetHistory(10)
	assert.Len(t, history, 1)
}

func TestHistory_BoundedByConfiguredSize(t *testing.T) {
	cfg := DefaultSchedulerConfig()
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg.MaxHistorySize = 3
	s := NewScheduler(cfg)

	job := &fakeJob{name: "sweep"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	for i := 0; i < 5; i++ {
		_, err := s.RunNow(context.Background(), "sweep")
		require.NoError(t, err)
	}

	history := s.GetHistory(0)
	assert.Len(t, history, 3)
	assert.Equal(t, 5, job.runs)
}

func TestRunNow_UnknownJob(t *testing.T) {
	s := newTestScheduler()

	_, err := s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestRunNow_FailureCountsInMetrics(t *testing.T) {
	s := newTestScheduler()
	job := &fakeJob{name: "sweep", err: errors.New("boom")}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	result, err := s.RunNow(context.Background(), "sweep")
	require.Error(t, err)
	assert.False(t, result.Success)

	snap := s.GetMetrics().Snapshot()
	assert.Equal(t, int64(1), snap.TotalExecutions)
	assert.Equal(t, int64(1), snap.TotalFailures)
	assert.Equal(t, float64(0), snap.SuccessRate)
}

func TestDisableJob_KeepsJobRegistered(t *testing.T) {
	s := newTestScheduler()
	require.NoError(t, s.Register(&fakeJob{name: "sweep"}, NewIntervalSchedule(time.Hour)))

	require.NoError(t, s.DisableJob("sweep"))
	info, err := s.GetJobInfo("sweep")
	require.NoError(t, err)
	assert.False(t, info.Enabled)

	require.NoError(t, s.EnableJob("sweep"))
	info, err = s.GetJobInfo("sweep")
	require.NoError(t, err)
	assert.True(t, info.Enabled)

	assert.ErrorIs(t, s.DisableJob("missing"), ErrJobNotFound)
}

func TestStartStop_Lifecycle(t *testing.T) {
	s := newTestScheduler()

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
}

func TestIntervalSchedule_Next(t *testing.T) {
	sched := NewIntervalSchedule(15 * time.Minute)
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, base.Add(15*time.Minute), sched.Next(base))
	assert.Equal(t, "@every 15m0s", sched.String())
}

func TestParseCronExpression_NextTimes(t *testing.T) {
	// 2026-03-10 is a Tuesday.
	base := time.Date(2026, 3, 10, 12, 7, 30, 0, time.UTC)

	tests := []struct {
		expr string
		want time.Time
	}{
		{Every5Minutes, time.Date(2026, 3, 10, 12, 10, 0, 0, time.UTC)},
		{EveryHour, time.Date(2026, 3, 10, 13, 0, 0, 0, time.UTC)},
		{EveryDay7AM, time.Date(2026, 3, 11, 7, 0, 0, 0, time.UTC)},
		{EverySunday, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			ce, err := ParseCronExpression(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ce.Next(base))
			assert.Equal(t, tt.expr, ce.String())
		})
	}
}

func TestParseCronExpression_Invalid(t *testing.T) {
	for _, expr := range []string{"", "* * * *", "61 * * * *", "* 24 * * *", "x * * * *"} {
		_, err := ParseCronExpression(expr)
		assert.Error(t, err, "expr %q", expr)
	}
}
