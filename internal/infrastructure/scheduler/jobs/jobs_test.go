package jobs

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

type stubExpirer struct {
	expired int
	err     error
	calls   int
}

func (s *stubExpirer) CleanupExpired(_ context.Context, _ time.Time) (int, error) {
	s.calls++
	return s.expired, s.err
}

type stubRefresher struct {
	refreshed int
	err       error
	calls     int
}

func (s *stubRefresher) RefreshAll(_ context.Context) (int, error) {
	s.calls++
	return s.refreshed, s.err
}

type stubLocker struct {
	acquired   bool
	acquireErr error
	released   []string
}

func (s *stubLocker) AcquireLock(_ context.Context, _ string, _ time.Duration) (bool, error) {
	return s.acquired, s.acquireErr
}

func (s *stubLocker) ReleaseLock(_ context.Context, resource string) error {
	s.released = append(s.released, resource)
	return nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExpireLinkRequestsJob_RunsWithoutLocker(t *testing.T) {
	expirer := &stubExpirer{expired: 3}
	job := NewExpireLinkRequestsJob(expirer, nil, discard(), DefaultExpireLinkRequestsConfig())

	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, 1, expirer.calls)
	assert.Equal(t, int64(3), job.LastExpiredCount())
}

func TestExpireLinkRequestsJob_SkipsWhenLockHeldElsewhere(t *testing.T) {
	expirer := &stubExpirer{expired: 3}
	locker := &stubLocker{acquired: false}
	job := NewExpireLinkRequestsJob(expirer, locker, discard(), DefaultExpireLinkRequestsConfig())

	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, 0, expirer.calls)
	assert.Empty(t, locker.released)
}

func TestExpireLinkRequestsJob_ReleasesLockAfterSweep(t *testing.T) {
	expirer := &stubExpirer{}
	locker := &stubLocker{acquired: true}
	job := NewExpireLinkRequestsJob(expirer, locker, discard(), DefaultExpireLinkRequestsConfig())

	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, 1, expirer.calls)
	assert.Equal(t, []string{"expire_link_requests"}, locker.released)
}

func TestExpireLinkRequestsJob_SweepErrorSurfaces(t *testing.T) {
	expirer := &stubExpirer{err: errors.New("store down")}
	job := NewExpireLinkRequestsJob(expirer, nil, discard(), DefaultExpireLinkRequestsConfig())

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store down")
	assert.Equal(t, int64(0), job.LastExpiredCount())
}

func TestRefreshParentViewsJob_RecordsStats(t *testing.T) {
	refresher := &stubRefresher{refreshed: 4}
	job := NewRefreshParentViewsJob(refresher, nil, discard(), DefaultRefreshParentViewsConfig())

	assert.Nil(t, job.LastStats())
	require.NoError(t, job.Run(context.Background()))

	stats := job.LastStats()
	require.NotNil(t, stats)
	assert.Equal(t, 4, stats.RefreshedCount)
	assert.False(t, stats.CompletedAt.Before(stats.StartedAt))
}

func TestRefreshParentViewsJob_LockAcquireErrorSurfaces(t *testing.T) {
	refresher := &stubRefresher{}
	locker := &stubLocker{acquireErr: errors.New("redis timeout")}
	job := NewRefreshParentViewsJob(refresher, locker, discard(), DefaultRefreshParentViewsConfig())

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis timeout")
	assert.Equal(t, 0, refresher.calls)
}

func TestRefreshParentViewsJob_SkipsWhenLockHeldElsewhere(t *testing.T) {
	refresher := &stubRefresher{refreshed: 4}
	locker := &stubLocker{acquired: false}
	job := NewRefreshParentViewsJob(refresher, locker, discard(), DefaultRefreshParentViewsConfig())

	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, 0, refresher.calls)
	assert.Nil(t, job.LastStats())
}
