// Package jobs contains implementations of scheduled jobs for the Kary sync
// engine. Each job keeps derived state fresh: pending link requests expire on
// time and cached parent views track the latest student activity.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// Locker guards a job against concurrent runs across instances.
// The redis cache satisfies it. A nil Locker disables locking, which is
// fine for single-instance deployments.
type Locker interface {
	AcquireLock(ctx context.Context, resource string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, resource string) error
}

// LinkRequestExpirer sweeps pending link requests past their TTL.
// The linkflow service satisfies it.
type LinkRequestExpirer interface {
	CleanupExpired(ctx context.Context, now time.Time) (int, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// EXPIRE LINK REQUESTS JOB
// ══════════════════════════════════════════════════════════════════════════════

// ExpireLinkRequestsJob expires parent-student link requests that have been
// pending longer than the request TTL. Expired requests notify the requesting
// parent so the request can be re-sent.
type ExpireLinkRequestsJob struct {
	expirer LinkRequestExpirer
	locker  Locker
	logger  *slog.Logger

	config ExpireLinkRequestsConfig

	lastExpired atomic.Int64
}

// ExpireLinkRequestsConfig contains configuration for the expiry job.
type ExpireLinkRequestsConfig struct {
	// LockTTL bounds how long the sweep lock is held when a Locker is set.
	LockTTL time.Duration

	// Timeout is the maximum duration for a single sweep.
	Timeout time.Duration
}

// DefaultExpireLinkRequestsConfig returns sensible defaults.
func DefaultExpireLinkRequestsConfig() ExpireLinkRequestsConfig {
	return ExpireLinkRequestsConfig{
		LockTTL: 30 * time.Second,
		Timeout: time.Minute,
	}
}

// NewExpireLinkRequestsJob creates a new expiry job.
// locker may be nil.
func NewExpireLinkRequestsJob(
	expirer LinkRequestExpirer,
	locker Locker,
	logger *slog.Logger,
	config ExpireLinkRequestsConfig,
) *ExpireLinkRequestsJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.LockTTL <= 0 {
		config.LockTTL = 30 * time.Second
	}

	return &ExpireLinkRequestsJob{
		expirer: expirer,
		locker:  locker,
		logger:  logger,
		config:  config,
	}
}

// Name returns the job name.
func (j *ExpireLinkRequestsJob) Name() string {
	return "expire_link_requests"
}

// Description returns a human-readable description.
func (j *ExpireLinkRequestsJob) Description() string {
	return "Expires link requests pending longer than their TTL"
}

// Run executes the expiry sweep.
func (j *ExpireLinkRequestsJob) Run(ctx context.Context) error {
	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	if j.locker != nil {
		acquired, err := j.locker.AcquireLock(ctx, j.Name(), j.config.LockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire sweep lock: %w", err)
		}
		if !acquired {
			j.logger.Info("sweep already running elsewhere, skipping", "job", j.Name())
			return nil
		}
		defer func() {
			if err := j.locker.ReleaseLock(context.WithoutCancel(ctx), j.Name()); err != nil {
				j.logger.Warn("failed to release sweep lock", "job", j.Name(), "error", err)
			}
		}()
	}

	expired, err := j.expirer.CleanupExpired(ctx, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to expire link requests: %w", err)
	}

	j.lastExpired.Store(int64(expired))

	if expired > 0 {
		j.logger.Info("expired stale link requests", "count", expired)
	}

	return nil
}

// LastExpiredCount returns the number of requests expired by the last sweep.
func (j *ExpireLinkRequestsJob) LastExpiredCount() int64 {
	return j.lastExpired.Load()
}
