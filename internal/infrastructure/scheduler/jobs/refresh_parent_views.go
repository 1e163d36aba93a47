package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// ViewRefresher rebuilds the aggregated parent view for every active link.
// The syncagg service satisfies it.
type ViewRefresher interface {
	RefreshAll(ctx context.Context) (int, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// REFRESH PARENT VIEWS JOB
// ══════════════════════════════════════════════════════════════════════════════

// RefreshParentViewsJob re-runs the cross-role aggregator for each active
// parent-student link so cached views stay close to live data even when no
// event invalidated them.
type RefreshParentViewsJob struct {
	refresher ViewRefresher
	locker    Locker
	logger    *slog.Logger

	config RefreshParentViewsConfig

	lastStats atomic.Value // *RefreshStats
}

// RefreshParentViewsConfig contains configuration for the refresh job.
type RefreshParentViewsConfig struct {
	// LockTTL bounds how long the refresh lock is held when a Locker is set.
	LockTTL time.Duration

	// Timeout is the maximum duration for a full refresh pass.
	Timeout time.Duration
}

// DefaultRefreshParentViewsConfig returns sensible defaults.
func DefaultRefreshParentViewsConfig() RefreshParentViewsConfig {
	return RefreshParentViewsConfig{
		LockTTL: 30 * time.Second,
		Timeout: 5 * time.Minute,
	}
}

// RefreshStats contains statistics from a refresh run.
type RefreshStats struct {
	StartedAt      time.Time
	CompletedAt    time.Time
	Duration       time.Duration
	RefreshedCount int
}

// NewRefreshParentViewsJob creates a new refresh job.
// locker may be nil.
func NewRefreshParentViewsJob(
	refresher ViewRefresher,
	locker Locker,
	logger *slog.Logger,
	config RefreshParentViewsConfig,
) *RefreshParentViewsJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.LockTTL <= 0 {
		config.LockTTL = 30 * time.Second
	}

	return &RefreshParentViewsJob{
		refresher: refresher,
		locker:    locker,
		logger:    logger,
		config:    config,
	}
}

// Name returns the job name.
func (j *RefreshParentViewsJob) Name() string {
	return "refresh_parent_views"
}

// Description returns a human-readable description.
func (j *RefreshParentViewsJob) Description() string {
	return "Rebuilds aggregated parent views for all active links"
}

// Run executes a full refresh pass.
func (j *RefreshParentViewsJob) Run(ctx context.Context) error {
	startedAt := time.Now()

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	if j.locker != nil {
		acquired, err := j.locker.AcquireLock(ctx, j.Name(), j.config.LockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire refresh lock: %w", err)
		}
		if !acquired {
			j.logger.Info("refresh already running elsewhere, skipping", "job", j.Name())
			return nil
		}
		defer func() {
			if err := j.locker.ReleaseLock(context.WithoutCancel(ctx), j.Name()); err != nil {
				j.logger.Warn("failed to release refresh lock", "job", j.Name(), "error", err)
			}
		}()
	}

	refreshed, err := j.refresher.RefreshAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh parent views: %w", err)
	}

	completedAt := time.Now()
	j.lastStats.Store(&RefreshStats{
		StartedAt:      startedAt,
		CompletedAt:    completedAt,
		Duration:       completedAt.Sub(startedAt),
		RefreshedCount: refreshed,
	})

	j.logger.Info("parent views refreshed",
		"count", refreshed,
		"duration", completedAt.Sub(startedAt).String(),
	)

	return nil
}

// LastStats returns statistics from the last refresh run.
func (j *RefreshParentViewsJob) LastStats() *RefreshStats {
	stats := j.lastStats.Load()
	if stats == nil {
		return nil
	}
	return stats.(*RefreshStats)
}
