// Package scheduler runs the engine's periodic maintenance jobs: expiring
// stale link requests and refreshing cached parent views. Jobs are
// registered with a schedule, checked once a second, and can be inspected
// or triggered through the HTTP admin surface.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Job is one unit of periodic work.
type Job interface {
	// Name returns the unique job name.
	Name() string

	// Run executes the job. The context is cancelled when the scheduler
	// stops.
	Run(ctx context.Context) error

	// Description is shown on the admin surface.
	Description() string
}

// Schedule decides when a job runs next.
type Schedule interface {
	// Next returns the first run time strictly after t.
	Next(t time.Time) time.Time

	// String renders the schedule for logs and the admin surface.
	String() string
}

// JobResult records one execution.
type JobResult struct {
	JobName     string        `json:"job"`
	StartedAt   time.Time     `json:"startedAt"`
	CompletedAt time.Time     `json:"completedAt"`
	Duration    time.Duration `json:"durationNs"`
	Success     bool          `json:"success"`
	Manual      bool          `json:"manual,omitempty"`
	Error       error         `json:"-"`
	ErrorText   string        `json:"error,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULER
// ══════════════════════════════════════════════════════════════════════════════

// SchedulerConfig configures a Scheduler.
type SchedulerConfig struct {
	// Logger for structured logging.
	Logger *slog.Logger

	// Timezone for schedule calculations (default UTC).
	Timezone *time.Location

	// MaxHistorySize bounds the kept execution history.
	MaxHistorySize int

	// EnableMetrics turns on the execution counters.
	EnableMetrics bool
}

// DefaultSchedulerConfig returns sensible defaults.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Logger:         slog.Default(),
		Timezone:       time.UTC,
		MaxHistorySize: 1000,
		EnableMetrics:  true,
	}
}

// Scheduler owns the registered jobs and the run loop.
type Scheduler struct {
	logger     *slog.Logger
	timezone   *time.Location
	maxHistory int
	metrics    *Metrics

	mu        sync.RWMutex
	jobs      map[string]*entry
	running   bool
	startedAt time.Time
	lastRuns  map[string]*JobResult
	history   []JobResult

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// entry pairs a job with its schedule and bookkeeping.
type entry struct {
	job       Job
	schedule  Schedule
	enabled   bool
	lastRun   time.Time
	nextRun   time.Time
	runCount  int64
	failCount int64
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(config SchedulerConfig) *Scheduler {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Timezone == nil {
		config.Timezone = time.UTC
	}
	if config.MaxHistorySize <= 0 {
		config.MaxHistorySize = 1000
	}

	s := &Scheduler{
		logger:     config.Logger,
		timezone:   config.Timezone,
		maxHistory: config.MaxHistorySize,
		jobs:       make(map[string]*entry),
		lastRuns:   make(map[string]*JobResult),
		history:    make([]JobResult, 0, config.MaxHistorySize),
	}
	if config.EnableMetrics {
		s.metrics = NewMetrics()
	}
	return s
}

// Register adds a job. Registered jobs start enabled.
func (s *Scheduler) Register(job Job, schedule Schedule) error {
	if job == nil {
		return ErrNilJob
	}
	if schedule == nil {
		return ErrNilSchedule
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("%w: %s", ErrJobAlreadyExists, name)
	}

	e := &entry{
		job:      job,
		schedule: schedule,
		enabled:  true,
		nextRun:  schedule.Next(time.Now().In(s.timezone)),
	}
	s.jobs[name] = e

	s.logger.Info("job registered",
		"job", name,
		"schedule", schedule.String(),
		"next_run", e.nextRun.Format(time.RFC3339),
	)
	return nil
}

// EnableJob re-enables a job, recomputing its next run from now.
func (s *Scheduler) EnableJob(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.jobs[name]
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	e.enabled = true
	e.nextRun = e.schedule.Next(time.Now().In(s.timezone))
	s.logger.Info("job enabled", "job", name, "next_run", e.nextRun)
	return nil
}

// DisableJob stops scheduling a job without unregistering it. It can
// still be run manually.
func (s *Scheduler) DisableJob(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.jobs[name]
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	e.enabled = false
	s.logger.Info("job disabled", "job", name)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start begins the run loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrSchedulerAlreadyRunning
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.startedAt = time.Now()
	jobCount := len(s.jobs)
	s.mu.Unlock()

	s.logger.Info("scheduler started", "jobs", jobCount)

	s.wg.Add(1)
	go s.loop()
	return nil
}

// Stop cancels the run loop and waits for in-flight jobs to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("scheduler stopped", "uptime", time.Since(s.startedAt).String())
	return nil
}

// IsRunning reports whether the run loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep launches every enabled job whose next run has passed.
func (s *Scheduler) sweep() {
	now := time.Now().In(s.timezone)

	s.mu.RLock()
	var due []*entry
	for _, e := range s.jobs {
		if e.enabled && !e.nextRun.IsZero() && now.After(e.nextRun) {
			due = append(due, e)
		}
	}
	s.mu.RUnlock()

	for _, e := range due {
		s.wg.Add(1)
		go func(e *entry) {
			defer s.wg.Done()
			s.execute(s.ctx, e, false)
		}(e)
	}
}

// RunNow executes a job immediately, ignoring its schedule and enabled
// flag. The job's own error is returned alongside the recorded result.
func (s *Scheduler) RunNow(ctx context.Context, name string) (*JobResult, error) {
	s.mu.RLock()
	e, exists := s.jobs[name]
	s.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}

	result := s.execute(ctx, e, true)
	return result, result.Error
}

// execute runs one job and records metrics, the last result and history.
// Scheduled runs advance nextRun before the job starts so a slow job
// cannot pile up on itself.
func (s *Scheduler) execute(ctx context.Context, e *entry, manual bool) *JobResult {
	name := e.job.Name()
	startedAt := time.Now()

	s.mu.Lock()
	e.runCount++
	if !manual {
		e.lastRun = startedAt
		e.nextRun = e.schedule.Next(startedAt.In(s.timezone))
	}
	s.mu.Unlock()

	s.logger.Info("job started", "job", name, "manual", manual)
	err := e.job.Run(ctx)
	completedAt := time.Now()

	result := &JobResult{
		JobName:     name,
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		Duration:    completedAt.Sub(startedAt),
		Success:     err == nil,
		Manual:      manual,
		Error:       err,
	}
	if err != nil {
		result.ErrorText = err.Error()
	}

	if s.metrics != nil {
		s.metrics.Record(name, result.Duration, err == nil)
	}

	s.mu.Lock()
	if err != nil {
		e.failCount++
	}
	s.lastRuns[name] = result
	s.history = append(s.history, *result)
	if len(s.history) > s.maxHistory {
		s.history = s.history[len(s.history)-s.maxHistory:]
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("job failed",
			"job", name,
			"duration", result.Duration.String(),
			"error", err,
		)
	} else {
		s.logger.Info("job completed",
			"job", name,
			"duration", result.Duration.String(),
		)
	}
	return result
}

// ══════════════════════════════════════════════════════════════════════════════
// INSPECTION
// ══════════════════════════════════════════════════════════════════════════════

// JobInfo describes a registered job for the admin surface.
type JobInfo struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Enabled     bool       `json:"enabled"`
	Schedule    string     `json:"schedule"`
	LastRun     time.Time  `json:"lastRun"`
	NextRun     time.Time  `json:"nextRun"`
	RunCount    int64      `json:"runCount"`
	FailCount   int64      `json:"failCount"`
	LastResult  *JobResult `json:"lastResult,omitempty"`
}

// ListJobs returns every registered job.
func (s *Scheduler) ListJobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for name := range s.jobs {
		infos = append(infos, s.jobInfo(name))
	}
	return infos
}

// GetJobInfo returns one job by name.
func (s *Scheduler) GetJobInfo(name string) (*JobInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, exists := s.jobs[name]; !exists {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	info := s.jobInfo(name)
	return &info, nil
}

// jobInfo assembles the info snapshot. Callers must hold mu.
func (s *Scheduler) jobInfo(name string) JobInfo {
	e := s.jobs[name]
	return JobInfo{
		Name:        name,
		Description: e.job.Description(),
		Enabled:     e.enabled,
		Schedule:    e.schedule.String(),
		LastRun:     e.lastRun,
		NextRun:     e.nextRun,
		RunCount:    e.runCount,
		FailCount:   e.failCount,
		LastResult:  s.lastRuns[name],
	}
}

// GetHistory returns up to limit most recent executions, oldest first.
// A non-positive limit returns everything.
func (s *Scheduler) GetHistory(limit int) []JobResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}
	out := make([]JobResult, limit)
	copy(out, s.history[len(s.history)-limit:])
	return out
}

// GetMetrics returns the execution counters, nil when disabled.
func (s *Scheduler) GetMetrics() *Metrics {
	return s.metrics
}

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// Metrics counts executions across all jobs.
type Metrics struct {
	mu sync.RWMutex

	totalExecutions int64
	totalSuccesses  int64
	totalFailures   int64
	totalDuration   time.Duration
	executionsByJob map[string]int64
	failuresByJob   map[string]int64
}

// NewMetrics creates an empty counter set.
func NewMetrics() *Metrics {
	return &Metrics{
		executionsByJob: make(map[string]int64),
		failuresByJob:   make(map[string]int64),
	}
}

// Record adds one execution.
func (m *Metrics) Record(jobName string, duration time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalExecutions++
	m.totalDuration += duration
	m.executionsByJob[jobName]++
	if success {
		m.totalSuccesses++
	} else {
		m.totalFailures++
		m.failuresByJob[jobName]++
	}
}

// MetricsSnapshot is a point-in-time summary.
type MetricsSnapshot struct {
	TotalExecutions int64            `json:"totalExecutions"`
	TotalSuccesses  int64            `json:"totalSuccesses"`
	TotalFailures   int64            `json:"totalFailures"`
	SuccessRate     float64          `json:"successRate"`
	AverageDuration time.Duration    `json:"averageDurationNs"`
	ExecutionsByJob map[string]int64 `json:"executionsByJob"`
	FailuresByJob   map[string]int64 `json:"failuresByJob"`
}

// Snapshot copies the counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := MetricsSnapshot{
		TotalExecutions: m.totalExecutions,
		TotalSuccesses:  m.totalSuccesses,
		TotalFailures:   m.totalFailures,
		ExecutionsByJob: make(map[string]int64, len(m.executionsByJob)),
		FailuresByJob:   make(map[string]int64, len(m.failuresByJob)),
	}
	if m.totalExecutions > 0 {
		snap.SuccessRate = float64(m.totalSuccesses) / float64(m.totalExecutions)
		snap.AverageDuration = m.totalDuration / time.Duration(m.totalExecutions)
	}
	for k, v := range m.executionsByJob {
		snap.ExecutionsByJob[k] = v
	}
	for k, v := range m.failuresByJob {
		snap.FailuresByJob[k] = v
	}
	return snap
}

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULES AND ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// IntervalSchedule runs a job at a fixed interval.
type IntervalSchedule struct {
	Interval time.Duration
}

// NewIntervalSchedule creates an interval schedule.
func NewIntervalSchedule(interval time.Duration) *IntervalSchedule {
	return &IntervalSchedule{Interval: interval}
}

// Next returns t plus the interval.
func (s *IntervalSchedule) Next(t time.Time) time.Time {
	return t.Add(s.Interval)
}

// String renders the schedule.
func (s *IntervalSchedule) String() string {
	return fmt.Sprintf("@every %s", s.Interval.String())
}

var (
	ErrNilJob                  = fmt.Errorf("job cannot be nil")
	ErrNilSchedule             = fmt.Errorf("schedule cannot be nil")
	ErrJobAlreadyExists        = fmt.Errorf("job already exists")
	ErrJobNotFound             = fmt.Errorf("job not found")
	ErrSchedulerAlreadyRunning = fmt.Errorf("scheduler is already running")
	ErrSchedulerNotRunning     = fmt.Errorf("scheduler is not running")
)
