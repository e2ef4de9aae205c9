// Package scheduler runs the background jobs of Movie Night Hub: periodic
// progress autosave, snapshot backups and leaderboard cache warming. Jobs are
// registered with either an interval schedule or a cron expression.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONTRACTS
// ══════════════════════════════════════════════════════════════════════════════

// Job is a unit of background work.
type Job interface {
	// Name returns the unique name of the job.
	Name() string

	// Run executes the job. The context is cancelled on scheduler shutdown.
	Run(ctx context.Context) error

	// Description returns a human-readable description of the job.
	Description() string
}

// Schedule decides when a job runs next.
type Schedule interface {
	// Next returns the next run time strictly after t.
	Next(t time.Time) time.Time

	// String returns a human-readable representation of the schedule.
	String() string
}

// JobResult records one execution of a job.
type JobResult struct {
	JobName     string
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Success     bool
	Error       error
	Metadata    map[string]interface{}
}

var (
	ErrNilJob                  = errors.New("job cannot be nil")
	ErrNilSchedule             = errors.New("schedule cannot be nil")
	ErrJobAlreadyExists        = errors.New("job already exists")
	ErrJobNotFound             = errors.New("job not found")
	ErrSchedulerAlreadyRunning = errors.New("scheduler is already running")
	ErrSchedulerNotRunning     = errors.New("scheduler is not running")
)

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULER
// ══════════════════════════════════════════════════════════════════════════════

// SchedulerConfig configures a Scheduler.
type SchedulerConfig struct {
	// Logger for structured logging.
	Logger *slog.Logger

	// Timezone for schedule calculations. Defaults to UTC.
	Timezone *time.Location

	// MaxHistorySize caps the number of retained job results.
	MaxHistorySize int

	// EnableMetrics turns on execution metrics.
	EnableMetrics bool
}

// DefaultSchedulerConfig returns the configuration used by cmd/hub.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Logger:         slog.Default(),
		Timezone:       time.UTC,
		MaxHistorySize: 1000,
		EnableMetrics:  true,
	}
}

// jobEntry pairs a job with its schedule and bookkeeping.
type jobEntry struct {
	job       Job
	schedule  Schedule
	enabled   bool
	lastRun   time.Time
	nextRun   time.Time
	runCount  int64
	failCount int64
}

// Scheduler owns job registration, the tick loop and execution history.
type Scheduler struct {
	mu sync.RWMutex

	logger     *slog.Logger
	timezone   *time.Location
	maxHistory int

	entries   map[string]*jobEntry
	running   bool
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startedAt time.Time

	metrics  *SchedulerMetrics
	lastRuns map[string]*JobResult
	history  []JobResult

	onJobStart    func(jobName string)
	onJobComplete func(result JobResult)
	onJobError    func(jobName string, err error)
}

// NewScheduler creates a Scheduler. Zero-value config fields get defaults.
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
		entries:    make(map[string]*jobEntry),
		lastRuns:   make(map[string]*JobResult),
		history:    make([]JobResult, 0, config.MaxHistorySize),
	}
	if config.EnableMetrics {
		s.metrics = NewSchedulerMetrics()
	}
	return s
}

// ──────────────────────────────────────────────
// Registration
// ──────────────────────────────────────────────

// Register adds a job under its own name. Names must be unique.
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
	if _, taken := s.entries[name]; taken {
		return fmt.Errorf("%w: %s", ErrJobAlreadyExists, name)
	}

	entry := &jobEntry{
		job:      job,
		schedule: schedule,
		enabled:  true,
		nextRun:  schedule.Next(time.Now().In(s.timezone)),
	}
	s.entries[name] = entry

	s.logger.Info("job registered",
		"job", name,
		"description", job.Description(),
		"next_run", entry.nextRun.Format(time.RFC3339),
	)
	return nil
}

// Unregister removes a job.
func (s *Scheduler) Unregister(jobName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[jobName]; !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobName)
	}
	delete(s.entries, jobName)
	s.logger.Info("job unregistered", "job", jobName)
	return nil
}

// EnableJob re-enables a job and recomputes its next run.
func (s *Scheduler) EnableJob(jobName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[jobName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobName)
	}
	entry.enabled = true
	entry.nextRun = entry.schedule.Next(time.Now().In(s.timezone))
	s.logger.Info("job enabled", "job", jobName, "next_run", entry.nextRun)
	return nil
}

// DisableJob keeps a job registered but skips its runs.
func (s *Scheduler) DisableJob(jobName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[jobName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobName)
	}
	entry.enabled = false
	s.logger.Info("job disabled", "job", jobName)
	return nil
}

// ──────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────

// Start launches the tick loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrSchedulerAlreadyRunning
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("scheduler started", "jobs_count", len(s.entries))

	s.wg.Add(1)
	go s.tickLoop()
	return nil
}

// Stop cancels the loop and waits for in-flight jobs.
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

// IsRunning reports whether the tick loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// tickLoop wakes every second and fires due jobs.
func (s *Scheduler) tickLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.fireDue()
		}
	}
}

// fireDue launches every enabled job whose next run has passed.
func (s *Scheduler) fireDue() {
	now := time.Now().In(s.timezone)

	s.mu.Lock()
	var due []*jobEntry
	for _, entry := range s.entries {
		if entry.enabled && !entry.nextRun.IsZero() && now.After(entry.nextRun) {
			entry.lastRun = now
			entry.nextRun = entry.schedule.Next(now)
			entry.runCount++
			due = append(due, entry)
		}
	}
	s.mu.Unlock()

	for _, entry := range due {
		s.wg.Add(1)
		go func(e *jobEntry) {
			defer s.wg.Done()
			s.execute(s.ctx, e, nil)
		}(entry)
	}
}

// execute runs a job once and records the outcome. extraMeta is merged into
// the result's metadata.
func (s *Scheduler) execute(ctx context.Context, entry *jobEntry, extraMeta map[string]interface{}) JobResult {
	jobName := entry.job.Name()
	startedAt := time.Now()

	if s.onJobStart != nil {
		s.onJobStart(jobName)
	}
	s.logger.Info("job started", "job", jobName)

	err := entry.job.Run(ctx)
	completedAt := time.Now()

	result := JobResult{
		JobName:     jobName,
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		Duration:    completedAt.Sub(startedAt),
		Success:     err == nil,
		Error:       err,
		Metadata:    map[string]interface{}{},
	}
	for k, v := range extraMeta {
		result.Metadata[k] = v
	}

	if s.metrics != nil {
		s.metrics.RecordExecution(jobName, result.Duration, err == nil)
	}

	s.mu.Lock()
	if err != nil {
		entry.failCount++
	}
	s.lastRuns[jobName] = &result
	s.history = append(s.history, result)
	if len(s.history) > s.maxHistory {
		s.history = s.history[len(s.history)-s.maxHistory:]
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("job failed", "job", jobName, "duration", result.Duration.String(), "error", err)
		if s.onJobError != nil {
			s.onJobError(jobName, err)
		}
	} else {
		s.logger.Info("job completed", "job", jobName, "duration", result.Duration.String())
	}

	if s.onJobComplete != nil {
		s.onJobComplete(result)
	}
	return result
}

// RunNow executes a job immediately, outside its schedule.
func (s *Scheduler) RunNow(ctx context.Context, jobName string) (*JobResult, error) {
	s.mu.RLock()
	entry, ok := s.entries[jobName]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobName)
	}

	result := s.execute(ctx, entry, map[string]interface{}{"manual": true})
	return &result, result.Error
}

// ──────────────────────────────────────────────
// Introspection
// ──────────────────────────────────────────────

// JobInfo describes a registered job and its last outcome.
type JobInfo struct {
	Name        string
	Description string
	Enabled     bool
	Schedule    string
	LastRun     time.Time
	NextRun     time.Time
	RunCount    int64
	FailCount   int64
	LastResult  *JobResult
}

func (s *Scheduler) infoLocked(name string, entry *jobEntry) JobInfo {
	return JobInfo{
		Name:        name,
		Description: entry.job.Description(),
		Enabled:     entry.enabled,
		Schedule:    entry.schedule.String(),
		LastRun:     entry.lastRun,
		NextRun:     entry.nextRun,
		RunCount:    entry.runCount,
		FailCount:   entry.failCount,
		LastResult:  s.lastRuns[name],
	}
}

// ListJobs returns info for every registered job.
func (s *Scheduler) ListJobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]JobInfo, 0, len(s.entries))
	for name, entry := range s.entries {
		infos = append(infos, s.infoLocked(name, entry))
	}
	return infos
}

// GetJobInfo returns info for one job.
func (s *Scheduler) GetJobInfo(jobName string) (*JobInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[jobName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobName)
	}
	info := s.infoLocked(jobName, entry)
	return &info, nil
}

// GetHistory returns the most recent job results, oldest first.
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

// GetMetrics returns the metrics tracker, nil when disabled.
func (s *Scheduler) GetMetrics() *SchedulerMetrics {
	return s.metrics
}

// OnJobStart sets a callback invoked before each run.
func (s *Scheduler) OnJobStart(fn func(jobName string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onJobStart = fn
}

// OnJobComplete sets a callback invoked after each run.
func (s *Scheduler) OnJobComplete(fn func(result JobResult)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onJobComplete = fn
}

// OnJobError sets a callback invoked after a failed run.
func (s *Scheduler) OnJobError(fn func(jobName string, err error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onJobError = fn
}

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// SchedulerMetrics accumulates execution counters per job.
type SchedulerMetrics struct {
	mu sync.RWMutex

	TotalExecutions int64
	TotalSuccesses  int64
	TotalFailures   int64
	TotalDuration   time.Duration

	ExecutionsByJob map[string]int64
	FailuresByJob   map[string]int64
	DurationsByJob  map[string]time.Duration
	LastExecutions  map[string]time.Time
}

// NewSchedulerMetrics creates an empty tracker.
func NewSchedulerMetrics() *SchedulerMetrics {
	return &SchedulerMetrics{
		ExecutionsByJob: make(map[string]int64),
		FailuresByJob:   make(map[string]int64),
		DurationsByJob:  make(map[string]time.Duration),
		LastExecutions:  make(map[string]time.Time),
	}
}

// RecordExecution adds one run to the counters.
func (m *SchedulerMetrics) RecordExecution(jobName string, duration time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalExecutions++
	m.TotalDuration += duration
	m.ExecutionsByJob[jobName]++
	m.DurationsByJob[jobName] += duration
	m.LastExecutions[jobName] = time.Now()

	if success {
		m.TotalSuccesses++
	} else {
		m.TotalFailures++
		m.FailuresByJob[jobName]++
	}
}

// MetricsSnapshot is a point-in-time view of the counters.
type MetricsSnapshot struct {
	TotalExecutions int64
	TotalSuccesses  int64
	TotalFailures   int64
	SuccessRate     float64
	AverageDuration time.Duration
}

// Snapshot computes derived rates under the read lock.
func (m *SchedulerMetrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := MetricsSnapshot{
		TotalExecutions: m.TotalExecutions,
		TotalSuccesses:  m.TotalSuccesses,
		TotalFailures:   m.TotalFailures,
	}
	if m.TotalExecutions > 0 {
		snap.SuccessRate = float64(m.TotalSuccesses) / float64(m.TotalExecutions)
		snap.AverageDuration = m.TotalDuration / time.Duration(m.TotalExecutions)
	}
	return snap
}
