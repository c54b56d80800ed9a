// Package scheduler runs the reconciliation jobs using gocron v2.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"

	"github.com/jaxspot/billing/internal/shared/biztime"
	"github.com/jaxspot/billing/internal/shared/config"
	"github.com/jaxspot/billing/internal/shared/logger"
)

// Job names, also used as gocron job names and metric labels.
const (
	JobRenewal      = "renewal"
	JobRecovery     = "recovery"
	JobClosing      = "closing"
	JobStalePending = "stale-pending"
)

// BatchJob defines the interface for a scheduled batch processing job.
// Each Execute call processes a batch and returns the number of items processed.
type BatchJob interface {
	Execute(ctx context.Context) (int, error)
}

// RunRecorder receives the outcome of every job run.
type RunRecorder interface {
	ObserveRun(job string, processed int, err error, elapsed time.Duration)
}

// ReconciliationJobs groups the jobs registered by RegisterReconciliationJobs.
// StalePending may be nil.
type ReconciliationJobs struct {
	Renewal      BatchJob
	Recovery     BatchJob
	Closing      BatchJob
	StalePending BatchJob
}

// SchedulerManager owns the gocron scheduler. Every job runs in singleton
// mode so a slow run is never overlapped by its own next tick; different
// jobs may run concurrently.
type SchedulerManager struct {
	scheduler gocron.Scheduler
	cfg       config.SchedulerConfig
	recorder  RunRecorder
	logger    logger.Interface

	// Track whether the scheduler has been started
	started   bool
	startedMu sync.RWMutex
}

// NewSchedulerManager creates a new SchedulerManager instance.
// Cron expressions are evaluated in the business timezone.
func NewSchedulerManager(cfg config.SchedulerConfig, log logger.Interface) (*SchedulerManager, error) {
	scheduler, err := gocron.NewScheduler(
		gocron.WithLocation(biztime.Location()),
	)
	if err != nil {
		return nil, err
	}

	return &SchedulerManager{
		scheduler: scheduler,
		cfg:       cfg,
		logger:    log,
	}, nil
}

// SetRecorder sets the recorder notified after each run.
func (m *SchedulerManager) SetRecorder(recorder RunRecorder) {
	m.recorder = recorder
}

// RegisterReconciliationJobs registers the reconciliation jobs:
// - Renewal: cron, daily at midnight by default
// - Recovery: fixed interval, 30 minutes by default, first run at startup
// - Closing: cron, daily at 01:00 by default
// - Stale pending: cron, daily at 02:00 by default
func (m *SchedulerManager) RegisterReconciliationJobs(jobs ReconciliationJobs) error {
	if err := m.registerCron(JobRenewal, m.cfg.RenewalCron, jobs.Renewal); err != nil {
		return err
	}

	_, err := m.scheduler.NewJob(
		gocron.DurationJob(m.cfg.RecoveryInterval()),
		gocron.NewTask(m.task(JobRecovery, jobs.Recovery)),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithTags("subscription", JobRecovery),
		gocron.WithName(JobRecovery),
	)
	if err != nil {
		return fmt.Errorf("failed to register %s job: %w", JobRecovery, err)
	}

	if err := m.registerCron(JobClosing, m.cfg.ClosingCron, jobs.Closing); err != nil {
		return err
	}

	if jobs.StalePending != nil {
		if err := m.registerCron(JobStalePending, m.cfg.StalePendingCron, jobs.StalePending); err != nil {
			return err
		}
	}

	m.logger.Infow("registered reconciliation jobs",
		"renewal", m.cfg.RenewalCron,
		"recovery_interval", m.cfg.RecoveryInterval(),
		"closing", m.cfg.ClosingCron,
		"stale_pending", m.cfg.StalePendingCron,
		"timezone", biztime.Location().String(),
	)
	return nil
}

func (m *SchedulerManager) registerCron(name, expr string, job BatchJob) error {
	_, err := m.scheduler.NewJob(
		gocron.CronJob(expr, false),
		gocron.NewTask(m.task(name, job)),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithTags("subscription", name),
		gocron.WithName(name),
	)
	if err != nil {
		return fmt.Errorf("failed to register %s job: %w", name, err)
	}
	return nil
}

func (m *SchedulerManager) task(name string, job BatchJob) func() {
	return func() {
		_, _ = m.RunJob(context.Background(), name, job)
	}
}

// RunJob executes job once with run logging and metrics. It is used by the
// scheduled tasks and by one-off runs from the command line.
func (m *SchedulerManager) RunJob(ctx context.Context, name string, job BatchJob) (int, error) {
	runLog := m.logger.With("job", name, "run_id", uuid.NewString())
	runLog.Debugw("reconciliation job started")

	startTime := biztime.NowUTC()
	count, err := job.Execute(ctx)
	elapsed := time.Since(startTime)

	if m.recorder != nil {
		m.recorder.ObserveRun(name, count, err, elapsed)
	}

	if err != nil {
		runLog.Errorw("reconciliation job failed",
			"error", err,
			"processed", count,
			"duration", elapsed,
		)
		return count, err
	}

	if count > 0 {
		runLog.Infow("reconciliation job completed",
			"processed", count,
			"duration", elapsed,
		)
	} else {
		runLog.Debugw("reconciliation job found nothing to do",
			"duration", elapsed,
		)
	}
	return count, nil
}

// ========================================
// Scheduler Lifecycle Methods
// ========================================

// Start starts the scheduler and all registered jobs.
func (m *SchedulerManager) Start() {
	m.startedMu.Lock()
	defer m.startedMu.Unlock()

	if m.started {
		return
	}

	m.scheduler.Start()
	m.started = true
	m.logger.Infow("scheduler manager started", "job_count", len(m.scheduler.Jobs()))
}

// Stop gracefully stops the scheduler.
// It waits for all running jobs to complete before returning.
func (m *SchedulerManager) Stop() error {
	m.startedMu.Lock()
	defer m.startedMu.Unlock()

	if !m.started {
		return m.scheduler.Shutdown()
	}

	m.logger.Infow("stopping scheduler manager")

	err := m.scheduler.Shutdown()
	m.started = false

	if err != nil {
		m.logger.Errorw("scheduler manager shutdown with error", "error", err)
		return err
	}

	m.logger.Infow("scheduler manager stopped")
	return nil
}

// IsStarted returns whether the scheduler is running.
func (m *SchedulerManager) IsStarted() bool {
	m.startedMu.RLock()
	defer m.startedMu.RUnlock()
	return m.started
}

// Jobs returns all registered jobs for inspection.
func (m *SchedulerManager) Jobs() []gocron.Job {
	return m.scheduler.Jobs()
}
