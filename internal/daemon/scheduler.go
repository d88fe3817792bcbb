package daemon

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	ierrors "git.home.luguber.info/inful/inflight/internal/errors"
	"git.home.luguber.info/inful/inflight/internal/logfields"
)

// Scheduler wraps gocron for the periodic snapshot pass.
type Scheduler struct {
	scheduler gocron.Scheduler

	mu           sync.Mutex
	snapshotFunc func()
	snapshotJob  gocron.Job
}

// NewScheduler creates a new scheduler instance.
func NewScheduler() (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, ierrors.WrapError(err, ierrors.CategoryDaemon, "failed to create gocron scheduler")
	}

	return &Scheduler{
		scheduler: s,
	}, nil
}

// SetSnapshotFunc injects the function executed on every snapshot tick.
func (s *Scheduler) SetSnapshotFunc(f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshotFunc = f
}

// Start begins the scheduler.
func (s *Scheduler) Start(ctx context.Context) {
	slog.Info("Starting scheduler")
	s.scheduler.Start()
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	slog.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}

// ScheduleSnapshots schedules the periodic snapshot job.
func (s *Scheduler) ScheduleSnapshots(interval time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduleSnapshotsLocked(interval)
}

func (s *Scheduler) scheduleSnapshotsLocked(interval time.Duration) error {
	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.executeSnapshot),
		gocron.WithName("snapshot"),
	)
	if err != nil {
		return ierrors.WrapError(err, ierrors.CategoryDaemon, "failed to create snapshot job").
			WithContext("interval", interval.String())
	}

	s.snapshotJob = job
	slog.Info("Scheduled periodic snapshots", logfields.Interval(interval.String()))
	return nil
}

// RescheduleSnapshots replaces the snapshot job with a new interval.
func (s *Scheduler) RescheduleSnapshots(interval time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snapshotJob == nil {
		return s.scheduleSnapshotsLocked(interval)
	}

	job, err := s.scheduler.Update(
		s.snapshotJob.ID(),
		gocron.DurationJob(interval),
		gocron.NewTask(s.executeSnapshot),
		gocron.WithName("snapshot"),
	)
	if err != nil {
		return ierrors.WrapError(err, ierrors.CategoryDaemon, "failed to reschedule snapshot job").
			WithContext("interval", interval.String())
	}

	s.snapshotJob = job
	return nil
}

// executeSnapshot is called by gocron on every tick.
func (s *Scheduler) executeSnapshot() {
	s.mu.Lock()
	f := s.snapshotFunc
	s.mu.Unlock()

	if f == nil {
		slog.Error("Scheduler snapshot function not set")
		return
	}
	f()
}
