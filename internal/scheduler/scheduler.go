package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	ierr "github.com/vidinfra/subflow/internal/errors"
	"github.com/vidinfra/subflow/internal/logger"
	"github.com/vidinfra/subflow/internal/types"
)

// Job binds one scheduled trigger to its cadence. Handlers take the run's
// reference time explicitly so tests can drive them without real timers;
// the cron runner is just a dispatcher.
type Job struct {
	Name    string
	Spec    string
	Handler func(ctx context.Context, now time.Time) error
}

// Scheduler runs a registry of jobs on their cron cadences. Each job skips
// a tick while its previous run is still in flight; handler errors are
// logged, never fatal. All cadences evaluate in UTC.
type Scheduler struct {
	cron   *cron.Cron
	logger *logger.Logger

	mu      sync.Mutex
	jobs    []Job
	running map[string]bool
}

// New creates a scheduler with an empty registry
func New(logger *logger.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		logger:  logger,
		running: make(map[string]bool),
	}
}

// Register adds a job to the registry and schedules it
func (s *Scheduler) Register(job Job) error {
	if job.Name == "" || job.Handler == nil {
		return ierr.NewError("invalid job").
			WithHint("A job needs a name and a handler").
			Mark(ierr.ErrValidation)
	}

	if _, err := s.cron.AddFunc(job.Spec, func() {
		s.run(job)
	}); err != nil {
		return ierr.WithError(err).
			WithHint("Invalid cron spec").
			WithReportableDetails(map[string]any{
				"job":  job.Name,
				"spec": job.Spec,
			}).
			Mark(ierr.ErrValidation)
	}

	s.mu.Lock()
	s.jobs = append(s.jobs, job)
	s.mu.Unlock()

	s.logger.Infow("registered scheduled job", "job", job.Name, "spec", job.Spec)
	return nil
}

// RegisterAll registers every job, failing on the first invalid one
func (s *Scheduler) RegisterAll(jobs []Job) error {
	for _, job := range jobs {
		if err := s.Register(job); err != nil {
			return err
		}
	}
	return nil
}

// Jobs returns a snapshot of the registry
func (s *Scheduler) Jobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Job, len(s.jobs))
	copy(out, s.jobs)
	return out
}

// Start begins dispatching. Returns immediately; jobs run on the cron's
// own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Infow("scheduler started", "jobs", len(s.Jobs()))
}

// Stop stops dispatching and waits for in-flight runs to finish
func (s *Scheduler) Stop(ctx context.Context) error {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
		s.logger.Infow("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run executes one tick of a job unless its previous run is still going
func (s *Scheduler) run(job Job) {
	s.mu.Lock()
	if s.running[job.Name] {
		s.mu.Unlock()
		s.logger.Warnw("skipping job tick, previous run still in flight", "job", job.Name)
		return
	}
	s.running[job.Name] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running[job.Name] = false
		s.mu.Unlock()
	}()

	runID := types.GenerateShortIDWithPrefix(types.SHORT_ID_PREFIX_SCHEDULER_RUN)
	now := time.Now().UTC()
	started := time.Now()

	s.logger.Infow("running scheduled job", "job", job.Name, "run_id", runID)

	if err := job.Handler(context.Background(), now); err != nil {
		s.logger.Errorw("scheduled job failed",
			"job", job.Name,
			"run_id", runID,
			"error", err,
			"duration", time.Since(started),
		)
		return
	}

	s.logger.Infow("scheduled job finished",
		"job", job.Name,
		"run_id", runID,
		"duration", time.Since(started),
	)
}
