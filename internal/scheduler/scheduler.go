// Package scheduler runs periodic jobs (the watchlist sync) on a cron
// schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultJobTimeout bounds one job run.
const DefaultJobTimeout = 30 * time.Minute

// ErrJobRunning is returned by RunNow when the named job is already running,
// whether it was started by the cron schedule or by another RunNow.
var ErrJobRunning = errors.New("scheduler: job already running")

// Job represents a scheduled task.
type Job func(ctx context.Context) error

// Scheduler manages periodic tasks.
//
// A job never runs twice at once. A tick that arrives while the job is
// running (from its schedule or from RunNow) is skipped, and RunNow returns
// ErrJobRunning. Stop cancels the context of any running job.
type Scheduler struct {
	cron       *cron.Cron
	timezone   *time.Location
	jobTimeout time.Duration
	logger     *slog.Logger

	mu      sync.Mutex
	jobs    map[string]cron.EntryID
	running map[string]bool

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a scheduler in the given IANA timezone ("UTC", "Asia/Kolkata").
func New(timezone string, jobTimeout time.Duration, logger *slog.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %s: %w", timezone, err)
	}
	if jobTimeout <= 0 {
		jobTimeout = DefaultJobTimeout
	}

	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:       c,
		timezone:   loc,
		jobTimeout: jobTimeout,
		logger:     logger,
		jobs:       make(map[string]cron.EntryID),
		running:    make(map[string]bool),
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// AddJob adds a job with a cron schedule. Standard five-field specs
// ("0 */6 * * *") and descriptors ("@every 6h", "@daily") are accepted.
// Adding a name that already exists replaces the old job.
func (s *Scheduler) AddJob(name, schedule string, job Job) error {
	entryID, err := s.cron.AddFunc(schedule, func() {
		err := s.run(context.Background(), name, job)
		switch {
		case errors.Is(err, ErrJobRunning):
			s.logger.Info("scheduled job skipped, still running", slog.String("job", name))
		case err != nil:
			s.logger.Error("scheduled job failed",
				slog.String("job", name),
				slog.String("error", err.Error()),
			)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}

	s.mu.Lock()
	if old, ok := s.jobs[name]; ok {
		s.cron.Remove(old)
	}
	s.jobs[name] = entryID
	s.mu.Unlock()

	s.logger.Info("job scheduled",
		slog.String("job", name),
		slog.String("schedule", schedule),
		slog.String("timezone", s.timezone.String()),
	)
	return nil
}

// RemoveJob removes a scheduled job.
func (s *Scheduler) RemoveJob(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entryID, ok := s.jobs[name]; ok {
		s.cron.Remove(entryID)
		delete(s.jobs, name)
		s.logger.Info("job removed", slog.String("job", name))
	}
}

// Start begins running scheduled jobs in the background.
func (s *Scheduler) Start() {
	s.logger.Info("scheduler starting")
	s.cron.Start()
}

// Stop halts the scheduler and cancels running jobs. The returned context is
// done once every running job has returned.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("scheduler stopping")
	s.cancel()
	return s.cron.Stop()
}

// RunNow executes job immediately, outside the schedule, under the same
// overlap guard and timeout as a scheduled run. ctx is the caller's; the
// job is also cancelled when the scheduler stops.
func (s *Scheduler) RunNow(ctx context.Context, name string, job Job) error {
	return s.run(ctx, name, job)
}

func (s *Scheduler) run(ctx context.Context, name string, job Job) error {
	s.mu.Lock()
	if s.running[name] {
		s.mu.Unlock()
		return ErrJobRunning
	}
	s.running[name] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.running, name)
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, s.jobTimeout)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	s.logger.Info("job started", slog.String("job", name))
	start := time.Now()

	if err := job(ctx); err != nil {
		return err
	}
	s.logger.Info("job completed",
		slog.String("job", name),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

// JobInfo contains information about a scheduled job.
type JobInfo struct {
	Name    string    `json:"name"`
	NextRun time.Time `json:"nextRun"`
	LastRun time.Time `json:"lastRun"`
}

// ListJobs returns info about scheduled jobs, sorted by name.
func (s *Scheduler) ListJobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for name, entryID := range s.jobs {
		entry := s.cron.Entry(entryID)
		if !entry.Valid() {
			continue
		}
		infos = append(infos, JobInfo{
			Name:    name,
			NextRun: entry.Next,
			LastRun: entry.Prev,
		})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}
