package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"podigest/internal/logging"
	"podigest/internal/services"
)

// ErrAlreadyRunning reports that another daemon holds the lock.
var ErrAlreadyRunning = errors.New("another podigest daemon instance is already running")

// JobFunc is one scheduled unit of work.
type JobFunc func(ctx context.Context) error

// Job names a scheduled unit of work and its cron expression.
type Job struct {
	Name string
	Spec string
	Run  JobFunc
}

// Options configures a Scheduler.
type Options struct {
	LockPath   string
	Jobs       []Job
	RunOnStart bool
	// WarmUp runs once after the lock is acquired and before any job.
	WarmUp func(ctx context.Context)
}

// Scheduler owns the cron loop and the single-instance lock.
type Scheduler struct {
	opts   Options
	lock   *flock.Flock
	logger *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	entries map[string]cron.EntryID
	running sync.WaitGroup
}

// New validates the job specs and constructs a Scheduler.
func New(opts Options, logger *slog.Logger) (*Scheduler, error) {
	if opts.LockPath == "" {
		return nil, errors.New("scheduler lock path is required")
	}
	for _, job := range opts.Jobs {
		if job.Run == nil {
			return nil, fmt.Errorf("job %q has no function", job.Name)
		}
		if _, err := cron.ParseStandard(job.Spec); err != nil {
			return nil, fmt.Errorf("job %q: %w", job.Name, err)
		}
	}
	return &Scheduler{
		opts:   opts,
		lock:   flock.New(opts.LockPath),
		logger: logging.NewComponentLogger(logger, "scheduler"),
	}, nil
}

// Run acquires the lock, starts the cron loop and blocks until ctx is
// cancelled. In-flight jobs are allowed to observe the cancellation and
// finish before Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	ok, err := s.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Warn("failed to release daemon lock", logging.Error(err))
		}
	}()

	if s.opts.WarmUp != nil {
		s.opts.WarmUp(ctx)
	}

	adapter := cronLogger{logger: s.logger}
	c := cron.New(cron.WithLogger(adapter))
	chain := cron.NewChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter))
	wrapped := make([]cron.Job, 0, len(s.opts.Jobs))
	entries := make(map[string]cron.EntryID, len(s.opts.Jobs))
	for _, job := range s.opts.Jobs {
		wrappedJob := chain.Then(s.jobFor(ctx, job))
		id, err := c.AddJob(job.Spec, wrappedJob)
		if err != nil {
			return fmt.Errorf("schedule %s: %w", job.Name, err)
		}
		wrapped = append(wrapped, wrappedJob)
		entries[job.Name] = id
	}

	s.mu.Lock()
	s.cron = c
	s.entries = entries
	s.mu.Unlock()

	c.Start()
	s.logSchedule()

	if s.opts.RunOnStart {
		s.running.Add(1)
		go func() {
			defer s.running.Done()
			s.logger.Info("running initial pass", logging.String(logging.FieldEventType, "initial_run"))
			for _, job := range wrapped {
				if ctx.Err() != nil {
					return
				}
				job.Run()
			}
		}()
	}

	<-ctx.Done()
	s.logger.Info("scheduler stopping; waiting for running jobs")
	<-c.Stop().Done()
	s.running.Wait()
	s.logger.Info("scheduler stopped")
	return nil
}

// NextRuns returns the next fire time of every scheduled job. It is empty
// until Run has started the loop.
func (s *Scheduler) NextRuns() map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron == nil {
		return nil
	}
	out := make(map[string]time.Time, len(s.entries))
	for name, id := range s.entries {
		out[name] = s.cron.Entry(id).Next
	}
	return out
}

func (s *Scheduler) jobFor(ctx context.Context, job Job) cron.Job {
	return cron.FuncJob(func() {
		if ctx.Err() != nil {
			return
		}
		runCtx := services.WithRunID(ctx, uuid.NewString())
		logger := logging.WithContext(runCtx, s.logger).With(logging.String("job", job.Name))
		started := time.Now()
		logger.Info("job started", logging.String(logging.FieldEventType, "job_start"))
		if err := job.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			logging.ErrorWithContext(logger, "job failed", "job_failure",
				logging.Error(err),
				logging.Duration("elapsed", time.Since(started)),
			)
			return
		}
		logger.Info("job finished",
			logging.Duration("elapsed", time.Since(started)),
			logging.String(logging.FieldEventType, "job_complete"),
		)
	})
}

func (s *Scheduler) logSchedule() {
	next := s.NextRuns()
	for _, job := range s.opts.Jobs {
		s.logger.Info("job scheduled",
			logging.String("job", job.Name),
			logging.String("schedule", job.Spec),
			logging.String("next_run", next[job.Name].Format(time.RFC3339)),
		)
	}
}

// cronLogger routes cron's own messages through slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append([]any{logging.Error(err)}, keysAndValues...)...)
}
