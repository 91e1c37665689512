// util/scheduler.go

package util

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	logger "github.com/dev-mohitbeniwal/scorecache/logging"
)

// Job is one periodic task.
type Job struct {
	Name     string
	Interval time.Duration
	// Timeout bounds a single run. Zero means Interval.
	Timeout time.Duration
	// RunOnStart runs the job once immediately instead of after Interval.
	RunOnStart bool
	Run        func(ctx context.Context) error
}

// Scheduler runs jobs on fixed intervals. A job never overlaps itself: a
// tick that arrives while the previous run is still going is skipped.
type Scheduler struct {
	jobs    []Job
	wg      sync.WaitGroup
	cancel  context.CancelFunc
	mu      sync.Mutex
	started bool
}

func NewScheduler() *Scheduler {
	return &Scheduler{}
}

func (s *Scheduler) Add(job Job) error {
	if job.Interval <= 0 {
		return fmt.Errorf("job %q: interval must be positive", job.Name)
	}
	if job.Run == nil {
		return fmt.Errorf("job %q: run function is required", job.Name)
	}
	if job.Timeout <= 0 {
		job.Timeout = job.Interval
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("job %q: scheduler already started", job.Name)
	}
	s.jobs = append(s.jobs, job)
	return nil
}

// Start launches every job until ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.loop(ctx, job)
	}
	logger.Info("Scheduler started", zap.Int("jobs", len(s.jobs)))
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	defer s.wg.Done()

	var running atomic.Bool
	var runs sync.WaitGroup
	defer runs.Wait()

	trigger := func() {
		if !running.CompareAndSwap(false, true) {
			logger.Warn("Skipping job run, previous run still in progress", zap.String("job", job.Name))
			return
		}
		runs.Add(1)
		go func() {
			defer runs.Done()
			defer running.Store(false)
			s.runOnce(ctx, job)
		}()
	}

	if job.RunOnStart {
		trigger()
	}

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			trigger()
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, job Job) {
	ctx, cancel := context.WithTimeout(ctx, job.Timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked", zap.String("job", job.Name), zap.Any("panic", r))
		}
	}()

	if err := job.Run(ctx); err != nil {
		logger.Error("Job failed", zap.String("job", job.Name), zap.Duration("duration", time.Since(start)), zap.Error(err))
		return
	}
	logger.Debug("Job completed", zap.String("job", job.Name), zap.Duration("duration", time.Since(start)))
}

// Stop cancels every job and waits for running ones to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	logger.Info("Scheduler stopped")
}
