package job

import (
	"context"
	"sync"
	"time"

	"imgproxy/utils/logger"
)

const defaultJobTimeout = time.Minute

// Job is a periodic background task.
type Job struct {
	Name     string
	Interval time.Duration
	Timeout  time.Duration
	// RunOnStart runs Fn once before the first tick.
	RunOnStart bool
	Fn         func(ctx context.Context) error
}

// JobScheduler runs registered jobs until its context is cancelled.
type JobScheduler struct {
	mu      sync.Mutex
	jobs    []Job
	started bool
	wg      sync.WaitGroup
}

func NewJobScheduler() *JobScheduler {
	return &JobScheduler{}
}

// Add registers a job. Jobs added after Start are ignored.
func (s *JobScheduler) Add(j Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		logger.SafeWarnContext(context.Background(), "job added after scheduler start", "job", j.Name)
		return
	}
	s.jobs = append(s.jobs, j)
}

// Start launches one goroutine per job. Jobs with a non-positive interval
// are skipped.
func (s *JobScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	for _, j := range s.jobs {
		if j.Interval <= 0 {
			logger.SafeWarnContext(ctx, "job disabled", "job", j.Name, "interval", j.Interval)
			continue
		}
		if j.Timeout <= 0 {
			j.Timeout = defaultJobTimeout
		}
		s.wg.Add(1)
		go s.runJob(ctx, j)
	}
}

func (s *JobScheduler) runJob(ctx context.Context, j Job) {
	defer s.wg.Done()

	if j.RunOnStart {
		s.executeJob(ctx, j)
	}

	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.SafeInfoContext(ctx, "job stopping", "job", j.Name)
			return
		case <-ticker.C:
			s.executeJob(ctx, j)
		}
	}
}

func (s *JobScheduler) executeJob(ctx context.Context, j Job) {
	if ctx.Err() != nil {
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, j.Timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			logger.SafeErrorContext(ctx, "job panicked", "job", j.Name, "panic", r)
		}
	}()

	if err := j.Fn(jobCtx); err != nil {
		logger.SafeErrorContext(ctx, "job failed", "job", j.Name, "error", err)
	}
}

// Shutdown blocks until every running job has returned.
func (s *JobScheduler) Shutdown() {
	s.wg.Wait()
}
