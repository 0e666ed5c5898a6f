package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banking/compliance-service/internal/pkg/logger"
)

// JobFunc is one periodic unit of work
type JobFunc func(ctx context.Context) error

type job struct {
	name     string
	interval time.Duration
	run      JobFunc
	running  atomic.Bool
}

// Scheduler runs registered jobs on fixed intervals. A tick that
// arrives while the previous run of the same job is still in flight is
// skipped, so a slow sweep never stacks up behind itself.
type Scheduler struct {
	jobs []*job
	log  *logger.Logger
}

// New creates an empty scheduler
func New(log *logger.Logger) *Scheduler {
	return &Scheduler{log: log.Named("scheduler")}
}

// Register adds a job. Must be called before Start.
func (s *Scheduler) Register(name string, interval time.Duration, fn JobFunc) {
	s.jobs = append(s.jobs, &job{name: name, interval: interval, run: fn})
}

// Start runs all registered jobs until the context is cancelled, then
// waits for in-flight runs to drain.
func (s *Scheduler) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, j := range s.jobs {
		j := j
		g.Go(func() error {
			ticker := time.NewTicker(j.interval)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					s.dispatch(ctx, g, j)
				}
			}
		})
	}

	return g.Wait()
}

func (s *Scheduler) dispatch(ctx context.Context, g *errgroup.Group, j *job) {
	if !j.running.CompareAndSwap(false, true) {
		s.log.JobSkipped(j.name)
		return
	}

	g.Go(func() error {
		defer j.running.Store(false)

		s.log.JobStarted(j.name)
		start := time.Now()
		if err := j.run(ctx); err != nil {
			s.log.Error("job failed",
				logger.StringField("job", j.name),
				logger.DurationField("duration", time.Since(start)),
				logger.ErrorField(err))
			return nil
		}
		s.log.Debug("job finished",
			logger.StringField("job", j.name),
			logger.DurationField("duration", time.Since(start)))
		return nil
	})
}
