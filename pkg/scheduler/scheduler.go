package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	applogger "MarketPulse/pkg/logger"
)

// Job is a unit of scheduled work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// JobFunc adapts a function to Job.
type JobFunc struct {
	JobName string
	Fn      func(ctx context.Context) error
}

func (j JobFunc) Name() string                  { return j.JobName }
func (j JobFunc) Run(ctx context.Context) error { return j.Fn(ctx) }

// Scheduler runs jobs on cron schedules. A run still in progress when its next tick fires is
// not started twice.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	l      *applogger.Logger
}

// Parser accepts standard five-field specs, an optional leading seconds field and descriptors
// such as @daily or @every 1h.
var Parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

func New(l *applogger.Logger) *Scheduler {
	if l == nil {
		l = applogger.Nop()
	}
	l = l.Component("scheduler")
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(Parser),
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		ctx:    ctx,
		cancel: cancel,
		l:      l,
	}
}

// AddJob registers job under spec.
func (s *Scheduler) AddJob(spec string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() { s.run(job) })
	if err != nil {
		return fmt.Errorf("schedule %s %q: %w", job.Name(), spec, err)
	}
	s.l.Info("job registered", applogger.String("job", job.Name()), applogger.String("schedule", spec))
	return nil
}

// Next returns the next activation time of the earliest registered job.
func (s *Scheduler) Next() (time.Time, bool) {
	var next time.Time
	for _, e := range s.cron.Entries() {
		if next.IsZero() || (!e.Next.IsZero() && e.Next.Before(next)) {
			next = e.Next
		}
	}
	return next, !next.IsZero()
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.l.Info("started", applogger.Int("jobs", len(s.cron.Entries())))
}

// Stop cancels running jobs' context and waits for them to return or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.l.Info("stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunNow executes job immediately in the caller's goroutine.
func (s *Scheduler) RunNow(ctx context.Context, job Job) error {
	s.l.Info("running job now", applogger.String("job", job.Name()))
	return job.Run(ctx)
}

func (s *Scheduler) run(job Job) {
	start := time.Now()
	s.l.Debug("job started", applogger.String("job", job.Name()))
	if err := job.Run(s.ctx); err != nil {
		s.l.Error("job failed", applogger.String("job", job.Name()), applogger.Error(err), applogger.Duration("duration_ms", time.Since(start)))
		return
	}
	s.l.Info("job completed", applogger.String("job", job.Name()), applogger.Duration("duration_ms", time.Since(start)))
}
