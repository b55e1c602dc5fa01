package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/usecase"
	"MarketPulse/pkg/config"
	xhttp "MarketPulse/pkg/http"
	applogger "MarketPulse/pkg/logger"
	"MarketPulse/pkg/queue"
	"MarketPulse/pkg/scheduler"
)

// App runs the read API together with the background workers that keep forecasts fresh: the
// refresh queue consumers and the scheduled batch.
type App struct {
	cfg       *config.Config
	l         *applogger.Logger
	http      *xhttp.Server
	queue     *queue.RedisQueue
	scheduler *scheduler.Scheduler
	batch     *usecase.BatchPredictor
}

// New assembles the app. q may be nil when the refresh queue is disabled.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	httpServer *xhttp.Server,
	q *queue.RedisQueue,
	sched *scheduler.Scheduler,
	batch *usecase.BatchPredictor,
) *App {
	return &App{
		cfg:       cfg,
		l:         l.Component("app"),
		http:      httpServer,
		queue:     q,
		scheduler: sched,
		batch:     batch,
	}
}

// Run starts every component and blocks until SIGINT/SIGTERM, a listen failure or ctx ends.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.queue != nil {
		a.queue.RegisterJob(usecase.NewRefreshJob(a.batch, a.l))
		if err := a.queue.Start(ctx); err != nil {
			return fmt.Errorf("start queue: %w", err)
		}
	}

	if spec := a.cfg.Prediction.Schedule; spec != "" {
		job := scheduler.JobFunc{JobName: "nightly-batch", Fn: func(ctx context.Context) error {
			_, err := a.batch.Run(ctx, models.BatchRequest{TopN: a.cfg.Prediction.TopN}, nil)
			return err
		}}
		if err := a.scheduler.AddJob(spec, job); err != nil {
			a.shutdown()
			return err
		}
		a.scheduler.Start()
		if next, ok := a.scheduler.Next(); ok {
			a.l.Info("next scheduled batch", applogger.String("at", next.Format(time.RFC3339)))
		}
	}

	errc := a.http.Start()
	var runErr error
	select {
	case <-ctx.Done():
		a.l.Info("shutdown signal received")
	case err, ok := <-errc:
		if ok && err != nil {
			a.l.Error("http server failed", applogger.Error(err))
			runErr = err
		}
	}
	a.shutdown()
	return runErr
}

// shutdown stops intake first, then background work.
func (a *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.http.Stop(ctx); err != nil {
		a.l.Warn("http stop", applogger.Error(err))
	}
	if a.cfg.Prediction.Schedule != "" {
		if err := a.scheduler.Stop(ctx); err != nil {
			a.l.Warn("scheduler stop", applogger.Error(err))
		}
	}
	if a.queue != nil {
		if err := a.queue.Stop(ctx); err != nil {
			a.l.Warn("queue stop", applogger.Error(err))
		}
	}
	a.l.Info("shutdown complete")
}
