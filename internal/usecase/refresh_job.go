package usecase

import (
	"context"

	"MarketPulse/internal/domain/models"
	applogger "MarketPulse/pkg/logger"
	"MarketPulse/pkg/queue"
)

// RefreshJob consumes queued refresh requests and runs them through the batch predictor.
type RefreshJob struct {
	batch *BatchPredictor
	l     *applogger.Logger
}

var _ queue.Job = (*RefreshJob)(nil)

func NewRefreshJob(batch *BatchPredictor, l *applogger.Logger) *RefreshJob {
	if l == nil {
		l = applogger.Nop()
	}
	return &RefreshJob{batch: batch, l: l.Component("refresh_job")}
}

func (j *RefreshJob) Name() string { return "predictions-refresh" }
func (j *RefreshJob) Type() string { return RefreshJobType }

func (j *RefreshJob) Handle(ctx context.Context, payload []byte) error {
	req, err := queue.Decode[models.BatchRequest](payload)
	if err != nil {
		return err
	}
	summary, err := j.batch.Run(ctx, req, nil)
	if err != nil {
		return err
	}
	j.l.Info("refresh done",
		applogger.String("run_id", summary.RunID),
		applogger.Int("succeeded", summary.Succeeded),
		applogger.Int("failed", summary.Failed),
	)
	return nil
}
