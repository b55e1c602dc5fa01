package usecase

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	"MarketPulse/internal/services/forecast"
	applogger "MarketPulse/pkg/logger"
	"MarketPulse/pkg/util"
)

// Forecaster produces one symbol's forecast from its ascending price history.
type Forecaster interface {
	Forecast(ctx context.Context, symbol string, bars []models.PriceBar) (models.Forecast, error)
}

// Reclaimer frees memory between symbols.
type Reclaimer interface {
	Reclaim() uint64
}

// Invalidator is notified after a run that stored at least one forecast.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// ProgressFunc receives every outcome in completion order.
type ProgressFunc func(models.SymbolOutcome)

type BatchConfig struct {
	MinHistory   int
	TopN         int
	Workers      int
	ReclaimEvery int
}

// BatchPredictor runs the forecast engine over a symbol universe. One symbol's failure never
// stops the run; every symbol is persisted on its own.
type BatchPredictor struct {
	prices    domrepo.PriceHistoryStore
	store     domrepo.ForecastStore
	pub       domrepo.ForecastPublisher
	engine    Forecaster
	metrics   domrepo.Metrics
	reclaimer Reclaimer
	invalid   []Invalidator
	cfg       BatchConfig
	l         *applogger.Logger
	now       func() time.Time
	newRunID  func() string
}

func NewBatchPredictor(
	prices domrepo.PriceHistoryStore,
	store domrepo.ForecastStore,
	pub domrepo.ForecastPublisher,
	engine Forecaster,
	metrics domrepo.Metrics,
	reclaimer Reclaimer,
	cfg BatchConfig,
	l *applogger.Logger,
) *BatchPredictor {
	if l == nil {
		l = applogger.Nop()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &BatchPredictor{
		prices:    prices,
		store:     store,
		pub:       pub,
		engine:    engine,
		metrics:   metrics,
		reclaimer: reclaimer,
		cfg:       cfg,
		l:         l.Component("batch"),
		now:       time.Now,
		newRunID:  uuid.NewString,
	}
}

// OnComplete registers invalidators, typically the read cache.
func (b *BatchPredictor) OnComplete(inv ...Invalidator) {
	b.invalid = append(b.invalid, inv...)
}

// Universe resolves the symbols for req: explicit symbols normalised, else the eligible
// symbols ranked by market cap.
func (b *BatchPredictor) Universe(ctx context.Context, req models.BatchRequest) ([]string, error) {
	if syms := util.NormalizeSymbols(req.Symbols); len(syms) > 0 {
		return syms, nil
	}
	topN := req.TopN
	switch {
	case topN == 0:
		topN = b.cfg.TopN
	case topN < 0:
		topN = 0
	}
	syms, err := b.prices.EligibleSymbols(ctx, b.cfg.MinHistory, topN)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUniverse, err)
	}
	return syms, nil
}

// Run processes the universe and returns the summary. The error is non-nil only when the
// universe cannot be resolved; per-symbol failures are counted in the summary.
func (b *BatchPredictor) Run(ctx context.Context, req models.BatchRequest, progress ProgressFunc) (models.BatchSummary, error) {
	started := b.now()
	summary := models.NewBatchSummary(b.newRunID(), started)
	log := b.l.With(applogger.String("run_id", summary.RunID))

	symbols, err := b.Universe(ctx, req)
	if err != nil {
		log.Error("universe resolution failed", applogger.Error(err))
		return summary, err
	}
	summary.Total = len(symbols)
	log.Info("batch started",
		applogger.Int("symbols", len(symbols)),
		applogger.Int("workers", b.cfg.Workers),
	)

	record := func(o models.SymbolOutcome) {
		summary.Record(o)
		b.observe(log, o)
		if progress != nil {
			progress(o)
		}
		done := summary.Succeeded + summary.Failed
		if b.reclaimer != nil && b.cfg.ReclaimEvery > 0 && done%b.cfg.ReclaimEvery == 0 {
			b.reclaimer.Reclaim()
		}
	}

	if b.cfg.Workers == 1 || len(symbols) < 2 {
		b.runSequential(ctx, symbols, record)
	} else {
		b.runPool(ctx, symbols, record)
	}

	summary.Elapsed = b.now().Sub(started)
	summary.Interrupted = ctx.Err() != nil && summary.Succeeded+summary.Failed < summary.Total
	if b.metrics != nil {
		b.metrics.RecordBatch(summary.Succeeded, summary.Failed, summary.Elapsed)
	}
	if summary.Succeeded > 0 {
		// the run's own context may already be cancelled
		invCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		for _, inv := range b.invalid {
			if err := inv.Invalidate(invCtx); err != nil {
				log.Warn("cache invalidation failed", applogger.Error(err))
			}
		}
		cancel()
	}

	log.Info("batch finished",
		applogger.Int("succeeded", summary.Succeeded),
		applogger.Int("failed", summary.Failed),
		applogger.Bool("interrupted", summary.Interrupted),
		applogger.Duration("elapsed_ms", summary.Elapsed),
		applogger.Duration("avg_per_success_ms", summary.AvgPerSuccess()),
	)
	return summary, nil
}

func (b *BatchPredictor) runSequential(ctx context.Context, symbols []string, record func(models.SymbolOutcome)) {
	for i, sym := range symbols {
		if ctx.Err() != nil {
			return
		}
		o, ok := b.Predict(ctx, sym)
		if !ok {
			return
		}
		o.Index, o.Total = i+1, len(symbols)
		record(o)
	}
}

// runPool fans symbols out to a fixed set of workers; each builds its own model per symbol.
// Outcomes are recorded on the calling goroutine.
func (b *BatchPredictor) runPool(ctx context.Context, symbols []string, record func(models.SymbolOutcome)) {
	jobs := make(chan string)
	results := make(chan models.SymbolOutcome)

	var wg sync.WaitGroup
	for w := 0; w < min(b.cfg.Workers, len(symbols)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sym := range jobs {
				if o, ok := b.Predict(ctx, sym); ok {
					results <- o
				}
			}
		}()
	}
	go func() {
		defer close(jobs)
		for _, sym := range symbols {
			if ctx.Err() != nil {
				return
			}
			select {
			case jobs <- sym:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	n := 0
	for o := range results {
		n++
		o.Index, o.Total = n, len(symbols)
		record(o)
	}
}

// Predict runs one symbol end to end: load, forecast, persist, publish. ok is false when the
// context was cancelled before an outcome was reached. A panic below this point is recorded as
// a training failure for the symbol.
func (b *BatchPredictor) Predict(ctx context.Context, symbol string) (o models.SymbolOutcome, ok bool) {
	start := b.now()
	defer func() {
		if r := recover(); r != nil {
			b.l.Error("symbol panicked",
				applogger.String("symbol", symbol),
				applogger.Any("panic", r),
				applogger.String("stack", string(debug.Stack())),
			)
			o = models.SymbolOutcome{
				Symbol:  symbol,
				Reason:  models.ReasonTrainingFailure,
				Err:     fmt.Errorf("%w: panic: %v", forecast.ErrTrainingFailed, r),
				Elapsed: b.now().Sub(start),
			}
			ok = true
		}
	}()
	return b.predict(ctx, symbol, start)
}

func (b *BatchPredictor) predict(ctx context.Context, symbol string, start time.Time) (models.SymbolOutcome, bool) {
	o := models.SymbolOutcome{Symbol: symbol}
	fail := func(reason models.FailureReason, err error) (models.SymbolOutcome, bool) {
		o.Reason, o.Err, o.Elapsed = reason, err, b.now().Sub(start)
		return o, true
	}

	bars, err := b.prices.GetPriceHistory(ctx, symbol)
	if err != nil {
		if ctx.Err() != nil {
			return o, false
		}
		return fail(models.ReasonLoadFailure, err)
	}
	b.stage("load", start)
	if len(bars) < b.cfg.MinHistory {
		return fail(models.ReasonInsufficientData,
			fmt.Errorf("%w: %d bars, need %d", forecast.ErrInsufficientData, len(bars), b.cfg.MinHistory))
	}

	trainStart := b.now()
	f, err := b.engine.Forecast(ctx, symbol, bars)
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			return o, false
		case errors.Is(err, forecast.ErrInsufficientData):
			return fail(models.ReasonInsufficientData, err)
		default:
			return fail(models.ReasonTrainingFailure, err)
		}
	}
	b.stage("forecast", trainStart)

	storeStart := b.now()
	if err := b.store.StoreForecast(ctx, f); err != nil {
		return fail(models.ReasonPersistenceFailure, fmt.Errorf("%w: %v", ErrPersistence, err))
	}
	b.stage("store", storeStart)

	if b.pub != nil {
		if err := b.pub.Publish(ctx, f); err != nil {
			b.l.Warn("publish forecast failed", applogger.String("symbol", symbol), applogger.Error(err))
		}
	}

	o.OK, o.Forecast, o.Elapsed = true, &f, b.now().Sub(start)
	return o, true
}

func (b *BatchPredictor) stage(name string, since time.Time) {
	if b.metrics != nil {
		b.metrics.RecordSymbolDuration(name, b.now().Sub(since))
	}
}

func (b *BatchPredictor) observe(log *applogger.Logger, o models.SymbolOutcome) {
	fields := []applogger.Field{
		applogger.Int("index", o.Index),
		applogger.Int("total", o.Total),
		applogger.String("symbol", o.Symbol),
		applogger.Duration("elapsed_ms", o.Elapsed),
	}
	if o.OK {
		if b.metrics != nil {
			b.metrics.RecordForecast(string(o.Forecast.Signal), o.Forecast.TrainingLoss)
		}
		log.Info("symbol predicted", append(fields,
			applogger.String("signal", string(o.Forecast.Signal)),
			applogger.Float64("current_price", o.Forecast.CurrentPrice),
			applogger.Float64("loss", o.Forecast.TrainingLoss),
		)...)
		return
	}
	if b.metrics != nil {
		b.metrics.RecordFailure(string(o.Reason))
	}
	log.Warn("symbol skipped", append(fields,
		applogger.String("reason", string(o.Reason)),
		applogger.Error(o.Err),
	)...)
}
