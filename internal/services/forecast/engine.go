package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/domain/service"
	"MarketPulse/internal/services/features"
	applogger "MarketPulse/pkg/logger"
)

// Config holds the engine's data-shaping knobs.
type Config struct {
	WindowSize     int
	MaxTrainPoints int
	FeatureOffset  int
	MinSequences   int
	Horizons       []models.Horizon
	Train          service.TrainOptions
}

// Engine runs the per-symbol pipeline: features, scaling, framing, fit, recursive
// multi-horizon prediction, confidence and signal.
type Engine struct {
	cfg      Config
	newModel service.RegressorFactory
	now      func() time.Time
	l        *applogger.Logger
}

// NewEngine wires an engine with a model factory. Every Forecast call builds its own model.
func NewEngine(cfg Config, factory service.RegressorFactory, l *applogger.Logger) *Engine {
	if l == nil {
		l = applogger.Nop()
	}
	return &Engine{cfg: cfg, newModel: factory, now: time.Now, l: l.Component("forecast")}
}

// Horizons returns the configured horizons in order.
func (e *Engine) Horizons() []models.Horizon { return e.cfg.Horizons }

// Forecast trains a fresh model on bars (ascending by date) and predicts every horizon.
// The model is released before returning on every path.
func (e *Engine) Forecast(ctx context.Context, symbol string, bars []models.PriceBar) (models.Forecast, error) {
	if len(bars) == 0 {
		return models.Forecast{}, fmt.Errorf("%w: no price history", ErrInsufficientData)
	}
	closes := make([]float64, len(bars))
	volumes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
		volumes[i] = b.Volume
	}

	rows := features.Build(closes, volumes, features.Options{
		StartOffset: e.cfg.FeatureOffset,
		MaxPoints:   e.cfg.MaxTrainPoints,
	})
	if len(rows) < e.cfg.WindowSize+10 {
		return models.Forecast{}, fmt.Errorf("%w: %d feature rows, need %d", ErrInsufficientData, len(rows), e.cfg.WindowSize+10)
	}

	scaler, scaled := Normalize(rows)
	X, Y := Frame(scaled, e.cfg.WindowSize)
	if len(X) < e.cfg.MinSequences {
		return models.Forecast{}, fmt.Errorf("%w: %d training sequences, need %d", ErrInsufficientData, len(X), e.cfg.MinSequences)
	}

	model, err := e.newModel(e.cfg.WindowSize, features.NumFeatures)
	if err != nil {
		return models.Forecast{}, fmt.Errorf("%w: build model: %v", ErrTrainingFailed, err)
	}
	defer func() {
		if cerr := model.Close(); cerr != nil {
			e.l.Warn("release model", applogger.String("symbol", symbol), applogger.Error(cerr))
		}
	}()

	start := time.Now()
	loss, err := model.Fit(ctx, X, Y, e.cfg.Train)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return models.Forecast{}, err
		}
		return models.Forecast{}, fmt.Errorf("%w: %v", ErrTrainingFailed, err)
	}
	if math.IsNaN(loss) || math.IsInf(loss, 0) {
		return models.Forecast{}, fmt.Errorf("%w: non-finite loss", ErrTrainingFailed)
	}
	e.l.Debug("model trained",
		applogger.String("symbol", symbol),
		applogger.Int("sequences", len(X)),
		applogger.Float64("loss", loss),
		applogger.Duration("duration_ms", time.Since(start)),
	)

	currentPrice := closes[len(closes)-1]
	lastWindow := scaled[len(scaled)-e.cfg.WindowSize:]

	out := models.Forecast{
		Symbol:       symbol,
		CurrentPrice: currentPrice,
		TrainingLoss: loss,
		ComputedAt:   e.now().UTC(),
		Horizons:     make([]models.HorizonForecast, 0, len(e.cfg.Horizons)),
	}
	for _, h := range e.cfg.Horizons {
		scaledPrice, err := WalkForward(model, lastWindow, h.Days)
		if err != nil {
			return models.Forecast{}, fmt.Errorf("%w: predict %s: %v", ErrTrainingFailed, h.Name, err)
		}
		predicted := scaler.DenormalizePrice(scaledPrice)
		if math.IsNaN(predicted) || math.IsInf(predicted, 0) {
			return models.Forecast{}, fmt.Errorf("%w: non-finite %s prediction", ErrTrainingFailed, h.Name)
		}
		out.Horizons = append(out.Horizons, horizonResult(h, currentPrice, predicted, loss))
	}
	out.Signal = SignalFor(out.Horizons)
	return out, nil
}

// WalkForward predicts days steps ahead from window. Each step copies the newest row, swaps
// in the predicted price and slides the window; window itself is never modified.
func WalkForward(model service.Regressor, window [][]float64, days int) (float64, error) {
	w := copyRows(window)
	if days < 1 {
		return w[len(w)-1][0], nil
	}
	for d := 0; d < days; d++ {
		next, err := model.Predict(w)
		if err != nil {
			return 0, err
		}
		row := append([]float64(nil), w[len(w)-1]...)
		row[0] = next
		w = append(w[1:], row)
	}
	return w[len(w)-1][0], nil
}

func horizonResult(h models.Horizon, current, predicted, loss float64) models.HorizonForecast {
	change := predicted - current
	var changePct float64
	if current != 0 {
		changePct = change / current * 100
	}
	return models.HorizonForecast{
		Horizon:        h.Name,
		Days:           h.Days,
		PredictedPrice: round(predicted, 2),
		Change:         round(change, 2),
		ChangePct:      round(changePct, 2),
		Confidence:     round(Confidence(loss, h.Days), 1),
	}
}

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
