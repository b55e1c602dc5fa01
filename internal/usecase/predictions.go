package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	"MarketPulse/pkg/queue"
	"MarketPulse/pkg/util"
)

// RefreshJobType is the queue message type for on-demand batch runs.
const RefreshJobType = "predictions.refresh"

// ErrQueueDisabled is returned by Refresh when no job queue is configured.
var ErrQueueDisabled = errors.New("refresh queue disabled")

// Predictions answers the read API from stored forecasts.
type Predictions struct {
	reader       domrepo.ForecastReader
	queue        queue.Publisher
	horizons     map[string]bool
	moverHorizon string
	moverLimit   int
}

// NewPredictions builds the read side. horizons are the configured names accepted as sort keys;
// q may be nil when the refresh queue is disabled.
func NewPredictions(reader domrepo.ForecastReader, q queue.Publisher, horizons []models.Horizon, moverHorizon string) *Predictions {
	hs := make(map[string]bool, len(horizons))
	for _, h := range horizons {
		hs[h.Name] = true
	}
	return &Predictions{reader: reader, queue: q, horizons: hs, moverHorizon: moverHorizon, moverLimit: 5}
}

// List returns predictions grouped per symbol and sorted by req.Sort. Only "asc" sorts
// ascending; unknown sort keys keep symbol order.
func (p *Predictions) List(ctx context.Context, req models.ListPredictionsRequest) ([]models.SymbolPrediction, error) {
	rows, err := p.reader.ListForecasts(ctx, domrepo.ForecastFilter{Sector: req.Sector, Signal: req.Signal})
	if err != nil {
		return nil, fmt.Errorf("list predictions: %w", err)
	}
	out := GroupRows(rows)
	p.sort(out, req.Sort, req.Order == "asc")
	return out, nil
}

// Get returns one symbol's stored prediction.
func (p *Predictions) Get(ctx context.Context, symbol string) (models.SymbolPrediction, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	rows, err := p.reader.GetForecast(ctx, symbol)
	if err != nil {
		return models.SymbolPrediction{}, fmt.Errorf("get prediction: %w", err)
	}
	grouped := GroupRows(rows)
	if len(grouped) == 0 {
		return models.SymbolPrediction{}, fmt.Errorf("%w: no predictions for %s", ErrNotFound, symbol)
	}
	return grouped[0], nil
}

func (p *Predictions) Stats(ctx context.Context) (models.PredictionStats, error) {
	return p.reader.ForecastStats(ctx, p.moverHorizon, p.moverLimit)
}

func (p *Predictions) Sectors(ctx context.Context) ([]string, error) {
	return p.reader.ForecastSectors(ctx)
}

// Refresh enqueues a batch run and returns the job ID.
func (p *Predictions) Refresh(ctx context.Context, req models.RefreshRequest) (string, error) {
	if p.queue == nil {
		return "", ErrQueueDisabled
	}
	req.Symbols = util.NormalizeSymbols(req.Symbols)
	return p.queue.Enqueue(ctx, RefreshJobType, models.BatchRequest{Symbols: req.Symbols, TopN: req.TopN})
}

// GroupRows folds (symbol, period) rows into one entry per symbol, keeping row order.
func GroupRows(rows []models.ForecastRow) []models.SymbolPrediction {
	out := make([]models.SymbolPrediction, 0)
	index := map[string]int{}
	for _, r := range rows {
		i, ok := index[r.Symbol]
		if !ok {
			i = len(out)
			index[r.Symbol] = i
			out = append(out, models.SymbolPrediction{
				Symbol:       r.Symbol,
				Name:         r.Name,
				Sector:       r.Sector,
				CurrentPrice: r.CurrentPrice,
				Signal:       r.Signal,
				ModelLoss:    r.ModelLoss,
				PredictedAt:  r.PredictedAt,
				Predictions:  map[string]models.HorizonView{},
			})
		}
		out[i].Predictions[r.Period] = models.HorizonView{
			Price:      r.PredictedPrice,
			Change:     r.PredictedChange,
			ChangePct:  r.PredictedChangePct,
			Confidence: r.Confidence,
		}
	}
	return out
}

func (p *Predictions) sort(items []models.SymbolPrediction, key string, asc bool) {
	dir := -1
	if asc {
		dir = 1
	}
	var cmp func(a, b models.SymbolPrediction) int
	switch {
	case key == "" || key == "symbol":
		cmp = func(a, b models.SymbolPrediction) int { return strings.Compare(a.Symbol, b.Symbol) }
	case key == "signal":
		cmp = func(a, b models.SymbolPrediction) int { return a.Signal.Rank() - b.Signal.Rank() }
	case p.horizons[key]:
		// a missing horizon sorts as 0%
		cmp = func(a, b models.SymbolPrediction) int {
			av, bv := a.Predictions[key].ChangePct, b.Predictions[key].ChangePct
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	default:
		return
	}
	sort.SliceStable(items, func(i, j int) bool { return dir*cmp(items[i], items[j]) < 0 })
}
