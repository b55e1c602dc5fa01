package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/domain/service"
	"MarketPulse/internal/services/forecast"
	"MarketPulse/internal/services/nn"
)

type memPrices struct {
	bars     map[string][]models.PriceBar
	eligible []string
	err      error
	loadErr  map[string]error
}

func (m *memPrices) GetPriceHistory(_ context.Context, symbol string) ([]models.PriceBar, error) {
	if err := m.loadErr[symbol]; err != nil {
		return nil, err
	}
	return m.bars[symbol], nil
}

func (m *memPrices) EligibleSymbols(_ context.Context, _, limit int) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	if limit > 0 && limit < len(m.eligible) {
		return m.eligible[:limit], nil
	}
	return m.eligible, nil
}

type memForecasts struct {
	mu     sync.Mutex
	stored map[string]models.Forecast
	fail   map[string]bool
}

func newMemForecasts() *memForecasts {
	return &memForecasts{stored: map[string]models.Forecast{}, fail: map[string]bool{}}
}

func (m *memForecasts) StoreForecast(_ context.Context, f models.Forecast) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail[f.Symbol] {
		return errors.New("disk full")
	}
	m.stored[f.Symbol] = f
	return nil
}

type countingReclaimer struct{ calls int }

func (c *countingReclaimer) Reclaim() uint64 {
	c.calls++
	return 0
}

type invalidationSpy struct{ calls int }

func (s *invalidationSpy) Invalidate(context.Context) error {
	s.calls++
	return nil
}

type stubEngine struct {
	mu    sync.Mutex
	err   map[string]error
	calls []string
	hook  func(symbol string)
}

func (s *stubEngine) Forecast(_ context.Context, symbol string, bars []models.PriceBar) (models.Forecast, error) {
	s.mu.Lock()
	s.calls = append(s.calls, symbol)
	s.mu.Unlock()
	if s.hook != nil {
		s.hook(symbol)
	}
	if err := s.err[symbol]; err != nil {
		return models.Forecast{}, err
	}
	return models.Forecast{
		Symbol:       symbol,
		CurrentPrice: bars[len(bars)-1].Close,
		Signal:       models.SignalHold,
		Horizons:     []models.HorizonForecast{{Horizon: "1d", Days: 1}},
	}, nil
}

func daily(symbol string, n int, from, to float64) []models.PriceBar {
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]models.PriceBar, n)
	for i := range bars {
		c := from
		if n > 1 {
			c = from + (to-from)*float64(i)/float64(n-1)
		}
		bars[i] = models.PriceBar{Symbol: symbol, Date: start.AddDate(0, 0, i), Close: c, Volume: 2_000_000}
	}
	return bars
}

func linearEngine(t *testing.T) *forecast.Engine {
	t.Helper()
	factory, err := nn.NewFactory(nn.Config{Kind: nn.KindLinear, Ridge: 1e-4})
	require.NoError(t, err)
	return forecast.NewEngine(forecast.Config{
		WindowSize:     20,
		MaxTrainPoints: 250,
		FeatureOffset:  25,
		MinSequences:   10,
		Horizons:       []models.Horizon{{Name: "1d", Days: 1}, {Name: "3d", Days: 3}, {Name: "1w", Days: 7}, {Name: "1m", Days: 22}},
		Train:          service.TrainOptions{Epochs: 1, BatchSize: 32},
	}, factory, nil)
}

func batchConfig() BatchConfig {
	return BatchConfig{MinHistory: 60, TopN: 50, Workers: 1, ReclaimEvery: 5}
}

func TestBatchIsolatesShortHistory(t *testing.T) {
	prices := &memPrices{bars: map[string][]models.PriceBar{
		"AAA":   daily("AAA", 300, 20, 200),
		"BBB":   daily("BBB", 300, 120, 90),
		"CCC":   daily("CCC", 300, 10, 10.5),
		"SHORT": daily("SHORT", 5, 20, 21),
	}}
	store := newMemForecasts()
	bp := NewBatchPredictor(prices, store, nil, linearEngine(t), nil, nil, batchConfig(), nil)

	var seen []models.SymbolOutcome
	summary, err := bp.Run(context.Background(), models.BatchRequest{Symbols: []string{"aaa", "SHORT", "bbb, ccc"}}, func(o models.SymbolOutcome) {
		seen = append(seen, o)
	})
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 3, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Failures[models.ReasonInsufficientData])
	assert.False(t, summary.Interrupted)
	assert.NotEmpty(t, summary.RunID)

	require.Len(t, seen, 4)
	assert.Equal(t, "SHORT", seen[1].Symbol)
	assert.False(t, seen[1].OK)
	assert.Equal(t, 2, seen[1].Index)
	assert.Equal(t, 4, seen[3].Total)

	assert.Len(t, store.stored, 3)
	assert.NotContains(t, store.stored, "SHORT")
	for _, f := range store.stored {
		assert.Len(t, f.Horizons, 4)
	}
	assert.Equal(t, models.SignalBuy, store.stored["AAA"].Signal)

	total := 0
	for _, n := range summary.Signals {
		total += n
	}
	assert.Equal(t, 3, total)
}

func TestBatchClassifiesFailures(t *testing.T) {
	prices := &memPrices{
		bars: map[string][]models.PriceBar{
			"OK":     daily("OK", 100, 1, 2),
			"DIVERG": daily("DIVERG", 100, 1, 2),
			"THIN":   daily("THIN", 100, 1, 2),
			"NODISK": daily("NODISK", 100, 1, 2),
		},
		loadErr: map[string]error{"BROKEN": errors.New("connection reset")},
	}
	store := newMemForecasts()
	store.fail["NODISK"] = true
	engine := &stubEngine{err: map[string]error{
		"DIVERG": errors.New("loss diverged"),
		"THIN":   forecast.ErrInsufficientData,
	}}
	bp := NewBatchPredictor(prices, store, nil, engine, nil, nil, batchConfig(), nil)

	var outcomes []models.SymbolOutcome
	summary, err := bp.Run(context.Background(), models.BatchRequest{Symbols: []string{"OK", "BROKEN", "DIVERG", "THIN", "NODISK"}},
		func(o models.SymbolOutcome) { outcomes = append(outcomes, o) })
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 4, summary.Failed)
	assert.Equal(t, 1, summary.Failures[models.ReasonLoadFailure])
	assert.Equal(t, 1, summary.Failures[models.ReasonTrainingFailure])
	assert.Equal(t, 1, summary.Failures[models.ReasonInsufficientData])
	assert.Equal(t, 1, summary.Failures[models.ReasonPersistenceFailure])
	assert.ErrorIs(t, outcomes[4].Err, ErrPersistence)
}

func TestBatchIsolatesPanickingSymbol(t *testing.T) {
	for _, workers := range []int{1, 3} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			prices := &memPrices{bars: map[string][]models.PriceBar{
				"AAA":  daily("AAA", 100, 1, 2),
				"BOOM": daily("BOOM", 100, 1, 2),
				"CCC":  daily("CCC", 100, 1, 2),
			}}
			engine := &stubEngine{hook: func(symbol string) {
				if symbol == "BOOM" {
					panic("index out of range")
				}
			}}
			cfg := batchConfig()
			cfg.Workers = workers
			bp := NewBatchPredictor(prices, newMemForecasts(), nil, engine, nil, nil, cfg, nil)

			var failed []models.SymbolOutcome
			summary, err := bp.Run(context.Background(), models.BatchRequest{Symbols: []string{"AAA", "BOOM", "CCC"}},
				func(o models.SymbolOutcome) {
					if !o.OK {
						failed = append(failed, o)
					}
				})
			require.NoError(t, err)
			assert.Equal(t, 2, summary.Succeeded)
			assert.Equal(t, 1, summary.Failures[models.ReasonTrainingFailure])
			require.Len(t, failed, 1)
			assert.Equal(t, "BOOM", failed[0].Symbol)
			assert.ErrorIs(t, failed[0].Err, forecast.ErrTrainingFailed)
		})
	}
}

func TestBatchUniverseFromEligibleSymbols(t *testing.T) {
	prices := &memPrices{
		bars:     map[string][]models.PriceBar{"A": daily("A", 80, 1, 2), "B": daily("B", 80, 1, 2), "C": daily("C", 80, 1, 2)},
		eligible: []string{"B", "A", "C"},
	}
	engine := &stubEngine{}
	bp := NewBatchPredictor(prices, newMemForecasts(), nil, engine, nil, nil, batchConfig(), nil)

	summary, err := bp.Run(context.Background(), models.BatchRequest{TopN: 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, []string{"B", "A"}, engine.calls)
}

func TestBatchUniverseTopNModes(t *testing.T) {
	prices := &memPrices{eligible: []string{"B", "A", "C"}}
	cfg := batchConfig()
	cfg.TopN = 1
	bp := NewBatchPredictor(prices, newMemForecasts(), nil, &stubEngine{}, nil, nil, cfg, nil)

	got, err := bp.Universe(context.Background(), models.BatchRequest{})
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, got)

	got, err = bp.Universe(context.Background(), models.BatchRequest{TopN: -1})
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A", "C"}, got)
}

func TestBatchUniverseFailure(t *testing.T) {
	prices := &memPrices{err: errors.New("no such table")}
	bp := NewBatchPredictor(prices, newMemForecasts(), nil, &stubEngine{}, nil, nil, batchConfig(), nil)

	_, err := bp.Run(context.Background(), models.BatchRequest{}, nil)
	assert.ErrorIs(t, err, ErrUniverse)
}

func TestBatchStopsBetweenSymbolsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	prices := &memPrices{bars: map[string][]models.PriceBar{}}
	var symbols []string
	for _, s := range []string{"A", "B", "C", "D"} {
		prices.bars[s] = daily(s, 80, 1, 2)
		symbols = append(symbols, s)
	}
	engine := &stubEngine{hook: func(symbol string) {
		if symbol == "B" {
			cancel()
		}
	}}
	bp := NewBatchPredictor(prices, newMemForecasts(), nil, engine, nil, nil, batchConfig(), nil)

	summary, err := bp.Run(ctx, models.BatchRequest{Symbols: symbols}, nil)
	require.NoError(t, err)
	assert.True(t, summary.Interrupted)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, []string{"A", "B"}, engine.calls)
}

func TestBatchReclaimsAndInvalidates(t *testing.T) {
	prices := &memPrices{bars: map[string][]models.PriceBar{}}
	var symbols []string
	for _, s := range []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J", "K"} {
		prices.bars[s] = daily(s, 80, 1, 2)
		symbols = append(symbols, s)
	}
	rec := &countingReclaimer{}
	spy := &invalidationSpy{}
	bp := NewBatchPredictor(prices, newMemForecasts(), nil, &stubEngine{}, nil, rec, batchConfig(), nil)
	bp.OnComplete(spy)

	_, err := bp.Run(context.Background(), models.BatchRequest{Symbols: symbols}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.calls)
	assert.Equal(t, 1, spy.calls)

	_, err = bp.Run(context.Background(), models.BatchRequest{Symbols: []string{"NONE"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, spy.calls, "nothing stored, nothing to invalidate")
}

func TestBatchWorkerPool(t *testing.T) {
	prices := &memPrices{bars: map[string][]models.PriceBar{}}
	var symbols []string
	for _, s := range []string{"A", "B", "C", "D", "E", "F"} {
		prices.bars[s] = daily(s, 80, 1, 2)
		symbols = append(symbols, s)
	}
	cfg := batchConfig()
	cfg.Workers = 3
	store := newMemForecasts()
	engine := &stubEngine{}
	bp := NewBatchPredictor(prices, store, nil, engine, nil, nil, cfg, nil)

	var indexes []int
	summary, err := bp.Run(context.Background(), models.BatchRequest{Symbols: symbols}, func(o models.SymbolOutcome) {
		indexes = append(indexes, o.Index)
	})
	require.NoError(t, err)
	assert.Equal(t, 6, summary.Succeeded)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, indexes)

	sort.Strings(engine.calls)
	assert.Equal(t, symbols, engine.calls)
	assert.Len(t, store.stored, 6)
}
