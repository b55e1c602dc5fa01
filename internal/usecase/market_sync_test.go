package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketPulse/internal/domain/models"
)

type fakeSource struct {
	bars       map[string][]models.PriceBar
	quoteErr   map[string]error
	profileErr error
	mcap       *float64
}

func (f *fakeSource) DailyBars(_ context.Context, symbol string, from, to time.Time) ([]models.PriceBar, error) {
	b, ok := f.bars[symbol]
	if !ok {
		return nil, errors.New("no data")
	}
	return b, nil
}

func (f *fakeSource) Quote(_ context.Context, symbol string) (models.Quote, error) {
	if err := f.quoteErr[symbol]; err != nil {
		return models.Quote{}, err
	}
	return models.Quote{Symbol: symbol, Price: models.Float(10)}, nil
}

func (f *fakeSource) Profile(_ context.Context, symbol string) (models.StockProfile, *float64, error) {
	if f.profileErr != nil {
		return models.StockProfile{}, nil, f.profileErr
	}
	return models.StockProfile{Symbol: symbol, Name: symbol + " Corp"}, f.mcap, nil
}

type memMarket struct {
	mu       sync.Mutex
	bars     []models.PriceBar
	quotes   map[string]models.Quote
	profiles map[string]models.StockProfile
	tracked  []string
}

func newMemMarket() *memMarket {
	return &memMarket{quotes: map[string]models.Quote{}, profiles: map[string]models.StockProfile{}}
}

func (m *memMarket) UpsertBars(_ context.Context, bars []models.PriceBar) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bars = append(m.bars, bars...)
	return len(bars), nil
}

func (m *memMarket) UpsertQuote(_ context.Context, q models.Quote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quotes[q.Symbol] = q
	return nil
}

func (m *memMarket) UpsertProfile(_ context.Context, p models.StockProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.Symbol] = p
	return nil
}

func (m *memMarket) TrackedSymbols(context.Context) ([]string, error) {
	return m.tracked, nil
}

func TestSyncSymbolsResolution(t *testing.T) {
	store := newMemMarket()
	store.tracked = []string{"TSLA"}
	s := NewMarketSync(&fakeSource{}, store, []string{"aapl", "msft"}, 2, nil)

	syms, mode, err := s.Symbols(context.Background(), models.SyncRequest{Symbols: []string{"nvda"}, Quick: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"NVDA"}, syms)
	assert.Equal(t, "symbols", mode)

	syms, mode, _ = s.Symbols(context.Background(), models.SyncRequest{Quick: true})
	assert.Equal(t, []string{"TSLA"}, syms)
	assert.Equal(t, "quick", mode)

	syms, mode, _ = s.Symbols(context.Background(), models.SyncRequest{})
	assert.Equal(t, []string{"AAPL", "MSFT"}, syms)
	assert.Equal(t, "universe", mode)
}

func TestSyncRunRoundsAndCounts(t *testing.T) {
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	src := &fakeSource{
		bars: map[string][]models.PriceBar{
			"AAA": {{Date: day, Close: 10.456, Open: models.Float(10.004)}, {Date: day.AddDate(0, 0, 1), Close: 11}},
		},
		quoteErr: map[string]error{"BBB": errors.New("boom")},
		mcap:     models.Float(3e9),
	}
	store := newMemMarket()
	s := NewMarketSync(src, store, nil, 2, nil)

	var mu sync.Mutex
	phases := map[SyncPhase]int{}
	sum, err := s.Run(context.Background(), models.SyncRequest{Symbols: []string{"AAA", "BBB"}, Years: 1},
		func(p SyncPhase, done, total int) {
			mu.Lock()
			phases[p]++
			mu.Unlock()
			assert.Equal(t, 2, total)
		})
	require.NoError(t, err)

	assert.Equal(t, 2, sum.Symbols)
	assert.Equal(t, 1, sum.QuotesOK)
	assert.Equal(t, 1, sum.QuotesFailed)
	assert.Equal(t, 1, sum.HistoryOK)
	assert.Equal(t, 1, sum.HistoryFailed)
	assert.Equal(t, 2, sum.Bars)
	assert.Equal(t, map[SyncPhase]int{PhaseQuotes: 2, PhaseHistory: 2}, phases)

	sort.Slice(store.bars, func(i, j int) bool { return store.bars[i].Date.Before(store.bars[j].Date) })
	assert.Equal(t, 10.46, store.bars[0].Close)
	assert.Equal(t, 10.0, *store.bars[0].Open)
	assert.Nil(t, store.bars[1].Open)
	assert.Equal(t, "AAA", store.bars[0].Symbol)

	require.Contains(t, store.quotes, "AAA")
	assert.Equal(t, 3e9, *store.quotes["AAA"].MarketCap)
	assert.Equal(t, "AAA Corp", store.profiles["AAA"].Name)
}

func TestSyncQuoteWithoutProfile(t *testing.T) {
	store := newMemMarket()
	s := NewMarketSync(&fakeSource{profileErr: errors.New("forbidden")}, store, nil, 1, nil)

	sum, err := s.Run(context.Background(), models.SyncRequest{Symbols: []string{"AAA"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.QuotesOK)
	assert.Nil(t, store.quotes["AAA"].MarketCap)
	assert.Empty(t, store.profiles)
}

func TestSyncCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewMarketSync(&fakeSource{}, newMemMarket(), []string{"AAA"}, 1, nil)
	_, err := s.Run(ctx, models.SyncRequest{}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
