package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	applogger "MarketPulse/pkg/logger"
	"MarketPulse/pkg/util"
)

// MarketDataSource is the provider side of the sync.
type MarketDataSource interface {
	DailyBars(ctx context.Context, symbol string, from, to time.Time) ([]models.PriceBar, error)
	Quote(ctx context.Context, symbol string) (models.Quote, error)
	Profile(ctx context.Context, symbol string) (models.StockProfile, *float64, error)
}

// SyncPhase names the step a progress callback reports on.
type SyncPhase string

const (
	PhaseQuotes  SyncPhase = "quotes"
	PhaseHistory SyncPhase = "history"
)

// SyncProgressFunc is called after each symbol of a phase finishes.
type SyncProgressFunc func(phase SyncPhase, done, total int)

// MarketSync copies quotes, profiles and daily history from a provider into storage.
type MarketSync struct {
	src         MarketDataSource
	store       domrepo.MarketDataWriter
	universe    []string
	concurrency int
	now         func() time.Time
	l           *applogger.Logger
}

func NewMarketSync(src MarketDataSource, store domrepo.MarketDataWriter, universe []string, concurrency int, l *applogger.Logger) *MarketSync {
	if l == nil {
		l = applogger.Nop()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &MarketSync{
		src:         src,
		store:       store,
		universe:    util.NormalizeSymbols(universe),
		concurrency: concurrency,
		now:         time.Now,
		l:           l.Component("sync"),
	}
}

// Symbols resolves the run's symbols and the mode label used in reports.
func (s *MarketSync) Symbols(ctx context.Context, req models.SyncRequest) ([]string, string, error) {
	if syms := util.NormalizeSymbols(req.Symbols); len(syms) > 0 {
		return syms, "symbols", nil
	}
	if req.Quick {
		syms, err := s.store.TrackedSymbols(ctx)
		if err != nil {
			return nil, "", fmt.Errorf("%w: tracked symbols: %v", ErrUniverse, err)
		}
		return syms, "quick", nil
	}
	return s.universe, "universe", nil
}

// Run syncs quotes and profiles first, then history. A failing symbol is logged and counted;
// only a cancelled context or an unresolvable universe fails the run.
func (s *MarketSync) Run(ctx context.Context, req models.SyncRequest, progress SyncProgressFunc) (models.SyncSummary, error) {
	start := s.now()
	symbols, mode, err := s.Symbols(ctx, req)
	if err != nil {
		return models.SyncSummary{}, err
	}
	years := req.Years
	if years < 1 {
		years = 5
	}
	sum := models.SyncSummary{Mode: mode, Symbols: len(symbols)}
	s.l.Info("sync started", applogger.String("mode", mode), applogger.Int("symbols", len(symbols)), applogger.Int("years", years))

	ok, err := s.each(ctx, PhaseQuotes, symbols, progress, func(ctx context.Context, sym string) (int, error) {
		return 1, s.syncQuote(ctx, sym)
	})
	sum.QuotesOK, sum.QuotesFailed = ok, len(symbols)-ok
	if err != nil {
		sum.Elapsed = s.now().Sub(start)
		return sum, err
	}

	to := s.now().UTC()
	from := to.AddDate(-years, 0, 0)
	var (
		mu   sync.Mutex
		bars int
	)
	ok, err = s.each(ctx, PhaseHistory, symbols, progress, func(ctx context.Context, sym string) (int, error) {
		n, err := s.syncHistory(ctx, sym, from, to)
		mu.Lock()
		bars += n
		mu.Unlock()
		return n, err
	})
	sum.HistoryOK, sum.HistoryFailed, sum.Bars = ok, len(symbols)-ok, bars
	sum.Elapsed = s.now().Sub(start)
	if err != nil {
		return sum, err
	}
	s.l.Info("sync finished",
		applogger.Int("quotes_ok", sum.QuotesOK),
		applogger.Int("history_ok", sum.HistoryOK),
		applogger.Int("bars", sum.Bars),
		applogger.Duration("elapsed_ms", sum.Elapsed),
	)
	return sum, nil
}

// each runs fn for every symbol with bounded concurrency and returns how many succeeded with a
// positive count. Per-symbol errors never cancel siblings; progress calls are serialised.
func (s *MarketSync) each(ctx context.Context, phase SyncPhase, symbols []string, progress SyncProgressFunc, fn func(context.Context, string) (int, error)) (int, error) {
	var (
		mu       sync.Mutex
		ok, done int
	)
	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)
	for _, sym := range symbols {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			n, err := fn(ctx, sym)
			if err != nil {
				s.l.Warn("sync symbol failed", applogger.String("phase", string(phase)), applogger.String("symbol", sym), applogger.Error(err))
			}
			mu.Lock()
			defer mu.Unlock()
			done++
			if err == nil && n > 0 {
				ok++
			}
			if progress != nil {
				progress(phase, done, len(symbols))
			}
			return nil
		})
	}
	_ = g.Wait()
	return ok, ctx.Err()
}

func (s *MarketSync) syncQuote(ctx context.Context, symbol string) error {
	q, err := s.src.Quote(ctx, symbol)
	if err != nil {
		return err
	}
	// the profile is best effort: a quote without metadata is still worth keeping
	p, mcap, perr := s.src.Profile(ctx, symbol)
	if perr == nil {
		q.MarketCap = mcap
		if err := s.store.UpsertProfile(ctx, p); err != nil {
			return fmt.Errorf("store profile: %w", err)
		}
	} else {
		s.l.Debug("profile unavailable", applogger.String("symbol", symbol), applogger.Error(perr))
	}
	if err := s.store.UpsertQuote(ctx, q); err != nil {
		return fmt.Errorf("store quote: %w", err)
	}
	return nil
}

func (s *MarketSync) syncHistory(ctx context.Context, symbol string, from, to time.Time) (int, error) {
	bars, err := s.src.DailyBars(ctx, symbol, from, to)
	if err != nil {
		return 0, err
	}
	for i := range bars {
		bars[i].Symbol = symbol
		bars[i].Close = round2(bars[i].Close)
		bars[i].Open = round2p(bars[i].Open)
		bars[i].High = round2p(bars[i].High)
		bars[i].Low = round2p(bars[i].Low)
	}
	n, err := s.store.UpsertBars(ctx, bars)
	if err != nil {
		return 0, fmt.Errorf("store bars: %w", err)
	}
	return n, nil
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func round2p(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return models.Float(round2(*v))
}
