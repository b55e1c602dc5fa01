package repository

import (
	"context"
	"time"

	"MarketPulse/internal/domain/models"
)

// PriceHistoryStore is the read side the prediction engine depends on.
type PriceHistoryStore interface {
	// GetPriceHistory returns every bar for symbol, ascending by date.
	GetPriceHistory(ctx context.Context, symbol string) ([]models.PriceBar, error)
	// EligibleSymbols returns up to limit symbols with at least minBars bars, ordered by market
	// capitalisation descending (unknown caps last), then symbol.
	EligibleSymbols(ctx context.Context, minBars, limit int) ([]string, error)
}

// ForecastStore persists one symbol's forecast. All horizons are committed atomically and
// replace any earlier rows for the same (symbol, horizon).
type ForecastStore interface {
	StoreForecast(ctx context.Context, f models.Forecast) error
}

// ForecastFilter narrows ListForecasts.
type ForecastFilter struct {
	Sector string
	Signal string
}

// ForecastReader serves the predictions read API.
type ForecastReader interface {
	ListForecasts(ctx context.Context, filter ForecastFilter) ([]models.ForecastRow, error)
	GetForecast(ctx context.Context, symbol string) ([]models.ForecastRow, error)
	ForecastStats(ctx context.Context, moverHorizon string, moverLimit int) (models.PredictionStats, error)
	ForecastSectors(ctx context.Context) ([]string, error)
}

// MarketDataWriter is the write side used by the market-data sync.
type MarketDataWriter interface {
	UpsertBars(ctx context.Context, bars []models.PriceBar) (int, error)
	UpsertQuote(ctx context.Context, q models.Quote) error
	UpsertProfile(ctx context.Context, p models.StockProfile) error
	TrackedSymbols(ctx context.Context) ([]string, error)
}

// ForecastPublisher fans forecasts out to downstream consumers.
type ForecastPublisher interface {
	Publish(ctx context.Context, f models.Forecast) error
	Close() error
}

// Metrics records batch and API activity.
type Metrics interface {
	RecordForecast(signal string, trainingLoss float64)
	RecordFailure(reason string)
	RecordSymbolDuration(stage string, d time.Duration)
	RecordBatch(succeeded, failed int, d time.Duration)
}
