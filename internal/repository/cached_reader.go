package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	"MarketPulse/pkg/cache"
)

// ErrForecastNotFound is returned by CachedForecastReader for symbols with no stored rows.
var ErrForecastNotFound = errors.New("forecast not found")

const predictionsKeyPrefix = "predictions:"

// CachedForecastReader is a read-through cache over a ForecastReader.
type CachedForecastReader struct {
	next  domrepo.ForecastReader
	cache cache.Service
	ttl   time.Duration
}

var _ domrepo.ForecastReader = (*CachedForecastReader)(nil)

func NewCachedForecastReader(next domrepo.ForecastReader, c cache.Service, ttl time.Duration) *CachedForecastReader {
	return &CachedForecastReader{next: next, cache: c, ttl: ttl}
}

// ListForecasts keys on the filter values exactly as the store matches them.
func (r *CachedForecastReader) ListForecasts(ctx context.Context, filter domrepo.ForecastFilter) ([]models.ForecastRow, error) {
	key := predictionsKeyPrefix + "list:" + filter.Sector + "|" + filter.Signal
	return cache.GetOrLoad(ctx, r.cache, key, r.ttl, func(ctx context.Context) ([]models.ForecastRow, error) {
		return r.next.ListForecasts(ctx, filter)
	})
}

// GetForecast caches hits only, so a symbol predicted after a miss is visible at once.
func (r *CachedForecastReader) GetForecast(ctx context.Context, symbol string) ([]models.ForecastRow, error) {
	key := predictionsKeyPrefix + "symbol:" + symbol
	rows, err := cache.GetOrLoad(ctx, r.cache, key, r.ttl, func(ctx context.Context) ([]models.ForecastRow, error) {
		rows, err := r.next.GetForecast(ctx, symbol)
		if err == nil && len(rows) == 0 {
			return nil, ErrForecastNotFound
		}
		return rows, err
	})
	if errors.Is(err, ErrForecastNotFound) {
		return nil, nil
	}
	return rows, err
}

func (r *CachedForecastReader) ForecastStats(ctx context.Context, moverHorizon string, moverLimit int) (models.PredictionStats, error) {
	key := fmt.Sprintf("%sstats:%s:%d", predictionsKeyPrefix, moverHorizon, moverLimit)
	return cache.GetOrLoad(ctx, r.cache, key, r.ttl, func(ctx context.Context) (models.PredictionStats, error) {
		return r.next.ForecastStats(ctx, moverHorizon, moverLimit)
	})
}

func (r *CachedForecastReader) ForecastSectors(ctx context.Context) ([]string, error) {
	return cache.GetOrLoad(ctx, r.cache, predictionsKeyPrefix+"sectors", r.ttl, r.next.ForecastSectors)
}

// Invalidate drops every cached predictions entry.
func (r *CachedForecastReader) Invalidate(ctx context.Context) error {
	return r.cache.DeleteByPrefix(ctx, predictionsKeyPrefix)
}
