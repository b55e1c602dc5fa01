package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
)

func TestCHSchemaUsesReplacingMergeTree(t *testing.T) {
	stmts := CHSchema("mp")
	require.Len(t, stmts, 4)
	assert.Contains(t, stmts[3], "mp.stock_predictions")
	assert.Contains(t, stmts[3], "ReplacingMergeTree(predicted_at)")
	assert.True(t, strings.Contains(stmts[3], "ORDER BY (symbol, period)"))
}

func TestStatsFromRowsMatchesSQLStore(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	early := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, s.UpsertProfile(ctx, models.StockProfile{Symbol: "AAA", Name: "Alpha"}))
	require.NoError(t, s.StoreForecast(ctx, forecastFor("AAA", models.SignalStrongBuy, 8, early)))
	require.NoError(t, s.StoreForecast(ctx, forecastFor("BBB", models.SignalBuy, 3, early.Add(time.Hour))))
	require.NoError(t, s.StoreForecast(ctx, forecastFor("CCC", models.SignalStrongSell, -9, early)))
	require.NoError(t, s.StoreForecast(ctx, forecastFor("DDD", models.SignalBuy, 3, early)))

	want, err := s.ForecastStats(ctx, "1w", 3)
	require.NoError(t, err)
	rows, err := s.ListForecasts(ctx, domrepo.ForecastFilter{})
	require.NoError(t, err)

	got := StatsFromRows(rows, "1w", 3)
	assert.Equal(t, want.TotalStocks, got.TotalStocks)
	assert.Equal(t, want.Signals, got.Signals)
	assert.True(t, want.LastPrediction.Equal(*got.LastPrediction))
	assert.Equal(t, want.TopBuy, got.TopBuy)
	assert.Equal(t, want.TopSell, got.TopSell)
}

func TestStatsFromRowsEmpty(t *testing.T) {
	stats := StatsFromRows(nil, "1w", 5)
	assert.Zero(t, stats.TotalStocks)
	assert.Nil(t, stats.LastPrediction)
	assert.NotNil(t, stats.TopBuy)
	assert.Empty(t, stats.TopSell)
}

func TestProfilesAttachAndFilter(t *testing.T) {
	rows := []models.ForecastRow{
		{Symbol: "AAPL", Period: "1d"},
		{Symbol: "XOM", Period: "1d"},
		{Symbol: "ZZZ", Period: "1d"},
	}
	profiles := map[string]models.StockProfile{
		"AAPL": {Symbol: "AAPL", Name: "Apple", Sector: models.Str("Technology")},
		"XOM":  {Symbol: "XOM", Name: "Exxon", Sector: models.Str("Energy")},
	}

	rows = AttachProfiles(rows, profiles)
	require.NotNil(t, rows[0].Name)
	assert.Equal(t, "Apple", *rows[0].Name)
	assert.Nil(t, rows[2].Sector)
	assert.Equal(t, []string{"Energy", "Technology"}, SectorsFromRows(rows))

	energy := FilterBySector(append([]models.ForecastRow(nil), rows...), "Energy")
	require.Len(t, energy, 1)
	assert.Equal(t, "XOM", energy[0].Symbol)
	assert.Len(t, FilterBySector(rows, ""), 3)
}
