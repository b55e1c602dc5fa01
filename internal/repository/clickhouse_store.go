package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	pkgch "MarketPulse/pkg/clickhouse"
	applogger "MarketPulse/pkg/logger"
)

// ProfileSource supplies names and sectors for stores that do not hold company metadata.
type ProfileSource interface {
	Profiles(ctx context.Context) (map[string]models.StockProfile, error)
}

// CHStore reads daily bars from ClickHouse and keeps forecasts in a ReplacingMergeTree, so the
// newest predicted_at per (symbol, period) wins once parts merge; reads use FINAL.
type CHStore struct {
	db       *sql.DB
	database string
	profiles ProfileSource
	l        *applogger.Logger
}

var (
	_ domrepo.PriceHistoryStore = (*CHStore)(nil)
	_ domrepo.ForecastStore     = (*CHStore)(nil)
	_ domrepo.ForecastReader    = (*CHStore)(nil)
)

func NewCHStore(ch *pkgch.Client, profiles ProfileSource, l *applogger.Logger) *CHStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHStore{db: ch.DB(), database: ch.Database(), profiles: profiles, l: l.Component("clickhouse_store")}
}

// CHSchema returns DDL for the ClickHouse tables inside database.
func CHSchema(database string) []string {
	return []string{
		`CREATE DATABASE IF NOT EXISTS ` + database,
		`CREATE TABLE IF NOT EXISTS ` + database + `.daily_bars (
			symbol LowCardinality(String),
			date   Date,
			open   Nullable(Float64),
			high   Nullable(Float64),
			low    Nullable(Float64),
			close  Float64,
			volume Float64
		) ENGINE = ReplacingMergeTree
		ORDER BY (symbol, date)`,
		`CREATE TABLE IF NOT EXISTS ` + database + `.market_caps (
			symbol     LowCardinality(String),
			market_cap Float64,
			updated_at DateTime
		) ENGINE = ReplacingMergeTree(updated_at)
		ORDER BY symbol`,
		`CREATE TABLE IF NOT EXISTS ` + database + `.stock_predictions (
			symbol               LowCardinality(String),
			period               LowCardinality(String),
			current_price        Float64,
			predicted_price      Float64,
			predicted_change     Float64,
			predicted_change_pct Float64,
			confidence           Float64,
			signal               LowCardinality(String),
			model_loss           Float64,
			predicted_at         DateTime64(3, 'UTC')
		) ENGINE = ReplacingMergeTree(predicted_at)
		ORDER BY (symbol, period)`,
	}
}

func (s *CHStore) table(name string) string { return s.database + "." + name }

func (s *CHStore) GetPriceHistory(ctx context.Context, symbol string) ([]models.PriceBar, error) {
	start := time.Now()
	q := `SELECT symbol, date, open, high, low, close, volume
		FROM ` + s.table("daily_bars") + ` FINAL
		WHERE symbol = ?
		ORDER BY date ASC`
	rows, err := s.db.QueryContext(ctx, q, symbol)
	if err != nil {
		s.l.Error("clickhouse price history query error", applogger.String("symbol", symbol), applogger.Error(err))
		return nil, fmt.Errorf("price history %s: %w", symbol, err)
	}
	defer rows.Close()

	out := make([]models.PriceBar, 0, 1024)
	for rows.Next() {
		var b models.PriceBar
		if err := rows.Scan(&b.Symbol, &b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	s.l.Debug("clickhouse price history ok",
		applogger.String("symbol", symbol),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

func (s *CHStore) EligibleSymbols(ctx context.Context, minBars, limit int) ([]string, error) {
	q := `SELECT b.symbol
		FROM (
			SELECT symbol, count() AS bars FROM ` + s.table("daily_bars") + ` FINAL GROUP BY symbol
		) AS b
		LEFT JOIN (
			SELECT symbol, argMax(market_cap, updated_at) AS cap FROM ` + s.table("market_caps") + ` GROUP BY symbol
		) AS m ON m.symbol = b.symbol
		WHERE b.bars >= ?
		ORDER BY m.cap DESC NULLS LAST, b.symbol ASC
		SETTINGS join_use_nulls = 1`
	args := []interface{}{minBars}
	if limit > 0 {
		q = `SELECT symbol FROM (` + q + `) LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("eligible symbols: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, err
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}

// StoreForecast sends all horizons as one insert block.
func (s *CHStore) StoreForecast(ctx context.Context, f models.Forecast) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO `+s.table("stock_predictions")+` (
		symbol, period, current_price, predicted_price, predicted_change,
		predicted_change_pct, confidence, signal, model_loss, predicted_at)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	at := f.ComputedAt.UTC()
	for _, h := range f.Horizons {
		if _, err := stmt.ExecContext(ctx,
			f.Symbol, h.Horizon, f.CurrentPrice, h.PredictedPrice, h.Change,
			h.ChangePct, h.Confidence, string(f.Signal), f.TrainingLoss, at,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("append %s/%s: %w", f.Symbol, h.Horizon, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *CHStore) ListForecasts(ctx context.Context, filter domrepo.ForecastFilter) ([]models.ForecastRow, error) {
	q := `SELECT symbol, period, current_price, predicted_price, predicted_change,
			predicted_change_pct, confidence, signal, model_loss, predicted_at
		FROM ` + s.table("stock_predictions") + ` FINAL`
	var args []interface{}
	if filter.Signal != "" {
		q += ` WHERE signal = ?`
		args = append(args, filter.Signal)
	}
	q += ` ORDER BY symbol, period`
	rows, err := s.queryForecasts(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return FilterBySector(rows, filter.Sector), nil
}

func (s *CHStore) GetForecast(ctx context.Context, symbol string) ([]models.ForecastRow, error) {
	q := `SELECT symbol, period, current_price, predicted_price, predicted_change,
			predicted_change_pct, confidence, signal, model_loss, predicted_at
		FROM ` + s.table("stock_predictions") + ` FINAL
		WHERE symbol = ?
		ORDER BY period`
	return s.queryForecasts(ctx, q, symbol)
}

func (s *CHStore) ForecastStats(ctx context.Context, moverHorizon string, moverLimit int) (models.PredictionStats, error) {
	rows, err := s.ListForecasts(ctx, domrepo.ForecastFilter{})
	if err != nil {
		return models.PredictionStats{}, err
	}
	return StatsFromRows(rows, moverHorizon, moverLimit), nil
}

func (s *CHStore) ForecastSectors(ctx context.Context) ([]string, error) {
	rows, err := s.ListForecasts(ctx, domrepo.ForecastFilter{})
	if err != nil {
		return nil, err
	}
	return SectorsFromRows(rows), nil
}

func (s *CHStore) queryForecasts(ctx context.Context, q string, args ...interface{}) ([]models.ForecastRow, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query forecasts: %w", err)
	}
	defer rows.Close()

	var out []models.ForecastRow
	for rows.Next() {
		var r models.ForecastRow
		var signal string
		if err := rows.Scan(&r.Symbol, &r.Period, &r.CurrentPrice, &r.PredictedPrice, &r.PredictedChange,
			&r.PredictedChangePct, &r.Confidence, &signal, &r.ModelLoss, &r.PredictedAt); err != nil {
			return nil, fmt.Errorf("scan forecast: %w", err)
		}
		r.Signal = models.Signal(signal)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if s.profiles == nil || len(out) == 0 {
		return out, nil
	}
	profiles, err := s.profiles.Profiles(ctx)
	if err != nil {
		s.l.Warn("profile lookup failed", applogger.Error(err))
		return out, nil
	}
	return AttachProfiles(out, profiles), nil
}

// AttachProfiles fills Name and Sector from profiles.
func AttachProfiles(rows []models.ForecastRow, profiles map[string]models.StockProfile) []models.ForecastRow {
	for i := range rows {
		p, ok := profiles[rows[i].Symbol]
		if !ok {
			continue
		}
		if p.Name != "" {
			name := p.Name
			rows[i].Name = &name
		}
		rows[i].Sector = p.Sector
	}
	return rows
}

// FilterBySector keeps rows whose sector equals sector; an empty sector keeps everything.
func FilterBySector(rows []models.ForecastRow, sector string) []models.ForecastRow {
	if sector == "" {
		return rows
	}
	out := rows[:0]
	for _, r := range rows {
		if r.Sector != nil && *r.Sector == sector {
			out = append(out, r)
		}
	}
	return out
}

// SectorsFromRows lists distinct non-empty sectors in ascending order.
func SectorsFromRows(rows []models.ForecastRow) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, r := range rows {
		if r.Sector == nil || *r.Sector == "" {
			continue
		}
		if _, ok := seen[*r.Sector]; ok {
			continue
		}
		seen[*r.Sector] = struct{}{}
		out = append(out, *r.Sector)
	}
	sort.Strings(out)
	return out
}

// StatsFromRows computes the summary the SQL store answers with aggregate queries.
func StatsFromRows(rows []models.ForecastRow, moverHorizon string, moverLimit int) models.PredictionStats {
	stats := models.PredictionStats{
		Signals: make(map[models.Signal]int),
		TopBuy:  []models.Mover{},
		TopSell: []models.Mover{},
	}
	symbols := map[string]struct{}{}
	bySignal := map[models.Signal]map[string]struct{}{}
	var movers []models.Mover
	for _, r := range rows {
		symbols[r.Symbol] = struct{}{}
		if bySignal[r.Signal] == nil {
			bySignal[r.Signal] = map[string]struct{}{}
		}
		bySignal[r.Signal][r.Symbol] = struct{}{}
		if stats.LastPrediction == nil || r.PredictedAt.After(*stats.LastPrediction) {
			at := r.PredictedAt
			stats.LastPrediction = &at
		}
		if r.Period == moverHorizon {
			movers = append(movers, models.Mover{Symbol: r.Symbol, Name: r.Name, ChangePct: r.PredictedChangePct, Signal: r.Signal})
		}
	}
	stats.TotalStocks = len(symbols)
	for sig, set := range bySignal {
		stats.Signals[sig] = len(set)
	}

	sort.SliceStable(movers, func(i, j int) bool {
		if movers[i].ChangePct != movers[j].ChangePct {
			return movers[i].ChangePct > movers[j].ChangePct
		}
		return movers[i].Symbol < movers[j].Symbol
	})
	n := max(0, min(moverLimit, len(movers)))
	stats.TopBuy = append(stats.TopBuy, movers[:n]...)

	sort.SliceStable(movers, func(i, j int) bool {
		if movers[i].ChangePct != movers[j].ChangePct {
			return movers[i].ChangePct < movers[j].ChangePct
		}
		return movers[i].Symbol < movers[j].Symbol
	})
	stats.TopSell = append(stats.TopSell, movers[:n]...)
	return stats
}
