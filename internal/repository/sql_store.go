package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	applogger "MarketPulse/pkg/logger"
	"MarketPulse/pkg/sqldb"
	"MarketPulse/pkg/util"
)

// SQLStore serves price history, forecasts and market data from SQLite or PostgreSQL.
type SQLStore struct {
	db     *sqlx.DB
	driver string
	l      *applogger.Logger
	now    func() time.Time
}

var (
	_ domrepo.PriceHistoryStore = (*SQLStore)(nil)
	_ domrepo.ForecastStore     = (*SQLStore)(nil)
	_ domrepo.ForecastReader    = (*SQLStore)(nil)
	_ domrepo.MarketDataWriter  = (*SQLStore)(nil)
)

func NewSQLStore(db *sqlx.DB, l *applogger.Logger) *SQLStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &SQLStore{db: db, driver: db.DriverName(), l: l.Component("sql_store"), now: time.Now}
}

// Migrate creates missing tables and indexes.
func (s *SQLStore) Migrate(ctx context.Context) error {
	if err := sqldb.Exec(ctx, s.db, SQLSchema(s.driver)); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *SQLStore) GetPriceHistory(ctx context.Context, symbol string) ([]models.PriceBar, error) {
	var bars []models.PriceBar
	q := s.db.Rebind(`
		SELECT symbol, date, open, high, low, close, volume
		FROM stock_prices
		WHERE symbol = ?
		ORDER BY date ASC`)
	if err := s.db.SelectContext(ctx, &bars, q, symbol); err != nil {
		return nil, fmt.Errorf("price history %s: %w", symbol, err)
	}
	return bars, nil
}

func (s *SQLStore) EligibleSymbols(ctx context.Context, minBars, limit int) ([]string, error) {
	q := `
		SELECT p.symbol
		FROM stock_prices p
		LEFT JOIN stock_quotes q ON q.symbol = p.symbol
		GROUP BY p.symbol, q.market_cap
		HAVING COUNT(*) >= ?
		ORDER BY q.market_cap DESC NULLS LAST, p.symbol ASC`
	args := []interface{}{minBars}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	var out []string
	if err := s.db.SelectContext(ctx, &out, s.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("eligible symbols: %w", err)
	}
	return out, nil
}

// StoreForecast upserts every horizon of f in one transaction.
func (s *SQLStore) StoreForecast(ctx context.Context, f models.Forecast) error {
	q := s.db.Rebind(`
		INSERT INTO stock_predictions (
			symbol, period, current_price, predicted_price, predicted_change,
			predicted_change_pct, confidence, signal, model_loss, predicted_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (symbol, period) DO UPDATE SET
			current_price = excluded.current_price,
			predicted_price = excluded.predicted_price,
			predicted_change = excluded.predicted_change,
			predicted_change_pct = excluded.predicted_change_pct,
			confidence = excluded.confidence,
			signal = excluded.signal,
			model_loss = excluded.model_loss,
			predicted_at = excluded.predicted_at`)

	at := f.ComputedAt.UTC()
	return sqldb.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		for _, h := range f.Horizons {
			if _, err := tx.ExecContext(ctx, q,
				f.Symbol, h.Horizon, f.CurrentPrice, h.PredictedPrice, h.Change,
				h.ChangePct, h.Confidence, string(f.Signal), f.TrainingLoss, at,
			); err != nil {
				return fmt.Errorf("store %s/%s: %w", f.Symbol, h.Horizon, err)
			}
		}
		return nil
	})
}

const forecastColumns = `
	p.symbol, p.period, p.current_price, p.predicted_price, p.predicted_change,
	p.predicted_change_pct, p.confidence, p.signal, p.model_loss, p.predicted_at,
	s.name, s.sector`

func (s *SQLStore) ListForecasts(ctx context.Context, filter domrepo.ForecastFilter) ([]models.ForecastRow, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.Sector != "" {
		conds = append(conds, "s.sector = ?")
		args = append(args, filter.Sector)
	}
	if filter.Signal != "" {
		conds = append(conds, "p.signal = ?")
		args = append(args, filter.Signal)
	}
	q := `SELECT ` + forecastColumns + `
		FROM stock_predictions p
		LEFT JOIN stocks s ON s.symbol = p.symbol`
	if len(conds) > 0 {
		q += ` WHERE ` + strings.Join(conds, " AND ")
	}
	q += ` ORDER BY p.symbol, p.period`

	var rows []models.ForecastRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("list forecasts: %w", err)
	}
	return rows, nil
}

func (s *SQLStore) GetForecast(ctx context.Context, symbol string) ([]models.ForecastRow, error) {
	q := s.db.Rebind(`SELECT ` + forecastColumns + `
		FROM stock_predictions p
		LEFT JOIN stocks s ON s.symbol = p.symbol
		WHERE p.symbol = ?
		ORDER BY p.period`)
	var rows []models.ForecastRow
	if err := s.db.SelectContext(ctx, &rows, q, symbol); err != nil {
		return nil, fmt.Errorf("get forecast %s: %w", symbol, err)
	}
	return rows, nil
}

func (s *SQLStore) ForecastStats(ctx context.Context, moverHorizon string, moverLimit int) (models.PredictionStats, error) {
	stats := models.PredictionStats{Signals: make(map[models.Signal]int)}

	if err := s.db.GetContext(ctx, &stats.TotalStocks, `SELECT COUNT(DISTINCT symbol) FROM stock_predictions`); err != nil {
		return stats, fmt.Errorf("count predictions: %w", err)
	}

	// MAX() loses the column type on SQLite, so read the newest row instead.
	var last time.Time
	err := s.db.GetContext(ctx, &last, `SELECT predicted_at FROM stock_predictions ORDER BY predicted_at DESC LIMIT 1`)
	switch {
	case err == nil:
		stats.LastPrediction = &last
	case !errors.Is(err, sql.ErrNoRows):
		return stats, fmt.Errorf("last prediction: %w", err)
	}

	var counts []struct {
		Signal models.Signal `db:"signal"`
		Count  int           `db:"cnt"`
	}
	if err := s.db.SelectContext(ctx, &counts, `
		SELECT signal, COUNT(DISTINCT symbol) AS cnt
		FROM stock_predictions
		GROUP BY signal`); err != nil {
		return stats, fmt.Errorf("signal counts: %w", err)
	}
	for _, c := range counts {
		stats.Signals[c.Signal] = c.Count
	}

	movers := func(dir string) ([]models.Mover, error) {
		q := s.db.Rebind(`
			SELECT p.symbol, s.name, p.predicted_change_pct, p.signal
			FROM stock_predictions p
			LEFT JOIN stocks s ON s.symbol = p.symbol
			WHERE p.period = ?
			ORDER BY p.predicted_change_pct ` + dir + `, p.symbol ASC
			LIMIT ?`)
		out := []models.Mover{}
		if err := s.db.SelectContext(ctx, &out, q, moverHorizon, moverLimit); err != nil {
			return nil, err
		}
		return out, nil
	}
	if stats.TopBuy, err = movers("DESC"); err != nil {
		return stats, fmt.Errorf("top buy: %w", err)
	}
	if stats.TopSell, err = movers("ASC"); err != nil {
		return stats, fmt.Errorf("top sell: %w", err)
	}
	return stats, nil
}

func (s *SQLStore) ForecastSectors(ctx context.Context) ([]string, error) {
	out := []string{}
	err := s.db.SelectContext(ctx, &out, `
		SELECT DISTINCT s.sector
		FROM stock_predictions p
		JOIN stocks s ON s.symbol = p.symbol
		WHERE s.sector IS NOT NULL AND s.sector <> ''
		ORDER BY s.sector`)
	if err != nil {
		return nil, fmt.Errorf("forecast sectors: %w", err)
	}
	return out, nil
}

// UpsertBars writes bars keyed by (symbol, date) in one transaction and returns the count.
func (s *SQLStore) UpsertBars(ctx context.Context, bars []models.PriceBar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}
	q := s.db.Rebind(`
		INSERT INTO stock_prices (symbol, date, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (symbol, date) DO UPDATE SET
			open = excluded.open,
			high = excluded.high,
			low = excluded.low,
			close = excluded.close,
			volume = excluded.volume`)
	err := sqldb.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		for _, b := range bars {
			if _, err := tx.ExecContext(ctx, q, b.Symbol, util.TradingDay(b.Date), b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
				return fmt.Errorf("upsert bar %s %s: %w", b.Symbol, util.DateKey(b.Date), err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(bars), nil
}

func (s *SQLStore) UpsertQuote(ctx context.Context, q models.Quote) error {
	if q.UpdatedAt.IsZero() {
		q.UpdatedAt = s.now()
	}
	q.UpdatedAt = q.UpdatedAt.UTC()
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO stock_quotes (
			symbol, price, change, change_percent, open, high, low, previous_close, market_cap, updated_at
		) VALUES (
			:symbol, :price, :change, :change_percent, :open, :high, :low, :previous_close, :market_cap, :updated_at
		)
		ON CONFLICT (symbol) DO UPDATE SET
			price = excluded.price,
			change = excluded.change,
			change_percent = excluded.change_percent,
			open = excluded.open,
			high = excluded.high,
			low = excluded.low,
			previous_close = excluded.previous_close,
			market_cap = COALESCE(excluded.market_cap, stock_quotes.market_cap),
			updated_at = excluded.updated_at`, q)
	if err != nil {
		return fmt.Errorf("upsert quote %s: %w", q.Symbol, err)
	}
	return nil
}

func (s *SQLStore) UpsertProfile(ctx context.Context, p models.StockProfile) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO stocks (symbol, name, sector, industry, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (symbol) DO UPDATE SET
			name = excluded.name,
			sector = COALESCE(excluded.sector, stocks.sector),
			industry = COALESCE(excluded.industry, stocks.industry),
			updated_at = excluded.updated_at`),
		p.Symbol, p.Name, p.Sector, p.Industry, s.now().UTC())
	if err != nil {
		return fmt.Errorf("upsert profile %s: %w", p.Symbol, err)
	}
	return nil
}

// TrackedSymbols is the union of watchlist and portfolio symbols.
func (s *SQLStore) TrackedSymbols(ctx context.Context) ([]string, error) {
	out := []string{}
	err := s.db.SelectContext(ctx, &out, `
		SELECT symbol FROM watchlist
		UNION
		SELECT symbol FROM portfolio
		ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("tracked symbols: %w", err)
	}
	return out, nil
}

// Profiles returns every stored profile keyed by symbol.
func (s *SQLStore) Profiles(ctx context.Context) (map[string]models.StockProfile, error) {
	var rows []models.StockProfile
	if err := s.db.SelectContext(ctx, &rows, `SELECT symbol, COALESCE(name, '') AS name, sector, industry FROM stocks`); err != nil {
		return nil, fmt.Errorf("profiles: %w", err)
	}
	out := make(map[string]models.StockProfile, len(rows))
	for _, p := range rows {
		out[p.Symbol] = p
	}
	return out, nil
}
