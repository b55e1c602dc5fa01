package repository

import "MarketPulse/pkg/sqldb"

// SQLSchema returns idempotent DDL for driver. Only the surrogate key column differs.
func SQLSchema(driver string) []string {
	serial := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if driver == sqldb.DriverPostgres {
		serial = "BIGSERIAL PRIMARY KEY"
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS stocks (
			symbol     VARCHAR(16) PRIMARY KEY,
			name       VARCHAR(255),
			sector     VARCHAR(100),
			industry   VARCHAR(100),
			updated_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS stock_prices (
			id     ` + serial + `,
			symbol VARCHAR(16) NOT NULL,
			date   DATE NOT NULL,
			open   DOUBLE PRECISION,
			high   DOUBLE PRECISION,
			low    DOUBLE PRECISION,
			close  DOUBLE PRECISION NOT NULL,
			volume DOUBLE PRECISION NOT NULL DEFAULT 0,
			UNIQUE(symbol, date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_stock_prices_symbol_date ON stock_prices(symbol, date)`,
		`CREATE TABLE IF NOT EXISTS stock_quotes (
			symbol         VARCHAR(16) PRIMARY KEY,
			price          DOUBLE PRECISION,
			change         DOUBLE PRECISION,
			change_percent DOUBLE PRECISION,
			open           DOUBLE PRECISION,
			high           DOUBLE PRECISION,
			low            DOUBLE PRECISION,
			previous_close DOUBLE PRECISION,
			market_cap     DOUBLE PRECISION,
			updated_at     TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS stock_predictions (
			symbol               VARCHAR(16) NOT NULL,
			period               VARCHAR(8) NOT NULL,
			current_price        DOUBLE PRECISION NOT NULL,
			predicted_price      DOUBLE PRECISION NOT NULL,
			predicted_change     DOUBLE PRECISION NOT NULL,
			predicted_change_pct DOUBLE PRECISION NOT NULL,
			confidence           DOUBLE PRECISION NOT NULL,
			signal               VARCHAR(16) NOT NULL,
			model_loss           DOUBLE PRECISION NOT NULL,
			predicted_at         TIMESTAMP NOT NULL,
			PRIMARY KEY (symbol, period)
		)`,
		`CREATE TABLE IF NOT EXISTS watchlist (
			id       ` + serial + `,
			symbol   VARCHAR(16) NOT NULL UNIQUE,
			added_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS portfolio (
			id        ` + serial + `,
			symbol    VARCHAR(16) NOT NULL UNIQUE,
			shares    DOUBLE PRECISION NOT NULL,
			avg_price DOUBLE PRECISION NOT NULL,
			added_at  TIMESTAMP
		)`,
	}
}
