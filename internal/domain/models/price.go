package models

import "time"

// PriceBar is one trading day for one symbol. Bars are keyed by (symbol, date).
type PriceBar struct {
	Symbol string    `db:"symbol" json:"symbol"`
	Date   time.Time `db:"date" json:"date"`
	Open   *float64  `db:"open" json:"open,omitempty"`
	High   *float64  `db:"high" json:"high,omitempty"`
	Low    *float64  `db:"low" json:"low,omitempty"`
	Close  float64   `db:"close" json:"close"`
	Volume float64   `db:"volume" json:"volume"`
}

// Quote is the latest snapshot for a symbol. Providers do not fill every field, so optional
// values are pointers: nil means the provider did not report it.
type Quote struct {
	Symbol        string    `db:"symbol" json:"symbol"`
	Price         *float64  `db:"price" json:"price,omitempty"`
	Change        *float64  `db:"change" json:"change,omitempty"`
	ChangePercent *float64  `db:"change_percent" json:"changePercent,omitempty"`
	Open          *float64  `db:"open" json:"open,omitempty"`
	High          *float64  `db:"high" json:"high,omitempty"`
	Low           *float64  `db:"low" json:"low,omitempty"`
	PreviousClose *float64  `db:"previous_close" json:"previousClose,omitempty"`
	MarketCap     *float64  `db:"market_cap" json:"marketCap,omitempty"`
	UpdatedAt     time.Time `db:"updated_at" json:"updatedAt"`
}

// StockProfile is static company metadata.
type StockProfile struct {
	Symbol   string  `db:"symbol" json:"symbol"`
	Name     string  `db:"name" json:"name"`
	Sector   *string `db:"sector" json:"sector,omitempty"`
	Industry *string `db:"industry" json:"industry,omitempty"`
}

// Float returns a pointer to v; handy when building optional fields.
func Float(v float64) *float64 { return &v }

// Str returns a pointer to s, or nil for the empty string.
func Str(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
