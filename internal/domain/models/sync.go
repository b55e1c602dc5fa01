package models

import "time"

// SyncRequest selects what the market-data sync fetches. Symbols wins over Quick.
type SyncRequest struct {
	Symbols []string
	// Quick limits the run to watchlist and portfolio symbols.
	Quick bool
	Years int
}

// SyncSummary aggregates one sync run.
type SyncSummary struct {
	Mode          string        `json:"mode"`
	Symbols       int           `json:"symbols"`
	QuotesOK      int           `json:"quotes_ok"`
	QuotesFailed  int           `json:"quotes_failed"`
	HistoryOK     int           `json:"history_ok"`
	HistoryFailed int           `json:"history_failed"`
	Bars          int           `json:"bars"`
	Elapsed       time.Duration `json:"elapsed"`
}
