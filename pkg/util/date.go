package util

import (
	"strconv"
	"time"
)

// DateLayout is the storage format for trading days.
const DateLayout = "2006-01-02"

// DateKey formats t as a UTC trading-day key.
func DateKey(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// TradingDay truncates t to midnight UTC of its UTC calendar day.
func TradingDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseTime tries a trading-day key, RFC3339, RFC3339Nano and unix seconds.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0).UTC(), true
	}
	return time.Time{}, false
}

// ParseTimeDefault parses time or returns def if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}

// HistoryWindow returns the [from, to] range covering the last n years up to now.
func HistoryWindow(now time.Time, years int) (time.Time, time.Time) {
	to := now.UTC()
	return to.AddDate(-years, 0, 0).Truncate(24 * time.Hour), to
}
