// Package features turns daily closes and volumes into fixed-width model inputs.
package features

import (
	"math"

	"MarketPulse/internal/services/indicators"
)

// Column order of every feature vector.
const (
	ColClose = iota
	ColVolume
	ColSMA5Ratio
	ColSMA20Ratio
	ColRSI
	ColMACD

	NumFeatures
)

// DefaultStartOffset leaves room for the 26-day EMA behind MACD.
const DefaultStartOffset = 25

// Options controls Build.
type Options struct {
	// StartOffset is the first index that may produce a vector.
	StartOffset int
	// MaxPoints keeps only the most recent vectors; 0 keeps all.
	MaxPoints int
}

// Build returns [close, volume, sma5/close, sma20/close, rsi14/100, macd] per day from
// StartOffset on, skipping days where either moving average is undefined or a ratio is not
// finite. closes and volumes must be parallel and ascending by date.
func Build(closes, volumes []float64, opts Options) [][]float64 {
	n := len(closes)
	if len(volumes) < n {
		n = len(volumes)
	}
	closes, volumes = closes[:n], volumes[:n]

	sma5 := indicators.SMA(closes, 5)
	sma20 := indicators.SMA(closes, 20)
	rsi := indicators.RSI(closes, 14)
	macd := indicators.MACD(closes)

	start := opts.StartOffset
	if start < 0 {
		start = 0
	}

	out := make([][]float64, 0, max(n-start, 0))
	for i := start; i < n; i++ {
		if !indicators.Defined(sma5[i]) || !indicators.Defined(sma20[i]) {
			continue
		}
		v := make([]float64, NumFeatures)
		v[ColClose] = closes[i]
		v[ColVolume] = volumes[i]
		v[ColSMA5Ratio] = sma5[i] / closes[i]
		v[ColSMA20Ratio] = sma20[i] / closes[i]
		v[ColRSI] = rsi[i] / 100
		v[ColMACD] = macd[i]
		if !finite(v) {
			continue
		}
		out = append(out, v)
	}

	if opts.MaxPoints > 0 && len(out) > opts.MaxPoints {
		out = out[len(out)-opts.MaxPoints:]
	}
	return out
}

func finite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
