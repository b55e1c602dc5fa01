// Package indicators computes technical indicators over a close-price series.
// Every function returns a slice the same length as its input; positions without enough
// history hold NaN (see Defined).
package indicators

import (
	"math"

	"github.com/markcheno/go-talib"
)

// Defined reports whether an indicator value carries a real reading.
func Defined(v float64) bool {
	return !math.IsNaN(v)
}

func undefined(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// SMA is the simple moving average. The first period-1 entries are undefined.
func SMA(prices []float64, period int) []float64 {
	if period < 1 || len(prices) < period {
		return undefined(len(prices))
	}
	out := talib.Sma(prices, period)
	for i := 0; i < period-1; i++ {
		out[i] = math.NaN()
	}
	return out
}

// EMA uses multiplier 2/(period+1), seeded at period-1 by the SMA of the first period values.
func EMA(prices []float64, period int) []float64 {
	if period < 1 || len(prices) < period {
		return undefined(len(prices))
	}
	out := talib.Ema(prices, period)
	for i := 0; i < period-1; i++ {
		out[i] = math.NaN()
	}
	return out
}

// NeutralRSI is reported where fewer than period price changes are available.
const NeutralRSI = 50.0

// RSI averages gains and losses over the trailing period changes. The first period entries
// are NeutralRSI; a window with no losses saturates at 100.
func RSI(prices []float64, period int) []float64 {
	out := make([]float64, len(prices))
	for i := 0; i < len(prices) && i < period; i++ {
		out[i] = NeutralRSI
	}
	if period < 1 {
		return out
	}
	for i := period; i < len(prices); i++ {
		var gains, losses float64
		for j := i - period + 1; j <= i; j++ {
			diff := prices[j] - prices[j-1]
			if diff > 0 {
				gains += diff
			} else {
				losses -= diff
			}
		}
		avgGain := gains / float64(period)
		avgLoss := losses / float64(period)
		if avgLoss == 0 {
			out[i] = 100
			continue
		}
		rs := avgGain / avgLoss
		out[i] = 100 - 100/(1+rs)
	}
	return out
}

// MACD is EMA(12) - EMA(26), zero wherever either average is undefined.
func MACD(prices []float64) []float64 {
	fast := EMA(prices, 12)
	slow := EMA(prices, 26)
	out := make([]float64, len(prices))
	for i := range prices {
		if Defined(fast[i]) && Defined(slow[i]) {
			out[i] = fast[i] - slow[i]
		}
	}
	return out
}
