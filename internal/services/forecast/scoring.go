package forecast

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"MarketPulse/internal/domain/models"
)

const (
	minConfidence    = 10.0
	maxConfidence    = 95.0
	maxHorizonDamage = 40.0
)

// Confidence is a heuristic score in [10, 95]: it starts from how small the training loss is
// and loses two points per horizon day, capped at forty.
func Confidence(trainingLoss float64, horizonDays int) float64 {
	base := clamp((1-trainingLoss*10)*100, 0, 100)
	if math.IsNaN(base) {
		base = 0
	}
	penalty := math.Min(float64(horizonDays)*2, maxHorizonDamage)
	return clamp(base-penalty, minConfidence, maxConfidence)
}

// Classify maps an average percent change to a signal. Thresholds are strict.
func Classify(avgChangePct float64) models.Signal {
	switch {
	case avgChangePct > 5:
		return models.SignalStrongBuy
	case avgChangePct > 2:
		return models.SignalBuy
	case avgChangePct > -2:
		return models.SignalHold
	case avgChangePct > -5:
		return models.SignalSell
	default:
		return models.SignalStrongSell
	}
}

// SignalFor averages the horizon percent changes and classifies the mean.
func SignalFor(horizons []models.HorizonForecast) models.Signal {
	if len(horizons) == 0 {
		return models.SignalHold
	}
	pcts := make([]float64, len(horizons))
	for i, h := range horizons {
		pcts[i] = h.ChangePct
	}
	return Classify(stat.Mean(pcts, nil))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
