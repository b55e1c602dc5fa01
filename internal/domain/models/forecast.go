package models

import "time"

// Signal is the discrete recommendation derived from averaged horizon changes.
type Signal string

const (
	SignalStrongBuy  Signal = "strong_buy"
	SignalBuy        Signal = "buy"
	SignalHold       Signal = "hold"
	SignalSell       Signal = "sell"
	SignalStrongSell Signal = "strong_sell"
)

// Signals lists every signal from most bullish to most bearish.
var Signals = []Signal{SignalStrongBuy, SignalBuy, SignalHold, SignalSell, SignalStrongSell}

// Rank orders signals for sorting: strong_buy 5 down to strong_sell 1, unknown 0.
func (s Signal) Rank() int {
	switch s {
	case SignalStrongBuy:
		return 5
	case SignalBuy:
		return 4
	case SignalHold:
		return 3
	case SignalSell:
		return 2
	case SignalStrongSell:
		return 1
	default:
		return 0
	}
}

// Horizon is a named forecast distance in trading days.
type Horizon struct {
	Name string `json:"name"`
	Days int    `json:"days"`
}

// HorizonForecast is one horizon's result.
type HorizonForecast struct {
	Horizon        string  `json:"horizon"`
	Days           int     `json:"days"`
	PredictedPrice float64 `json:"price"`
	Change         float64 `json:"change"`
	ChangePct      float64 `json:"changePct"`
	Confidence     float64 `json:"confidence"`
}

// Forecast is the per-symbol output of one engine run. All horizons come from one model fit.
type Forecast struct {
	Symbol       string            `json:"symbol"`
	CurrentPrice float64           `json:"currentPrice"`
	Horizons     []HorizonForecast `json:"horizons"`
	Signal       Signal            `json:"signal"`
	TrainingLoss float64           `json:"modelLoss"`
	ComputedAt   time.Time         `json:"predictedAt"`
}

// Horizon returns the named horizon result.
func (f Forecast) Horizon(name string) (HorizonForecast, bool) {
	for _, h := range f.Horizons {
		if h.Horizon == name {
			return h, true
		}
	}
	return HorizonForecast{}, false
}

// ForecastRow is one persisted (symbol, period) row joined with stock metadata.
type ForecastRow struct {
	Symbol             string    `db:"symbol"`
	Period             string    `db:"period"`
	CurrentPrice       float64   `db:"current_price"`
	PredictedPrice     float64   `db:"predicted_price"`
	PredictedChange    float64   `db:"predicted_change"`
	PredictedChangePct float64   `db:"predicted_change_pct"`
	Confidence         float64   `db:"confidence"`
	Signal             Signal    `db:"signal"`
	ModelLoss          float64   `db:"model_loss"`
	PredictedAt        time.Time `db:"predicted_at"`
	Name               *string   `db:"name"`
	Sector             *string   `db:"sector"`
}

// HorizonView is the API shape of one stored horizon.
type HorizonView struct {
	Price      float64 `json:"price"`
	Change     float64 `json:"change"`
	ChangePct  float64 `json:"changePct"`
	Confidence float64 `json:"confidence"`
}

// SymbolPrediction groups stored rows for one symbol.
type SymbolPrediction struct {
	Symbol       string                 `json:"symbol"`
	Name         *string                `json:"name"`
	Sector       *string                `json:"sector"`
	CurrentPrice float64                `json:"currentPrice"`
	Signal       Signal                 `json:"signal"`
	ModelLoss    float64                `json:"modelLoss"`
	PredictedAt  time.Time              `json:"predictedAt"`
	Predictions  map[string]HorizonView `json:"predictions"`
}

// Mover is one entry of the top buy/sell lists.
type Mover struct {
	Symbol    string  `db:"symbol" json:"symbol"`
	Name      *string `db:"name" json:"name"`
	ChangePct float64 `db:"predicted_change_pct" json:"predicted_change_pct"`
	Signal    Signal  `db:"signal" json:"signal"`
}

// PredictionStats summarises the stored forecasts.
type PredictionStats struct {
	TotalStocks    int            `json:"totalStocks"`
	LastPrediction *time.Time     `json:"lastPrediction"`
	Signals        map[Signal]int `json:"signals"`
	TopBuy         []Mover        `json:"topBuy"`
	TopSell        []Mover        `json:"topSell"`
}
