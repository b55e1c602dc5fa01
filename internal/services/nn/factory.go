// Package nn implements the trainable regressors behind the forecast engine.
package nn

import (
	"fmt"

	"MarketPulse/internal/domain/service"
)

const (
	KindLSTM   = "lstm"
	KindLinear = "linear"
)

// Config describes the network shape and regularisation shared by every model a factory
// builds. Epochs, batch size and learning rate travel with each Fit call.
type Config struct {
	Kind       string
	LSTMUnits  []int
	DenseUnits []int
	Dropout    float64
	ClipNorm   float64
	Ridge      float64
	// Seed fixes weight init and shuffling; 0 draws a fresh seed per model.
	Seed int64
}

// NewFactory returns a factory producing a fresh model per call.
func NewFactory(cfg Config) (service.RegressorFactory, error) {
	switch cfg.Kind {
	case KindLSTM, "":
		if len(cfg.LSTMUnits) == 0 {
			return nil, fmt.Errorf("nn: lstm model needs at least one layer")
		}
		if cfg.Dropout < 0 || cfg.Dropout >= 1 {
			return nil, fmt.Errorf("nn: dropout %.2f out of range", cfg.Dropout)
		}
		return func(window, features int) (service.Regressor, error) {
			return NewLSTM(cfg, window, features)
		}, nil
	case KindLinear:
		return func(window, _ int) (service.Regressor, error) {
			return NewLinear(window, cfg.Ridge)
		}, nil
	default:
		return nil, fmt.Errorf("nn: unknown model kind %q", cfg.Kind)
	}
}

// Describe renders the architecture for banners and logs.
func (c Config) Describe() string {
	if c.Kind == KindLinear {
		return fmt.Sprintf("Ridge autoregression (lambda %g)", c.Ridge)
	}
	s := ""
	for i, u := range c.LSTMUnits {
		if i > 0 {
			s += " + "
		}
		s += fmt.Sprintf("LSTM(%d)", u)
	}
	for _, u := range c.DenseUnits {
		s += fmt.Sprintf(" + Dense(%d)", u)
	}
	s += " + Dense(1)"
	if c.Dropout > 0 {
		s += fmt.Sprintf(", dropout %.2f", c.Dropout)
	}
	return s
}
