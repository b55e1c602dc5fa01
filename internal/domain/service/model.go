package service

import "context"

// TrainOptions controls one Fit call.
type TrainOptions struct {
	Epochs       int
	BatchSize    int
	LearningRate float64
	Shuffle      bool
}

// Regressor is a trainable sequence regressor over [window][feature] inputs.
// An instance belongs to one symbol and one run; it is never reused.
type Regressor interface {
	// Fit trains on X[i] -> Y[i] and returns the final epoch's mean squared error.
	Fit(ctx context.Context, X [][][]float64, Y []float64, opts TrainOptions) (float64, error)
	// Predict returns the next scaled price for one window.
	Predict(window [][]float64) (float64, error)
	// Close releases the trained weights.
	Close() error
}

// RegressorFactory builds a fresh, untrained regressor for the given input shape.
type RegressorFactory func(windowSize, numFeatures int) (Regressor, error)
