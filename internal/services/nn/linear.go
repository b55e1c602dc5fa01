package nn

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"MarketPulse/internal/domain/service"
)

// LinearRegressor is a ridge autoregression on the price column of each window plus an
// unpenalised intercept. It is deterministic and solves the normal equations in one pass.
type LinearRegressor struct {
	window int
	ridge  float64
	beta   []float64
	closed bool
}

var _ service.Regressor = (*LinearRegressor)(nil)

const minRidge = 1e-8

// NewLinear builds an unfitted linear regressor for windows of the given length.
func NewLinear(window int, ridge float64) (*LinearRegressor, error) {
	if window < 1 {
		return nil, fmt.Errorf("nn: invalid window %d", window)
	}
	return &LinearRegressor{window: window, ridge: math.Max(ridge, minRidge)}, nil
}

// Fit ignores opts: the solution is closed form.
func (r *LinearRegressor) Fit(ctx context.Context, X [][][]float64, Y []float64, _ service.TrainOptions) (float64, error) {
	if r.closed {
		return 0, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(X) == 0 || len(X) != len(Y) {
		return 0, fmt.Errorf("nn: %d windows for %d targets", len(X), len(Y))
	}
	cols := r.window + 1
	data := make([]float64, 0, len(X)*cols)
	for i, w := range X {
		row, err := r.design(w)
		if err != nil {
			return 0, fmt.Errorf("window %d: %w", i, err)
		}
		data = append(data, row...)
	}
	A := mat.NewDense(len(X), cols, data)
	y := mat.NewVecDense(len(Y), append([]float64(nil), Y...))

	var ata mat.Dense
	ata.Mul(A.T(), A)
	for i := 1; i < cols; i++ {
		ata.Set(i, i, ata.At(i, i)+r.ridge)
	}
	var aty mat.VecDense
	aty.MulVec(A.T(), y)

	var beta mat.VecDense
	if err := beta.SolveVec(&ata, &aty); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 0) {
			return 0, fmt.Errorf("nn: solve normal equations: %w", err)
		}
	}
	r.beta = make([]float64, cols)
	for i := range r.beta {
		r.beta[i] = beta.AtVec(i)
	}

	var fitted mat.VecDense
	fitted.MulVec(A, &beta)
	var sum float64
	for i := range Y {
		d := fitted.AtVec(i) - Y[i]
		sum += d * d
	}
	return sum / float64(len(Y)), nil
}

func (r *LinearRegressor) Predict(window [][]float64) (float64, error) {
	if r.closed {
		return 0, ErrClosed
	}
	if r.beta == nil {
		return 0, errors.New("nn: linear regressor is not fitted")
	}
	row, err := r.design(window)
	if err != nil {
		return 0, err
	}
	var out float64
	for i, b := range r.beta {
		out += b * row[i]
	}
	return out, nil
}

func (r *LinearRegressor) Close() error {
	r.closed = true
	r.beta = nil
	return nil
}

func (r *LinearRegressor) design(w [][]float64) ([]float64, error) {
	if len(w) != r.window {
		return nil, fmt.Errorf("nn: window has %d rows, want %d", len(w), r.window)
	}
	row := make([]float64, r.window+1)
	row[0] = 1
	for t, features := range w {
		if len(features) == 0 {
			return nil, errors.New("nn: empty feature row")
		}
		row[t+1] = features[0]
	}
	return row, nil
}
