package nn

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketPulse/internal/domain/service"
)

func lineWindows(n, window int) ([][][]float64, []float64) {
	X := make([][][]float64, n)
	Y := make([]float64, n)
	for i := 0; i < n; i++ {
		w := make([][]float64, window)
		for t := range w {
			w[t] = []float64{float64(i+t) / 100, 0.3}
		}
		X[i] = w
		Y[i] = float64(i+window) / 100
	}
	return X, Y
}

func TestLinearFitsTrendAndExtrapolates(t *testing.T) {
	X, Y := lineWindows(40, 5)
	r, err := NewLinear(5, 1e-6)
	require.NoError(t, err)

	loss, err := r.Fit(context.Background(), X, Y, service.TrainOptions{})
	require.NoError(t, err)
	assert.Less(t, loss, 1e-8)

	next := make([][]float64, 5)
	for t := range next {
		next[t] = []float64{float64(40+t) / 100, 0.3}
	}
	got, err := r.Predict(next)
	require.NoError(t, err)
	assert.InDelta(t, 0.45, got, 1e-4)
}

func TestLinearErrors(t *testing.T) {
	r, err := NewLinear(3, 0)
	require.NoError(t, err)

	_, err = r.Predict([][]float64{{1}, {2}, {3}})
	assert.Error(t, err, "predict before fit")

	_, err = r.Fit(context.Background(), nil, nil, service.TrainOptions{})
	assert.Error(t, err)

	_, err = NewLinear(0, 0)
	assert.Error(t, err)

	require.NoError(t, r.Close())
	_, err = r.Predict([][]float64{{1}, {2}, {3}})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestFactory(t *testing.T) {
	f, err := NewFactory(Config{Kind: KindLinear, Ridge: 1e-4})
	require.NoError(t, err)
	m, err := f(20, 6)
	require.NoError(t, err)
	assert.IsType(t, &LinearRegressor{}, m)

	f, err = NewFactory(Config{Kind: KindLSTM, LSTMUnits: []int{32}, DenseUnits: []int{8}})
	require.NoError(t, err)
	m, err = f(20, 6)
	require.NoError(t, err)
	assert.IsType(t, &LSTMRegressor{}, m)

	a, _ := f(20, 6)
	b, _ := f(20, 6)
	assert.NotSame(t, a, b, "every call builds an independent model")

	_, err = NewFactory(Config{Kind: "gru"})
	assert.Error(t, err)
	_, err = NewFactory(Config{Kind: KindLSTM})
	assert.Error(t, err)
}

func TestDescribe(t *testing.T) {
	c := Config{Kind: KindLSTM, LSTMUnits: []int{64, 32}, DenseUnits: []int{16}, Dropout: 0.2}
	assert.Equal(t, "LSTM(64) + LSTM(32) + Dense(16) + Dense(1), dropout 0.20", c.Describe())
}
