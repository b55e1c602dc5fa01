package nn

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketPulse/internal/domain/service"
)

func randomWindow(rng *rand.Rand, w, f int) [][]float64 {
	out := make([][]float64, w)
	for i := range out {
		out[i] = make([]float64, f)
		for j := range out[i] {
			out[i][j] = rng.Float64()
		}
	}
	return out
}

func squaredError(n *LSTMRegressor, window [][]float64, target float64) float64 {
	pred, _ := n.forward(window, false)
	d := pred - target
	return d * d
}

// Analytic gradients must agree with central finite differences.
func TestLSTMGradientsMatchFiniteDifferences(t *testing.T) {
	cfg := Config{LSTMUnits: []int{3, 2}, DenseUnits: []int{2}, Seed: 7}
	n, err := NewLSTM(cfg, 4, 3)
	require.NoError(t, err)
	// a zero head would hide every gradient below it
	n.dense[len(n.dense)-1].w.glorotNormal(rand.New(rand.NewSource(13)), 2, 1)

	rng := rand.New(rand.NewSource(11))
	window := randomWindow(rng, 4, 3)
	target := 0.7

	n.zeroGrad()
	pred, tr := n.forward(window, false)
	n.backward(tr, 2*(pred-target))

	const eps = 1e-6
	for pi, p := range n.params {
		for i := range p.value {
			orig := p.value[i]
			p.value[i] = orig + eps
			plus := squaredError(n, window, target)
			p.value[i] = orig - eps
			minus := squaredError(n, window, target)
			p.value[i] = orig

			numeric := (plus - minus) / (2 * eps)
			analytic := p.grad[i]
			tol := 1e-6 + 1e-4*math.Max(math.Abs(numeric), math.Abs(analytic))
			require.InDelta(t, numeric, analytic, tol, "param %d index %d", pi, i)
		}
	}
}

func trendData(n, window int) ([][][]float64, []float64) {
	series := make([]float64, n+window)
	for i := range series {
		series[i] = 0.2 + 0.012*float64(i) + 0.005*math.Sin(float64(i)/3)
	}
	X := make([][][]float64, n)
	Y := make([]float64, n)
	for i := 0; i < n; i++ {
		w := make([][]float64, window)
		for t := 0; t < window; t++ {
			w[t] = []float64{series[i+t], 0.5}
		}
		X[i] = w
		Y[i] = series[i+window]
	}
	return X, Y
}

func TestLSTMTrainingReducesLoss(t *testing.T) {
	X, Y := trendData(48, 8)
	n, err := NewLSTM(Config{LSTMUnits: []int{8}, DenseUnits: []int{4}, Seed: 3, ClipNorm: 5}, 8, 2)
	require.NoError(t, err)

	before, err := n.Evaluate(X, Y)
	require.NoError(t, err)

	loss, err := n.Fit(context.Background(), X, Y, service.TrainOptions{
		Epochs: 40, BatchSize: 8, LearningRate: 0.001, Shuffle: true,
	})
	require.NoError(t, err)
	require.False(t, math.IsNaN(loss))

	after, err := n.Evaluate(X, Y)
	require.NoError(t, err)
	assert.Less(t, after, before/2)
}

func TestLSTMUntrainedPredictsFlatPrice(t *testing.T) {
	n, err := NewLSTM(Config{LSTMUnits: []int{4}, DenseUnits: []int{3}, Seed: 2}, 5, 2)
	require.NoError(t, err)

	window := randomWindow(rand.New(rand.NewSource(4)), 5, 2)
	pred, err := n.Predict(window)
	require.NoError(t, err)
	assert.InDelta(t, window[4][0], pred, 1e-12)
}

func TestLSTMExtrapolatesRisingSeries(t *testing.T) {
	X, Y := trendData(48, 8)
	n, err := NewLSTM(Config{LSTMUnits: []int{8}, DenseUnits: []int{4}, Seed: 3, ClipNorm: 5}, 8, 2)
	require.NoError(t, err)
	_, err = n.Fit(context.Background(), X, Y, service.TrainOptions{Epochs: 10, BatchSize: 16, LearningRate: 0.001, Shuffle: true})
	require.NoError(t, err)

	// newest window ends above every training target
	last := X[len(X)-1]
	next := make([][]float64, len(last))
	copy(next, last[1:])
	next[len(next)-1] = []float64{Y[len(Y)-1], 0.5}

	pred, err := n.Predict(next)
	require.NoError(t, err)
	assert.Greater(t, pred, Y[len(Y)-1])
}

func TestLSTMWithDropoutTrains(t *testing.T) {
	X, Y := trendData(32, 6)
	n, err := NewLSTM(Config{LSTMUnits: []int{6, 4}, DenseUnits: []int{4}, Dropout: 0.2, Seed: 5}, 6, 2)
	require.NoError(t, err)

	loss, err := n.Fit(context.Background(), X, Y, service.TrainOptions{Epochs: 3, BatchSize: 16, LearningRate: 0.001, Shuffle: true})
	require.NoError(t, err)
	assert.False(t, math.IsNaN(loss))
	assert.GreaterOrEqual(t, loss, 0.0)

	// inference is deterministic: dropout only applies while training
	p1, err := n.Predict(X[0])
	require.NoError(t, err)
	p2, err := n.Predict(X[0])
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
}

func TestLSTMFitHonoursCancellation(t *testing.T) {
	X, Y := trendData(16, 4)
	n, err := NewLSTM(Config{LSTMUnits: []int{4}, Seed: 1}, 4, 2)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = n.Fit(ctx, X, Y, service.TrainOptions{Epochs: 1, BatchSize: 4})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLSTMShapeErrorsAndClose(t *testing.T) {
	n, err := NewLSTM(Config{LSTMUnits: []int{4}, Seed: 1}, 4, 2)
	require.NoError(t, err)

	_, err = n.Predict(randomWindow(rand.New(rand.NewSource(1)), 3, 2))
	assert.Error(t, err)
	_, err = n.Predict(randomWindow(rand.New(rand.NewSource(1)), 4, 5))
	assert.Error(t, err)

	require.NoError(t, n.Close())
	_, err = n.Predict(randomWindow(rand.New(rand.NewSource(1)), 4, 2))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestNewLSTMRejectsBadConfig(t *testing.T) {
	_, err := NewLSTM(Config{}, 4, 2)
	assert.Error(t, err)
	_, err = NewLSTM(Config{LSTMUnits: []int{0}}, 4, 2)
	assert.Error(t, err)
	_, err = NewLSTM(Config{LSTMUnits: []int{4}}, 0, 2)
	assert.Error(t, err)
}
