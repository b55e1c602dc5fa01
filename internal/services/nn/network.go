package nn

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"MarketPulse/internal/domain/service"
)

// ErrClosed is returned by a regressor used after Close.
var ErrClosed = errors.New("nn: regressor closed")

// LSTMRegressor is stacked LSTM layers, ReLU dense layers and a linear scalar output,
// trained with backpropagation through time on mean squared error using Adam.
type LSTMRegressor struct {
	window   int
	features int
	dropout  float64
	clipNorm float64

	lstm   []*lstmLayer
	dense  []*denseLayer
	params []*param
	rng    *rand.Rand
	closed bool
}

var _ service.Regressor = (*LSTMRegressor)(nil)

type trace struct {
	steps [][]lstmStep
	masks [][][]float64
	dense []denseCache
}

// NewLSTM builds an untrained network for [window][features] inputs.
func NewLSTM(cfg Config, window, features int) (*LSTMRegressor, error) {
	if window < 1 || features < 1 {
		return nil, fmt.Errorf("nn: invalid input shape %dx%d", window, features)
	}
	if len(cfg.LSTMUnits) == 0 {
		return nil, fmt.Errorf("nn: at least one lstm layer is required")
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	n := &LSTMRegressor{
		window:   window,
		features: features,
		dropout:  cfg.Dropout,
		clipNorm: cfg.ClipNorm,
		rng:      rand.New(rand.NewSource(seed)),
	}

	in := features
	for _, units := range cfg.LSTMUnits {
		if units < 1 {
			return nil, fmt.Errorf("nn: invalid lstm units %d", units)
		}
		l := newLSTMLayer(n.rng, in, units)
		n.lstm = append(n.lstm, l)
		n.params = append(n.params, l.params()...)
		in = units
	}
	for _, units := range cfg.DenseUnits {
		if units < 1 {
			return nil, fmt.Errorf("nn: invalid dense units %d", units)
		}
		d := newDenseLayer(n.rng, in, units, true)
		n.dense = append(n.dense, d)
		n.params = append(n.params, d.params()...)
		in = units
	}
	// The head predicts a step from the newest price, so an untrained network
	// forecasts a flat price rather than a random level.
	out := newDenseLayer(n.rng, in, 1, false)
	for i := range out.w.value {
		out.w.value[i] = 0
	}
	n.dense = append(n.dense, out)
	n.params = append(n.params, out.params()...)
	return n, nil
}

// Fit trains on shuffled mini-batches and returns the last epoch's mean squared error.
func (n *LSTMRegressor) Fit(ctx context.Context, X [][][]float64, Y []float64, opts service.TrainOptions) (float64, error) {
	if n.closed {
		return 0, ErrClosed
	}
	if len(X) == 0 || len(X) != len(Y) {
		return 0, fmt.Errorf("nn: %d windows for %d targets", len(X), len(Y))
	}
	for i, w := range X {
		if err := n.checkWindow(w); err != nil {
			return 0, fmt.Errorf("window %d: %w", i, err)
		}
	}
	epochs := max(opts.Epochs, 1)
	batch := max(opts.BatchSize, 1)
	lr := opts.LearningRate
	if lr <= 0 {
		lr = 0.001
	}
	opt := newAdam(lr)

	idx := make([]int, len(X))
	for i := range idx {
		idx[i] = i
	}

	var loss float64
	for ep := 0; ep < epochs; ep++ {
		if opts.Shuffle {
			n.rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		}
		var sum float64
		for start := 0; start < len(idx); start += batch {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
			end := min(start+batch, len(idx))
			n.zeroGrad()
			for _, k := range idx[start:end] {
				pred, tr := n.forward(X[k], true)
				diff := pred - Y[k]
				sum += diff * diff
				n.backward(tr, 2*diff)
			}
			scale := 1 / float64(end-start)
			if n.clipNorm > 0 {
				if norm := gradNorm(n.params, scale); norm > n.clipNorm {
					scale *= n.clipNorm / norm
				}
			}
			opt.step(n.params, scale)
		}
		loss = sum / float64(len(idx))
		if math.IsNaN(loss) || math.IsInf(loss, 0) {
			return loss, fmt.Errorf("nn: loss diverged at epoch %d", ep+1)
		}
	}
	return loss, nil
}

// Evaluate returns the mean squared error over X, Y without dropout.
func (n *LSTMRegressor) Evaluate(X [][][]float64, Y []float64) (float64, error) {
	if n.closed {
		return 0, ErrClosed
	}
	if len(X) == 0 || len(X) != len(Y) {
		return 0, fmt.Errorf("nn: %d windows for %d targets", len(X), len(Y))
	}
	var sum float64
	for i, w := range X {
		if err := n.checkWindow(w); err != nil {
			return 0, err
		}
		pred, _ := n.forward(w, false)
		d := pred - Y[i]
		sum += d * d
	}
	return sum / float64(len(X)), nil
}

// Predict returns the scaled next-step price for one window. Column 0 of each row is
// the scaled price; the network adds its output to the newest one.
func (n *LSTMRegressor) Predict(window [][]float64) (float64, error) {
	if n.closed {
		return 0, ErrClosed
	}
	if err := n.checkWindow(window); err != nil {
		return 0, err
	}
	out, _ := n.forward(window, false)
	return out, nil
}

// Close drops the weights. The regressor cannot be used afterwards.
func (n *LSTMRegressor) Close() error {
	n.closed = true
	n.lstm, n.dense, n.params = nil, nil, nil
	return nil
}

func (n *LSTMRegressor) checkWindow(w [][]float64) error {
	if len(w) != n.window {
		return fmt.Errorf("nn: window has %d rows, want %d", len(w), n.window)
	}
	for _, row := range w {
		if len(row) != n.features {
			return fmt.Errorf("nn: row has %d features, want %d", len(row), n.features)
		}
	}
	return nil
}

func (n *LSTMRegressor) zeroGrad() {
	for _, p := range n.params {
		p.zeroGrad()
	}
}

func (n *LSTMRegressor) forward(window [][]float64, train bool) (float64, *trace) {
	xs := make([]*mat.VecDense, len(window))
	for t, row := range window {
		xs[t] = mat.NewVecDense(len(row), append([]float64(nil), row...))
	}

	tr := &trace{}
	for li, layer := range n.lstm {
		hs, steps := layer.forward(xs)
		tr.steps = append(tr.steps, steps)
		if li == len(n.lstm)-1 {
			hs = hs[len(hs)-1:]
		}
		var masks [][]float64
		if train && n.dropout > 0 {
			masks = make([][]float64, len(hs))
			for t := range hs {
				masks[t] = n.dropMask(layer.units)
				hs[t] = applyMask(hs[t], masks[t])
			}
		}
		tr.masks = append(tr.masks, masks)
		xs = hs
	}

	h := xs[0]
	for _, d := range n.dense {
		var cache denseCache
		h, cache = d.forward(h)
		tr.dense = append(tr.dense, cache)
	}
	return h.AtVec(0) + window[len(window)-1][0], tr
}

func (n *LSTMRegressor) backward(tr *trace, dOut float64) {
	dy := mat.NewVecDense(1, []float64{dOut})
	for i := len(n.dense) - 1; i >= 0; i-- {
		dy = n.dense[i].backward(tr.dense[i], dy)
	}

	var dhs []*mat.VecDense
	for li := len(n.lstm) - 1; li >= 0; li-- {
		last := li == len(n.lstm)-1
		if last {
			dhs = make([]*mat.VecDense, n.window)
			dhs[n.window-1] = dy
		}
		if masks := tr.masks[li]; masks != nil {
			if last {
				dhs[n.window-1] = applyMask(dhs[n.window-1], masks[0])
			} else {
				for t := range dhs {
					dhs[t] = applyMask(dhs[t], masks[t])
				}
			}
		}
		dhs = n.lstm[li].backward(tr.steps[li], dhs, li > 0)
	}
}

// dropMask is an inverted-dropout mask: kept units are scaled by 1/(1-p).
func (n *LSTMRegressor) dropMask(size int) []float64 {
	keep := 1 - n.dropout
	m := make([]float64, size)
	for i := range m {
		if n.rng.Float64() < keep {
			m[i] = 1 / keep
		}
	}
	return m
}

func applyMask(v *mat.VecDense, mask []float64) *mat.VecDense {
	out := mat.NewVecDense(v.Len(), nil)
	for i, m := range mask {
		out.SetVec(i, v.AtVec(i)*m)
	}
	return out
}
