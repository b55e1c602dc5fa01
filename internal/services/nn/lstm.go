package nn

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// lstmLayer is a single LSTM layer with gates stacked as [input, forget, cell, output].
type lstmLayer struct {
	in, units int

	w, u, b *param
	W, U    *mat.Dense
	B       *mat.VecDense
	dW, dU  *mat.Dense
	dB      *mat.VecDense
}

// lstmStep caches one timestep for backpropagation through time.
type lstmStep struct {
	x, hPrev   *mat.VecDense
	cPrev      []float64
	i, f, g, o []float64
	tanhC      []float64
}

func newLSTMLayer(rng *rand.Rand, in, units int) *lstmLayer {
	gates := 4 * units
	l := &lstmLayer{
		in:    in,
		units: units,
		w:     newParam(gates * in),
		u:     newParam(gates * units),
		b:     newParam(gates),
	}
	l.w.glorotNormal(rng, in, gates)
	l.u.glorotNormal(rng, units, gates)
	// unit forget bias
	for k := units; k < 2*units; k++ {
		l.b.value[k] = 1
	}
	l.W, l.U, l.B = l.w.matrix(gates, in), l.u.matrix(gates, units), l.b.vector()
	l.dW, l.dU, l.dB = l.w.gradMatrix(gates, in), l.u.gradMatrix(gates, units), l.b.gradVector()
	return l
}

func (l *lstmLayer) params() []*param { return []*param{l.w, l.u, l.b} }

// forward returns the hidden state after every step and the per-step cache.
func (l *lstmLayer) forward(xs []*mat.VecDense) ([]*mat.VecDense, []lstmStep) {
	H := l.units
	h := mat.NewVecDense(H, nil)
	c := make([]float64, H)
	z := mat.NewVecDense(4*H, nil)
	rec := mat.NewVecDense(4*H, nil)

	hs := make([]*mat.VecDense, len(xs))
	steps := make([]lstmStep, len(xs))
	for t, x := range xs {
		z.MulVec(l.W, x)
		rec.MulVec(l.U, h)
		z.AddVec(z, rec)
		z.AddVec(z, l.B)

		st := lstmStep{
			x:     x,
			hPrev: h,
			cPrev: c,
			i:     make([]float64, H),
			f:     make([]float64, H),
			g:     make([]float64, H),
			o:     make([]float64, H),
			tanhC: make([]float64, H),
		}
		cNext := make([]float64, H)
		hNext := make([]float64, H)
		for k := 0; k < H; k++ {
			st.i[k] = sigmoid(z.AtVec(k))
			st.f[k] = sigmoid(z.AtVec(H + k))
			st.g[k] = math.Tanh(z.AtVec(2*H + k))
			st.o[k] = sigmoid(z.AtVec(3*H + k))
			cNext[k] = st.f[k]*c[k] + st.i[k]*st.g[k]
			st.tanhC[k] = math.Tanh(cNext[k])
			hNext[k] = st.o[k] * st.tanhC[k]
		}
		steps[t] = st
		c = cNext
		h = mat.NewVecDense(H, hNext)
		hs[t] = h
	}
	return hs, steps
}

// backward accumulates parameter gradients given dL/dh for each step (nil means zero) and
// returns dL/dx per step when inputGrad is set.
func (l *lstmLayer) backward(steps []lstmStep, dhs []*mat.VecDense, inputGrad bool) []*mat.VecDense {
	H := l.units
	dhNext := make([]float64, H)
	dcNext := make([]float64, H)
	dz := mat.NewVecDense(4*H, nil)
	dhRec := mat.NewVecDense(H, nil)

	var dxs []*mat.VecDense
	if inputGrad {
		dxs = make([]*mat.VecDense, len(steps))
	}
	for t := len(steps) - 1; t >= 0; t-- {
		st := steps[t]
		for k := 0; k < H; k++ {
			dh := dhNext[k]
			if dhs[t] != nil {
				dh += dhs[t].AtVec(k)
			}
			do := dh * st.tanhC[k]
			dc := dcNext[k] + dh*st.o[k]*(1-st.tanhC[k]*st.tanhC[k])
			di := dc * st.g[k]
			dg := dc * st.i[k]
			df := dc * st.cPrev[k]
			dcNext[k] = dc * st.f[k]

			dz.SetVec(k, di*st.i[k]*(1-st.i[k]))
			dz.SetVec(H+k, df*st.f[k]*(1-st.f[k]))
			dz.SetVec(2*H+k, dg*(1-st.g[k]*st.g[k]))
			dz.SetVec(3*H+k, do*st.o[k]*(1-st.o[k]))
		}
		l.dW.RankOne(l.dW, 1, dz, st.x)
		l.dU.RankOne(l.dU, 1, dz, st.hPrev)
		l.dB.AddVec(l.dB, dz)

		if inputGrad {
			dx := mat.NewVecDense(l.in, nil)
			dx.MulVec(l.W.T(), dz)
			dxs[t] = dx
		}
		dhRec.MulVec(l.U.T(), dz)
		for k := 0; k < H; k++ {
			dhNext[k] = dhRec.AtVec(k)
		}
	}
	return dxs
}
