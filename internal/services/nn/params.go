package nn

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// param is one trainable tensor stored flat. Matrix and vector views share the backing
// slices, so the optimiser can work on plain slices while layers use gonum.
type param struct {
	value []float64
	grad  []float64
	m     []float64
	v     []float64
}

func newParam(n int) *param {
	return &param{
		value: make([]float64, n),
		grad:  make([]float64, n),
		m:     make([]float64, n),
		v:     make([]float64, n),
	}
}

func (p *param) matrix(r, c int) *mat.Dense     { return mat.NewDense(r, c, p.value) }
func (p *param) gradMatrix(r, c int) *mat.Dense { return mat.NewDense(r, c, p.grad) }
func (p *param) vector() *mat.VecDense          { return mat.NewVecDense(len(p.value), p.value) }
func (p *param) gradVector() *mat.VecDense      { return mat.NewVecDense(len(p.grad), p.grad) }

func (p *param) zeroGrad() {
	for i := range p.grad {
		p.grad[i] = 0
	}
}

// glorotNormal fills p from a normal truncated at two standard deviations with
// std = sqrt(2 / (fanIn + fanOut)).
func (p *param) glorotNormal(rng *rand.Rand, fanIn, fanOut int) {
	std := math.Sqrt(2 / float64(fanIn+fanOut))
	for i := range p.value {
		x := rng.NormFloat64()
		for math.Abs(x) > 2 {
			x = rng.NormFloat64()
		}
		p.value[i] = x * std
	}
}

// adam implements the Adam update with bias correction.
type adam struct {
	lr    float64
	beta1 float64
	beta2 float64
	eps   float64
	t     int
}

func newAdam(lr float64) *adam {
	return &adam{lr: lr, beta1: 0.9, beta2: 0.999, eps: 1e-7}
}

// step applies one update using grad*scale as the gradient.
func (a *adam) step(params []*param, scale float64) {
	a.t++
	c1 := 1 - math.Pow(a.beta1, float64(a.t))
	c2 := 1 - math.Pow(a.beta2, float64(a.t))
	for _, p := range params {
		for i, g := range p.grad {
			g *= scale
			p.m[i] = a.beta1*p.m[i] + (1-a.beta1)*g
			p.v[i] = a.beta2*p.v[i] + (1-a.beta2)*g*g
			mHat := p.m[i] / c1
			vHat := p.v[i] / c2
			p.value[i] -= a.lr * mHat / (math.Sqrt(vHat) + a.eps)
		}
	}
}

// gradNorm is the global L2 norm of all gradients scaled by scale.
func gradNorm(params []*param, scale float64) float64 {
	var sum float64
	for _, p := range params {
		for _, g := range p.grad {
			g *= scale
			sum += g * g
		}
	}
	return math.Sqrt(sum)
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
