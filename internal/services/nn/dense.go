package nn

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

type denseLayer struct {
	in, out int
	relu    bool

	w, b *param
	W    *mat.Dense
	B    *mat.VecDense
	dW   *mat.Dense
	dB   *mat.VecDense
}

type denseCache struct {
	x *mat.VecDense
	z []float64
}

func newDenseLayer(rng *rand.Rand, in, out int, relu bool) *denseLayer {
	d := &denseLayer{in: in, out: out, relu: relu, w: newParam(out * in), b: newParam(out)}
	d.w.glorotNormal(rng, in, out)
	d.W, d.B = d.w.matrix(out, in), d.b.vector()
	d.dW, d.dB = d.w.gradMatrix(out, in), d.b.gradVector()
	return d
}

func (d *denseLayer) params() []*param { return []*param{d.w, d.b} }

func (d *denseLayer) forward(x *mat.VecDense) (*mat.VecDense, denseCache) {
	y := mat.NewVecDense(d.out, nil)
	y.MulVec(d.W, x)
	y.AddVec(y, d.B)
	cache := denseCache{x: x, z: make([]float64, d.out)}
	for k := 0; k < d.out; k++ {
		z := y.AtVec(k)
		cache.z[k] = z
		if d.relu && z < 0 {
			y.SetVec(k, 0)
		}
	}
	return y, cache
}

func (d *denseLayer) backward(c denseCache, dy *mat.VecDense) *mat.VecDense {
	dz := mat.NewVecDense(d.out, nil)
	for k := 0; k < d.out; k++ {
		g := dy.AtVec(k)
		if d.relu && c.z[k] <= 0 {
			g = 0
		}
		dz.SetVec(k, g)
	}
	d.dW.RankOne(d.dW, 1, dz, c.x)
	d.dB.AddVec(d.dB, dz)

	dx := mat.NewVecDense(d.in, nil)
	dx.MulVec(d.W.T(), dz)
	return dx
}
