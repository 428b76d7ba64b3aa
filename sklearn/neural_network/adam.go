package neural_network

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// adam holds the first and second moment estimates for every parameter.
type adam struct {
	beta1, beta2, eps float64
	t                 int
	mW, vW            [][]float64
	mB, vB            [][]float64
	weights           []*mat.Dense
	biases            []*mat.VecDense
}

func newAdam(weights []*mat.Dense, biases []*mat.VecDense, beta1, beta2, eps float64) *adam {
	a := &adam{beta1: beta1, beta2: beta2, eps: eps, weights: weights, biases: biases}
	for l := range weights {
		n := len(weights[l].RawMatrix().Data)
		a.mW = append(a.mW, make([]float64, n))
		a.vW = append(a.vW, make([]float64, n))
		nb := biases[l].Len()
		a.mB = append(a.mB, make([]float64, nb))
		a.vB = append(a.vB, make([]float64, nb))
	}
	return a
}

func (a *adam) step(lr float64, gW []*mat.Dense, gB []*mat.VecDense) {
	a.t++
	c1 := 1 - math.Pow(a.beta1, float64(a.t))
	c2 := 1 - math.Pow(a.beta2, float64(a.t))
	for l := range a.weights {
		a.update(lr, c1, c2, a.weights[l].RawMatrix().Data, gW[l].RawMatrix().Data, a.mW[l], a.vW[l])
		a.update(lr, c1, c2, a.biases[l].RawVector().Data, gB[l].RawVector().Data, a.mB[l], a.vB[l])
	}
}

func (a *adam) update(lr, c1, c2 float64, param, grad, m, v []float64) {
	for i, g := range grad {
		m[i] = a.beta1*m[i] + (1-a.beta1)*g
		v[i] = a.beta2*v[i] + (1-a.beta2)*g*g
		param[i] -= lr * (m[i] / c1) / (math.Sqrt(v[i]/c2) + a.eps)
	}
}
