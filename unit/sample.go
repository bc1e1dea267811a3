package unit

import (
	"math/rand/v2"

	"github.com/sw965/ebm/blas32/vector"
	"github.com/sw965/ebm/mathx"
	"github.com/sw965/ebm/mathx/randx"
	"gonum.org/v1/gonum/blas/blas32"
)

// PThreshFunc draws r_i ~ Bernoulli(sigmoid(x_i)).
func PThreshFunc(x blas32.Vector, rng *rand.Rand) blas32.Vector {
	y := vector.NewZeros(x.N)
	for i, e := range x.Data[:x.N] {
		y.Data[i] = randx.Bernoulli(mathx.Sigmoid(e), rng)
	}
	return y
}

// RThreshFunc draws r_i ~ Bernoulli(x_i); x must already lie in [0, 1].
func RThreshFunc(x blas32.Vector, rng *rand.Rand) blas32.Vector {
	y := vector.NewZeros(x.N)
	for i, e := range x.Data[:x.N] {
		y.Data[i] = randx.Bernoulli(e, rng)
	}
	return y
}

// CatFunc draws a one-hot vector from the categorical distribution x.
func CatFunc(x blas32.Vector, rng *rand.Rand) blas32.Vector {
	y := vector.NewZeros(x.N)
	if idx := CatIndex(x, rng); idx >= 0 {
		y.Data[idx] = 1.0
	}
	return y
}

func CatIndex(x blas32.Vector, rng *rand.Rand) int {
	return randx.CumulativeIndex(x.Data[:x.N], rng)
}
